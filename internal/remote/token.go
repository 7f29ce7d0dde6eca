package remote

import (
	"context"
	"os"
	"strings"
)

// TokenSource supplies the bearer credential for remote calls.
//
// Returning ErrNoCredential (or an empty token) forces the queued path:
// the mutation stays local until a credential is available.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential, mainly for tests and development.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", ErrNoCredential
	}
	return string(t), nil
}

// FileTokenSource reads the credential from a file on every call, so a
// token refreshed by `axsync auth login` is picked up without restarting
// the daemon.
type FileTokenSource struct {
	Path string
}

// Token implements TokenSource.
func (f *FileTokenSource) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoCredential
		}
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}
