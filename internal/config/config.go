// Package config loads and watches the client configuration. Settings
// come from a config file, AXSYNC_* environment variables, and
// defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds every tunable the client reads at startup.
type Config struct {
	Remote struct {
		BaseURL   string        `mapstructure:"base_url"`
		Timeout   time.Duration `mapstructure:"timeout"`
		TokenFile string        `mapstructure:"token_file"`
	} `mapstructure:"remote"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	Monitor struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"monitor"`

	Feed struct {
		Enabled bool   `mapstructure:"enabled"`
		Addr    string `mapstructure:"addr"`
	} `mapstructure:"feed"`

	Log struct {
		File       string `mapstructure:"file"`
		MaxSizeMB  int    `mapstructure:"max_size_mb"`
		MaxBackups int    `mapstructure:"max_backups"`
	} `mapstructure:"log"`
}

// Loader reads the config file and re-reads it when it changes on
// disk. Callers take snapshots with Current; snapshots are immutable.
type Loader struct {
	v      *viper.Viper
	logger *log.Logger

	mu      sync.RWMutex
	current Config
	onChng  []func(Config)
}

// Load reads configuration from path. An empty path searches the
// standard locations: $AXSYNC_CONFIG, ./axsync.yaml, and
// ~/.config/axsync/axsync.yaml. A missing file is not an error; the
// defaults and environment carry the day.
func Load(path string, logger *log.Logger) (*Loader, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[config] ", log.LstdFlags)
	}

	v := viper.New()
	v.SetConfigName("axsync")
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("AXSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv("AXSYNC_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "axsync"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	l := &Loader{v: v, logger: logger}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Current returns the most recently loaded configuration.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked with the new configuration
// after each successful reload. Register before calling Watch.
func (l *Loader) OnChange(fn func(Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChng = append(l.onChng, fn)
}

// Watch re-reads the config file whenever it changes on disk. A reload
// that fails validation keeps the previous snapshot.
func (l *Loader) Watch() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.logger.Printf("config file changed: %s", e.Name)
		if err := l.reload(); err != nil {
			l.logger.Printf("reload failed, keeping previous config: %v", err)
			return
		}
		l.mu.RLock()
		cfg := l.current
		callbacks := make([]func(Config), len(l.onChng))
		copy(callbacks, l.onChng)
		l.mu.RUnlock()
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	l.v.WatchConfig()
}

func (l *Loader) reload() error {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return err
	}
	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("remote.base_url", "http://localhost:8000")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("remote.token_file", defaultTokenPath())
	v.SetDefault("db.path", defaultDBPath())
	v.SetDefault("monitor.interval", 15*time.Second)
	v.SetDefault("feed.enabled", false)
	v.SetDefault("feed.addr", "127.0.0.1:8787")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

func validate(cfg *Config) error {
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url must not be empty")
	}
	if cfg.DB.Path == "" {
		return fmt.Errorf("db.path must not be empty")
	}
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive")
	}
	return nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "axsync.db"
	}
	return filepath.Join(home, ".local", "share", "axsync", "axsync.db")
}

func defaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".axsync-token"
	}
	return filepath.Join(home, ".config", "axsync", "token")
}
