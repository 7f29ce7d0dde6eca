package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/config"
	"github.com/agentx/assistant-core/internal/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API credential",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store the API token",
	Long: `Prompt for the backend API token and store it in the token file.
Without a token, writes still work locally and queue for later.`,
	Run: func(cmd *cobra.Command, args []string) {
		loader, err := config.Load(configPath, nil)
		if err != nil {
			fatalf("%v", err)
		}
		cfg := loader.Current()

		var token string
		form := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("API token").
				Description("Paste the token issued by the assistant backend.").
				EchoMode(huh.EchoModePassword).
				Value(&token),
		))
		if err := form.Run(); err != nil {
			fatalf("prompt failed: %v", err)
		}
		token = strings.TrimSpace(token)
		if token == "" {
			fatalf("empty token")
		}

		path := cfg.Remote.TokenFile
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			fatalf("failed to create token directory: %v", err)
		}
		if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
			fatalf("failed to write token: %v", err)
		}
		fmt.Printf("%s Token stored in %s\n", ui.RenderPass("✓"), path)
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	Run: func(cmd *cobra.Command, args []string) {
		loader, err := config.Load(configPath, nil)
		if err != nil {
			fatalf("%v", err)
		}
		path := loader.Current().Remote.TokenFile
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			fatalf("failed to remove token: %v", err)
		}
		fmt.Printf("%s Token removed\n", ui.RenderPass("✓"))
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
