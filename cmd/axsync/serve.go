package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/config"
	"github.com/agentx/assistant-core/internal/statusfeed"
	"github.com/agentx/assistant-core/internal/ui"
)

var serveFeedAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background sync agent",
	Long: `Run the long-lived sync agent: it monitors backend reachability,
reconciles the mutation queue on every reconnect, and optionally
serves a WebSocket status feed for UIs.

The agent reloads its config file when it changes on disk.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		bootstrap, err := config.Load(configPath, nil)
		if err != nil {
			fatalf("%v", err)
		}
		a, err := newApp(ctx, logWriterFor(bootstrap.Current()))
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		if a.cfg.Feed.Enabled || serveFeedAddr != "" {
			addr := a.cfg.Feed.Addr
			if serveFeedAddr != "" {
				addr = serveFeedAddr
			}
			feed := statusfeed.NewServer(addr, a.coord, a.logger)
			if err := feed.Start(); err != nil {
				fatalf("%v", err)
			}
			defer func() {
				if err := feed.Stop(); err != nil {
					a.logger.Printf("feed stop: %v", err)
				}
			}()
			a.coord.SetNotifier(feed)
			fmt.Printf("%s Status feed on ws://%s/ws\n", ui.RenderAccent("⇄"), feed.Addr())
		}

		a.loader.OnChange(func(cfg config.Config) {
			a.logger.Printf("config reloaded; probe interval and log settings apply on restart")
		})
		a.loader.Watch()

		go func() {
			if err := a.monitor.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Printf("monitor stopped: %v", err)
			}
		}()

		fmt.Printf("%s Sync agent running (backend %s)\n", ui.RenderAccent("🚀"), a.cfg.Remote.BaseURL)
		if err := a.coord.Run(ctx); err != nil && ctx.Err() == nil {
			fatalf("sync agent failed: %v", err)
		}
		fmt.Printf("%s Sync agent stopped\n", ui.RenderPass("✓"))
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFeedAddr, "feed-addr", "", "status feed listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
