package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/connectivity"
	"github.com/agentx/assistant-core/internal/ui"
)

var syncPull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued mutations against the backend now",
	Long: `Force an immediate reconciliation pass. Queued mutations replay
oldest first; use --pull to also hydrate the cache with the server's
tasks and events afterwards.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		if a.monitor.CheckNow(ctx) != connectivity.StateOnline {
			fatalf("backend unreachable at %s", a.cfg.Remote.BaseURL)
		}

		start := time.Now()
		fmt.Printf("%s Reconciling...\n", ui.RenderAccent("↻"))
		if err := a.coord.Reconcile(ctx); err != nil {
			fatalf("reconcile failed: %v", err)
		}

		if syncPull {
			fmt.Printf("%s Pulling server records...\n", ui.RenderAccent("↓"))
			if err := a.coord.PullAll(ctx, a.client); err != nil {
				fatalf("pull failed: %v", err)
			}
		}

		st, err := a.coord.Status(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		if st.Pending > 0 {
			fmt.Printf("   %s %d mutations still pending\n", ui.RenderWarn("⚠"), st.Pending)
		}
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncPull, "pull", false, "hydrate the cache from the server after replay")
	rootCmd.AddCommand(syncCmd)
}
