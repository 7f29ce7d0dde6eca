package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connectivity and sync queue status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := newApp(ctx, nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		st, err := a.coord.Status(ctx)
		if err != nil {
			fatalf("failed to read status: %v", err)
		}

		if st.Online {
			fmt.Printf("%s online (%s)\n", ui.RenderPass("●"), a.cfg.Remote.BaseURL)
		} else {
			fmt.Printf("%s offline\n", ui.RenderWarn("●"))
		}
		fmt.Printf("   Pending mutations: %d\n", st.Pending)
		fmt.Printf("   Unsynced records:  %d\n", st.Unsynced)
		if !st.LastReconcile.IsZero() {
			fmt.Printf("   Last reconcile:    %s\n", st.LastReconcile.Format("2006-01-02 15:04:05"))
		}
		if st.LastError != "" {
			fmt.Printf("   %s %s\n", ui.RenderFail("Last error:"), st.LastError)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
