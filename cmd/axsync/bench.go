package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentx/assistant-core/internal/bench"
	"github.com/agentx/assistant-core/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the local cache under concurrent load",
	Long: `Measure list latency and optimistic write throughput against a
throwaway cache file, simulating a UI polling lists while writes
stream into the mutation queue.

Examples:
  # Default load (50 readers, 4 writers, 1000 seeded tasks)
  axsync bench

  # Heavier read load
  axsync bench --readers 200 --queries 50

  # Machine-readable output
  axsync bench --json`,
	Run: func(cmd *cobra.Command, args []string) {
		readers, _ := cmd.Flags().GetInt("readers")
		tasks, _ := cmd.Flags().GetInt("tasks")
		queries, _ := cmd.Flags().GetInt("queries")
		writers, _ := cmd.Flags().GetInt("writers")
		writes, _ := cmd.Flags().GetInt("writes")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if readers <= 0 || tasks <= 0 || queries <= 0 || writers < 0 || writes < 0 {
			fatalf("benchmark sizes must be positive")
		}

		cfg := bench.Config{
			Readers:          readers,
			Tasks:            tasks,
			QueriesPerReader: queries,
			Writers:          writers,
			WritesPerWriter:  writes,
			DBPath:           filepath.Join(os.TempDir(), fmt.Sprintf("axsync-bench-%d.db", os.Getpid())),
		}
		defer os.Remove(cfg.DBPath)

		if !jsonOutput {
			fmt.Printf("%s Running cache benchmark...\n", ui.RenderAccent("⏱"))
		}
		result, err := bench.Run(cmd.Context(), cfg)
		if err != nil {
			fatalf("benchmark failed: %v", err)
		}

		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				fatalf("failed to encode result: %v", err)
			}
			return
		}
		fmt.Print(result.Format())
		if result.Errors > 0 {
			fmt.Printf("%s %d operations failed\n", ui.RenderFail("✗"), result.Errors)
			os.Exit(1)
		}
		fmt.Printf("%s Benchmark complete\n", ui.RenderPass("✓"))
	},
}

func init() {
	def := bench.DefaultConfig()
	benchCmd.Flags().Int("readers", def.Readers, "Number of concurrent list readers")
	benchCmd.Flags().Int("tasks", def.Tasks, "Number of seeded tasks")
	benchCmd.Flags().Int("queries", def.QueriesPerReader, "List queries per reader")
	benchCmd.Flags().Int("writers", def.Writers, "Number of concurrent writers")
	benchCmd.Flags().Int("writes", def.WritesPerWriter, "Optimistic writes per writer")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}
