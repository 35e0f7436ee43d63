package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/admitml/predictgate/internal/metrics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the gateway's operation latencies",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	snap, err := api.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("fetch stats: %w", err)
	}

	fmt.Printf("uptime: %.0fs\n", snap.UptimeSeconds)
	printOp("predict", snap.Predict)
	printOp("flush", snap.Flush)
	printOp("job", snap.Job)
	return nil
}

func printOp(name string, op *metrics.OperationSnapshot) {
	if op == nil {
		fmt.Printf("%-8s no data\n", name)
		return
	}
	fmt.Printf("%-8s count=%d avg=%.1fms min=%dms max=%dms\n",
		name, op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}
