package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var ingestDryRun bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch every enabled source once and upsert postings",
	Long:  "Runs one ingestion pass and prints the run summary as JSON. With --dry-run, batches are rolled back and no source is stamped.",
	RunE:  runIngest,
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute scores and forecasts for the configured role family",
	RunE:  runRecompute,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "fetch and count changes without writing anything")
	rootCmd.AddCommand(ingestCmd, recomputeCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if ingestDryRun {
		a.logger.Info("dry-run mode enabled, nothing will be persisted")
	}

	summary, err := a.pipeline(ingestDryRun, nil).RunIngest(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func runRecompute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.recomputer(nil).Recompute(ctx)
	if err != nil {
		return err
	}
	return printJSON(summary)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
