package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/board"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/store"
)

var boardDays int

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Browse scores and forecasts interactively (TUI)",
	Long:  "Opens a split-pane scoreboard of the latest scores and forecasts. Enter shows a company's score details and recent open postings.",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().IntVar(&boardDays, "days", 28, "window for recent open postings in the detail view")
	rootCmd.AddCommand(boardCmd)
}

func runBoard(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		return err
	}

	// Any log output while the alt-screen is up corrupts the display.
	silent := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(cmd.Context(), storeOptions(cfg), silent)
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := board.RunLoader("scores", func(ctx context.Context) (board.Data, error) {
		scores, err := st.LatestScores(ctx, cfg.RoleFamily)
		if err != nil {
			return board.Data{}, err
		}
		forecasts, err := st.LatestForecasts(ctx, cfg.RoleFamily)
		if err != nil {
			return board.Data{}, err
		}
		return board.Data{RoleFamily: cfg.RoleFamily, Scores: scores, Forecasts: forecasts}, nil
	})
	if err != nil {
		return err
	}
	if len(data.Scores) == 0 && len(data.Forecasts) == 0 {
		fmt.Println("No scores yet. Run `hiringradar ingest` then `hiringradar recompute`.")
		return nil
	}

	window := time.Duration(boardDays) * 24 * time.Hour
	return board.Run(data, func(ctx context.Context, companyID int64) ([]model.JobPosting, error) {
		return st.RecentOpenPostings(ctx, companyID, cfg.RoleFamily, time.Now().Add(-window))
	})
}
