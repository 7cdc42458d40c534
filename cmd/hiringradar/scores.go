package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/model"
)

var scoresLimit int

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Print the latest score and forecast per company",
	Long:  "Prints a table of the latest score per company for the configured role family, ranked by score, joined with the latest forecast.",
	RunE:  runScores,
}

func init() {
	scoresCmd.Flags().IntVarP(&scoresLimit, "limit", "n", 50, "maximum rows to print (0 for all)")
	rootCmd.AddCommand(scoresCmd)
}

func runScores(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	scores, err := a.store.LatestScores(ctx, a.cfg.RoleFamily)
	if err != nil {
		return err
	}
	forecasts, err := a.store.LatestForecasts(ctx, a.cfg.RoleFamily)
	if err != nil {
		return err
	}

	renderScores(scores, forecasts, scoresLimit)
	return nil
}

func renderScores(scores []model.HiringScore, forecasts []model.Forecast, limit int) {
	byCompany := make(map[int64]model.Forecast, len(forecasts))
	for _, f := range forecasts {
		byCompany[f.CompanyID] = f
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Company", "Score", "P(8w)", "Likely month", "Method", "Computed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	for i, s := range scores {
		if limit > 0 && i >= limit {
			break
		}
		prob, month, method := "-", "-", "-"
		if f, ok := byCompany[s.CompanyID]; ok {
			prob = fmt.Sprintf("%.2f", f.ProbNext8W)
			month = f.LikelyMonth
			method = f.Method
		}
		t.AppendRow(table.Row{i + 1, s.CompanyName, s.Score, prob, month, method, s.ComputedAt.UTC().Format("2006-01-02 15:04")})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d companies", len(scores))})
	t.Render()
}
