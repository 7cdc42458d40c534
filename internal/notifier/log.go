package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/hiringradar/internal/model"
)

// Ensure LogNotifier implements model.RunNotifier.
var _ model.RunNotifier = (*LogNotifier)(nil)

// LogNotifier writes run summaries to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each run via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyRun logs the run totals, then one line per failed source.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) NotifyRun(_ context.Context, run model.RunSummary, recompute *model.RecomputeSummary) error {
	args := []any{
		"run_id", run.RunID,
		"sources", run.SourcesProcessed,
		"touched", run.Touched,
		"inserted", run.Inserted,
		"updated", run.Updated,
		"dropped", run.Dropped,
		"skipped", run.Skipped,
		"errors", len(run.Errors),
	}
	if recompute != nil {
		args = append(args, "scores", recompute.Scores, "forecasts", recompute.Forecasts)
	}
	n.logger.Info("run complete", args...)

	for _, e := range run.Errors {
		n.logger.Warn("source error",
			"run_id", run.RunID,
			"source_id", e.SourceID,
			"kind", e.Kind,
			"handle", e.Handle,
			"reason", e.Reason,
		)
	}
	return nil
}
