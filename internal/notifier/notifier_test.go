package notifier

import (
	"bytes"
	"io"
	"log/slog"
	"time"

	"github.com/amishk599/hiringradar/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func sampleRun() model.RunSummary {
	start := time.Date(2026, 1, 15, 10, 7, 0, 0, time.UTC)
	return model.RunSummary{
		RunID:            "run-42",
		StartedAt:        start,
		FinishedAt:       start.Add(12 * time.Second),
		SourcesProcessed: 3,
		Touched:          5,
		Inserted:         2,
		Updated:          3,
		UpsertsByKind: map[model.ATSKind]int{
			model.KindGreenhouse: 5,
			model.KindLever:      0,
		},
		Errors: []model.SourceError{
			{SourceID: 9, Kind: model.KindLever, Handle: "globex", Reason: "HTTP 404"},
		},
	}
}

func sampleRecompute() *model.RecomputeSummary {
	return &model.RecomputeSummary{Companies: 4, Scores: 4, Forecasts: 4}
}
