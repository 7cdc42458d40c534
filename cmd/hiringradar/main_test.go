package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/hiringradar/internal/config"
	"github.com/amishk599/hiringradar/internal/discovery"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSignalTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	got, err := parseSignalTime("", now)
	require.NoError(t, err)
	assert.Equal(t, now, got)

	got, err = parseSignalTime("2026-02-03", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSignalTime("2026-02-03T10:00:00+02:00", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC), got)

	_, err = parseSignalTime("yesterday", now)
	assert.Error(t, err)
}

func TestSeedAndSync(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{DSN: filepath.Join(t.TempDir(), "cli.db")}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	off := false
	companies := []config.CompanyConfig{
		{Name: "acme", ATS: "greenhouse", Handle: "acme"},
		{Name: "globex", ATS: "Lever", Handle: "globex", Enabled: &off},
	}

	created, err := seedCompanies(ctx, st, companies)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = seedCompanies(ctx, st, companies)
	require.NoError(t, err)
	assert.Equal(t, 0, created, "seeding is idempotent")

	res, err := discovery.NewRegistrar(st, discardLogger()).SyncCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	require.NoError(t, disableCompanySource(ctx, st, companies[1]))

	enabled, err := st.ListEnabledSources(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, model.KindGreenhouse, enabled[0].Kind)
	assert.Equal(t, "acme", enabled[0].Handle)
}

func TestAppClassifierUsesConfiguredRules(t *testing.T) {
	cfg := config.Default()
	a := &app{cfg: cfg, logger: discardLogger()}
	assert.Equal(t, "SDE", a.classifier().Classify("Backend Engineer", ""))

	cfg.RoleFamily = "DATA"
	cfg.Classifier.Include = []string{"data engineer"}
	assert.Equal(t, "DATA", a.classifier().Classify("Senior Data Engineer", ""))
	assert.Equal(t, "", a.classifier().Classify("Backend Engineer", ""))
}
