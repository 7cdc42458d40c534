package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/adapter"
	"github.com/amishk599/hiringradar/internal/classifier"
	"github.com/amishk599/hiringradar/internal/config"
	"github.com/amishk599/hiringradar/internal/model"
	"github.com/amishk599/hiringradar/internal/notifier"
	"github.com/amishk599/hiringradar/internal/pipeline"
	"github.com/amishk599/hiringradar/internal/poller"
	"github.com/amishk599/hiringradar/internal/ratelimit"
	"github.com/amishk599/hiringradar/internal/retry"
	"github.com/amishk599/hiringradar/internal/store"
	"github.com/amishk599/hiringradar/internal/upsert"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:          "hiringradar",
	Short:        "Track hiring activity across company job boards",
	Long:         "HiringRadar ingests postings from Greenhouse, Lever, Ashby and SmartRecruiters, then scores and forecasts hiring per company.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: "+config.EnvConfigPath+" env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it. A missing default
// config.yaml falls back to built-in defaults.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	resolved, explicit := config.Resolve(path)
	if !explicit {
		if _, err := os.Stat(resolved); os.IsNotExist(err) {
			logger.Debug("no config file, using defaults", "path", resolved)
			if err := config.LoadDotEnv("."); err != nil {
				return nil, err
			}
			return config.Default(), nil
		}
	}
	return config.Load(resolved)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// app is the wiring shared by every command that touches the database.
type app struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

func newApp(ctx context.Context) (*app, error) {
	logger := setupLogger(debug)
	cfg, err := loadConfig(cfgPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(ctx, storeOptions(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &app{cfg: cfg, store: st, logger: logger}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}
}

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: a.cfg.Ingest.RequestTimeout}
}

func (a *app) classifier() *classifier.Classifier {
	rules := classifier.DefaultRules()
	rules.RoleFamily = a.cfg.RoleFamily
	if len(a.cfg.Classifier.Include) > 0 {
		rules.Include = a.cfg.Classifier.Include
	}
	if len(a.cfg.Classifier.Exclude) > 0 {
		rules.Exclude = a.cfg.Classifier.Exclude
	}
	return classifier.New(rules)
}

// connectors builds the vendor registry. Retry sits outside the rate limiter
// so every attempt waits its turn.
func (a *app) connectors() *adapter.Registry {
	reg := adapter.NewRegistry(a.httpClient(), adapter.RegistryOptions{
		SmartRecruitersDetails: a.cfg.Ingest.SmartRecruitersDetails,
	})

	limiter := ratelimit.NewATSRateLimiter(a.cfg.RateLimit.MinDelay, a.cfg.RateLimit.ATSOverrides)
	policy := retry.Policy{
		MaxAttempts: a.cfg.Retry.MaxAttempts,
		BaseDelay:   a.cfg.Retry.BaseDelay,
		MaxDelay:    a.cfg.Retry.MaxDelay,
	}
	reg.Wrap(func(kind model.ATSKind, c model.Connector) model.Connector {
		c = ratelimit.NewRateLimitedConnector(c, limiter, kind)
		if a.cfg.Retry.Enabled {
			c = retry.NewRetryConnector(c, kind, policy, a.logger)
		}
		return c
	})
	return reg
}

// pipeline wires poller, upsert engine and orchestrator. With dryRun set,
// batches roll back and sources are never stamped.
func (a *app) pipeline(dryRun bool, observer pipeline.Observer) *pipeline.Pipeline {
	var (
		postings model.PostingStore   = a.store
		sources  pipeline.SourceStore = a.store
	)
	if dryRun {
		dry := store.NewDryRunStore(a.store)
		postings, sources = dry, dry
	}

	p := poller.NewSourcePoller(a.connectors(), a.classifier(), a.cfg.TrackOnlyRoleFamily, a.cfg.Ingest.SourceTimeout, a.logger)
	engine := upsert.NewEngine(postings, a.cfg.Ingest.RawSnapshotLimit, a.logger)
	return pipeline.New(sources, p, engine, pipeline.Options{
		Workers:  a.cfg.Ingest.Workers,
		Observer: observer,
	}, a.logger)
}

func (a *app) recomputer(observer pipeline.Observer) *pipeline.Recomputer {
	return pipeline.NewRecomputer(a.store, a.cfg.RoleFamily, observer, a.logger)
}

// notifier picks the run notifier from config. The returned close func
// releases any connection it opened.
func (a *app) notifier(ctx context.Context) (model.RunNotifier, func(), error) {
	n := a.cfg.Notification
	switch n.Type {
	case "slack":
		a.logger.Info("using slack notifier")
		return notifier.NewSlackNotifier(n.WebhookURL, &http.Client{Timeout: a.cfg.Ingest.RequestTimeout}, a.logger), func() {}, nil
	case "redis":
		rdb, err := notifier.NewRedisClient(ctx, n.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		a.logger.Info("using redis notifier", "channel", n.RedisChannel)
		return notifier.NewRedisNotifier(rdb, n.RedisChannel, a.logger), func() { _ = rdb.Close() }, nil
	case "none":
		return nil, func() {}, nil
	default:
		return notifier.NewLogNotifier(a.logger), func() {}, nil
	}
}
