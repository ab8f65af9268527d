package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"podnotes/pkg/config"
	"podnotes/pkg/db"
	"podnotes/pkg/deepgram"
	"podnotes/pkg/feeds"
	"podnotes/pkg/httpclient"
	"podnotes/pkg/lock"
	"podnotes/pkg/logging"
	"podnotes/pkg/persistence"
	"podnotes/pkg/retry"
	"podnotes/pkg/storage"
	"podnotes/pkg/taddy"
	"podnotes/pkg/transcripts"
	"podnotes/pkg/worker"
)

// app holds what every command needs, plus cleanup for what it opened.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) poolConfig() db.PoolConfig {
	return db.PoolConfig{
		MaxOpenConns: a.cfg.Database.MaxOpenConns,
		MaxIdleConns: a.cfg.Database.MaxIdleConns,
		ConnMaxLife:  time.Duration(a.cfg.Database.ConnMaxLifeSecs) * time.Second,
	}
}

func (a *app) connectSupabase(ctx context.Context) (*db.SupabaseClient, error) {
	client := db.NewSupabaseClient(db.SupabaseConfig{
		ConnectionString: a.cfg.Database.URL,
		SupabaseURL:      a.cfg.Supabase.URL,
		SupabaseKey:      a.cfg.Supabase.ServiceRoleKey,
		Password:         a.cfg.Supabase.DBPassword,
		Pool:             a.poolConfig(),
	})
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect supabase: %w", err)
	}
	a.closers = append(a.closers, func() { client.Close() })
	return client, nil
}

// connectDirect returns a plain Postgres connection when DATABASE_URL is set,
// else the Supabase connection. Migrations only need SQL.
func (a *app) connectDirect(ctx context.Context) (db.DBProvider, error) {
	if a.cfg.Database.URL == "" {
		supa, err := a.connectSupabase(ctx)
		if err != nil {
			return nil, err
		}
		return supa, nil
	}
	client := db.NewPostgresClient(db.PostgresConfig{DSN: a.cfg.Database.URL, Pool: a.poolConfig()})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { client.Close() })
	return client, nil
}

func (a *app) connectHistory(ctx context.Context) (*db.RunHistory, error) {
	if a.cfg.Mongo.URI == "" {
		return nil, nil
	}
	history := db.NewRunHistory(a.cfg.Mongo.URI, a.cfg.Mongo.Database, a.cfg.Mongo.Collection)
	if err := history.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect run history: %w", err)
	}
	a.closers = append(a.closers, func() { history.Close(context.Background()) })
	return history, nil
}

func workerConfig(cfg *config.Config) worker.Config {
	return worker.Config{
		Lookback:           cfg.Lookback(),
		MaxRequests:        cfg.Worker.MaxRequests,
		Concurrency:        cfg.Worker.Concurrency,
		BatchSize:          cfg.Worker.BatchSize,
		BatchPause:         cfg.BatchPause(),
		UseLock:            cfg.Worker.UseLock,
		LockKey:            cfg.Worker.LockKey,
		LastN:              cfg.Worker.LastN,
		FallbackEnabled:    cfg.Fallback.Enabled,
		MaxFallbacksPerRun: cfg.Fallback.MaxPerRun,
		FallbackStatuses:   cfg.FallbackKinds(),
	}
}

// buildWorker wires the production collaborators.
func (a *app) buildWorker(ctx context.Context) (*worker.TranscriptWorker, error) {
	cfg := a.cfg

	supa, err := a.connectSupabase(ctx)
	if err != nil {
		return nil, err
	}
	episodes, err := db.NewEpisodeStore(supa)
	if err != nil {
		return nil, fmt.Errorf("episode store: %w", err)
	}
	records, err := a.recordStore(supa)
	if err != nil {
		return nil, err
	}

	storageClient := supa.Storage()
	if storageClient == nil {
		return nil, errors.New("transcript storage needs SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
	}
	bucket, err := storage.NewSupabaseBucket(storageClient, cfg.Supabase.Bucket)
	if err != nil {
		return nil, err
	}
	writer := persistence.NewWriter(bucket, records,
		persistence.WithOverwrite(cfg.Overwrite()),
		persistence.WithLogger(a.logger))

	locker, err := a.locker(supa)
	if err != nil {
		return nil, err
	}

	tier, err := taddy.ParseTier(cfg.Taddy.Tier)
	if err != nil {
		return nil, err
	}
	policy := retry.DefaultPolicy()
	policy.Attempts = cfg.Taddy.RetryAttempts
	primary, err := taddy.NewClient(taddy.Config{
		BaseURL: cfg.Taddy.BaseURL,
		UserID:  cfg.Taddy.UserID,
		APIKey:  cfg.Taddy.APIKey,
		Tier:    tier,
	}, taddy.WithRetryPolicy(policy), taddy.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	service, err := transcripts.NewService(transcripts.Config{Primary: taddy.SourceName}, a.logger, primary)
	if err != nil {
		return nil, err
	}

	deps := worker.Deps{
		Episodes:    episodes,
		Locker:      locker,
		Transcripts: service,
		Persister:   writer,
		Logger:      a.logger,
	}

	if cfg.Fallback.Enabled {
		fallback, err := deepgram.NewClient(deepgram.Config{
			BaseURL:       cfg.Deepgram.BaseURL,
			APIKey:        cfg.Deepgram.APIKey,
			Model:         cfg.Deepgram.Model,
			MaxFileSizeMB: float64(cfg.Fallback.MaxFileSizeMB),
		},
			deepgram.WithHTTPClient(httpclient.NewClient(httpclient.APIClient,
				httpclient.WithTimeout(time.Duration(cfg.Deepgram.TimeoutSeconds)*time.Second))),
			deepgram.WithLogger(a.logger))
		switch {
		case errors.Is(err, deepgram.ErrMissingAPIKey):
			a.logger.Warn("Bootstrap: fallback enabled but DEEPGRAM_API_KEY is not set, disabling fallback")
		case err != nil:
			return nil, err
		default:
			deps.Fallback = fallback
			feedClient := httpclient.NewClient(httpclient.FeedClient)
			deps.Resolver = feeds.NewEnclosureResolver(feedClient.Standard(), a.logger)
		}
	}

	history, err := a.connectHistory(ctx)
	if err != nil {
		a.logger.Warn("Bootstrap: run history unavailable", "error", err)
	} else if history != nil {
		deps.History = history
	}

	return worker.New(workerConfig(cfg), deps)
}

func (a *app) recordStore(supa *db.SupabaseClient) (persistence.RecordStore, error) {
	if a.cfg.Worker.RecordStore == config.RecordStoreREST {
		table, err := supa.TranscriptsTable()
		if err != nil {
			return nil, err
		}
		return db.NewRESTTranscriptStore(table)
	}
	store, err := db.NewTranscriptStore(supa)
	if err != nil {
		return nil, fmt.Errorf("transcript store: %w", err)
	}
	return store, nil
}

func (a *app) locker(supa *db.SupabaseClient) (lock.Locker, error) {
	if !a.cfg.Worker.UseLock {
		return lock.Noop{}, nil
	}
	if a.cfg.Worker.LockBackend == config.LockBackendFile {
		return lock.NewFileLocker(a.cfg.Worker.LockDir)
	}
	return db.NewAdvisoryLocker(supa)
}
