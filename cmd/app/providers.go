package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/mindcheck/internal/domain/assessment"
	"github.com/yanqian/mindcheck/internal/domain/auth"
	"github.com/yanqian/mindcheck/internal/infra/assessmentrepo"
	"github.com/yanqian/mindcheck/internal/infra/config"
	"github.com/yanqian/mindcheck/internal/infra/llm/chatgpt"
	"github.com/yanqian/mindcheck/internal/infra/llm/gemini"
	"github.com/yanqian/mindcheck/internal/infra/modelstore"
	"github.com/yanqian/mindcheck/internal/infra/onnxmodel"
	"github.com/yanqian/mindcheck/internal/infra/ratelimit"
	"github.com/yanqian/mindcheck/internal/infra/sqlitedb"
	"github.com/yanqian/mindcheck/internal/infra/userrepo"
)

func provideAuthConfig(cfg *config.Config) auth.Config {
	return auth.Config{
		Secret:          cfg.Auth.Secret,
		TokenTTL:        cfg.Auth.TokenTTL,
		RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
	}
}

func provideAssessmentConfig(cfg *config.Config) assessment.Config {
	return assessment.Config{StorageTimeout: cfg.Storage.Timeout}
}

func provideGuidanceConfig(cfg *config.Config) assessment.GuidanceConfig {
	return assessment.GuidanceConfig{
		Timeout:      cfg.Guidance.Timeout,
		SystemPrompt: cfg.Guidance.SystemPrompt,
		Temperature:  cfg.LLM.Temperature,
		MaxTokens:    cfg.LLM.MaxTokens,
	}
}

type userStore interface {
	auth.Repository
	assessment.UserLookup
}

// storage groups the repositories that must share one backend, since
// records reference users.
type storage struct {
	users   userStore
	records assessment.Repository
}

// provideStorage prefers postgres, then sqlite, then memory. A backend
// that cannot be reached is logged and skipped.
func provideStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, func(), error) {
	if pool := openPostgres(ctx, cfg.Storage.Postgres, logger); pool != nil {
		logger.Info("postgres storage enabled")
		return &storage{
			users:   userrepo.NewPostgresRepository(pool),
			records: assessmentrepo.NewPostgresRepository(pool),
		}, pool.Close, nil
	}
	if db := openSQLite(ctx, cfg.Storage.SQLite.Path, logger); db != nil {
		logger.Info("sqlite storage enabled", "path", cfg.Storage.SQLite.Path)
		users := userrepo.NewSQLiteRepository(db)
		return &storage{
			users:   users,
			records: assessmentrepo.NewSQLiteRepository(db, users),
		}, func() { db.Close() }, nil
	}
	logger.Warn("no durable storage configured, records are kept in memory")
	users := userrepo.NewMemoryRepository()
	return &storage{
		users:   users,
		records: assessmentrepo.NewMemoryRepository(users),
	}, func() {}, nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig, logger *slog.Logger) *pgxpool.Pool {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, skipping postgres", "error", err)
		return nil
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, skipping postgres", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres ping failed, skipping postgres", "error", err)
		pool.Close()
		return nil
	}
	return pool
}

func openSQLite(ctx context.Context, path string, logger *slog.Logger) *sql.DB {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	db, err := sqlitedb.Open(ctx, path)
	if err != nil {
		logger.Error("failed to open sqlite, skipping sqlite", "path", path, "error", err)
		return nil
	}
	return db
}

func provideAuthRepository(s *storage) auth.Repository {
	return s.users
}

func provideUserLookup(s *storage) assessment.UserLookup {
	return s.users
}

func provideAssessmentRepository(s *storage) assessment.Repository {
	return s.records
}

// provideTextGenerator returns nil for provider none, which makes every
// assessment use the static guidance table.
func provideTextGenerator(ctx context.Context, cfg *config.Config) (assessment.TextGenerator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model})
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		client, err := chatgpt.NewClient(chatgpt.Config{APIKey: cfg.LLM.APIKey, BaseURL: cfg.LLM.BaseURL, Model: cfg.LLM.Model})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, nil
	}
}

func provideFeatureStats(cfg *config.Config) (assessment.FeatureStats, error) {
	path := strings.TrimSpace(cfg.Classifier.FeatureStatsPath)
	if path == "" {
		return assessment.DefaultFeatureStats(), nil
	}
	stats, err := assessment.LoadFeatureStats(path)
	if err != nil {
		return assessment.FeatureStats{}, fmt.Errorf("load feature stats: %w", err)
	}
	return stats, nil
}

// provideClassifier builds the configured strategy. The ONNX model is
// loaded on first use; the cleanup closes it if it was ever loaded.
func provideClassifier(cfg *config.Config, stats assessment.FeatureStats, logger *slog.Logger) (assessment.Classifier, func()) {
	if cfg.Classifier.Strategy != config.StrategyModel {
		return assessment.NewRuleBasedClassifier(), func() {}
	}

	mc := cfg.Classifier.Model
	var (
		mu     sync.Mutex
		loaded *onnxmodel.Model
	)
	loader := func(ctx context.Context) (assessment.Predictor, error) {
		store := modelstore.Config{
			Endpoint:  mc.ObjectStorage.Endpoint,
			AccessKey: mc.ObjectStorage.AccessKey,
			SecretKey: mc.ObjectStorage.SecretKey,
			Bucket:    mc.ObjectStorage.Bucket,
			Region:    mc.ObjectStorage.Region,
			Key:       mc.ObjectStorage.Key,
		}
		if store.Enabled() {
			objects, err := modelstore.NewObjectStore(store, logger)
			if err != nil {
				return nil, err
			}
			if err := objects.EnsureLocal(ctx, mc.Path); err != nil {
				return nil, err
			}
		}
		model, err := onnxmodel.Load(onnxmodel.Config{
			Path:              mc.Path,
			SharedLibraryPath: mc.SharedLibraryPath,
			InputName:         mc.InputName,
			OutputName:        mc.OutputName,
		})
		if err != nil {
			return nil, err
		}
		mu.Lock()
		loaded = model
		mu.Unlock()
		return model, nil
	}

	handle := assessment.NewModelHandle(loader, mc.LoadTimeout, logger)
	classifier := assessment.NewModelClassifier(handle, stats, assessment.ModelClassifierOptions{
		DegenerateValue: cfg.Classifier.DegenerateValue,
		OutputIsLogits:  mc.OutputIsLogits,
	}, logger)
	cleanup := func() {
		mu.Lock()
		defer mu.Unlock()
		if loaded != nil {
			if err := loaded.Close(); err != nil {
				logger.Warn("close onnx model failed", "error", err)
			}
		}
	}
	return classifier, cleanup
}

// provideLimiter returns nil when rate limiting is disabled. Valkey is used
// when configured and reachable so every replica shares one window.
func provideLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, func()) {
	if !cfg.HTTP.RateLimit.Enabled {
		return nil, func() {}
	}
	policy := ratelimit.Policy{Max: cfg.HTTP.RateLimit.MaxRequests, Window: cfg.HTTP.RateLimit.Window}
	if cfg.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory limiter", "error", err)
			return ratelimit.NewMemoryLimiter(policy), func() {}
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory limiter", "error", err)
			return ratelimit.NewMemoryLimiter(policy), func() {}
		}
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory limiter", "error", err)
			client.Close()
			return ratelimit.NewMemoryLimiter(policy), func() {}
		}
		logger.Info("valkey rate limiter enabled", "addr", cfg.Valkey.Addr)
		return ratelimit.NewValkeyLimiter(client, cfg.Valkey.Prefix, policy), client.Close
	}
	return ratelimit.NewMemoryLimiter(policy), func() {}
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
