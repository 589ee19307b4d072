// Package app wires configuration into the concrete collaborators shared by
// cmd/dmbot and cmd/worker.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/suPer8Hu/dmbot/internal/ai"
	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/config"
	"github.com/suPer8Hu/dmbot/internal/db"
	"github.com/suPer8Hu/dmbot/internal/game"
	"github.com/suPer8Hu/dmbot/internal/logging"
	"github.com/suPer8Hu/dmbot/internal/metrics"
	"github.com/suPer8Hu/dmbot/internal/store/rabbitmq"
)

// Logger builds the process logger from LOG_LEVEL.
func Logger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// Registry registers every supported provider. The model argument overrides
// AI_MODEL when non-empty.
func Registry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	model := func(m string) string {
		if m = strings.TrimSpace(m); m != "" {
			return m
		}
		return cfg.AIModel
	}

	reg.Register("openai", func(ctx context.Context, m string) (ai.Provider, error) {
		return ai.NewOpenAIProvider(cfg.AIAPIURL, cfg.AIAPIKey, model(m))
	})
	reg.Register("openrouter", func(ctx context.Context, m string) (ai.Provider, error) {
		// AI_API_URL points at the OpenAI-compatible host; OpenRouter keeps its own.
		return ai.NewOpenRouterProvider("", cfg.AIAPIKey, model(m), cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("ollama", func(ctx context.Context, m string) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model(m)), nil
	})
	return reg
}

// Provider returns the provider named by AI_PROVIDER.
func Provider(ctx context.Context, cfg config.Config) (ai.Provider, error) {
	p, err := Registry(cfg).Get(ctx, cfg.AIProvider, "")
	if err != nil {
		return nil, fmt.Errorf("ai provider: %w", err)
	}
	return p, nil
}

// Repo opens DATABASE_URL and migrates the schema.
func Repo(ctx context.Context, cfg config.Config, log *slog.Logger) (*campaign.Repo, func() error, error) {
	gdb, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	repo := campaign.NewRepo(gdb)
	if err := repo.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return repo, sqlDB.Close, nil
}

// RollRecorder writes rolls straight to repo, or through RabbitMQ when
// RABBIT_URL is set.
func RollRecorder(cfg config.Config, repo *campaign.Repo) (game.RollRecorder, func() error, error) {
	if cfg.RabbitURL == "" {
		return repo, func() error { return nil }, nil
	}
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq publisher: %w", err)
	}
	return pub, pub.Close, nil
}

// Settings maps the AI tunables onto the orchestrator.
func Settings(cfg config.Config) game.Settings {
	return game.Settings{
		WindowSize:        cfg.ContextWindowSize,
		Temperature:       cfg.AITemperature,
		MaxTokens:         cfg.AIMaxTokens,
		GenerationTimeout: cfg.AITimeout,
	}
}

// RecordRoll wraps repo.RecordRoll with metrics for the worker.
func RecordRoll(repo *campaign.Repo, m *metrics.Metrics) rabbitmq.Handler {
	return func(ctx context.Context, roll *campaign.DiceRoll) error {
		err := repo.RecordRoll(ctx, roll)
		m.Roll(err)
		return err
	}
}
