package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:dmbot.db?_pragma=foreign_keys(1)"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	TelegramToken   string        `env:"TELEGRAM_BOT_TOKEN"`
	CommandCooldown time.Duration `env:"COMMAND_COOLDOWN" envDefault:"1s"`

	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret string `env:"JWT_SECRET"`

	// AI provider
	AIProvider        string        `env:"AI_PROVIDER" envDefault:"openai"`
	AIAPIKey          string        `env:"AI_API_KEY"`
	AIAPIURL          string        `env:"AI_API_URL" envDefault:"https://api.groq.com/openai/v1"`
	AIModel           string        `env:"AI_MODEL" envDefault:"llama-3.1-70b-versatile"`
	AITemperature     float64       `env:"AI_TEMPERATURE" envDefault:"0.8"`
	AIMaxTokens       int           `env:"AI_MAX_TOKENS" envDefault:"1000"`
	AITimeout         time.Duration `env:"AI_TIMEOUT" envDefault:"30s"`
	OllamaBaseURL     string        `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OpenRouterSiteURL string        `env:"OPENROUTER_SITE_URL"`
	OpenRouterAppName string        `env:"OPENROUTER_APP_NAME"`

	ContextWindowSize int `env:"CONTEXT_WINDOW_SIZE" envDefault:"10"`

	// redis; an empty address disables the command throttle
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// rabbitMQ; an empty url means rolls are written straight to the database
	RabbitURL         string `env:"RABBIT_URL"`
	RabbitQueue       string `env:"RABBIT_QUEUE" envDefault:"dice_rolls"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"2"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects tunables outside their usable range.
func (c Config) Validate() error {
	var errs []error
	if c.ContextWindowSize <= 0 {
		errs = append(errs, fmt.Errorf("CONTEXT_WINDOW_SIZE must be positive, got %d", c.ContextWindowSize))
	}
	if c.AIMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("AI_MAX_TOKENS must be positive, got %d", c.AIMaxTokens))
	}
	if c.AITemperature < 0 || c.AITemperature > 2 {
		errs = append(errs, fmt.Errorf("AI_TEMPERATURE must be within [0, 2], got %v", c.AITemperature))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, fmt.Errorf("AI_TIMEOUT must be positive, got %v", c.AITimeout))
	}
	if c.WorkerConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency))
	}
	if c.CommandCooldown < 0 {
		errs = append(errs, fmt.Errorf("COMMAND_COOLDOWN must not be negative, got %v", c.CommandCooldown))
	}
	return errors.Join(errs...)
}
