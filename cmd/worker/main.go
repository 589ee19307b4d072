// Command worker drains the dice-roll queue into the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/suPer8Hu/dmbot/internal/app"
	"github.com/suPer8Hu/dmbot/internal/config"
	"github.com/suPer8Hu/dmbot/internal/metrics"
	"github.com/suPer8Hu/dmbot/internal/store/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.RabbitURL == "" {
		return errors.New("RABBIT_URL is not set")
	}
	log, err := app.Logger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeDB, err := app.Repo(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, log)
	if err != nil {
		return fmt.Errorf("rabbit: %w", err)
	}
	defer consumer.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	if err := consumer.Run(ctx, app.RecordRoll(repo, m)); err != nil {
		return err
	}
	if ctx.Err() == nil {
		// the broker went away; let the supervisor restart us
		return errors.New("delivery channel closed")
	}
	return nil
}
