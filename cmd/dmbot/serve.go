package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/dmbot/internal/app"
	"github.com/suPer8Hu/dmbot/internal/config"
	"github.com/suPer8Hu/dmbot/internal/game"
	"github.com/suPer8Hu/dmbot/internal/httpapi"
	"github.com/suPer8Hu/dmbot/internal/metrics"
	"github.com/suPer8Hu/dmbot/internal/store/redisstore"
	"github.com/suPer8Hu/dmbot/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the HTTP API",
	Long: `Starts the HTTP API (and /metrics) and, when TELEGRAM_BOT_TOKEN is set, long-polls
Telegram for commands. SIGINT or SIGTERM stops both and waits for pending roll writes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := app.Logger(cfg)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, stop, cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// serve blocks until ctx is done or a server fails; stop cancels ctx.
func serve(ctx context.Context, stop context.CancelFunc, cfg config.Config, log *slog.Logger) error {
	repo, closeDB, err := app.Repo(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	recorder, closeRecorder, err := app.RollRecorder(cfg, repo)
	if err != nil {
		return err
	}
	defer closeRecorder()

	gen, err := app.Provider(ctx, cfg)
	if err != nil {
		return err
	}

	svc := game.NewService(repo, gen, recorder, game.Options{
		Settings: app.Settings(cfg),
		Logger:   log,
		Metrics:  m,
	})
	defer svc.Wait()

	errs := make(chan error, 2)
	running := 0
	shutdownHTTP := func() {}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty, HTTP API disabled")
	} else {
		srv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: httpapi.NewRouter(httpapi.Deps{
				Game:      svc,
				JWTSecret: cfg.JWTSecret,
				Gatherer:  reg,
				Metrics:   m,
				Logger:    log,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		running++
		go func() {
			log.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("http server: %w", err)
				return
			}
			errs <- nil
		}()
		shutdownHTTP = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown did not complete", "error", err)
				_ = srv.Close()
			}
		}
	}

	if cfg.TelegramToken == "" {
		log.Warn("TELEGRAM_BOT_TOKEN is empty, telegram bot disabled")
	} else {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
		opts := telegram.Options{Logger: log, Metrics: m}
		if cfg.RedisAddr != "" {
			client := redisstore.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			defer client.Close()
			opts.Throttle = redisstore.NewThrottle(client, "dmbot:", cfg.CommandCooldown)
			opts.InFlight = redisstore.NewInFlight(client, "dmbot:")
		}
		bot := telegram.NewBot(api, svc, opts)
		log.Info("telegram bot authorized", "username", api.Self.UserName)
		running++
		go func() { errs <- bot.Run(ctx) }()
	}

	if running == 0 {
		return errors.New("nothing to serve: set JWT_SECRET and/or TELEGRAM_BOT_TOKEN")
	}

	var first error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case first = <-errs:
		running--
		stop()
	}

	// the bot stops on ctx; the http server needs an explicit shutdown
	shutdownHTTP()
	for ; running > 0; running-- {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}
