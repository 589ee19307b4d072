// Package telegram connects the game service to the Telegram Bot API.
package telegram

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/suPer8Hu/dmbot/internal/game"
	"github.com/suPer8Hu/dmbot/internal/logging"
	"github.com/suPer8Hu/dmbot/internal/metrics"
	"github.com/suPer8Hu/dmbot/internal/store/redisstore"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Throttler is satisfied by redisstore.Throttle.
type Throttler interface {
	Allow(ctx context.Context, playerID string) (bool, error)
}

// Guard is satisfied by redisstore.InFlight.
type Guard interface {
	Acquire(ctx context.Context, playerID string, ttl time.Duration) (redisstore.ReleaseFunc, bool, error)
}

// Middleware runs before a command. Returning false drops the update.
type Middleware func(ctx context.Context, update *tgbotapi.Update) bool

type Options struct {
	Throttle Throttler
	InFlight Guard
	// InFlightTTL bounds how long a crashed narration blocks the player.
	InFlightTTL    time.Duration
	PollingTimeout int
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

type Bot struct {
	api        API
	svc        *game.Service
	middleware []Middleware
	inflight   Guard
	ttl        time.Duration
	timeout    int
	log        *slog.Logger
	metrics    *metrics.Metrics
	wg         sync.WaitGroup
}

func NewBot(api API, svc *game.Service, opts Options) *Bot {
	if opts.InFlightTTL <= 0 {
		opts.InFlightTTL = 2 * time.Minute
	}
	if opts.PollingTimeout <= 0 {
		opts.PollingTimeout = 60
	}
	b := &Bot{
		api:      api,
		svc:      svc,
		inflight: opts.InFlight,
		ttl:      opts.InFlightTTL,
		timeout:  opts.PollingTimeout,
		log:      logging.OrNop(opts.Logger),
		metrics:  opts.Metrics,
	}
	b.Use(b.logUpdate)
	if opts.Throttle != nil {
		b.Use(b.throttle(opts.Throttle))
	}
	return b
}

func (b *Bot) Use(mw Middleware) {
	b.middleware = append(b.middleware, mw)
}

// Run long-polls for updates until ctx is done, handling each update in its
// own goroutine. It waits for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started polling")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.log.Info("telegram bot stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.safeHandle(ctx, &update)
			}()
		}
	}
}

// safeHandle keeps one bad update from taking the whole bot down.
func (b *Bot) safeHandle(ctx context.Context, update *tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic handling update", "update_id", update.UpdateID, "panic", r, "stack", string(debug.Stack()))
			if update.Message != nil && update.Message.Chat != nil {
				b.SendText(update.Message.Chat.ID, game.FailureText)
			}
		}
	}()
	b.HandleUpdate(ctx, update)
}

// HandleUpdate runs the middleware chain and dispatches commands. Plain text
// messages are ignored.
func (b *Bot) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || !msg.IsCommand() {
		return
	}
	for _, mw := range b.middleware {
		if !mw(ctx, update) {
			return
		}
	}

	p := playerOf(msg.From)
	chatID := msg.Chat.ID
	command := strings.ToLower(msg.Command())
	args := msg.CommandArguments()
	b.metrics.Command(command, "telegram")

	if command == "dm" && strings.TrimSpace(args) != "" {
		b.speak(ctx, chatID, p, args)
		return
	}

	reply, err := b.svc.Handle(ctx, p, command, args)
	if err != nil {
		b.log.Debug("command failed", "command", command, "player_id", p.ID, "error", err)
	}
	b.SendText(chatID, reply.Text)
}

func (b *Bot) speak(ctx context.Context, chatID int64, p game.Player, message string) {
	if b.inflight != nil {
		release, ok, err := b.inflight.Acquire(ctx, p.ID, b.ttl)
		switch {
		case err != nil:
			b.log.Warn("in-flight guard unavailable", "player_id", p.ID, "error", err)
		case !ok:
			b.SendText(chatID, "🧙‍♂️ The DM is still considering your last action.")
			return
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					b.log.Warn("release in-flight guard", "player_id", p.ID, "error", err)
				}
			}()
		}
	}

	reply, err := b.svc.SpeakNotify(ctx, p, message, func() {
		b.SendText(chatID, game.ConsideringText)
	})
	if err != nil {
		b.log.Debug("speak failed", "player_id", p.ID, "error", err)
	}
	if ctx.Err() != nil {
		// the transcript is committed; only delivery is skipped
		return
	}
	b.SendText(chatID, reply.Text)
}

// SendText sends text, split into as many messages as Telegram requires.
func (b *Bot) SendText(chatID int64, text string) {
	if text == "" {
		return
	}
	for _, chunk := range splitMessage(text, MaxMessageLength) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			b.log.Error("send message", "chat_id", chatID, "error", err)
			return
		}
	}
}

func (b *Bot) logUpdate(ctx context.Context, update *tgbotapi.Update) bool {
	m := update.Message
	b.log.Info("command received", "user_id", m.From.ID, "username", m.From.UserName, "chat_id", m.Chat.ID, "text", m.Text)
	return true
}

// throttle fails open: a Redis outage must not lock players out.
func (b *Bot) throttle(t Throttler) Middleware {
	return func(ctx context.Context, update *tgbotapi.Update) bool {
		id := strconv.FormatInt(update.Message.From.ID, 10)
		ok, err := t.Allow(ctx, id)
		if err != nil {
			b.log.Warn("throttle unavailable", "player_id", id, "error", err)
			return true
		}
		if !ok {
			b.metrics.Throttle()
			b.SendText(update.Message.Chat.ID, game.ThrottledText)
		}
		return ok
	}
}

func playerOf(u *tgbotapi.User) game.Player {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	return game.Player{
		ID:          strconv.FormatInt(u.ID, 10),
		Username:    u.UserName,
		DisplayName: name,
	}
}
