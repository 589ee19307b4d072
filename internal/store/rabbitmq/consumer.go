package rabbitmq

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/logging"
)

// Handler persists one decoded roll.
type Handler func(ctx context.Context, roll *campaign.DiceRoll) error

type retryPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

const attemptsHeader = "x-attempts"

// Consumer drains the roll queue with a fixed pool of workers.
//
// Malformed messages and validation failures go straight to the DLQ. Store
// failures are parked on the retry queue for RetryDelay and dead-lettered
// once MaxAttempts is reached.
type Consumer struct {
	Queue       string
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration

	conn  *amqp.Connection
	ch    *amqp.Channel
	retry retryPublisher
	log   *slog.Logger
}

func NewConsumer(url, queue string, concurrency int, log *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	// strict concurrency control
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	c := newConsumer(queue, concurrency, ch, log)
	c.conn, c.ch = conn, ch
	return c, nil
}

func newConsumer(queue string, concurrency int, retry retryPublisher, log *slog.Logger) *Consumer {
	return &Consumer{
		Queue:       queue,
		Concurrency: concurrency,
		MaxAttempts: 5,
		RetryDelay:  5 * time.Second,
		retry:       retry,
		log:         logging.OrNop(log),
	}
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes until ctx is done or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	msgs, err := c.ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("worker started", "queue", c.Queue, "concurrency", c.Concurrency)
	c.serve(ctx, msgs, handle)
	return nil
}

func (c *Consumer) serve(ctx context.Context, msgs <-chan amqp.Delivery, handle Handler) {
	jobs := make(chan amqp.Delivery, c.Concurrency*2)

	var wg sync.WaitGroup
	wg.Add(c.Concurrency)
	for i := 0; i < c.Concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.process(ctx, workerID, d, handle)
			}
		}(i)
	}

	defer func() {
		close(jobs)
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			c.log.Info("worker shutting down")
			return
		case d, ok := <-msgs:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			jobs <- d
		}
	}
}

func (c *Consumer) process(ctx context.Context, workerID int, d amqp.Delivery, handle Handler) {
	roll, err := decodeRoll(d.Body)
	if err != nil {
		c.log.Warn("bad message", "worker", workerID, "error", err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err = handle(context.WithoutCancel(ctx), roll)
	switch {
	case err == nil:
		if err := d.Ack(false); err != nil {
			c.log.Error("ack failed", "worker", workerID, "roll_key", roll.RollKey, "error", err)
		}
	case errors.Is(err, campaign.ErrStoreUnavailable):
		c.requeue(ctx, workerID, d, roll.RollKey, err)
	default:
		c.log.Warn("roll rejected", "worker", workerID, "roll_key", roll.RollKey, "cost", time.Since(start), "error", err)
		_ = d.Nack(false, false)
	}
}

func (c *Consumer) requeue(ctx context.Context, workerID int, d amqp.Delivery, key string, cause error) {
	attempts := deliveryAttempts(d) + 1
	if attempts >= c.MaxAttempts {
		c.log.Error("roll dead-lettered", "worker", workerID, "roll_key", key, "attempts", attempts, "error", cause)
		_ = d.Nack(false, false)
		return
	}

	err := c.retry.PublishWithContext(ctx, "", retryQueue(c.Queue), false, false, amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Expiration:   strconv.FormatInt(c.RetryDelay.Milliseconds(), 10),
		Headers:      amqp.Table{attemptsHeader: int32(attempts)},
		Body:         d.Body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		c.log.Error("retry publish failed", "worker", workerID, "roll_key", key, "error", err)
		_ = d.Nack(false, true)
		return
	}
	c.log.Warn("roll scheduled for retry", "worker", workerID, "roll_key", key, "attempts", attempts, "error", cause)
	_ = d.Ack(false)
}

func deliveryAttempts(d amqp.Delivery) int {
	switch v := d.Headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
