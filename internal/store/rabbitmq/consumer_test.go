package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/dmbot/internal/campaign"
)

type ackRecorder struct {
	mu       sync.Mutex
	acks     []uint64
	nacks    []uint64
	requeues []bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type publishRecorder struct {
	mu   sync.Mutex
	keys []string
	msgs []amqp.Publishing
}

func (p *publishRecorder) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.msgs = append(p.msgs, msg)
	return nil
}

func rollBody(t *testing.T, key string) []byte {
	t.Helper()
	b, err := json.Marshal(newRollMessage(&campaign.DiceRoll{
		RollKey:    key,
		PlayerID:   "42",
		Expression: "2d6+3",
		Outcomes:   campaign.Outcomes{4, 5},
		Modifier:   3,
		Result:     12,
	}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func delivery(ack amqp.Acknowledger, tag uint64, body []byte, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: body, Headers: headers, ContentType: "application/json"}
}

func TestRollMessage_RoundTrip(t *testing.T) {
	id := uint64(7)
	in := &campaign.DiceRoll{RollKey: "01J", CampaignID: &id, PlayerID: "42", Expression: "d20", Outcomes: campaign.Outcomes{17}, Result: 17}
	b, err := json.Marshal(newRollMessage(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := decodeRoll(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.RollKey != "01J" || *out.CampaignID != 7 || out.Result != 17 || !out.Consistent() || out.RolledAt.IsZero() {
		t.Fatalf("unexpected roll %+v", out)
	}

	for _, body := range []string{"not json", `{"player_id":"42"}`, `{"roll_key":"k"}`} {
		if _, err := decodeRoll([]byte(body)); !errors.Is(err, errMalformed) {
			t.Fatalf("%q: expected errMalformed, got %v", body, err)
		}
	}
}

func TestConsumer_AcksStoredRolls(t *testing.T) {
	ack := &ackRecorder{}
	c := newConsumer("dice_rolls", 3, &publishRecorder{}, nil)

	var mu sync.Mutex
	stored := map[string]bool{}
	handle := func(ctx context.Context, roll *campaign.DiceRoll) error {
		mu.Lock()
		defer mu.Unlock()
		stored[roll.RollKey] = true
		return nil
	}

	msgs := make(chan amqp.Delivery, 10)
	for i := 1; i <= 10; i++ {
		msgs <- delivery(ack, uint64(i), rollBody(t, fmt.Sprintf("key-%d", i)), nil)
	}
	close(msgs)
	c.serve(context.Background(), msgs, handle)

	if len(stored) != 10 || len(ack.acks) != 10 || len(ack.nacks) != 0 {
		t.Fatalf("stored=%d acks=%d nacks=%d", len(stored), len(ack.acks), len(ack.nacks))
	}
}

func TestConsumer_DeadLettersBadMessagesAndInvalidRolls(t *testing.T) {
	ack := &ackRecorder{}
	c := newConsumer("dice_rolls", 1, &publishRecorder{}, nil)

	c.process(context.Background(), 0, delivery(ack, 1, []byte("{"), nil), func(context.Context, *campaign.DiceRoll) error {
		t.Fatalf("handler called for malformed message")
		return nil
	})
	c.process(context.Background(), 0, delivery(ack, 2, rollBody(t, "k"), nil), func(context.Context, *campaign.DiceRoll) error {
		return fmt.Errorf("%w: bad total", campaign.ErrValidation)
	})

	if len(ack.nacks) != 2 || ack.requeues[0] || ack.requeues[1] || len(ack.acks) != 0 {
		t.Fatalf("expected two nacks without requeue, got %+v", ack)
	}
}

func TestConsumer_RetriesStoreFailures(t *testing.T) {
	ack := &ackRecorder{}
	pub := &publishRecorder{}
	c := newConsumer("dice_rolls", 1, pub, nil)
	c.RetryDelay = 2 * time.Second
	c.MaxAttempts = 3
	down := func(context.Context, *campaign.DiceRoll) error {
		return fmt.Errorf("%w: connection refused", campaign.ErrStoreUnavailable)
	}

	c.process(context.Background(), 0, delivery(ack, 1, rollBody(t, "k"), nil), down)
	if len(pub.msgs) != 1 || pub.keys[0] != "dice_rolls.retry" {
		t.Fatalf("expected one retry publish, got %v", pub.keys)
	}
	if pub.msgs[0].Expiration != "2000" || pub.msgs[0].Headers[attemptsHeader] != int32(1) {
		t.Fatalf("unexpected retry message %+v", pub.msgs[0])
	}
	if len(ack.acks) != 1 {
		t.Fatalf("original delivery not acked")
	}

	c.process(context.Background(), 0, delivery(ack, 2, rollBody(t, "k"), amqp.Table{attemptsHeader: int32(2)}), down)
	if len(pub.msgs) != 1 || len(ack.nacks) != 1 || ack.requeues[0] {
		t.Fatalf("expected dead-letter after max attempts, got pubs=%d nacks=%v", len(pub.msgs), ack.nacks)
	}
}
