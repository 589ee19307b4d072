package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/dmbot/internal/campaign"
)

// RollMessage is the queued form of a campaign.DiceRoll.
type RollMessage struct {
	RollKey    string    `json:"roll_key"`
	CampaignID *uint64   `json:"campaign_id,omitempty"`
	PlayerID   string    `json:"player_id"`
	Expression string    `json:"expression"`
	Outcomes   []int     `json:"outcomes"`
	Modifier   int       `json:"modifier"`
	Result     int       `json:"result"`
	RolledAt   time.Time `json:"rolled_at"`
}

func newRollMessage(r *campaign.DiceRoll) RollMessage {
	rolledAt := r.RolledAt
	if rolledAt.IsZero() {
		rolledAt = time.Now().UTC()
	}
	return RollMessage{
		RollKey:    r.RollKey,
		CampaignID: r.CampaignID,
		PlayerID:   r.PlayerID,
		Expression: r.Expression,
		Outcomes:   []int(r.Outcomes),
		Modifier:   r.Modifier,
		Result:     r.Result,
		RolledAt:   rolledAt,
	}
}

// DiceRoll converts the message back into a record ready for campaign.Repo.RecordRoll.
func (m RollMessage) DiceRoll() *campaign.DiceRoll {
	return &campaign.DiceRoll{
		RollKey:    m.RollKey,
		CampaignID: m.CampaignID,
		PlayerID:   m.PlayerID,
		Expression: m.Expression,
		Outcomes:   campaign.Outcomes(m.Outcomes),
		Modifier:   m.Modifier,
		Result:     m.Result,
		RolledAt:   m.RolledAt,
	}
}

var errMalformed = errors.New("rabbitmq: malformed roll message")

func decodeRoll(body []byte) (*campaign.DiceRoll, error) {
	var m RollMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if m.RollKey == "" || m.PlayerID == "" {
		return nil, fmt.Errorf("%w: roll_key and player_id are required", errMalformed)
	}
	return m.DiceRoll(), nil
}

// Publisher queues roll records for cmd/worker. It satisfies game.RollRecorder.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
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
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RecordRoll publishes the roll. A missing RollKey is filled in so the worker's
// write stays idempotent across redeliveries.
func (p *Publisher) RecordRoll(ctx context.Context, roll *campaign.DiceRoll) error {
	if roll.RollKey == "" {
		roll.RollKey = campaign.NewRollKey()
	}
	body, err := json.Marshal(newRollMessage(roll))
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    roll.RollKey,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
