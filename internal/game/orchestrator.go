package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/suPer8Hu/dmbot/internal/ai"
	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/logging"
	"github.com/suPer8Hu/dmbot/internal/metrics"
)

// TurnStore is the slice of the campaign store a narrative turn needs.
type TurnStore interface {
	ResolveActiveCampaign(ctx context.Context, playerID string) (*campaign.Campaign, error)
	CurrentSession(ctx context.Context, campaignID uint64) (*campaign.Session, error)
	OpenSessionWithTurns(ctx context.Context, campaignID uint64, turns ...campaign.Turn) (*campaign.Session, error)
	AppendTurns(ctx context.Context, sessionID uint64, turns ...campaign.Turn) error
}

// Generator produces narration. ai.Provider implementations satisfy it.
type Generator interface {
	Chat(ctx context.Context, req ai.Request) (string, error)
}

// Settings are the generation tunables.
type Settings struct {
	WindowSize        int
	Temperature       float64
	MaxTokens         int
	GenerationTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.WindowSize <= 0 {
		s.WindowSize = DefaultWindowSize
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = 1000
	}
	if s.GenerationTimeout <= 0 {
		s.GenerationTimeout = 30 * time.Second
	}
	return s
}

// State is a step of a narrative turn.
type State int

const (
	StateIdle State = iota
	StateResolvingCampaign
	StateBuildingContext
	StateAwaitingGeneration
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingCampaign:
		return "resolving_campaign"
	case StateBuildingContext:
		return "building_context"
	case StateAwaitingGeneration:
		return "awaiting_generation"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TurnOutcome describes how far a turn got. State is StateIdle when the turn
// completed; otherwise it is the state that failed.
type TurnOutcome struct {
	State      State  `json:"-"`
	CampaignID uint64 `json:"campaign_id,omitempty"`
	SessionID  uint64 `json:"session_id,omitempty"`
	Narration  string `json:"narration"`
	Fallback   bool   `json:"fallback"`
}

// Orchestrator runs narrative turns. It keeps no state between calls.
type Orchestrator struct {
	store    TurnStore
	gen      Generator
	settings Settings
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewOrchestrator(store TurnStore, gen Generator, settings Settings, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gen:      gen,
		settings: settings.withDefaults(),
		log:      logging.OrNop(log),
		metrics:  m,
	}
}

// Narrate runs one turn for playerID.
//
// A player with no campaign gets campaign.ErrNotFound and nothing is written or
// generated. Generation failures never surface as errors: the fallback
// narration is committed instead. Once the campaign is resolved the turn runs
// detached from ctx, so a caller that goes away only loses the reply; the
// transcript still gains both lines.
func (o *Orchestrator) Narrate(ctx context.Context, playerID, action string) (TurnOutcome, error) {
	return o.NarrateNotify(ctx, playerID, action, nil)
}

// NarrateNotify is Narrate with a hook called right before generation starts,
// after the campaign has been resolved.
func (o *Orchestrator) NarrateNotify(ctx context.Context, playerID, action string, generating func()) (TurnOutcome, error) {
	out := TurnOutcome{State: StateResolvingCampaign}

	action = strings.TrimSpace(action)
	if action == "" {
		return out, fmt.Errorf("%w: action is empty", campaign.ErrValidation)
	}

	c, err := o.store.ResolveActiveCampaign(ctx, playerID)
	if err != nil {
		return out, err
	}
	out.CampaignID = c.ID

	ctx = context.WithoutCancel(ctx)

	out.State = StateBuildingContext
	sess, err := o.store.CurrentSession(ctx, c.ID)
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		sess = nil
	case err != nil:
		return out, err
	}
	var window []campaign.Turn
	if sess != nil {
		window = BuildContext(sess.Messages, o.settings.WindowSize)
	}

	out.State = StateAwaitingGeneration
	if generating != nil {
		generating()
	}
	out.Narration, out.Fallback = o.generate(ctx, c, window, action)

	out.State = StateCommitting
	turns := []campaign.Turn{
		{Role: campaign.RolePlayer, Content: action},
		{Role: campaign.RoleNarrator, Content: out.Narration},
	}
	if sess == nil {
		// first turn of a campaign without sessions: create both together
		sess, err = o.store.OpenSessionWithTurns(ctx, c.ID, turns...)
	} else {
		err = o.store.AppendTurns(ctx, sess.ID, turns...)
	}
	if err != nil {
		o.log.Error("commit turn", "campaign_id", c.ID, "error", err)
		return out, err
	}
	out.SessionID = sess.ID
	o.metrics.TurnCommitted()

	out.State = StateIdle
	return out, nil
}

// generate never fails; errors and empty completions become the fallback narration.
func (o *Orchestrator) generate(ctx context.Context, c *campaign.Campaign, window []campaign.Turn, action string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.GenerationTimeout)
	defer cancel()

	start := time.Now()
	reply, err := o.gen.Chat(ctx, buildRequest(c.Name, window, action, o.settings))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("%w: empty narration", ai.ErrGeneration)
	}
	o.metrics.Generation(time.Since(start), err != nil)

	if err != nil {
		o.log.Warn("generation failed, using fallback", "campaign_id", c.ID, "error", err)
		return FallbackNarration, true
	}
	return strings.TrimSpace(reply), false
}
