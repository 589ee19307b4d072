package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/dice"
	"github.com/suPer8Hu/dmbot/internal/logging"
	"github.com/suPer8Hu/dmbot/internal/metrics"
)

// Store is everything the command entry points read or write.
type Store interface {
	TurnStore
	CreateCampaign(ctx context.Context, name, dm string) (*campaign.Campaign, error)
	GetCampaign(ctx context.Context, id uint64) (*campaign.Campaign, error)
	JoinCampaign(ctx context.Context, campaignID uint64, ch *campaign.Character) error
	ActiveCharacter(ctx context.Context, playerID string) (*campaign.Character, error)
	ListCharacters(ctx context.Context, campaignID uint64) ([]campaign.Character, error)
	RecentRolls(ctx context.Context, playerID string, limit int) ([]campaign.DiceRoll, error)
}

// RollRecorder persists roll records. campaign.Repo writes them directly;
// rabbitmq.Publisher hands them to the worker.
type RollRecorder interface {
	RecordRoll(ctx context.Context, roll *campaign.DiceRoll) error
}

// Player identifies whoever issued a command.
type Player struct {
	ID          string
	Username    string
	DisplayName string
}

func (p Player) Name() string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Username != "":
		return p.Username
	default:
		return p.ID
	}
}

// Reply is the outcome of a command. Text is always set and is what a text
// channel sends; the other fields carry structured data for the HTTP API.
type Reply struct {
	Text       string               `json:"text"`
	Campaign   *campaign.Campaign   `json:"campaign,omitempty"`
	Character  *campaign.Character  `json:"character,omitempty"`
	Characters []campaign.Character `json:"characters,omitempty"`
	Session    *campaign.Session    `json:"session,omitempty"`
	Roll       *dice.Result         `json:"roll,omitempty"`
	Turn       *TurnOutcome         `json:"turn,omitempty"`
}

type Options struct {
	Settings Settings
	// Roller fixes dice outcomes; nil uses dice.DefaultRoller.
	Roller        dice.Roller
	RecordTimeout time.Duration
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
}

// Service exposes one entry point per player command. Errors returned next to
// a Reply classify the failure (campaign.ErrValidation, campaign.ErrNotFound,
// campaign.ErrStoreUnavailable); the Reply text already explains it to the player.
type Service struct {
	store         Store
	orch          *Orchestrator
	resolver      *dice.Resolver
	recorder      RollRecorder
	recordTimeout time.Duration
	log           *slog.Logger
	metrics       *metrics.Metrics

	inflight sync.WaitGroup
}

func NewService(store Store, gen Generator, recorder RollRecorder, opts Options) *Service {
	log := logging.OrNop(opts.Logger)
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 10 * time.Second
	}
	return &Service{
		store:         store,
		orch:          NewOrchestrator(store, gen, opts.Settings, log, opts.Metrics),
		resolver:      dice.NewResolver(opts.Roller),
		recorder:      recorder,
		recordTimeout: opts.RecordTimeout,
		log:           log,
		metrics:       opts.Metrics,
	}
}

// Wait blocks until every roll recording started so far has finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// Handle dispatches a command by name, e.g. ("roll", "2d6+3").
func (s *Service) Handle(ctx context.Context, p Player, command, args string) (Reply, error) {
	args = strings.TrimSpace(args)
	switch strings.ToLower(command) {
	case "start":
		return s.Start(), nil
	case "help":
		return s.Help(), nil
	case "newgame":
		return s.NewCampaign(ctx, p, args)
	case "join":
		code, name, _ := strings.Cut(args, " ")
		return s.JoinCampaign(ctx, p, code, name)
	case "dm":
		return s.Speak(ctx, p, args)
	case "roll":
		return s.Roll(ctx, p, args)
	case "status":
		return s.Status(ctx, p)
	case "characters":
		return s.Characters(ctx, p)
	default:
		return Reply{Text: UnknownText}, fmt.Errorf("%w: unknown command %q", campaign.ErrValidation, command)
	}
}

func (s *Service) Start() Reply { return Reply{Text: WelcomeText} }

func (s *Service) Help() Reply { return Reply{Text: HelpText} }

// NewCampaign creates a campaign owned by p. The reply carries the campaign id,
// which doubles as the join code.
func (s *Service) NewCampaign(ctx context.Context, p Player, name string) (Reply, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Reply{Text: newCampaignUsage}, fmt.Errorf("%w: campaign name is required", campaign.ErrValidation)
	}
	c, err := s.store.CreateCampaign(ctx, name, p.ID)
	if err != nil {
		return s.failure("new campaign", err, newCampaignUsage)
	}
	s.log.Info("campaign created", "campaign_id", c.ID, "dm", p.ID)
	return Reply{Text: campaignCreatedText(c, p.Name()), Campaign: c}, nil
}

// JoinCampaign adds a character for p to the campaign whose id is code. The
// character is named after the player when characterName is empty.
func (s *Service) JoinCampaign(ctx context.Context, p Player, code, characterName string) (Reply, error) {
	code = strings.TrimSpace(code)
	id, err := strconv.ParseUint(code, 10, 64)
	if err != nil || id == 0 {
		return Reply{Text: joinUsage}, fmt.Errorf("%w: invalid campaign code %q", campaign.ErrValidation, code)
	}
	characterName = strings.TrimSpace(characterName)
	if characterName == "" {
		characterName = p.Name()
	}

	ch := &campaign.Character{
		PlayerID:      p.ID,
		PlayerName:    p.Name(),
		CharacterName: characterName,
	}
	if err := s.store.JoinCampaign(ctx, id, ch); err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			return Reply{Text: unknownCampaignText(code)}, err
		}
		return s.failure("join campaign", err, joinUsage)
	}
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return s.failure("join campaign", err, joinUsage)
	}
	return Reply{Text: joinedText(c, ch), Campaign: c, Character: ch}, nil
}

// Speak runs a narrative turn for p's active campaign.
func (s *Service) Speak(ctx context.Context, p Player, message string) (Reply, error) {
	return s.SpeakNotify(ctx, p, message, nil)
}

// SpeakNotify is Speak with a hook that fires once generation begins, so a
// channel can show a progress notice only to players who are in a campaign.
func (s *Service) SpeakNotify(ctx context.Context, p Player, message string, generating func()) (Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{Text: speakUsage}, fmt.Errorf("%w: message is required", campaign.ErrValidation)
	}
	out, err := s.orch.NarrateNotify(ctx, p.ID, message, generating)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) && out.State == StateResolvingCampaign {
			return Reply{Text: NotInCampaignText}, err
		}
		return s.failure("speak", err, speakUsage)
	}
	return Reply{Text: out.Narration, Turn: &out}, nil
}

// Roll resolves expr and replies at once. The roll record is written in the
// background; a failed write is logged and never changes the reply.
func (s *Service) Roll(ctx context.Context, p Player, expr string) (Reply, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Reply{Text: rollUsage}, fmt.Errorf("%w: dice expression is required", campaign.ErrValidation)
	}
	res, err := s.resolver.Resolve(expr)
	if err != nil {
		return Reply{Text: invalidRollText(expr)}, fmt.Errorf("%w: %w", campaign.ErrValidation, err)
	}

	if s.recorder != nil {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.record(context.WithoutCancel(ctx), p, expr, res)
		}()
	}
	return Reply{Text: rollText(expr, res), Roll: &res}, nil
}

func (s *Service) record(ctx context.Context, p Player, expr string, res dice.Result) {
	ctx, cancel := context.WithTimeout(ctx, s.recordTimeout)
	defer cancel()

	roll := &campaign.DiceRoll{
		RollKey:    campaign.NewRollKey(),
		PlayerID:   p.ID,
		Expression: expr,
		Outcomes:   campaign.Outcomes(res.Outcomes),
		Modifier:   res.Modifier,
		Result:     res.Total,
	}
	if c, err := s.store.ResolveActiveCampaign(ctx, p.ID); err == nil {
		roll.CampaignID = &c.ID
	}

	err := s.recorder.RecordRoll(ctx, roll)
	s.metrics.Roll(err)
	if err != nil {
		s.log.Error("record roll", "player_id", p.ID, "expression", expr, "error", err)
	}
}

// Status summarizes p's active character, its campaign and the current session.
func (s *Service) Status(ctx context.Context, p Player) (Reply, error) {
	ch, err := s.store.ActiveCharacter(ctx, p.ID)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			return Reply{Text: NotInCampaignText}, err
		}
		return s.failure("status", err, "")
	}
	c, err := s.store.GetCampaign(ctx, ch.CampaignID)
	if err != nil {
		return s.failure("status", err, "")
	}
	sess, err := s.store.CurrentSession(ctx, c.ID)
	if err != nil && !errors.Is(err, campaign.ErrNotFound) {
		return s.failure("status", err, "")
	}
	rolls, err := s.store.RecentRolls(ctx, p.ID, 3)
	if err != nil {
		return s.failure("status", err, "")
	}
	return Reply{
		Text:      statusText(c, ch, sess, rolls),
		Campaign:  c,
		Character: ch,
		Session:   sess,
	}, nil
}

// Characters lists everyone in p's active campaign.
func (s *Service) Characters(ctx context.Context, p Player) (Reply, error) {
	c, err := s.store.ResolveActiveCampaign(ctx, p.ID)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			return Reply{Text: NotInCampaignText}, err
		}
		return s.failure("characters", err, "")
	}
	return s.listCharacters(ctx, c)
}

// CampaignCharacters lists the characters of a specific campaign.
func (s *Service) CampaignCharacters(ctx context.Context, campaignID uint64) (Reply, error) {
	c, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			return Reply{Text: unknownCampaignText(strconv.FormatUint(campaignID, 10))}, err
		}
		return s.failure("characters", err, "")
	}
	return s.listCharacters(ctx, c)
}

func (s *Service) listCharacters(ctx context.Context, c *campaign.Campaign) (Reply, error) {
	chars, err := s.store.ListCharacters(ctx, c.ID)
	if err != nil {
		return s.failure("characters", err, "")
	}
	return Reply{Text: charactersText(c, chars), Campaign: c, Characters: chars}, nil
}

// failure turns a store error into player-facing text. Validation errors get
// the command usage; anything else is logged and reported generically.
func (s *Service) failure(op string, err error, usage string) (Reply, error) {
	if errors.Is(err, campaign.ErrValidation) && usage != "" {
		return Reply{Text: usage}, err
	}
	s.log.Error(op, "error", err)
	return Reply{Text: FailureText}, err
}
