package game

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/suPer8Hu/dmbot/internal/campaign"
	"github.com/suPer8Hu/dmbot/internal/dice"
)

// sequenceRoller returns the given outcomes in order, then repeats the last one.
func sequenceRoller(outcomes ...int) dice.Roller {
	var mu sync.Mutex
	i := 0
	return func(faces int) int {
		mu.Lock()
		defer mu.Unlock()
		v := outcomes[min(i, len(outcomes)-1)]
		i++
		return v
	}
}

type failingRecorder struct{}

func (failingRecorder) RecordRoll(ctx context.Context, roll *campaign.DiceRoll) error {
	return campaign.ErrStoreUnavailable
}

func newTestService(t *testing.T, gen Generator, roller dice.Roller) (*Service, *campaign.Repo) {
	t.Helper()
	repo, _ := openTestRepo(t)
	svc := NewService(repo, gen, repo, Options{Settings: testSettings, Roller: roller})
	t.Cleanup(svc.Wait)
	return svc, repo
}

var alice = Player{ID: "1001", Username: "alice", DisplayName: "Alice"}

func TestRoll_RendersBreakdownAndRecordsRoll(t *testing.T) {
	svc, repo := newTestService(t, &recordingGenerator{}, sequenceRoller(4, 5))

	reply, err := svc.Roll(context.Background(), alice, "2d6+3")
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if !strings.Contains(reply.Text, "4 + 5 +3 = 12") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if reply.Roll == nil || reply.Roll.Total != 12 {
		t.Fatalf("unexpected roll %+v", reply.Roll)
	}

	svc.Wait()
	rolls, err := repo.RecentRolls(context.Background(), alice.ID, 5)
	if err != nil {
		t.Fatalf("recent rolls: %v", err)
	}
	if len(rolls) != 1 {
		t.Fatalf("expected 1 roll record, got %d", len(rolls))
	}
	r := rolls[0]
	if r.Expression != "2d6+3" || r.Result != 12 || r.Modifier != 3 || len(r.Outcomes) != 2 || r.CampaignID != nil {
		t.Fatalf("unexpected record %+v", r)
	}
}

func TestRoll_LinksActiveCampaign(t *testing.T) {
	svc, repo := newTestService(t, &recordingGenerator{}, sequenceRoller(20))
	c := seedCampaign(t, repo, "Arena", alice.ID)

	if _, err := svc.Roll(context.Background(), alice, "d20"); err != nil {
		t.Fatalf("roll: %v", err)
	}
	svc.Wait()

	rolls, err := repo.RecentRolls(context.Background(), alice.ID, 1)
	if err != nil || len(rolls) != 1 {
		t.Fatalf("recent rolls: %v %v", rolls, err)
	}
	if rolls[0].CampaignID == nil || *rolls[0].CampaignID != c.ID {
		t.Fatalf("roll not linked to campaign %d: %+v", c.ID, rolls[0])
	}
}

func TestRoll_InvalidExpressions(t *testing.T) {
	svc, _ := newTestService(t, &recordingGenerator{}, nil)

	for _, expr := range []string{"d0", "2d", "xd6", "2d6x", "0d6"} {
		reply, err := svc.Roll(context.Background(), alice, expr)
		if !errors.Is(err, campaign.ErrValidation) || !errors.Is(err, dice.ErrInvalidExpression) {
			t.Fatalf("%q: expected validation error, got %v", expr, err)
		}
		if !strings.Contains(reply.Text, "Invalid dice format: "+expr) {
			t.Fatalf("%q: unexpected reply %q", expr, reply.Text)
		}
	}

	reply, err := svc.Roll(context.Background(), alice, "")
	if !errors.Is(err, campaign.ErrValidation) || !strings.HasPrefix(reply.Text, "Usage: /roll") {
		t.Fatalf("expected usage, got %q %v", reply.Text, err)
	}
}

func TestRoll_RecorderFailureDoesNotAffectReply(t *testing.T) {
	repo, _ := openTestRepo(t)
	svc := NewService(repo, &recordingGenerator{}, failingRecorder{}, Options{Roller: sequenceRoller(3)})

	reply, err := svc.Roll(context.Background(), alice, "1d4")
	svc.Wait()
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if !strings.Contains(reply.Text, "3 = 3") {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
}

func TestSpeak_WithoutCampaignGivesGuidance(t *testing.T) {
	gen := &recordingGenerator{reply: "unused"}
	svc, repo := newTestService(t, gen, nil)

	reply, err := svc.Speak(context.Background(), alice, "I look around")
	if !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if reply.Text != NotInCampaignText {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if gen.Calls() != 0 {
		t.Fatalf("generator was called")
	}
	if _, err := repo.ActiveCharacter(context.Background(), alice.ID); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("expected no rows for player, got %v", err)
	}
}

func TestSpeak_ReturnsNarration(t *testing.T) {
	gen := &recordingGenerator{reply: "The tavern falls silent."}
	svc, repo := newTestService(t, gen, nil)
	c := seedCampaign(t, repo, "Tavern", alice.ID)

	reply, err := svc.Speak(context.Background(), alice, "I order an ale")
	if err != nil {
		t.Fatalf("speak: %v", err)
	}
	if reply.Text != "The tavern falls silent." || reply.Turn == nil || reply.Turn.CampaignID != c.ID {
		t.Fatalf("unexpected reply %+v", reply)
	}

	reply, err = svc.Speak(context.Background(), alice, "   ")
	if !errors.Is(err, campaign.ErrValidation) || !strings.HasPrefix(reply.Text, "Usage: /dm") {
		t.Fatalf("expected usage, got %q %v", reply.Text, err)
	}
}

func TestNewCampaign_StoresOwnerAndRepliesWithID(t *testing.T) {
	svc, repo := newTestService(t, &recordingGenerator{}, nil)

	reply, err := svc.NewCampaign(context.Background(), alice, "The Lost Mine")
	if err != nil {
		t.Fatalf("new campaign: %v", err)
	}
	if reply.Campaign == nil {
		t.Fatalf("expected campaign in reply")
	}
	c, err := repo.GetCampaign(context.Background(), reply.Campaign.ID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if c.Name != "The Lost Mine" || c.DungeonMaster != alice.ID {
		t.Fatalf("unexpected campaign %+v", c)
	}
	id := strconv.FormatUint(c.ID, 10)
	if !strings.Contains(reply.Text, "ID: "+id) || !strings.Contains(reply.Text, "/join "+id) {
		t.Fatalf("reply does not carry the id: %q", reply.Text)
	}

	reply, err = svc.NewCampaign(context.Background(), alice, " ")
	if !errors.Is(err, campaign.ErrValidation) || !strings.HasPrefix(reply.Text, "Usage: /newgame") {
		t.Fatalf("expected usage, got %q %v", reply.Text, err)
	}
}

func TestJoinCampaign(t *testing.T) {
	svc, repo := newTestService(t, &recordingGenerator{}, nil)
	c := seedCampaign(t, repo, "Keep", "")
	code := strconv.FormatUint(c.ID, 10)

	reply, err := svc.JoinCampaign(context.Background(), alice, code, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if reply.Character == nil || reply.Character.CharacterName != "Alice" {
		t.Fatalf("expected character named after player, got %+v", reply.Character)
	}

	if _, err := svc.JoinCampaign(context.Background(), alice, "abc", "Zed"); !errors.Is(err, campaign.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	reply, err = svc.JoinCampaign(context.Background(), alice, "9999", "Zed")
	if !errors.Is(err, campaign.ErrNotFound) || !strings.Contains(reply.Text, "9999") {
		t.Fatalf("expected not found, got %q %v", reply.Text, err)
	}
}

func TestStatusAndCharacters(t *testing.T) {
	gen := &recordingGenerator{reply: "Dust swirls."}
	svc, repo := newTestService(t, gen, sequenceRoller(6))
	ctx := context.Background()

	if reply, err := svc.Status(ctx, alice); !errors.Is(err, campaign.ErrNotFound) || reply.Text != NotInCampaignText {
		t.Fatalf("expected guidance, got %q %v", reply.Text, err)
	}

	c := seedCampaign(t, repo, "Desert", "")
	if _, err := svc.JoinCampaign(ctx, alice, strconv.FormatUint(c.ID, 10), "Sand Witch"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.Speak(ctx, alice, "I walk"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	if _, err := svc.Roll(ctx, alice, "1d6"); err != nil {
		t.Fatalf("roll: %v", err)
	}
	svc.Wait()

	reply, err := svc.Status(ctx, alice)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"Desert", "Sand Witch", "Session 1: 2 entries", "1d6 = 6"} {
		if !strings.Contains(reply.Text, want) {
			t.Fatalf("status %q missing %q", reply.Text, want)
		}
	}

	reply, err = svc.Characters(ctx, alice)
	if err != nil {
		t.Fatalf("characters: %v", err)
	}
	if len(reply.Characters) != 1 || !strings.Contains(reply.Text, "Sand Witch") {
		t.Fatalf("unexpected characters reply %+v", reply)
	}
}

func TestHandle_Dispatch(t *testing.T) {
	svc, repo := newTestService(t, &recordingGenerator{}, nil)
	c := seedCampaign(t, repo, "Dispatch", "")
	ctx := context.Background()

	if reply, _ := svc.Handle(ctx, alice, "start", ""); reply.Text != WelcomeText {
		t.Fatalf("unexpected start reply")
	}
	if reply, _ := svc.Handle(ctx, alice, "HELP", ""); reply.Text != HelpText {
		t.Fatalf("unexpected help reply")
	}
	reply, err := svc.Handle(ctx, alice, "join", strconv.FormatUint(c.ID, 10)+" Tordek the Bold")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if reply.Character.CharacterName != "Tordek the Bold" {
		t.Fatalf("unexpected character %q", reply.Character.CharacterName)
	}
	if reply, err := svc.Handle(ctx, alice, "dance", ""); !errors.Is(err, campaign.ErrValidation) || reply.Text != UnknownText {
		t.Fatalf("expected unknown command, got %q %v", reply.Text, err)
	}
}
