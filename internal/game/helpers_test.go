package game

import (
	"context"
	"sync"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/dmbot/internal/ai"
	"github.com/suPer8Hu/dmbot/internal/campaign"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	fn    func(ctx context.Context) (string, error)
	calls int
	last  ai.Request
}

func (g *recordingGenerator) Chat(ctx context.Context, req ai.Request) (string, error) {
	g.mu.Lock()
	g.calls++
	g.last = req
	g.last.Messages = append([]ai.Message(nil), req.Messages...)
	fn, reply, err := g.fn, g.reply, g.err
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return reply, err
}

func (g *recordingGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// countingStore records which write operations reached the repo.
type countingStore struct {
	*campaign.Repo
	mu     sync.Mutex
	writes int
}

func (s *countingStore) OpenSessionWithTurns(ctx context.Context, campaignID uint64, turns ...campaign.Turn) (*campaign.Session, error) {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Repo.OpenSessionWithTurns(ctx, campaignID, turns...)
}

func (s *countingStore) AppendTurns(ctx context.Context, sessionID uint64, turns ...campaign.Turn) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Repo.AppendTurns(ctx, sessionID, turns...)
}

func (s *countingStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func openTestRepo(t *testing.T) (*campaign.Repo, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := campaign.NewRepo(db)
	if err := repo.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo, db
}

// seedCampaign creates a campaign and joins playerID to it.
func seedCampaign(t *testing.T, repo *campaign.Repo, name, playerID string) *campaign.Campaign {
	t.Helper()
	ctx := context.Background()
	c, err := repo.CreateCampaign(ctx, name, "dm")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	if playerID != "" {
		if err := repo.JoinCampaign(ctx, c.ID, &campaign.Character{PlayerID: playerID, CharacterName: "Tordek"}); err != nil {
			t.Fatalf("join campaign: %v", err)
		}
	}
	return c
}

func transcript(t *testing.T, repo *campaign.Repo, campaignID uint64) campaign.Transcript {
	t.Helper()
	s, err := repo.CurrentSession(context.Background(), campaignID)
	if err != nil {
		t.Fatalf("current session: %v", err)
	}
	return s.Messages
}
