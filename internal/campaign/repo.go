package campaign

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repo is the only writer of persisted game state. Every method is its own
// unit of work: it commits or rolls back before returning.
type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates or updates the four relations.
func (r *Repo) Migrate(ctx context.Context) error {
	return wrapErr("migrate", r.db.WithContext(ctx).AutoMigrate(&Campaign{}, &Character{}, &Session{}, &DiceRoll{}))
}

// CreateCampaign stores a new campaign owned by dm and opens its first session.
func (r *Repo) CreateCampaign(ctx context.Context, name, dm string) (*Campaign, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("campaign name is required")
	}

	c := &Campaign{
		Name:          name,
		DungeonMaster: dm,
		Settings:      Document{},
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Create(&Session{CampaignID: c.ID, SessionNumber: 1, Messages: Transcript{}}).Error
	})
	if err != nil {
		return nil, wrapErr("create campaign", err)
	}
	return c, nil
}

func (r *Repo) GetCampaign(ctx context.Context, id uint64) (*Campaign, error) {
	var c Campaign
	if err := r.db.WithContext(ctx).Take(&c, id).Error; err != nil {
		return nil, wrapErr("get campaign", err)
	}
	return &c, nil
}

// UpdateSettings merges values into the campaign's settings document.
func (r *Repo) UpdateSettings(ctx context.Context, id uint64, values Document) (*Campaign, error) {
	var c Campaign
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&c, id).Error; err != nil {
			return err
		}
		if c.Settings == nil {
			c.Settings = Document{}
		}
		for k, v := range values {
			c.Settings[k] = v
		}
		return tx.Model(&c).Update("settings", c.Settings).Error
	})
	if err != nil {
		return nil, wrapErr("update settings", err)
	}
	return &c, nil
}

// JoinCampaign adds a character to an existing campaign. Duplicate joins are
// kept; the most recently created character is the active one.
func (r *Repo) JoinCampaign(ctx context.Context, campaignID uint64, ch *Character) error {
	ch.PlayerID = strings.TrimSpace(ch.PlayerID)
	ch.CharacterName = strings.TrimSpace(ch.CharacterName)
	if ch.PlayerID == "" {
		return validationErr("player id is required")
	}
	if ch.CharacterName == "" {
		return validationErr("character name is required")
	}
	if ch.Stats == nil {
		ch.Stats = Document{}
	}
	ch.CampaignID = campaignID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Campaign
		if err := tx.Select("id").Take(&c, campaignID).Error; err != nil {
			return err
		}
		return tx.Create(ch).Error
	})
	return wrapErr("join campaign", err)
}

// ActiveCharacter returns the player's most recently created character.
func (r *Repo) ActiveCharacter(ctx context.Context, playerID string) (*Character, error) {
	var ch Character
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("created_at DESC").
		Order("id DESC").
		Take(&ch).Error
	if err != nil {
		return nil, wrapErr("active character", err)
	}
	return &ch, nil
}

// ResolveActiveCampaign returns the campaign of the player's most recently created character.
func (r *Repo) ResolveActiveCampaign(ctx context.Context, playerID string) (*Campaign, error) {
	var c Campaign
	err := r.db.WithContext(ctx).
		Joins("JOIN characters ON characters.campaign_id = campaigns.id").
		Where("characters.player_id = ?", playerID).
		Order("characters.created_at DESC").
		Order("characters.id DESC").
		Take(&c).Error
	if err != nil {
		return nil, wrapErr("resolve active campaign", err)
	}
	return &c, nil
}

func (r *Repo) ListCharacters(ctx context.Context, campaignID uint64) ([]Character, error) {
	var chars []Character
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id ASC").
		Find(&chars).Error
	if err != nil {
		return nil, wrapErr("list characters", err)
	}
	return chars, nil
}

// CurrentSession returns the highest-id session of the given campaign.
func (r *Repo) CurrentSession(ctx context.Context, campaignID uint64) (*Session, error) {
	var s Session
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("id DESC").
		Take(&s).Error
	if err != nil {
		return nil, wrapErr("current session", err)
	}
	return &s, nil
}

// OpenSession starts the next-numbered session for a campaign.
func (r *Repo) OpenSession(ctx context.Context, campaignID uint64) (*Session, error) {
	return r.OpenSessionWithTurns(ctx, campaignID)
}

// OpenSessionWithTurns starts the next-numbered session with turns as its
// transcript. The session exists only if the turns were stored with it.
func (r *Repo) OpenSessionWithTurns(ctx context.Context, campaignID uint64, turns ...Turn) (*Session, error) {
	if err := validateTurns(turns); err != nil {
		return nil, err
	}
	messages := append(Transcript{}, turns...)

	var s Session
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Campaign
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Take(&c, campaignID).Error; err != nil {
			return err
		}
		var last int
		if err := tx.Model(&Session{}).
			Where("campaign_id = ?", campaignID).
			Select("COALESCE(MAX(session_number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		s = Session{CampaignID: campaignID, SessionNumber: last + 1, Messages: messages}
		return tx.Create(&s).Error
	})
	if err != nil {
		return nil, wrapErr("open session", err)
	}
	return &s, nil
}

func validateTurns(turns []Turn) error {
	for _, t := range turns {
		if _, ok := ParseRole(string(t.Role)); !ok {
			return validationErr("unknown turn role %q", t.Role)
		}
	}
	return nil
}

// AppendTurns appends turns to a session transcript in one transaction. The
// session row is locked for the read-modify-write, so concurrent appends to
// the same session are serialized and none are lost.
func (r *Repo) AppendTurns(ctx context.Context, sessionID uint64, turns ...Turn) error {
	if err := validateTurns(turns); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var s Session
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&s, sessionID).Error; err != nil {
			return err
		}
		messages := append(s.Messages, turns...)
		return tx.Model(&s).Update("messages", messages).Error
	})
	return wrapErr("append turns", err)
}

// AppendTurn appends a single turn.
func (r *Repo) AppendTurn(ctx context.Context, sessionID uint64, turn Turn) error {
	return r.AppendTurns(ctx, sessionID, turn)
}

// RecordRoll writes an immutable roll record. Writing the same RollKey twice
// is a no-op, so redelivered roll events are safe.
func (r *Repo) RecordRoll(ctx context.Context, roll *DiceRoll) error {
	if strings.TrimSpace(roll.PlayerID) == "" {
		return validationErr("player id is required")
	}
	if roll.Expression == "" {
		return validationErr("dice expression is required")
	}
	if !roll.Consistent() {
		return validationErr("roll total %d does not match outcomes %v%+d", roll.Result, []int(roll.Outcomes), roll.Modifier)
	}
	if roll.RollKey == "" {
		roll.RollKey = NewRollKey()
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "roll_key"}}, DoNothing: true}).
		Create(roll).Error
	return wrapErr("record roll", err)
}

// RecentRolls returns the player's latest rolls, newest first.
func (r *Repo) RecentRolls(ctx context.Context, playerID string, limit int) ([]DiceRoll, error) {
	if limit <= 0 || limit > 100 {
		limit = 5
	}
	var rolls []DiceRoll
	err := r.db.WithContext(ctx).
		Where("player_id = ?", playerID).
		Order("id DESC").
		Limit(limit).
		Find(&rolls).Error
	if err != nil {
		return nil, wrapErr("recent rolls", err)
	}
	return rolls, nil
}
