package campaign

import (
	"time"
)

// Role tags who authored a transcript turn.
type Role string

const (
	RoleNarrator Role = "narrator"
	RolePlayer   Role = "player"
)

// ParseRole normalizes a stored role. Rows written by older versions of the bot used
// chat-completion roles, so "assistant" and "user" are accepted as aliases.
func ParseRole(s string) (Role, bool) {
	switch s {
	case "narrator", "assistant":
		return RoleNarrator, true
	case "player", "user":
		return RolePlayer, true
	default:
		return "", false
	}
}

// Turn is one transcript entry.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Campaign struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	DungeonMaster string    `gorm:"column:dungeon_master;type:varchar(255)" json:"dungeon_master"`
	Settings      Document  `json:"settings"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Characters []Character `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Sessions   []Session   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Campaign) TableName() string { return "campaigns" }

type Character struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID    uint64    `gorm:"not null;index" json:"campaign_id"`
	PlayerID      string    `gorm:"type:varchar(255);not null;index" json:"player_id"`
	PlayerName    string    `gorm:"type:varchar(255)" json:"player_name"`
	CharacterName string    `gorm:"type:varchar(255);not null" json:"character_name"`
	ClassLevel    string    `gorm:"type:varchar(255)" json:"class_level"`
	Stats         Document  `json:"stats"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

func (Character) TableName() string { return "characters" }

// Session holds the append-only transcript of one play period.
type Session struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID    uint64     `gorm:"not null;index" json:"campaign_id"`
	SessionNumber int        `gorm:"not null" json:"session_number"`
	StartedAt     time.Time  `gorm:"autoCreateTime" json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Messages      Transcript `json:"messages"`
}

func (Session) TableName() string { return "sessions" }

// DiceRoll is written once and never updated.
type DiceRoll struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	RollKey    string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"roll_key"`
	CampaignID *uint64   `gorm:"index" json:"campaign_id,omitempty"`
	PlayerID   string    `gorm:"type:varchar(255);not null;index" json:"player_id"`
	Expression string    `gorm:"type:varchar(100);not null" json:"expression"`
	Outcomes   Outcomes  `gorm:"column:details" json:"outcomes"`
	Modifier   int       `gorm:"not null" json:"modifier"`
	Result     int       `gorm:"not null" json:"result"`
	RolledAt   time.Time `gorm:"autoCreateTime" json:"rolled_at"`
}

func (DiceRoll) TableName() string { return "dice_rolls" }

// Consistent reports whether Result == sum(Outcomes) + Modifier.
func (d DiceRoll) Consistent() bool {
	sum := d.Modifier
	for _, v := range d.Outcomes {
		sum += v
	}
	return sum == d.Result
}
