package domain

import (
	"time"

	"gorm.io/datatypes"
)

// PlayerRecord is the persisted form of one identity's durable state.
// Data holds the sparse field document; NameKey and NickKey are folded
// copies used for case-insensitive lookups.
//
// Fields:
//   - UUID: stable identity id (char(36) primary key).
//   - Name / NameKey: canonical name and its folded lookup key.
//   - Nick / NickKey: optional alias and its folded lookup key.
//   - Data: sparse JSON document of non-default fields.
//   - ModifiedAt: stamped by the cache on every write-through.
type PlayerRecord struct {
	UUID       string         `gorm:"type:char(36);primaryKey"`
	Name       string         `gorm:"type:varchar(64);not null"`
	NameKey    string         `gorm:"type:varchar(64);not null;index:idx_players_name"`
	Nick       string         `gorm:"type:varchar(64)"`
	NickKey    string         `gorm:"type:varchar(64);index:idx_players_nick"`
	Data       datatypes.JSON `gorm:"not null"`
	ModifiedAt time.Time      `gorm:"not null;index"`
}

// TableName returns the database table name for PlayerRecord.
func (PlayerRecord) TableName() string { return "players" }

// IdentityRecord is one row of the local identity directory.
type IdentityRecord struct {
	UUID       string    `gorm:"type:char(36);primaryKey"`
	Name       string    `gorm:"type:varchar(64);not null"`
	NameKey    string    `gorm:"type:varchar(64);not null;index:idx_identities_name"`
	Nick       string    `gorm:"type:varchar(64)"`
	NickKey    string    `gorm:"type:varchar(64);index:idx_identities_nick"`
	ModifiedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for IdentityRecord.
func (IdentityRecord) TableName() string { return "identities" }

// ServerRecord holds the node-wide durable document (global mute, markers,
// regions). One row per node name.
type ServerRecord struct {
	Node       string         `gorm:"type:varchar(64);primaryKey"`
	Data       datatypes.JSON `gorm:"not null"`
	ModifiedAt time.Time      `gorm:"not null"`
}

// TableName returns the database table name for ServerRecord.
func (ServerRecord) TableName() string { return "server_state" }

// MailRecord is one persisted mail message; Data is its JSON encoding.
type MailRecord struct {
	ID         string         `gorm:"type:char(36);primaryKey"`
	Data       datatypes.JSON `gorm:"not null"`
	SentAt     time.Time      `gorm:"not null;index"`
	ModifiedAt time.Time      `gorm:"not null"`
}

// TableName returns the database table name for MailRecord.
func (MailRecord) TableName() string { return "mail" }
