// Package repo implements the persistence layer for node state, backed by
// GORM. This file provides small aggregate queries used by the admin status
// endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/chatsync/internal/domain"
)

// Stats summarizes one database.
type Stats struct {
	Players      int64      `json:"players"`
	Identities   int64      `json:"identities"`
	Mail         int64      `json:"mail"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// StoreStats counts the rows of every node table and returns the greatest
// player ModifiedAt, or nil when there are no players.
func StoreStats(ctx context.Context, db *gorm.DB) (Stats, error) {
	var st Stats
	q := db.WithContext(ctx)
	if err := q.Model(&domain.PlayerRecord{}).Count(&st.Players).Error; err != nil {
		return st, err
	}
	if err := q.Model(&domain.IdentityRecord{}).Count(&st.Identities).Error; err != nil {
		return st, err
	}
	if err := q.Model(&domain.MailRecord{}).Count(&st.Mail).Error; err != nil {
		return st, err
	}
	if st.Players == 0 {
		return st, nil
	}

	// Get latest modified_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		ModifiedAt time.Time
	}
	if err := q.Model(&domain.PlayerRecord{}).Select("modified_at").Order("modified_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return st, err
	}
	st.LastModified = &row.ModifiedAt
	return st, nil
}
