// Package repo implements the persistence layer for node state, backed by
// GORM. This file provides repository functions for the node-wide server
// document and the mail store.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/chatsync/internal/domain"
)

// GetServerState returns the server document for node, or ErrNotFound.
func GetServerState(ctx context.Context, db *gorm.DB, node string) (*domain.ServerRecord, error) {
	var rec domain.ServerRecord
	if err := db.WithContext(ctx).Where("node = ?", node).Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutServerState inserts or replaces the server document.
func PutServerState(ctx context.Context, db *gorm.DB, rec *domain.ServerRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
}

// ListMail returns every stored mail ordered by send time (oldest first).
func ListMail(ctx context.Context, db *gorm.DB) ([]domain.MailRecord, error) {
	var out []domain.MailRecord
	err := db.WithContext(ctx).Order("sent_at ASC, id ASC").Find(&out).Error
	return out, err
}

// UpsertMail inserts or replaces one mail row.
func UpsertMail(ctx context.Context, db *gorm.DB, rec *domain.MailRecord) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
}

// DeleteMail removes the given mail ids and returns the number removed.
func DeleteMail(ctx context.Context, db *gorm.DB, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.MailRecord{})
	return res.RowsAffected, res.Error
}
