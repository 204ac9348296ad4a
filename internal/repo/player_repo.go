// Package repo implements the persistence layer for node state, backed by
// GORM. This file provides repository functions for PlayerRecord, the
// per-identity durable document.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/chatsync/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// GetPlayer fetches a player record by uuid string, canonical name or alias.
// Names and aliases are matched on their folded keys; when several records
// share a name the most recently modified one wins.
func GetPlayer(ctx context.Context, db *gorm.DB, key string) (*domain.PlayerRecord, error) {
	var rec domain.PlayerRecord
	q := db.WithContext(ctx)
	if id, err := uuid.Parse(key); err == nil {
		q = q.Where("uuid = ?", id.String())
	} else {
		k := domain.Fold(key)
		q = q.Where("name_key = ? OR nick_key = ?", k, k).Order("modified_at DESC")
	}
	if err := q.Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListPlayers returns every stored player record ordered by folded name.
func ListPlayers(ctx context.Context, db *gorm.DB) ([]domain.PlayerRecord, error) {
	var out []domain.PlayerRecord
	err := db.WithContext(ctx).Order("name_key ASC, uuid ASC").Find(&out).Error
	return out, err
}

// UpsertPlayer inserts rec or replaces every column of the existing row.
func UpsertPlayer(ctx context.Context, db *gorm.DB, rec *domain.PlayerRecord) error {
	rec.NameKey = domain.Fold(rec.Name)
	rec.NickKey = domain.Fold(rec.Nick)
	if len(rec.Data) == 0 {
		rec.Data = []byte("{}")
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
}

// InsertPlayer creates rec unless a row with the same uuid exists. It
// reports whether the row was created.
func InsertPlayer(ctx context.Context, db *gorm.DB, rec *domain.PlayerRecord) (bool, error) {
	rec.NameKey = domain.Fold(rec.Name)
	rec.NickKey = domain.Fold(rec.Nick)
	if len(rec.Data) == 0 {
		rec.Data = []byte("{}")
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(rec)
	return res.RowsAffected > 0, res.Error
}

// PurgePlayers deletes records whose document is empty or whose last
// modification is before the cutoff, returning the number removed.
func PurgePlayers(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	var rows []domain.PlayerRecord
	if err := db.WithContext(ctx).Select("uuid", "data", "modified_at").Find(&rows).Error; err != nil {
		return 0, err
	}
	ids := make([]string, 0)
	for _, r := range rows {
		doc, err := domain.ParseFields(r.Data)
		if err != nil || len(doc) == 0 || r.ModifiedAt.Before(before) {
			ids = append(ids, r.UUID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Where("uuid IN ?", ids).Delete(&domain.PlayerRecord{})
	return res.RowsAffected, res.Error
}
