// Package repo implements the persistence layer for node state, backed by
// GORM. This file provides repository functions for the local identity
// directory (name/alias → stable id).
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/chatsync/internal/domain"
)

// LookupIdentity finds a directory row by canonical name or alias, ignoring
// case. The most recently modified row wins when a name was reused.
func LookupIdentity(ctx context.Context, db *gorm.DB, nameOrAlias string) (*domain.IdentityRecord, error) {
	k := domain.Fold(nameOrAlias)
	var rec domain.IdentityRecord
	err := db.WithContext(ctx).
		Where("name_key = ? OR nick_key = ?", k, k).
		Order("modified_at DESC").
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetIdentity fetches a directory row by uuid string.
func GetIdentity(ctx context.Context, db *gorm.DB, id string) (*domain.IdentityRecord, error) {
	var rec domain.IdentityRecord
	if err := db.WithContext(ctx).Where("uuid = ?", id).Take(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListIdentities returns every directory row ordered by folded name.
func ListIdentities(ctx context.Context, db *gorm.DB) ([]domain.IdentityRecord, error) {
	var out []domain.IdentityRecord
	err := db.WithContext(ctx).Order("name_key ASC").Find(&out).Error
	return out, err
}

// PutIdentity inserts or replaces a directory row.
func PutIdentity(ctx context.Context, db *gorm.DB, rec *domain.IdentityRecord) error {
	rec.NameKey = domain.Fold(rec.Name)
	rec.NickKey = domain.Fold(rec.Nick)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rec).Error
}
