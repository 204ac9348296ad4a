// Package store is the backing-store boundary of a node. It exposes the
// name/identity keyed key-value contract used by the caches (Backend), the
// local identity directory (Directory) and a Store bundle that knows which
// persistence mode is active.
//
// Two modes exist and exactly one is active per deployment:
//   - local:  a SQLite file owned by this process; writes are synchronous.
//   - remote: a relational database shared by every node; writes happen on
//     a worker and lookups may fall through from the local directory.
//
// Driver errors are wrapped with github.com/pkg/errors so logs carry the
// failing key; a missing record is always reported as ErrNotFound.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/repo"
)

// ErrNotFound is returned when no record matches a key.
var ErrNotFound = errors.New("store: record not found")

// Record is one identity and its sparse field document.
type Record struct {
	Identity   domain.Identity
	Fields     domain.Fields
	ModifiedAt time.Time
}

// Backend is the key-value contract implemented by every persistence form.
// Keys passed to Get are either a uuid string or a name/alias.
type Backend interface {
	Get(ctx context.Context, key string) (*Record, error)
	GetAll(ctx context.Context) ([]Record, error)
	Upsert(ctx context.Context, rec Record) error
	// Insert writes rec only when no record exists for its uuid and
	// reports whether it did.
	Insert(ctx context.Context, rec Record) (bool, error)
}

// SQLBackend implements Backend over the players table of any GORM dialect.
type SQLBackend struct {
	db *gorm.DB
}

// NewSQLBackend returns a Backend reading and writing the players table.
func NewSQLBackend(db *gorm.DB) *SQLBackend { return &SQLBackend{db: db} }

// Get fetches one record by uuid, name or alias.
func (b *SQLBackend) Get(ctx context.Context, key string) (*Record, error) {
	row, err := repo.GetPlayer(ctx, b.db, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get player %q", key)
	}
	rec, err := fromRow(row)
	if err != nil {
		return nil, errors.Wrapf(err, "decode player %q", key)
	}
	return rec, nil
}

// GetAll returns every stored record. Rows whose document cannot be decoded
// are skipped.
func (b *SQLBackend) GetAll(ctx context.Context) ([]Record, error) {
	rows, err := repo.ListPlayers(ctx, b.db)
	if err != nil {
		return nil, errors.Wrap(err, "list players")
	}
	out := make([]Record, 0, len(rows))
	for i := range rows {
		rec, err := fromRow(&rows[i])
		if err != nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Upsert writes the full sparse document for one identity.
func (b *SQLBackend) Upsert(ctx context.Context, rec Record) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := repo.UpsertPlayer(ctx, b.db, row); err != nil {
		return errors.Wrapf(err, "upsert player %s", rec.Identity.UUID)
	}
	return nil
}

// Insert creates the document for one identity, leaving an existing one
// untouched.
func (b *SQLBackend) Insert(ctx context.Context, rec Record) (bool, error) {
	row, err := toRow(rec)
	if err != nil {
		return false, err
	}
	created, err := repo.InsertPlayer(ctx, b.db, row)
	if err != nil {
		return false, errors.Wrapf(err, "insert player %s", rec.Identity.UUID)
	}
	return created, nil
}

func toRow(rec Record) (*domain.PlayerRecord, error) {
	data, err := rec.Fields.Marshal()
	if err != nil {
		return nil, errors.Wrapf(err, "encode player %s", rec.Identity.UUID)
	}
	return &domain.PlayerRecord{
		UUID:       rec.Identity.UUID.String(),
		Name:       rec.Identity.Name,
		Nick:       rec.Identity.Nick,
		Data:       data,
		ModifiedAt: rec.ModifiedAt.UTC(),
	}, nil
}

func fromRow(row *domain.PlayerRecord) (*Record, error) {
	id, err := uuid.Parse(row.UUID)
	if err != nil {
		return nil, err
	}
	fields, err := domain.ParseFields(row.Data)
	if err != nil {
		return nil, err
	}
	return &Record{
		Identity:   domain.Identity{UUID: id, Name: row.Name, Nick: row.Nick},
		Fields:     fields,
		ModifiedAt: row.ModifiedAt,
	}, nil
}
