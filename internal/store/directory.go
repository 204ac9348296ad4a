package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/repo"
)

// Directory maps a human-entered name or alias to a stable identity. It is
// always local to the process and keeps an in-memory index in front of the
// identities table. Safe for concurrent use.
type Directory struct {
	db  *gorm.DB
	now func() time.Time

	mu    sync.RWMutex
	byID  map[uuid.UUID]domain.Identity
	byKey map[string]uuid.UUID
}

// NewDirectory returns an empty directory backed by db.
func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{
		db:    db,
		now:   time.Now,
		byID:  make(map[uuid.UUID]domain.Identity),
		byKey: make(map[string]uuid.UUID),
	}
}

// Warm loads every stored row into the index.
func (d *Directory) Warm(ctx context.Context) error {
	rows, err := repo.ListIdentities(ctx, d.db)
	if err != nil {
		return errors.Wrap(err, "warm directory")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, r := range rows {
		id, err := uuid.Parse(r.UUID)
		if err != nil {
			continue
		}
		d.indexLocked(domain.Identity{UUID: id, Name: r.Name, Nick: r.Nick})
	}
	return nil
}

// Lookup resolves a name or alias. Index misses fall through to the table.
func (d *Directory) Lookup(ctx context.Context, nameOrAlias string) (domain.Identity, error) {
	k := domain.Fold(nameOrAlias)
	if k == "" {
		return domain.Identity{}, ErrNotFound
	}
	d.mu.RLock()
	if id, ok := d.byKey[k]; ok {
		ident := d.byID[id]
		d.mu.RUnlock()
		return ident, nil
	}
	d.mu.RUnlock()

	row, err := repo.LookupIdentity(ctx, d.db, nameOrAlias)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, errors.Wrapf(err, "lookup identity %q", nameOrAlias)
	}
	return d.remember(row)
}

// LookupID resolves a stable id.
func (d *Directory) LookupID(ctx context.Context, id uuid.UUID) (domain.Identity, error) {
	d.mu.RLock()
	if ident, ok := d.byID[id]; ok {
		d.mu.RUnlock()
		return ident, nil
	}
	d.mu.RUnlock()

	row, err := repo.GetIdentity(ctx, d.db, id.String())
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Identity{}, ErrNotFound
	}
	if err != nil {
		return domain.Identity{}, errors.Wrapf(err, "lookup identity %s", id)
	}
	return d.remember(row)
}

// Put stores the mapping for ident, replacing any previous name or alias.
func (d *Directory) Put(ctx context.Context, ident domain.Identity) error {
	if !ident.Valid() {
		return errors.Errorf("invalid identity %+v", ident)
	}
	rec := &domain.IdentityRecord{
		UUID:       ident.UUID.String(),
		Name:       ident.Name,
		Nick:       ident.Nick,
		ModifiedAt: d.now().UTC(),
	}
	if err := repo.PutIdentity(ctx, d.db, rec); err != nil {
		return errors.Wrapf(err, "put identity %s", ident.UUID)
	}
	d.mu.Lock()
	d.indexLocked(ident)
	d.mu.Unlock()
	return nil
}

// Cached returns the identity from the index only, never touching the table.
func (d *Directory) Cached(nameOrAlias string) (domain.Identity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byKey[domain.Fold(nameOrAlias)]
	if !ok {
		return domain.Identity{}, false
	}
	return d.byID[id], true
}

// Len returns the number of indexed identities.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

func (d *Directory) remember(row *domain.IdentityRecord) (domain.Identity, error) {
	id, err := uuid.Parse(row.UUID)
	if err != nil {
		return domain.Identity{}, errors.Wrapf(err, "bad identity row %q", row.UUID)
	}
	ident := domain.Identity{UUID: id, Name: row.Name, Nick: row.Nick}
	d.mu.Lock()
	d.indexLocked(ident)
	d.mu.Unlock()
	return ident, nil
}

// indexLocked must be called with mu held for writing.
func (d *Directory) indexLocked(ident domain.Identity) {
	if prev, ok := d.byID[ident.UUID]; ok {
		for _, k := range []string{domain.Fold(prev.Name), domain.Fold(prev.Nick)} {
			if k != "" && d.byKey[k] == ident.UUID {
				delete(d.byKey, k)
			}
		}
	}
	d.byID[ident.UUID] = ident
	d.byKey[domain.Fold(ident.Name)] = ident.UUID
	if ident.Nick != "" {
		d.byKey[domain.Fold(ident.Nick)] = ident.UUID
	}
}
