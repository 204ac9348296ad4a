package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/repo"
)

// Mode is the active persistence form.
type Mode string

const (
	// ModeLocal persists into the process-owned SQLite file.
	ModeLocal Mode = "local"
	// ModeRemote persists into the shared relational database.
	ModeRemote Mode = "remote"
)

// Store bundles the persistence handles of one node. Players is the
// Backend of the active mode; Directory and the server document always
// live in the local file; mail follows the active mode.
type Store struct {
	Mode      Mode
	Node      string
	Players   Backend
	Directory *Directory

	local  *gorm.DB
	remote *gorm.DB
}

// New builds a Store. remote must be non-nil in remote mode and is ignored
// in local mode.
func New(mode Mode, node string, local, remote *gorm.DB) (*Store, error) {
	if local == nil {
		return nil, errors.New("store: local database is required")
	}
	s := &Store{Mode: mode, Node: node, local: local, Directory: NewDirectory(local)}
	switch mode {
	case ModeLocal:
		s.Players = NewSQLBackend(local)
	case ModeRemote:
		if remote == nil {
			return nil, errors.New("store: remote database is required in remote mode")
		}
		s.remote = remote
		s.Players = NewSQLBackend(remote)
	default:
		return nil, errors.Errorf("store: unknown mode %q", mode)
	}
	return s, nil
}

// IsRemote reports whether the shared relational store is active.
func (s *Store) IsRemote() bool { return s.Mode == ModeRemote }

// data returns the database holding player documents and mail.
func (s *Store) data() *gorm.DB {
	if s.remote != nil {
		return s.remote
	}
	return s.local
}

// LoadServer returns this node's server document, empty when none exists.
func (s *Store) LoadServer(ctx context.Context) (domain.Fields, error) {
	rec, err := repo.GetServerState(ctx, s.local, s.Node)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Fields{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load server state %q", s.Node)
	}
	f, err := domain.ParseFields(rec.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode server state %q", s.Node)
	}
	return f, nil
}

// SaveServer replaces this node's server document.
func (s *Store) SaveServer(ctx context.Context, doc domain.Fields, at time.Time) error {
	data, err := doc.Marshal()
	if err != nil {
		return errors.Wrap(err, "encode server state")
	}
	rec := &domain.ServerRecord{Node: s.Node, Data: data, ModifiedAt: at.UTC()}
	if err := repo.PutServerState(ctx, s.local, rec); err != nil {
		return errors.Wrapf(err, "save server state %q", s.Node)
	}
	return nil
}

// MailRow is one stored mail document.
type MailRow struct {
	ID     string
	SentAt time.Time
	Data   []byte
}

// ListMail returns every stored mail, oldest first.
func (s *Store) ListMail(ctx context.Context) ([]MailRow, error) {
	rows, err := repo.ListMail(ctx, s.data())
	if err != nil {
		return nil, errors.Wrap(err, "list mail")
	}
	out := make([]MailRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, MailRow{ID: r.ID, SentAt: r.SentAt, Data: r.Data})
	}
	return out, nil
}

// UpsertMail stores one mail document.
func (s *Store) UpsertMail(ctx context.Context, m MailRow, at time.Time) error {
	rec := &domain.MailRecord{ID: m.ID, Data: m.Data, SentAt: m.SentAt.UTC(), ModifiedAt: at.UTC()}
	if err := repo.UpsertMail(ctx, s.data(), rec); err != nil {
		return errors.Wrapf(err, "upsert mail %s", m.ID)
	}
	return nil
}

// DeleteMail removes mail by id.
func (s *Store) DeleteMail(ctx context.Context, ids ...string) (int64, error) {
	n, err := repo.DeleteMail(ctx, s.data(), ids...)
	if err != nil {
		return 0, errors.Wrap(err, "delete mail")
	}
	return n, nil
}

// PurgeInactive removes player documents that are empty or were last
// modified before the cutoff.
func (s *Store) PurgeInactive(ctx context.Context, before time.Time) (int64, error) {
	n, err := repo.PurgePlayers(ctx, s.data(), before)
	if err != nil {
		return 0, errors.Wrap(err, "purge players")
	}
	return n, nil
}

// Stats reports row counts of the local file and, in remote mode, of the
// shared database.
func (s *Store) Stats(ctx context.Context) (local repo.Stats, remote *repo.Stats, err error) {
	if local, err = repo.StoreStats(ctx, s.local); err != nil {
		return local, nil, errors.Wrap(err, "local stats")
	}
	if s.remote == nil {
		return local, nil, nil
	}
	r, err := repo.StoreStats(ctx, s.remote)
	if err != nil {
		return local, nil, errors.Wrap(err, "remote stats")
	}
	return local, &r, nil
}
