// Package player holds the durable per-identity cache of a node.
//
// A Cache keeps exactly one Entry per identity. Entries are created on first
// access (From on join, Poll/PollAll on name resolution, Merge on an inbound
// patch) and live until Clear. Every mutation writes the sparse document
// through to the active backing store: inline for the local file, on a
// worker for the shared database.
//
// Poll and PollAll perform store I/O on a loop worker and always deliver
// their result back on the mutation context. Concurrent polls for the same
// key share a single lookup.
package player

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/loop"
	"github.com/tbourn/chatsync/internal/observability"
	"github.com/tbourn/chatsync/internal/store"
)

// Options tunes a Cache. Zero values pick the defaults.
type Options struct {
	// ReadLimit caps read-mode channel memberships when the permission
	// capability does not supply its own limit. Default 3.
	ReadLimit int
	// IOTimeout bounds every store call. Default 5s.
	IOTimeout time.Duration
	Now       func() time.Time
	Logger    *zerolog.Logger
}

// Cache is the identity → Entry registry.
type Cache struct {
	st        *store.Store
	lp        *loop.Loop
	now       func() time.Time
	readLimit int
	timeout   time.Duration
	log       zerolog.Logger

	mu      sync.Mutex
	entries map[uuid.UUID]*Entry

	flightMu sync.Mutex
	inflight map[string][]func(*Entry)
}

// New returns an empty cache over st whose I/O runs on lp's workers.
func New(st *store.Store, lp *loop.Loop, opts Options) *Cache {
	c := &Cache{
		st:        st,
		lp:        lp,
		now:       opts.Now,
		readLimit: opts.ReadLimit,
		timeout:   opts.IOTimeout,
		entries:   make(map[uuid.UUID]*Entry),
		inflight:  make(map[string][]func(*Entry)),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.readLimit <= 0 {
		c.readLimit = 3
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if opts.Logger != nil {
		c.log = opts.Logger.With().Str("component", "player_cache").Logger()
	} else {
		c.log = log.With().Str("component", "player_cache").Logger()
	}
	return c
}

// Now returns the cache clock.
func (c *Cache) Now() time.Time { return c.now() }

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cached returns the entry for id without creating it.
func (c *Cache) Cached(id uuid.UUID) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	return e, ok
}

// CachedName returns the cached entry whose name or alias matches.
func (c *Cache) CachedName(nameOrAlias string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.identity.Matches(nameOrAlias) {
			return e, true
		}
	}
	return nil, false
}

// Clear drops every cached entry. Stored documents are untouched.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[uuid.UUID]*Entry)
	c.mu.Unlock()
	observability.CacheEntries.WithLabelValues("player").Set(0)
}

// From returns the entry for ident, creating and registering it when absent.
// A new entry is recorded in the identity directory. In local mode the
// stored document is read inline and a brand-new document is persisted. In
// remote mode the new document is inserted on a worker only when the shared
// database has none; an existing one is loaded back onto the entry.
func (c *Cache) From(ident domain.Identity) *Entry {
	if e, ok := c.Cached(ident.UUID); ok {
		return e
	}

	var rec *store.Record
	if !c.st.IsRemote() {
		ctx, cancel := c.ioContext()
		r, err := c.st.Players.Get(ctx, ident.UUID.String())
		cancel()
		switch {
		case err == nil:
			rec = r
		case !errors.Is(err, store.ErrNotFound):
			c.log.Error().Err(err).Str("uuid", ident.UUID.String()).Msg("load player")
		}
	}

	e, created := c.adopt(ident, rec)
	if created {
		c.putIdentity(ident)
		switch {
		case rec != nil:
		case c.st.IsRemote():
			c.insertRemote(e)
		default:
			if err := c.Save(e); err != nil {
				c.log.Error().Err(err).Str("uuid", ident.UUID.String()).Msg("persist new player")
			}
		}
	}
	return e
}

// Merge applies a sparse patch received from another node, creating the
// entry when absent. The patch is not written back: the sender already
// persisted it.
func (c *Cache) Merge(ident domain.Identity, patch domain.Fields) (*Entry, error) {
	if !ident.Valid() {
		return nil, errors.Errorf("merge: invalid identity %+v", ident)
	}
	e, created := c.adopt(ident, nil)
	if err := e.apply(patch); err != nil {
		return e, errors.Wrapf(err, "merge patch for %s", ident.Name)
	}
	renamed := e.identity != ident
	e.identity = ident
	if created || renamed {
		c.putIdentity(ident)
	}
	if c.normalize(e, nil) {
		c.saveLogged(e)
	}
	return e, nil
}

// Save writes e through to the backing store and stamps its modification
// time. It is a no-op while the entry does not allow writes. In remote mode
// the write happens on a worker and failures are only logged.
func (c *Cache) Save(e *Entry) error {
	if !e.allowWrite {
		return nil
	}
	e.lastModified = c.now()
	rec := store.Record{Identity: e.identity, Fields: e.Fields(), ModifiedAt: e.lastModified}

	if !c.st.IsRemote() {
		ctx, cancel := c.ioContext()
		defer cancel()
		err := c.st.Players.Upsert(ctx, rec)
		observability.StoreWrites.WithLabelValues(string(store.ModeLocal), observability.Result(err)).Inc()
		return err
	}

	c.lp.Go(func() {
		ctx, cancel := c.ioContext()
		defer cancel()
		err := c.st.Players.Upsert(ctx, rec)
		observability.StoreWrites.WithLabelValues(string(store.ModeRemote), observability.Result(err)).Inc()
		if err != nil {
			c.log.Error().Err(err).Str("uuid", rec.Identity.UUID.String()).Msg("write-through failed")
		}
	})
	return nil
}

// insertRemote writes the document of a freshly created entry to the shared
// database unless another node already stored one, in which case that
// document is loaded onto the entry on the mutation context.
func (c *Cache) insertRemote(e *Entry) {
	if !e.allowWrite {
		return
	}
	rec := store.Record{Identity: e.identity, Fields: e.Fields(), ModifiedAt: c.now()}
	c.lp.Go(func() {
		ctx, cancel := c.ioContext()
		defer cancel()
		created, err := c.st.Players.Insert(ctx, rec)
		observability.StoreWrites.WithLabelValues(string(store.ModeRemote), observability.Result(err)).Inc()
		if err != nil {
			c.log.Error().Err(err).Str("uuid", rec.Identity.UUID.String()).Msg("persist new player")
			return
		}
		if created {
			return
		}
		stored, err := c.st.Players.Get(ctx, rec.Identity.UUID.String())
		if err != nil {
			c.log.Error().Err(err).Str("uuid", rec.Identity.UUID.String()).Msg("load player")
			return
		}
		c.lp.Post(func() { c.adopt(stored.Identity, stored) })
	})
}

// Poll resolves a name, alias or uuid string and calls cb on the mutation
// context with the entry, or with nil when the identity is unknown. It must
// be called from the mutation context and returns immediately.
func (c *Cache) Poll(key string, cb func(*Entry)) {
	k := domain.Fold(key)
	c.flightMu.Lock()
	if waiting, ok := c.inflight[k]; ok {
		c.inflight[k] = append(waiting, cb)
		c.flightMu.Unlock()
		return
	}
	c.inflight[k] = []func(*Entry){cb}
	c.flightMu.Unlock()

	c.lp.Go(func() {
		start := time.Now()
		ident, rec, err := c.lookup(key)
		observability.PollDuration.WithLabelValues("one").Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			c.log.Error().Err(err).Str("key", key).Msg("poll lookup")
		}
		c.lp.Post(func() {
			var e *Entry
			if err == nil {
				e, _ = c.adopt(ident, rec)
			}
			c.flightMu.Lock()
			waiting := c.inflight[k]
			delete(c.inflight, k)
			c.flightMu.Unlock()
			for _, fn := range waiting {
				c.deliver(func() { fn(e) })
			}
		})
	})
}

// PollAll loads every known identity (the shared database in remote mode,
// the local file otherwise), merges the cached entries in and calls cb on
// the mutation context with the list sorted by canonical name.
func (c *Cache) PollAll(cb func([]*Entry)) {
	c.lp.Go(func() {
		start := time.Now()
		ctx, cancel := c.ioContext()
		recs, err := c.st.Players.GetAll(ctx)
		cancel()
		observability.PollDuration.WithLabelValues("all").Observe(time.Since(start).Seconds())
		if err != nil {
			c.log.Error().Err(err).Msg("poll all")
		}
		c.lp.Post(func() {
			seen := make(map[uuid.UUID]struct{}, len(recs))
			out := make([]*Entry, 0, len(recs))
			for i := range recs {
				e, _ := c.adopt(recs[i].Identity, &recs[i])
				seen[e.UUID()] = struct{}{}
				out = append(out, e)
			}
			c.mu.Lock()
			for id, e := range c.entries {
				if _, ok := seen[id]; !ok {
					out = append(out, e)
				}
			}
			c.mu.Unlock()
			SortByName(out)
			c.deliver(func() { cb(out) })
		})
	})
}

// SortByName orders entries by folded canonical name, then exact name,
// then uuid.
func SortByName(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].identity, entries[j].identity
		if fa, fb := domain.Fold(a.Name), domain.Fold(b.Name); fa != fb {
			return fa < fb
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UUID.String() < b.UUID.String()
	})
}

// lookup runs on a worker. It resolves key through the directory and, in
// remote mode, the shared database, recording remote-only identities in
// the local directory.
func (c *Cache) lookup(key string) (domain.Identity, *store.Record, error) {
	ctx, cancel := c.ioContext()
	defer cancel()

	var (
		ident domain.Identity
		err   error
	)
	if id, perr := uuid.Parse(key); perr == nil {
		ident, err = c.st.Directory.LookupID(ctx, id)
	} else {
		ident, err = c.st.Directory.Lookup(ctx, key)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return ident, nil, err
	}
	known := err == nil

	if c.st.IsRemote() {
		k := key
		if known {
			k = ident.UUID.String()
		}
		rec, err := c.st.Players.Get(ctx, k)
		if errors.Is(err, store.ErrNotFound) {
			if !known {
				return ident, nil, store.ErrNotFound
			}
			return ident, nil, nil
		}
		if err != nil {
			return ident, nil, err
		}
		if !known {
			ident = rec.Identity
			if err := c.st.Directory.Put(ctx, ident); err != nil {
				c.log.Warn().Err(err).Str("name", ident.Name).Msg("record remote identity locally")
			}
		}
		return ident, rec, nil
	}

	if !known {
		return ident, nil, store.ErrNotFound
	}
	if _, ok := c.Cached(ident.UUID); ok {
		return ident, nil, nil
	}
	rec, err := c.st.Players.Get(ctx, ident.UUID.String())
	if errors.Is(err, store.ErrNotFound) {
		return ident, nil, nil
	}
	return ident, rec, err
}

// adopt registers or reuses the entry for ident and loads rec into it. In
// local mode a cached entry is authoritative and rec is ignored. In remote
// mode a rec older than the entry's last write is ignored too.
func (c *Cache) adopt(ident domain.Identity, rec *store.Record) (*Entry, bool) {
	c.mu.Lock()
	e, ok := c.entries[ident.UUID]
	if !ok {
		e = newEntry(c, ident)
		c.entries[ident.UUID] = e
	}
	n := len(c.entries)
	c.mu.Unlock()
	observability.CacheEntries.WithLabelValues("player").Set(float64(n))

	if rec != nil && (!ok || c.st.IsRemote()) && !rec.ModifiedAt.Before(e.lastModified) {
		if err := e.apply(rec.Fields); err != nil {
			c.log.Warn().Err(err).Str("uuid", ident.UUID.String()).Msg("decode stored player")
		}
		if rec.ModifiedAt.After(e.lastModified) {
			e.lastModified = rec.ModifiedAt
		}
		if rec.Identity.Valid() {
			e.identity = rec.Identity
		}
		if c.normalize(e, nil) {
			c.saveLogged(e)
		}
	}
	if ident.Nick != "" && e.identity.Nick != ident.Nick && ident.UUID == e.identity.UUID {
		e.identity.Nick = ident.Nick
	}
	return e, !ok
}

func (c *Cache) putIdentity(ident domain.Identity) {
	write := func() {
		ctx, cancel := c.ioContext()
		defer cancel()
		if err := c.st.Directory.Put(ctx, ident); err != nil {
			c.log.Error().Err(err).Str("name", ident.Name).Msg("directory write")
		}
	}
	if c.st.IsRemote() {
		c.lp.Go(write)
		return
	}
	write()
}

func (c *Cache) saveLogged(e *Entry) {
	if err := c.Save(e); err != nil {
		c.log.Error().Err(err).Str("uuid", e.UUID().String()).Msg("write-through failed")
	}
}

func (c *Cache) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("poll callback panicked")
		}
	}()
	fn()
}

func (c *Cache) ioContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}
