// Package server holds the single node-wide durable record: the global
// mute, one-time markers, named regions and the mail store.
//
// The record is loaded exactly once after startup. Its in-memory fields are
// mutated on the mutation context only and are not separately locked.
package server

import (
	"context"
	"encoding/json"
	"sort"
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

// Document keys of the server record.
const (
	KeyGlobalMute    = "global_mute"
	KeyMigrated      = "migrated"
	KeyTourCompleted = "tour_completed"
	KeyRegions       = "regions"
)

var (
	// ErrRegionExists is returned when adding a region whose name is taken.
	ErrRegionExists = errors.New("server: region already exists")
	// ErrMailNotFound is returned for an unknown mail id.
	ErrMailNotFound = errors.New("server: mail not found")
)

// Options tunes a Cache.
type Options struct {
	// InactivityThreshold purges player documents untouched for longer.
	InactivityThreshold time.Duration
	// MailRetention drops mail older than this on load; 0 keeps it.
	MailRetention time.Duration
	Areas         AreaResolver
	IOTimeout     time.Duration
	Now           func() time.Time
}

// Cache is the node-wide durable record.
type Cache struct {
	st   *store.Store
	lp   *loop.Loop
	opts Options
	now  func() time.Time
	log  zerolog.Logger

	loaded        bool
	globalMute    *time.Time
	migrated      bool
	tourCompleted bool
	regions       map[string]Region
	mail          []*Mail
}

// New returns an unloaded cache.
func New(st *store.Store, lp *loop.Loop, opts Options) *Cache {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 5 * time.Second
	}
	return &Cache{
		st:      st,
		lp:      lp,
		opts:    opts,
		now:     opts.Now,
		log:     log.With().Str("component", "server_cache").Logger(),
		regions: make(map[string]Region),
	}
}

// Loaded reports whether Load has completed.
func (c *Cache) Loaded() bool { return c.loaded }

// Load reads the record once, purging inactive player documents and mail
// eligible for deletion. Later calls are no-ops so a reload never clobbers
// in-flight mutations. Regions whose area is gone are skipped; any other
// decode failure aborts the load.
func (c *Cache) Load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	now := c.now()

	if c.opts.InactivityThreshold > 0 {
		n, err := c.st.PurgeInactive(ctx, now.Add(-c.opts.InactivityThreshold))
		if err != nil {
			return err
		}
		if n > 0 {
			c.log.Info().Int64("count", n).Msg("purged inactive player records")
		}
	}

	doc, err := c.st.LoadServer(ctx)
	if err != nil {
		return err
	}
	if err := c.apply(doc); err != nil {
		return err
	}

	rows, err := c.st.ListMail(ctx)
	if err != nil {
		return err
	}
	var expired []string
	for _, row := range rows {
		m, err := DecodeMail(row.Data)
		if err != nil {
			return errors.Wrapf(err, "decode mail %s", row.ID)
		}
		if m.CanDelete(now, c.opts.MailRetention) {
			expired = append(expired, row.ID)
			continue
		}
		c.mail = append(c.mail, m)
	}
	if len(expired) > 0 {
		n, err := c.st.DeleteMail(ctx, expired...)
		if err != nil {
			return err
		}
		c.log.Info().Int64("count", n).Msg("dropped expired mail")
	}

	c.loaded = true
	return nil
}

func (c *Cache) apply(doc domain.Fields) error {
	var t time.Time
	if ok, err := doc.Decode(KeyGlobalMute, &t); err != nil {
		return errors.Wrap(err, "decode global mute")
	} else if ok {
		c.globalMute = &t
	}
	if _, err := doc.Decode(KeyMigrated, &c.migrated); err != nil {
		return errors.Wrap(err, "decode migration marker")
	}
	if _, err := doc.Decode(KeyTourCompleted, &c.tourCompleted); err != nil {
		return errors.Wrap(err, "decode tour marker")
	}

	var raws []json.RawMessage
	if _, err := doc.Decode(KeyRegions, &raws); err != nil {
		return errors.Wrap(err, "decode regions")
	}
	for _, raw := range raws {
		r, err := decodeRegion(raw, c.opts.Areas)
		if errors.Is(err, ErrAreaMissing) {
			c.log.Warn().Err(err).Msg("skipping region")
			continue
		}
		if err != nil {
			return err
		}
		c.regions[domain.Fold(r.Name)] = r
	}
	return nil
}

// Fields serializes every non-default field of the record.
func (c *Cache) Fields() domain.Fields {
	f := domain.Fields{}
	if c.globalMute != nil {
		_ = f.Put(KeyGlobalMute, c.globalMute.UTC())
	}
	if c.migrated {
		_ = f.Put(KeyMigrated, true)
	}
	if c.tourCompleted {
		_ = f.Put(KeyTourCompleted, true)
	}
	if rs := c.Regions(); len(rs) > 0 {
		_ = f.Put(KeyRegions, rs)
	}
	return f
}

// Save writes the record to the local file.
func (c *Cache) Save(ctx context.Context) error {
	err := c.st.SaveServer(ctx, c.Fields(), c.now())
	observability.StoreWrites.WithLabelValues(string(store.ModeLocal), observability.Result(err)).Inc()
	return err
}

func (c *Cache) save() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.IOTimeout)
	defer cancel()
	return c.Save(ctx)
}

// IsMuted reports whether the global mute is active.
func (c *Cache) IsMuted() bool {
	return c.globalMute != nil && c.now().Before(*c.globalMute)
}

// SetGlobalMute mutes all chat for d; d <= 0 lifts the mute.
func (c *Cache) SetGlobalMute(d time.Duration) error {
	if d <= 0 {
		c.globalMute = nil
	} else {
		t := c.now().Add(d)
		c.globalMute = &t
	}
	return c.save()
}

// Migrated reports the one-time migration marker.
func (c *Cache) Migrated() bool { return c.migrated }

// MarkMigrated sets the one-time migration marker.
func (c *Cache) MarkMigrated() error {
	c.migrated = true
	return c.save()
}

// TourCompleted reports the first-run tour marker.
func (c *Cache) TourCompleted() bool { return c.tourCompleted }

// MarkTourCompleted sets the first-run tour marker.
func (c *Cache) MarkTourCompleted() error {
	c.tourCompleted = true
	return c.save()
}

// Regions returns every region sorted by name.
func (c *Cache) Regions() []Region {
	out := make([]Region, 0, len(c.regions))
	for _, r := range c.regions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Region returns the region named name, ignoring case.
func (c *Cache) Region(name string) (Region, bool) {
	r, ok := c.regions[domain.Fold(name)]
	return r, ok
}

// RegionsAt returns the regions containing p.
func (c *Cache) RegionsAt(p domain.Point) []Region {
	var out []Region
	for _, r := range c.Regions() {
		if r.Contains(p) {
			out = append(out, r)
		}
	}
	return out
}

// AddRegion stores a new region.
func (c *Cache) AddRegion(r Region) error {
	k := domain.Fold(r.Name)
	if k == "" || r.World == "" {
		return errors.New("server: region needs a name and a world")
	}
	if _, ok := c.regions[k]; ok {
		return ErrRegionExists
	}
	c.regions[k] = r
	return c.save()
}

// RemoveRegion deletes a region and reports whether it existed.
func (c *Cache) RemoveRegion(name string) (bool, error) {
	k := domain.Fold(name)
	if _, ok := c.regions[k]; !ok {
		return false, nil
	}
	delete(c.regions, k)
	return true, c.save()
}

// Mail returns every stored mail, oldest first.
func (c *Cache) Mail() []*Mail {
	out := make([]*Mail, len(c.mail))
	copy(out, c.mail)
	return out
}

// FindMail returns the mail with id.
func (c *Cache) FindMail(id uuid.UUID) (*Mail, bool) {
	for _, m := range c.mail {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// Inbox returns the mail addressed to id that it has not deleted.
func (c *Cache) Inbox(id uuid.UUID) []*Mail {
	var out []*Mail
	for _, m := range c.mail {
		if r, ok := m.Recipient(id); ok && !r.Deleted {
			out = append(out, m)
		}
	}
	return out
}

// AddMail appends m and persists it: inline in local mode, on a worker in
// remote mode.
func (c *Cache) AddMail(m *Mail) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.SentAt.IsZero() {
		m.SentAt = c.now()
	}
	c.mail = append(c.mail, m)
	return c.persistMail(m)
}

// SyncMail records a mail received from another node. A mail whose id is
// already known is ignored so local read and delete flags stick. In local
// mode the mail is written to this node's file; in remote mode the sender
// already stored it in the shared database.
func (c *Cache) SyncMail(m *Mail) error {
	if _, ok := c.FindMail(m.ID); ok {
		return nil
	}
	c.mail = append(c.mail, m)
	if c.st.IsRemote() {
		return nil
	}
	return c.persistMail(m)
}

// MarkRead flags the mail as read by recipient and persists it.
func (c *Cache) MarkRead(id, recipient uuid.UUID) error {
	m, ok := c.FindMail(id)
	if !ok {
		return ErrMailNotFound
	}
	r, ok := m.Recipient(recipient)
	if !ok {
		return ErrMailNotFound
	}
	if !r.Read {
		t := c.now()
		r.Read, r.OpenedAt = true, &t
	}
	return c.persistMail(m)
}

// DeleteFor flags the mail as deleted by recipient and persists it.
func (c *Cache) DeleteFor(id, recipient uuid.UUID) error {
	m, ok := c.FindMail(id)
	if !ok {
		return ErrMailNotFound
	}
	r, ok := m.Recipient(recipient)
	if !ok {
		return ErrMailNotFound
	}
	r.Deleted = true
	return c.persistMail(m)
}

func (c *Cache) persistMail(m *Mail) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	row := store.MailRow{ID: m.ID.String(), SentAt: m.SentAt, Data: data}
	at := c.now()
	write := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.IOTimeout)
		defer cancel()
		err := c.st.UpsertMail(ctx, row, at)
		observability.StoreWrites.WithLabelValues(string(c.st.Mode), observability.Result(err)).Inc()
		return err
	}
	if !c.st.IsRemote() {
		return write()
	}
	c.lp.Go(func() {
		if err := write(); err != nil {
			c.log.Error().Err(err).Str("mail", row.ID).Msg("mail write failed")
		}
	})
	return nil
}
