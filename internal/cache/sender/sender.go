// Package sender holds ephemeral, never persisted runtime state per sender:
// verification codes, pending drafts, reply targets, the "loading" guard of
// remote resolution and a bounded interaction history.
//
// Entries are keyed by stable id with the folded name as a secondary index.
// Senders without an identity (the console) are keyed by name only. When a
// name is seen again with a different id, a fresh entry takes over the name
// so state never leaks between identities.
package sender

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/observability"
)

// DefaultHistoryCap is the per-category history size.
const DefaultHistoryCap = 100

// Draft is a message being composed before it is sent.
type Draft struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
	Body       string   `json:"body"`
}

// Selection is a pair of corners picked for a new region.
type Selection struct {
	Primary   *domain.Point `json:"primary,omitempty"`
	Secondary *domain.Point `json:"secondary,omitempty"`
}

// Complete reports whether both corners are set in the same world.
func (s Selection) Complete() bool {
	return s.Primary != nil && s.Secondary != nil && s.Primary.World == s.Secondary.World
}

// ReplyTarget is whom a reply is addressed to. UUID is nil for the console.
type ReplyTarget struct {
	Name string    `json:"name"`
	UUID uuid.UUID `json:"uuid"`
}

// Entry is the ephemeral state of one sender. It is mutated on the mutation
// context only.
type Entry struct {
	Name string
	UUID uuid.UUID

	LastLogin       time.Time
	LastSound       time.Time
	JoinLocation    *domain.Point
	Moved           bool
	LastSign        []string
	Code            string
	CodeSolved      bool
	Selection       Selection
	PendingDraft    *Draft
	PendingReply    *Draft
	LoadingRemote   bool
	ReplyTarget     *ReplyTarget
	historyCapacity int
	history         map[Category]*ring
	now             func() time.Time
}

// Record appends text to the history of category. channel may be empty.
func (e *Entry) Record(category Category, text, channel string) {
	r := e.history[category]
	if r == nil {
		r = &ring{cap: e.historyCapacity}
		e.history[category] = r
	}
	r.add(Record{At: e.now(), Text: text, Channel: channel})
}

// Query returns at most limit records of category (all when limit <= 0),
// filtered by channel and by time when given, oldest first.
func (e *Entry) Query(category Category, channel string, limit int, since *time.Time) []Record {
	r := e.history[category]
	if r == nil {
		return []Record{}
	}
	return r.query(channel, limit, since)
}

// GenerateCode replaces the verification code with four random digits
// separated by spaces. The solved flag is left alone.
func (e *Entry) GenerateCode() string {
	digits := make([]string, 4)
	for i := range digits {
		digits[i] = strconv.Itoa(rand.IntN(10))
	}
	e.Code = strings.Join(digits, " ")
	return e.Code
}

// MarkMoved records a position and sets Moved once it differs from the
// join location by more than threshold.
func (e *Entry) MarkMoved(at domain.Point, threshold float64) bool {
	if e.JoinLocation == nil {
		p := at
		e.JoinLocation = &p
		return false
	}
	if d := e.JoinLocation.Distance(at); d < 0 || d > threshold {
		e.Moved = true
	}
	return e.Moved
}

// Cache is the sender registry.
type Cache struct {
	historyCap int
	now        func() time.Time

	mu     sync.Mutex
	byID   map[uuid.UUID]*Entry
	byName map[string]*Entry
}

// New returns an empty cache. historyCap <= 0 selects DefaultHistoryCap.
func New(historyCap int, now func() time.Time) *Cache {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		historyCap: historyCap,
		now:        now,
		byID:       make(map[uuid.UUID]*Entry),
		byName:     make(map[string]*Entry),
	}
}

// From returns the entry registered under name, creating an identity-less
// one when absent.
func (c *Cache) From(name string) *Entry {
	k := domain.Fold(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byName[k]; ok {
		return e
	}
	e := c.newEntryLocked(name, uuid.Nil)
	c.byName[k] = e
	c.publishLocked()
	return e
}

// FromIdentity returns the entry of ident, creating it when absent. An
// identity-less entry already holding the name is promoted; an entry bound
// to another id loses the name to a fresh one.
func (c *Cache) FromIdentity(ident domain.Identity) *Entry {
	if ident.UUID == uuid.Nil {
		return c.From(ident.Name)
	}
	k := domain.Fold(ident.Name)
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.byID[ident.UUID]; ok {
		if e.Name != ident.Name {
			if c.byName[domain.Fold(e.Name)] == e {
				delete(c.byName, domain.Fold(e.Name))
			}
			e.Name = ident.Name
		}
		c.byName[k] = e
		return e
	}
	if e, ok := c.byName[k]; ok && e.UUID == uuid.Nil {
		e.UUID = ident.UUID
		e.Name = ident.Name
		c.byID[ident.UUID] = e
		return e
	}
	e := c.newEntryLocked(ident.Name, ident.UUID)
	c.byID[ident.UUID] = e
	c.byName[k] = e
	c.publishLocked()
	return e
}

// Get returns the entry currently holding name.
func (c *Cache) Get(name string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byName[domain.Fold(name)]
	return e, ok
}

// GetID returns the entry of id.
func (c *Cache) GetID(id uuid.UUID) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byID[id]
	return e, ok
}

// Len returns the number of names indexed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byName)
}

func (c *Cache) newEntryLocked(name string, id uuid.UUID) *Entry {
	return &Entry{
		Name:            name,
		UUID:            id,
		historyCapacity: c.historyCap,
		history:         make(map[Category]*ring),
		now:             c.now,
	}
}

func (c *Cache) publishLocked() {
	observability.CacheEntries.WithLabelValues("sender").Set(float64(len(c.byName)))
}
