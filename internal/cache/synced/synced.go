// Package synced is the read-only projection of every identity online
// anywhere in the fleet. It is rebuilt wholesale from each full snapshot;
// names missing from the newest snapshot disappear.
package synced

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/observability"
)

// Player is one online identity as reported by its node.
type Player struct {
	Name        string                        `json:"name"`
	UUID        uuid.UUID                     `json:"uuid"`
	Nick        string                        `json:"nick,omitempty"`
	Server      string                        `json:"server"`
	Vanished    bool                          `json:"vanished,omitempty"`
	AFK         bool                          `json:"afk,omitempty"`
	IgnoringAll bool                          `json:"ignoring_all,omitempty"`
	Ignored     []uuid.UUID                   `json:"ignored,omitempty"`
	Channels    map[string]domain.ChannelMode `json:"channels,omitempty"`
}

// IsIgnoring reports whether the player ignores id, or everyone.
func (p Player) IsIgnoring(id uuid.UUID) bool {
	if p.IgnoringAll {
		return true
	}
	for _, x := range p.Ignored {
		if x == id {
			return true
		}
	}
	return false
}

// Cache holds the current snapshot. Every access takes the same mutex as
// Upload.
type Cache struct {
	mu      sync.Mutex
	players map[string]Player
}

// New returns an empty projection.
func New() *Cache { return &Cache{players: make(map[string]Player)} }

// Upload replaces the whole projection with snapshot, keyed by name.
func (c *Cache) Upload(snapshot map[string]Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.players = make(map[string]Player, len(snapshot))
	for name, p := range snapshot {
		if p.Name == "" {
			p.Name = name
		}
		c.players[name] = p
	}
	observability.CacheEntries.WithLabelValues("synced").Set(float64(len(c.players)))
}

// FromName looks a player up by exact name, then by alias ignoring case.
func (c *Cache) FromName(name string) (Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.players[name]; ok {
		return p, true
	}
	k := domain.Fold(name)
	if k == "" {
		return Player{}, false
	}
	for _, p := range c.players {
		if p.Nick != "" && domain.Fold(p.Nick) == k {
			return p, true
		}
	}
	return Player{}, false
}

// FromUUID looks a player up by stable id.
func (c *Cache) FromUUID(id uuid.UUID) (Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.players {
		if p.UUID == id {
			return p, true
		}
	}
	return Player{}, false
}

// HasServer reports whether any player is on node.
func (c *Cache) HasServer(node string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.players {
		if p.Server == node {
			return true
		}
	}
	return false
}

// Servers returns the distinct node names, sorted.
func (c *Cache) Servers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[string]struct{})
	for _, p := range c.players {
		seen[p.Server] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// All returns every player sorted by name.
func (c *Cache) All() []Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Player, 0, len(c.players))
	for _, p := range c.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of players in the projection.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.players)
}
