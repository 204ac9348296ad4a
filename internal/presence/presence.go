// Package presence tracks the identities connected to this node, their
// channel permissions and a bounded inbox of notifications delivered to
// them.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/domain"
)

// DefaultInboxCap bounds the notifications kept per session.
const DefaultInboxCap = 50

// Access is the channel permission set of a session. A nil Channels map
// allows every channel in every mode; "*" matches any channel. The mode
// stored is the highest allowed: write implies read.
type Access struct {
	Channels map[string]domain.ChannelMode `json:"channels,omitempty"`
	// MaxRead caps read-mode memberships; 0 uses the node default.
	MaxRead int `json:"max_read,omitempty"`
}

// CanJoin reports whether channel may be held in mode.
func (a Access) CanJoin(channel string, mode domain.ChannelMode) bool {
	if a.Channels == nil {
		return true
	}
	allowed, ok := a.Channels[domain.Fold(channel)]
	if !ok {
		allowed, ok = a.Channels["*"]
	}
	if !ok {
		return false
	}
	return allowed == domain.ModeWrite || mode == domain.ModeRead
}

// MaxReadChannels returns MaxRead, or -1 for the node default.
func (a Access) MaxReadChannels() int {
	if a.MaxRead <= 0 {
		return -1
	}
	return a.MaxRead
}

// Notice is one delivered notification.
type Notice struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Session is one connected identity.
type Session struct {
	Identity    domain.Identity `json:"identity"`
	Vanished    bool            `json:"vanished"`
	AFK         bool            `json:"afk"`
	IgnoringAll bool            `json:"ignoring_all"`
	Access      Access          `json:"access"`
	JoinedAt    time.Time       `json:"joined_at"`

	inbox []Notice
}

// Registry is the set of sessions on this node. Safe for concurrent use.
type Registry struct {
	inboxCap int
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry returns an empty registry. inboxCap <= 0 selects the default.
func NewRegistry(inboxCap int, now func() time.Time) *Registry {
	if inboxCap <= 0 {
		inboxCap = DefaultInboxCap
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		inboxCap: inboxCap,
		now:      now,
		log:      log.With().Str("component", "presence").Logger(),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Join registers (or refreshes) the session of s.Identity and returns a
// copy of it.
func (r *Registry) Join(s Session) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.sessions[s.Identity.UUID]; ok {
		s.inbox = prev.inbox
		s.JoinedAt = prev.JoinedAt
	} else {
		s.JoinedAt = r.now()
	}
	cp := s
	r.sessions[s.Identity.UUID] = &cp
	return s
}

// Quit removes the session and reports whether it existed.
func (r *Registry) Quit(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Rename refreshes the identity (name, alias) of a connected session and
// reports whether it was connected.
func (r *Registry) Rename(ident domain.Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[ident.UUID]
	if ok {
		s.Identity = ident
	}
	return ok
}

// Get returns a copy of the session of id.
func (r *Registry) Get(id uuid.UUID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Online reports whether id is connected here.
func (r *Registry) Online(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Sessions returns copies of every session sorted by name.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identity.Name < out[j].Identity.Name })
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Tell delivers text to the inbox of id. It reports false when id is not
// connected.
func (r *Registry) Tell(id uuid.UUID, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.inbox = append(s.inbox, Notice{At: r.now(), Text: text})
	if over := len(s.inbox) - r.inboxCap; over > 0 {
		s.inbox = append([]Notice(nil), s.inbox[over:]...)
	}
	r.log.Info().Str("to", s.Identity.Name).Str("text", text).Msg("notice")
	return true
}

// Inbox returns the notices of id, oldest first.
func (r *Registry) Inbox(id uuid.UUID) ([]Notice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return append([]Notice(nil), s.inbox...), true
}
