package player

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/domain"
)

// Document keys of the sparse player document. Absent means default.
const (
	KeyChatColor         = "chat_color"
	KeyChatDecoration    = "chat_decoration"
	KeyLeftChannels      = "left_channels"
	KeyIgnored           = "ignored"
	KeyIgnoredParts      = "ignored_parts"
	KeyIgnoredBroadcasts = "ignored_broadcasts"
	KeyTags              = "tags"
	KeyWarningPoints     = "warning_points"
	KeyChannels          = "channels"
	KeyRuleData          = "rule_data"
	KeyMutedUntil        = "muted_until"
	KeySpying            = "spying"
	KeySpyingChannels    = "spying_channels"
	KeyAutoReply         = "auto_reply"
	KeyConversation      = "conversation"
)

// AllKeys lists every document key in a stable order.
var AllKeys = []string{
	KeyChatColor, KeyChatDecoration, KeyLeftChannels, KeyIgnored, KeyIgnoredParts,
	KeyIgnoredBroadcasts, KeyTags, KeyWarningPoints, KeyChannels, KeyRuleData,
	KeyMutedUntil, KeySpying, KeySpyingChannels, KeyAutoReply, KeyConversation,
}

// AutoReply is a pending automatic answer to private messages.
type AutoReply struct {
	Message string    `json:"message"`
	Expires time.Time `json:"expires"`
}

// Conversation is the target every chat line is redirected to while active.
type Conversation struct {
	Name string    `json:"name"`
	UUID uuid.UUID `json:"uuid"`
}

// Entry is the durable per-identity state held by a Cache. It is mutated on
// the mutation context only; every setter writes through via Save.
type Entry struct {
	cache    *Cache
	identity domain.Identity

	chatColor         string
	chatDecoration    string
	leftChannels      map[string]struct{}
	ignored           map[uuid.UUID]struct{}
	ignoredParts      map[string]struct{}
	ignoredBroadcasts map[string]map[string]struct{}
	tags              map[string]string
	warnings          map[string]int
	channels          map[string]domain.ChannelMode
	ruleData          map[string]json.RawMessage
	mutedUntil        *time.Time
	spying            map[string]struct{}
	spyingChannels    map[string]struct{}
	autoReply         *AutoReply
	conversation      *Conversation

	lastModified time.Time
	allowWrite   bool
}

func newEntry(c *Cache, ident domain.Identity) *Entry {
	e := &Entry{cache: c, identity: ident}
	e.reset()
	return e
}

func (e *Entry) reset() {
	e.chatColor, e.chatDecoration = "", ""
	e.leftChannels = map[string]struct{}{}
	e.ignored = map[uuid.UUID]struct{}{}
	e.ignoredParts = map[string]struct{}{}
	e.ignoredBroadcasts = map[string]map[string]struct{}{}
	e.tags = map[string]string{}
	e.warnings = map[string]int{}
	e.channels = map[string]domain.ChannelMode{}
	e.ruleData = map[string]json.RawMessage{}
	e.mutedUntil = nil
	e.spying = map[string]struct{}{}
	e.spyingChannels = map[string]struct{}{}
	e.autoReply = nil
	e.conversation = nil
	e.allowWrite = true
}

// Identity returns the identity this entry belongs to.
func (e *Entry) Identity() domain.Identity { return e.identity }

// UUID is shorthand for Identity().UUID.
func (e *Entry) UUID() uuid.UUID { return e.identity.UUID }

// Name is shorthand for Identity().Name.
func (e *Entry) Name() string { return e.identity.Name }

// LastModified returns the time of the last write-through.
func (e *Entry) LastModified() time.Time { return e.lastModified }

// Save writes the entry through to the backing store.
func (e *Entry) Save() error { return e.cache.Save(e) }

// AllowWrite reports whether write-through is enabled.
func (e *Entry) AllowWrite() bool { return e.allowWrite }

// SetAllowWrite toggles write-through. It is not persisted and resets to
// true whenever the entry is reloaded.
func (e *Entry) SetAllowWrite(v bool) { e.allowWrite = v }

// ChatColor returns the chat color preference, "" for default.
func (e *Entry) ChatColor() string { return e.chatColor }

// ChatDecoration returns the chat decoration preference, "" for default.
func (e *Entry) ChatDecoration() string { return e.chatDecoration }

// SetChatColor sets or (with "") clears the chat color and decoration.
func (e *Entry) SetChatColor(color, decoration string) error {
	e.chatColor, e.chatDecoration = color, decoration
	return e.Save()
}

// HasLeft reports whether the channel was left manually.
func (e *Entry) HasLeft(channel string) bool {
	_, ok := e.leftChannels[domain.Fold(channel)]
	return ok
}

// MarkLeft records (or forgets) that channel was left manually so it is
// not auto-joined again.
func (e *Entry) MarkLeft(channel string, left bool) error {
	toggle(e.leftChannels, domain.Fold(channel), left)
	return e.Save()
}

// IsIgnoring reports whether id is on the ignore list.
func (e *Entry) IsIgnoring(id uuid.UUID) bool {
	_, ok := e.ignored[id]
	return ok
}

// Ignored returns the ignore list sorted by id.
func (e *Entry) Ignored() []uuid.UUID { return sortedIDs(e.ignored) }

// SetIgnoring adds or removes id from the ignore list.
func (e *Entry) SetIgnoring(id uuid.UUID, ignore bool) error {
	if ignore {
		e.ignored[id] = struct{}{}
	} else {
		delete(e.ignored, id)
	}
	return e.Save()
}

// IsIgnoringPart reports whether a feature part was opted out of.
func (e *Entry) IsIgnoringPart(part string) bool {
	_, ok := e.ignoredParts[part]
	return ok
}

// SetIgnoringPart opts in or out of a feature part.
func (e *Entry) SetIgnoringPart(part string, ignore bool) error {
	toggle(e.ignoredParts, part, ignore)
	return e.Save()
}

// IsIgnoringBroadcast reports whether group is disabled for category.
func (e *Entry) IsIgnoringBroadcast(category, group string) bool {
	_, ok := e.ignoredBroadcasts[category][group]
	return ok
}

// SetIgnoringBroadcast disables or enables one broadcast group of a message
// category.
func (e *Entry) SetIgnoringBroadcast(category, group string, ignore bool) error {
	set := e.ignoredBroadcasts[category]
	if set == nil {
		set = map[string]struct{}{}
	}
	toggle(set, group, ignore)
	if len(set) == 0 {
		delete(e.ignoredBroadcasts, category)
	} else {
		e.ignoredBroadcasts[category] = set
	}
	return e.Save()
}

// Tag returns the value of a display tag, "" when unset.
func (e *Entry) Tag(kind string) string { return e.tags[kind] }

// Tags returns a copy of every display tag.
func (e *Entry) Tags() map[string]string {
	out := make(map[string]string, len(e.tags))
	for k, v := range e.tags {
		out[k] = v
	}
	return out
}

// SetTag sets a display tag; an empty value removes it.
func (e *Entry) SetTag(kind, value string) error {
	if value == "" {
		delete(e.tags, kind)
	} else {
		e.tags[kind] = value
	}
	return e.Save()
}

// Warnings returns a copy of every non-zero warning set.
func (e *Entry) Warnings() map[string]int {
	out := make(map[string]int, len(e.warnings))
	for k, v := range e.warnings {
		out[k] = v
	}
	return out
}

// WarningPoints returns the point total of a warning set.
func (e *Entry) WarningPoints(set string) int { return e.warnings[set] }

// AddWarningPoints adjusts a warning set by delta, never going below zero,
// and returns the new total.
func (e *Entry) AddWarningPoints(set string, delta int) (int, error) {
	n := e.warnings[set] + delta
	if n <= 0 {
		delete(e.warnings, set)
		n = 0
	} else {
		e.warnings[set] = n
	}
	return n, e.Save()
}

// Channels returns a copy of the channel memberships.
func (e *Entry) Channels() map[string]domain.ChannelMode {
	out := make(map[string]domain.ChannelMode, len(e.channels))
	for k, v := range e.channels {
		out[k] = v
	}
	return out
}

// ChannelMode returns the membership mode in channel, "" when not a member.
func (e *Entry) ChannelMode(channel string) domain.ChannelMode {
	return e.channels[domain.Fold(channel)]
}

// WriteChannel returns the channel spoken into, "" when none.
func (e *Entry) WriteChannel() string {
	for ch, m := range e.channels {
		if m == domain.ModeWrite {
			return ch
		}
	}
	return ""
}

// JoinChannel sets the membership mode in channel. Joining in write mode
// demotes the previous write channel to read.
func (e *Entry) JoinChannel(channel string, mode domain.ChannelMode) error {
	if !mode.Valid() {
		mode = domain.ModeRead
	}
	ch := domain.Fold(channel)
	if mode == domain.ModeWrite {
		for k, m := range e.channels {
			if m == domain.ModeWrite && k != ch {
				e.channels[k] = domain.ModeRead
			}
		}
	}
	e.channels[ch] = mode
	delete(e.leftChannels, ch)
	return e.Save()
}

// LeaveChannel drops the membership in channel.
func (e *Entry) LeaveChannel(channel string) error {
	delete(e.channels, domain.Fold(channel))
	return e.Save()
}

// RuleData decodes the rule-engine value stored under key into v.
func (e *Entry) RuleData(key string, v any) (bool, error) {
	raw, ok := e.ruleData[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// SetRuleData stores an opaque rule-engine value; nil removes it.
func (e *Entry) SetRuleData(key string, v any) error {
	if v == nil {
		delete(e.ruleData, key)
		return e.Save()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e.ruleData[key] = b
	return e.Save()
}

// IsMuted reports whether the mute expiry lies in the future.
func (e *Entry) IsMuted() bool {
	return e.mutedUntil != nil && e.cache.now().Before(*e.mutedUntil)
}

// MutedUntil returns the mute expiry, nil when never muted.
func (e *Entry) MutedUntil() *time.Time {
	if e.mutedUntil == nil {
		return nil
	}
	t := *e.mutedUntil
	return &t
}

// SetMuted mutes for d starting now; d <= 0 unmutes.
func (e *Entry) SetMuted(d time.Duration) error {
	if d <= 0 {
		e.mutedUntil = nil
	} else {
		t := e.cache.now().Add(d)
		e.mutedUntil = &t
	}
	return e.Save()
}

// IsSpying reports whether category is being spied on.
func (e *Entry) IsSpying(category string) bool {
	_, ok := e.spying[category]
	return ok
}

// SetSpying toggles spying on a message category.
func (e *Entry) SetSpying(category string, on bool) error {
	toggle(e.spying, category, on)
	return e.Save()
}

// IsSpyingChannel reports whether channel is being spied on.
func (e *Entry) IsSpyingChannel(channel string) bool {
	_, ok := e.spyingChannels[domain.Fold(channel)]
	return ok
}

// SetSpyingChannel toggles spying on a channel.
func (e *Entry) SetSpyingChannel(channel string, on bool) error {
	toggle(e.spyingChannels, domain.Fold(channel), on)
	return e.Save()
}

// AutoReply returns the pending auto-reply if it has not expired.
func (e *Entry) AutoReply() (AutoReply, bool) {
	if e.autoReply == nil || !e.cache.now().Before(e.autoReply.Expires) {
		return AutoReply{}, false
	}
	return *e.autoReply, true
}

// SetAutoReply installs an auto-reply valid for d; an empty message or a
// non-positive d clears it.
func (e *Entry) SetAutoReply(message string, d time.Duration) error {
	if message == "" || d <= 0 {
		e.autoReply = nil
	} else {
		e.autoReply = &AutoReply{Message: message, Expires: e.cache.now().Add(d)}
	}
	return e.Save()
}

// Conversation returns the active conversation target.
func (e *Entry) Conversation() (Conversation, bool) {
	if e.conversation == nil {
		return Conversation{}, false
	}
	return *e.conversation, true
}

// SetConversation starts a conversation with target; a zero target ends it.
func (e *Entry) SetConversation(target Conversation) error {
	if target.Name == "" {
		e.conversation = nil
	} else {
		e.conversation = &target
	}
	return e.Save()
}

// Fields serializes every non-default field.
func (e *Entry) Fields() domain.Fields {
	f := domain.Fields{}
	putString(f, KeyChatColor, e.chatColor)
	putString(f, KeyChatDecoration, e.chatDecoration)
	putSet(f, KeyLeftChannels, e.leftChannels)
	if len(e.ignored) > 0 {
		_ = f.Put(KeyIgnored, sortedIDs(e.ignored))
	}
	putSet(f, KeyIgnoredParts, e.ignoredParts)
	if len(e.ignoredBroadcasts) > 0 {
		m := make(map[string][]string, len(e.ignoredBroadcasts))
		for cat, groups := range e.ignoredBroadcasts {
			m[cat] = sortedKeys(groups)
		}
		_ = f.Put(KeyIgnoredBroadcasts, m)
	}
	if len(e.tags) > 0 {
		_ = f.Put(KeyTags, e.tags)
	}
	if len(e.warnings) > 0 {
		_ = f.Put(KeyWarningPoints, e.warnings)
	}
	if len(e.channels) > 0 {
		_ = f.Put(KeyChannels, e.channels)
	}
	if len(e.ruleData) > 0 {
		_ = f.Put(KeyRuleData, e.ruleData)
	}
	if e.mutedUntil != nil {
		_ = f.Put(KeyMutedUntil, e.mutedUntil.UTC())
	}
	putSet(f, KeySpying, e.spying)
	putSet(f, KeySpyingChannels, e.spyingChannels)
	if e.autoReply != nil {
		_ = f.Put(KeyAutoReply, e.autoReply)
	}
	if e.conversation != nil {
		_ = f.Put(KeyConversation, e.conversation)
	}
	return f
}

// apply loads every known key present in f. A null value resets the field
// to its default; unknown keys are ignored.
func (e *Entry) apply(f domain.Fields) error {
	for _, k := range f.Keys() {
		null := f.IsNull(k)
		var err error
		switch k {
		case KeyChatColor:
			e.chatColor = ""
			_, err = f.Decode(k, &e.chatColor)
		case KeyChatDecoration:
			e.chatDecoration = ""
			_, err = f.Decode(k, &e.chatDecoration)
		case KeyLeftChannels:
			e.leftChannels, err = decodeSet(f, k)
		case KeyIgnored:
			var ids []uuid.UUID
			e.ignored = map[uuid.UUID]struct{}{}
			if _, err = f.Decode(k, &ids); err == nil {
				for _, id := range ids {
					e.ignored[id] = struct{}{}
				}
			}
		case KeyIgnoredParts:
			e.ignoredParts, err = decodeSet(f, k)
		case KeyIgnoredBroadcasts:
			var m map[string][]string
			e.ignoredBroadcasts = map[string]map[string]struct{}{}
			if _, err = f.Decode(k, &m); err == nil {
				for cat, groups := range m {
					if len(groups) > 0 {
						e.ignoredBroadcasts[cat] = toSet(groups)
					}
				}
			}
		case KeyTags:
			e.tags = map[string]string{}
			_, err = f.Decode(k, &e.tags)
		case KeyWarningPoints:
			e.warnings = map[string]int{}
			_, err = f.Decode(k, &e.warnings)
		case KeyChannels:
			e.channels = map[string]domain.ChannelMode{}
			_, err = f.Decode(k, &e.channels)
		case KeyRuleData:
			e.ruleData = map[string]json.RawMessage{}
			_, err = f.Decode(k, &e.ruleData)
		case KeyMutedUntil:
			e.mutedUntil = nil
			if !null {
				var t time.Time
				if _, err = f.Decode(k, &t); err == nil {
					e.mutedUntil = &t
				}
			}
		case KeySpying:
			e.spying, err = decodeSet(f, k)
		case KeySpyingChannels:
			e.spyingChannels, err = decodeSet(f, k)
		case KeyAutoReply:
			e.autoReply = nil
			if !null {
				var a AutoReply
				if _, err = f.Decode(k, &a); err == nil {
					e.autoReply = &a
				}
			}
		case KeyConversation:
			e.conversation = nil
			if !null {
				var c Conversation
				if _, err = f.Decode(k, &c); err == nil {
					e.conversation = &c
				}
			}
		}
		if err != nil {
			return err
		}
	}
	// Decoding "null" into a map leaves it nil.
	if e.tags == nil {
		e.tags = map[string]string{}
	}
	if e.warnings == nil {
		e.warnings = map[string]int{}
	}
	if e.channels == nil {
		e.channels = map[string]domain.ChannelMode{}
	}
	if e.ruleData == nil {
		e.ruleData = map[string]json.RawMessage{}
	}
	return nil
}

func toggle(set map[string]struct{}, k string, on bool) {
	if on {
		set[k] = struct{}{}
	} else {
		delete(set, k)
	}
}

func toSet(items []string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[s] = struct{}{}
	}
	return out
}

func decodeSet(f domain.Fields, k string) (map[string]struct{}, error) {
	var items []string
	if _, err := f.Decode(k, &items); err != nil {
		return map[string]struct{}{}, err
	}
	return toSet(items), nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(set map[uuid.UUID]struct{}) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func putString(f domain.Fields, k, v string) {
	if v != "" {
		_ = f.Put(k, v)
	}
}

func putSet(f domain.Fields, k string, set map[string]struct{}) {
	if len(set) > 0 {
		_ = f.Put(k, sortedKeys(set))
	}
}
