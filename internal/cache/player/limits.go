package player

import (
	"sort"

	"github.com/tbourn/chatsync/internal/domain"
)

// ChannelAccess is the live permission capability consulted when channel
// memberships are reconciled.
type ChannelAccess interface {
	// CanJoin reports whether the identity may hold channel in mode.
	CanJoin(channel string, mode domain.ChannelMode) bool
	// MaxReadChannels returns the read-mode cap, or a negative value to
	// use the cache default.
	MaxReadChannels() int
}

// CheckLimits removes memberships the identity is no longer allowed to
// hold, keeps at most one write-mode channel (demoting or dropping the
// others) and trims read-mode channels beyond the cap. Any change is
// written through. Safe to call on every reconnect.
func (e *Entry) CheckLimits(access ChannelAccess) (bool, error) {
	if !e.cache.normalize(e, access) {
		return false, nil
	}
	return true, e.Save()
}

// normalize applies the membership rules in channel-name order and reports
// whether anything changed. A nil access allows every membership.
func (c *Cache) normalize(e *Entry, access ChannelAccess) bool {
	limit := c.readLimit
	if access != nil {
		if n := access.MaxReadChannels(); n >= 0 {
			limit = n
		}
	}
	can := func(ch string, m domain.ChannelMode) bool {
		return access == nil || access.CanJoin(ch, m)
	}

	names := make([]string, 0, len(e.channels))
	for ch := range e.channels {
		names = append(names, ch)
	}
	sort.Strings(names)

	changed := false
	writer := ""
	reads := 0
	for _, ch := range names {
		mode := e.channels[ch]
		if !mode.Valid() {
			mode = domain.ModeRead
			changed = true
		}
		if mode == domain.ModeWrite {
			switch {
			case writer == "" && can(ch, domain.ModeWrite):
				writer = ch
				e.channels[ch] = mode
				continue
			case can(ch, domain.ModeRead):
				mode = domain.ModeRead
				changed = true
			default:
				delete(e.channels, ch)
				changed = true
				continue
			}
		}
		if !can(ch, domain.ModeRead) || reads >= limit {
			delete(e.channels, ch)
			changed = true
			continue
		}
		e.channels[ch] = mode
		reads++
	}
	return changed
}
