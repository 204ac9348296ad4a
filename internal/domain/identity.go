// Package domain defines the value types shared by every layer of a node:
// identities, sparse field documents, channel membership modes and the
// persistence records mapped with GORM.
package domain

import (
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
)

// ConsoleID is the sentinel identity for console-originated actions.
var ConsoleID = uuid.Nil

// Identity is the stable reference to an actor. Name is the canonical
// account name; Nick is an optional display alias that never replaces the
// canonical name for lookups by id.
type Identity struct {
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
	Nick string    `json:"nick,omitempty"`
}

// Valid reports whether the identity carries both a non-nil id and a name.
func (i Identity) Valid() bool {
	return i.UUID != uuid.Nil && strings.TrimSpace(i.Name) != ""
}

// DisplayName returns the alias when set, otherwise the canonical name.
func (i Identity) DisplayName() string {
	if i.Nick != "" {
		return i.Nick
	}
	return i.Name
}

// Matches reports whether s equals the canonical name or the alias,
// ignoring case.
func (i Identity) Matches(s string) bool {
	k := Fold(s)
	if k == "" {
		return false
	}
	return Fold(i.Name) == k || (i.Nick != "" && Fold(i.Nick) == k)
}

// Fold returns the case-folded, trimmed form of a name used as a lookup key.
func Fold(s string) string {
	// A Caser keeps state between calls and must not be shared.
	return cases.Fold().String(strings.TrimSpace(s))
}

// ChannelMode is the kind of membership an identity holds in a channel.
type ChannelMode string

const (
	// ModeWrite marks the single channel an identity speaks into.
	ModeWrite ChannelMode = "write"
	// ModeRead marks a channel an identity only listens to.
	ModeRead ChannelMode = "read"
)

// Valid reports whether m is a known mode.
func (m ChannelMode) Valid() bool { return m == ModeWrite || m == ModeRead }
