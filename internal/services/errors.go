// Package services defines the node use-cases driven by the HTTP layer:
// sessions, player profiles, mail, reply targets, the server record and
// the network view. This file centralizes the service-level error values so
// that handlers can map them to HTTP results consistently.
package services

import "errors"

// Resolution errors.
var (
	// ErrPlayerNotFound indicates that no identity matches the given name,
	// alias or id, locally or in the shared store.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrBusy is returned when the acting audience already has a resolution
	// in flight.
	ErrBusy = errors.New("a previous request is still loading")

	// ErrCallbackFailed is returned when the work scheduled after a
	// resolution panicked.
	ErrCallbackFailed = errors.New("request handling failed")
)

// Validation errors.
var (
	// ErrInvalidIdentity is returned when an identity lacks an id or a name.
	ErrInvalidIdentity = errors.New("identity requires uuid and name")

	// ErrInvalidDuration is returned for a non-positive mute duration.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrEmptyValue is returned when a required text field is blank.
	ErrEmptyValue = errors.New("value is empty")

	// ErrNoRecipients is returned when mail is addressed to nobody.
	ErrNoRecipients = errors.New("mail has no recipients")

	// ErrIncompleteSelection is returned when a region is created before
	// both corners were selected in the same world.
	ErrIncompleteSelection = errors.New("region selection is incomplete")

	// ErrChannelDenied is returned when the session may not join a channel
	// in the requested mode.
	ErrChannelDenied = errors.New("channel not permitted")
)

// State errors.
var (
	// ErrNotOnline indicates that the identity has no session on this node.
	ErrNotOnline = errors.New("player is not online on this node")

	// ErrMailNotFound indicates an unknown mail id or a reader that is not
	// among its recipients.
	ErrMailNotFound = errors.New("mail not found")

	// ErrRegionNotFound indicates an unknown region name.
	ErrRegionNotFound = errors.New("region not found")

	// ErrRegionExists is returned when a region name is already taken.
	ErrRegionExists = errors.New("region already exists")
)
