// Package resolve is the resolution surface other subsystems depend on:
// From, Poll, PollAll and Save over the durable player cache.
//
// Poll and PollAll add caller plumbing on top of the cache: a per-audience
// "loading" guard kept in the sender cache, error and panic reporting to
// the audience, and a completion hook that always clears the guard.
package resolve

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/domain"
)

// Audience is whoever asked for a resolution and receives its failures.
type Audience interface {
	Name() string
	Tell(message string)
}

// Messages shown to an audience.
const (
	MsgBusy   = "Still loading a previous request, please wait."
	MsgFailed = "Something went wrong while handling that request."
)

// Service bridges callers to the player cache.
type Service struct {
	players *player.Cache
	senders *sender.Cache
	log     zerolog.Logger
}

// New returns a Service over the given caches.
func New(players *player.Cache, senders *sender.Cache) *Service {
	return &Service{
		players: players,
		senders: senders,
		log:     log.With().Str("component", "resolve").Logger(),
	}
}

// From returns the entry of ident, creating it when absent.
func (s *Service) From(ident domain.Identity) *player.Entry { return s.players.From(ident) }

// Save writes e through to the backing store.
func (s *Service) Save(e *player.Entry) error { return s.players.Save(e) }

// Poll resolves nameOrAlias and runs cb with the entry (nil when unknown)
// on the mutation context. It returns false without polling when the
// audience already has a resolution in flight. An error returned by cb, or
// a panic inside it, is reported to the audience.
func (s *Service) Poll(a Audience, nameOrAlias string, cb func(*player.Entry) error) bool {
	guard, ok := s.acquire(a)
	if !ok {
		return false
	}
	s.players.Poll(nameOrAlias, func(e *player.Entry) {
		s.finish(a, guard, func() error { return cb(e) })
	})
	return true
}

// PollAll runs cb with every known entry sorted by name, with the same
// guard and reporting as Poll.
func (s *Service) PollAll(a Audience, cb func([]*player.Entry) error) bool {
	guard, ok := s.acquire(a)
	if !ok {
		return false
	}
	s.players.PollAll(func(list []*player.Entry) {
		s.finish(a, guard, func() error { return cb(list) })
	})
	return true
}

func (s *Service) acquire(a Audience) (*sender.Entry, bool) {
	guard := s.senders.From(a.Name())
	if guard.LoadingRemote {
		a.Tell(MsgBusy)
		return nil, false
	}
	guard.LoadingRemote = true
	return guard, true
}

func (s *Service) finish(a Audience, guard *sender.Entry, run func() error) {
	defer func() { guard.LoadingRemote = false }()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("audience", a.Name()).Msg("resolution callback panicked")
			a.Tell(MsgFailed)
		}
	}()
	if err := run(); err != nil {
		s.log.Debug().Err(err).Str("audience", a.Name()).Msg("resolution callback failed")
		a.Tell(err.Error())
	}
}
