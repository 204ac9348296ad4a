// Package services – shared plumbing
//
// This file holds the collaborators every service works with and the glue
// that moves a request from an HTTP goroutine onto the mutation context:
// Call runs a function on the loop and waits for it, Poll and PollAll run a
// resolution through the resolve surface and wait for its callback.
//
// Every cache mutation happens inside those functions; services never touch
// cache entries from the request goroutine.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/loop"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/resolve"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// Deps bundles the node components the services operate on.
type Deps struct {
	Node     string
	Loop     *loop.Loop
	Store    *store.Store
	Resolve  *resolve.Service
	Players  *player.Cache
	Senders  *sender.Cache
	Server   *server.Cache
	Synced   *synced.Cache
	Presence *presence.Registry
	Outbox   *syncproto.Outbox
}

// Profile is the read model of one durable entry.
type Profile struct {
	Identity       domain.Identity               `json:"identity"`
	Online         bool                          `json:"online"`
	Server         string                        `json:"server,omitempty"`
	ChatColor      string                        `json:"chat_color,omitempty"`
	ChatDecoration string                        `json:"chat_decoration,omitempty"`
	Channels       map[string]domain.ChannelMode `json:"channels"`
	Tags           map[string]string             `json:"tags"`
	Warnings       map[string]int                `json:"warnings"`
	Ignored        []uuid.UUID                   `json:"ignored"`
	Muted          bool                          `json:"muted"`
	MutedUntil     *time.Time                    `json:"muted_until,omitempty"`
	LastModified   time.Time                     `json:"last_modified"`
}

// profile snapshots e. Must run on the mutation context.
func (d *Deps) profile(e *player.Entry) Profile {
	p := Profile{
		Identity:       e.Identity(),
		Online:         d.Presence.Online(e.UUID()),
		ChatColor:      e.ChatColor(),
		ChatDecoration: e.ChatDecoration(),
		Channels:       e.Channels(),
		Tags:           e.Tags(),
		Warnings:       e.Warnings(),
		Ignored:        e.Ignored(),
		Muted:          e.IsMuted(),
		MutedUntil:     e.MutedUntil(),
		LastModified:   e.LastModified(),
	}
	if p.Online {
		p.Server = d.Node
	} else if sp, ok := d.Synced.FromUUID(e.UUID()); ok {
		p.Server = sp.Server
	}
	return p
}

// audience is the acting party of an API request. Failures reported by the
// resolve surface end up in the debug log; the request itself receives the
// error through the waiting channel.
type audience struct {
	name string
	log  zerolog.Logger
}

func (a audience) Name() string { return a.name }

func (a audience) Tell(msg string) {
	a.log.Debug().Str("audience", a.name).Msg(msg)
}

func (d *Deps) audience(actor string) audience {
	if actor == "" {
		actor = syncproto.ConsoleName
	}
	return audience{name: actor, log: log.With().Str("component", "services").Logger()}
}

// Call runs fn on the mutation context and returns its error.
func (d *Deps) Call(ctx context.Context, fn func() error) error {
	var err error
	if cerr := d.Loop.Call(ctx, func() { err = fn() }); cerr != nil {
		return cerr
	}
	return err
}

// Poll resolves key on behalf of actor and runs fn with the entry on the
// mutation context. It returns ErrPlayerNotFound for an unknown key and
// ErrBusy when actor already waits for another resolution.
func (d *Deps) Poll(ctx context.Context, actor, key string, fn func(*player.Entry) error) error {
	done := make(chan error, 1)
	started := false
	err := d.Loop.Call(ctx, func() {
		started = d.Resolve.Poll(d.audience(actor), key, func(e *player.Entry) error {
			if e == nil {
				done <- ErrPlayerNotFound
				return ErrPlayerNotFound
			}
			return report(done, func() error { return fn(e) })
		})
	})
	return wait(ctx, err, started, done)
}

// PollAll runs fn with every known entry, sorted by name, on the mutation
// context.
func (d *Deps) PollAll(ctx context.Context, actor string, fn func([]*player.Entry) error) error {
	done := make(chan error, 1)
	started := false
	err := d.Loop.Call(ctx, func() {
		started = d.Resolve.PollAll(d.audience(actor), func(list []*player.Entry) error {
			return report(done, func() error { return fn(list) })
		})
	})
	return wait(ctx, err, started, done)
}

// report runs fn and sends its outcome on done exactly once, including when
// fn panics. The panic is re-raised for the resolve surface to report.
func report(done chan<- error, fn func() error) error {
	sent := false
	defer func() {
		if !sent {
			done <- ErrCallbackFailed
		}
	}()
	err := fn()
	done <- err
	sent = true
	return err
}

func wait(ctx context.Context, callErr error, started bool, done <-chan error) error {
	if callErr != nil {
		return callErr
	}
	if !started {
		return ErrBusy
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// update emits a database_update carrying the given keys of e, and tells a
// locally connected owner the rendered message. Other nodes render it on
// receipt. Must run on the mutation context.
func (d *Deps) update(e *player.Entry, by uuid.UUID, message string, keys ...string) error {
	ident := e.Identity()
	if message != "" && d.Presence.Online(ident.UUID) {
		d.Presence.Tell(ident.UUID, d.render(message, by))
	}
	return d.Outbox.Send(syncproto.TypeDatabaseUpdate, by, syncproto.DatabaseUpdate{
		Name:    ident.Name,
		UUID:    ident.UUID,
		Nick:    ident.Nick,
		Fields:  e.Fields().Only(keys...),
		Message: message,
	})
}

func (d *Deps) render(msg string, by uuid.UUID) string {
	who := syncproto.ConsoleName
	if by != domain.ConsoleID {
		if e, ok := d.Players.Cached(by); ok {
			who = e.Identity().DisplayName()
		} else {
			who = by.String()
		}
	}
	return strings.NewReplacer("{player}", who, "{server}", d.Node).Replace(msg)
}

func isConsole(actor string) bool {
	return actor == "" || domain.Fold(actor) == domain.Fold(syncproto.ConsoleName)
}

// actorID resolves the acting name to an id without touching storage.
// Unknown actors act as the console. Must run on the mutation context.
func (d *Deps) actorID(actor string) uuid.UUID {
	if isConsole(actor) {
		return domain.ConsoleID
	}
	if e, ok := d.Players.CachedName(actor); ok {
		return e.UUID()
	}
	if ident, ok := d.Store.Directory.Cached(actor); ok {
		return ident.UUID
	}
	return domain.ConsoleID
}
