// Package node assembles one chat node: backing store, mutation loop,
// caches, the sync protocol endpoints and the application services. The
// binary and the HTTP tests build nodes through New so the wiring lives in
// one place.
package node

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/loop"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/resolve"
	"github.com/tbourn/chatsync/internal/services"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// Options configures a Node. Zero values select the package defaults of
// each component.
type Options struct {
	Name   string
	Mode   store.Mode
	Local  *gorm.DB
	Remote *gorm.DB

	ReadChannelLimit    int
	HistoryCap          int
	InactivityThreshold time.Duration
	MailRetention       time.Duration
	Areas               server.AreaResolver

	Workers   int
	QueueSize int
	Tick      time.Duration

	// Publisher carries outgoing packets to the relay. Nil keeps the node
	// standalone: its own roster reports are looped back as snapshots.
	Publisher    syncproto.Publisher
	SyncInterval time.Duration
	DedupWindow  time.Duration

	Now func() time.Time
}

// Node is one assembled node.
type Node struct {
	Name        string
	Loop        *loop.Loop
	Store       *store.Store
	Dispatcher  *syncproto.Dispatcher
	Broadcaster *syncproto.Broadcaster

	Sessions *services.SessionService
	Profiles *services.ProfileService
	Mail     *services.MailService
	Replies  *services.ReplyService
	Server   *services.ServerService
	Network  *services.NetworkService

	deps *services.Deps
	log  zerolog.Logger
}

// New builds a node. Nothing runs until Start and Run are called.
func New(opts Options) (*Node, error) {
	if opts.Name == "" {
		return nil, errors.New("node: name is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = 2 * time.Second
	}

	lg := log.With().Str("component", "node").Logger()
	st, err := store.New(opts.Mode, opts.Name, opts.Local, opts.Remote)
	if err != nil {
		return nil, err
	}
	lp := loop.New(opts.Workers, opts.QueueSize, loop.WithTick(opts.Tick), loop.WithLogger(lg))

	players := player.New(st, lp, player.Options{ReadLimit: opts.ReadChannelLimit, Now: opts.Now})
	senders := sender.New(opts.HistoryCap, opts.Now)
	srv := server.New(st, lp, server.Options{
		InactivityThreshold: opts.InactivityThreshold,
		MailRetention:       opts.MailRetention,
		Areas:               opts.Areas,
		Now:                 opts.Now,
	})
	projection := synced.New()
	sessions := presence.NewRegistry(0, opts.Now)

	n := &Node{
		Name:       opts.Name,
		Loop:       lp,
		Store:      st,
		Dispatcher: syncproto.NewDispatcher(syncproto.NewDeduper(opts.DedupWindow, opts.Now)),
		log:        lg,
	}

	(&syncproto.Node{
		Store:    st,
		Players:  players,
		Senders:  senders,
		Server:   srv,
		Synced:   projection,
		Presence: sessions,
		Log:      &lg,
	}).Register(n.Dispatcher)

	pub := opts.Publisher
	if pub == nil {
		pub = syncproto.Loopback{Deliver: n.deliverLater}
	}
	outbox := syncproto.NewOutbox(opts.Name, pub, lp)

	n.Broadcaster = &syncproto.Broadcaster{
		Node:     opts.Name,
		Interval: opts.SyncInterval,
		Presence: sessions,
		Players:  players,
		Outbox:   outbox,
		Loop:     lp,
	}

	n.deps = &services.Deps{
		Node:     opts.Name,
		Loop:     lp,
		Store:    st,
		Resolve:  resolve.New(players, senders),
		Players:  players,
		Senders:  senders,
		Server:   srv,
		Synced:   projection,
		Presence: sessions,
		Outbox:   outbox,
	}
	n.Sessions = services.NewSessionService(n.deps)
	n.Profiles = services.NewProfileService(n.deps)
	n.Mail = services.NewMailService(n.deps)
	n.Replies = services.NewReplyService(n.deps)
	n.Server = services.NewServerService(n.deps)
	n.Network = services.NewNetworkService(n.deps)
	return n, nil
}

// Start warms the identity directory and loads the server record. It must
// be called once, before Run.
func (n *Node) Start(ctx context.Context) error {
	if err := n.Store.Directory.Warm(ctx); err != nil {
		return err
	}
	if err := n.deps.Server.Load(ctx); err != nil {
		return errors.Wrap(err, "load server record")
	}
	n.log.Info().
		Str("mode", string(n.Store.Mode)).
		Int("identities", n.Store.Directory.Len()).
		Int("mail", len(n.deps.Server.Mail())).
		Msg("node started")
	return nil
}

// Run drives the loop and the roster broadcaster until ctx is done, then
// waits for in-flight workers.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.Loop.Run(ctx) })
	g.Go(func() error { return n.Broadcaster.Run(ctx) })
	err := g.Wait()
	n.Loop.Wait()
	return err
}

// Ingest applies one packet on the mutation context. It reports whether
// the packet was applied (false for duplicates).
func (n *Node) Ingest(ctx context.Context, p syncproto.Packet) (bool, error) {
	var (
		applied bool
		err     error
	)
	if cerr := n.Loop.Call(ctx, func() { applied, err = n.Dispatcher.Dispatch(ctx, p) }); cerr != nil {
		return false, cerr
	}
	return applied, err
}

// deliverLater queues a looped-back packet on the mutation context. It is
// called from outbox workers and must not wait for the loop.
func (n *Node) deliverLater(_ context.Context, p syncproto.Packet) error {
	n.Loop.Post(func() {
		if _, err := n.Dispatcher.Dispatch(context.Background(), p); err != nil {
			n.log.Error().Err(err).Str("type", string(p.Type)).Msg("loopback dispatch")
		}
	})
	return nil
}
