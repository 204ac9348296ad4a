package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/loop"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/repo"
	"github.com/tbourn/chatsync/internal/resolve"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// capture is a Publisher that records every packet.
type capture struct {
	mu      sync.Mutex
	packets []syncproto.Packet
}

func (c *capture) Publish(_ context.Context, p syncproto.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packets = append(c.packets, p)
	return nil
}

func (c *capture) ofType(typ syncproto.Type) []syncproto.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []syncproto.Packet
	for _, p := range c.packets {
		if p.Type == typ {
			out = append(out, p)
		}
	}
	return out
}

type fixture struct {
	deps *Deps
	pub  *capture
	lp   *loop.Loop
}

func newFixture(t *testing.T, mode store.Mode) *fixture {
	t.Helper()
	var remote *gorm.DB
	if mode == store.ModeRemote {
		remote = newSvcDB(t)
	}
	st, err := store.New(mode, "lobby", newSvcDB(t), remote)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	lp := loop.New(4, 16)
	players := player.New(st, lp, player.Options{ReadLimit: 2})
	senders := sender.New(0, nil)
	srv := server.New(st, lp, server.Options{})
	if err := srv.Load(context.Background()); err != nil {
		t.Fatalf("server load: %v", err)
	}
	pub := &capture{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = lp.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		lp.Wait()
	})

	return &fixture{
		deps: &Deps{
			Node:     "lobby",
			Loop:     lp,
			Store:    st,
			Resolve:  resolve.New(players, senders),
			Players:  players,
			Senders:  senders,
			Server:   srv,
			Synced:   synced.New(),
			Presence: presence.NewRegistry(0, nil),
			Outbox:   syncproto.NewOutbox("lobby", pub, lp),
		},
		pub: pub,
		lp:  lp,
	}
}

func (f *fixture) join(t *testing.T, name string) domain.Identity {
	t.Helper()
	ident := domain.Identity{UUID: uuid.New(), Name: name}
	if _, err := NewSessionService(f.deps).Join(context.Background(), JoinRequest{Identity: ident}); err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return ident
}

func decodeUpdate(t *testing.T, p syncproto.Packet) syncproto.DatabaseUpdate {
	t.Helper()
	var u syncproto.DatabaseUpdate
	if err := p.Decode(&u); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	return u
}

func presenceWithChannels(ident domain.Identity, channels map[string]domain.ChannelMode) presence.Session {
	return presence.Session{Identity: ident, Access: presence.Access{Channels: channels}}
}
