package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

func TestProfileService_Lookup(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	ident := f.join(t, "Steve")

	p, err := s.Lookup(context.Background(), "", "steve")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Identity.UUID != ident.UUID || !p.Online {
		t.Fatalf("profile = %+v", p)
	}
	if _, err := s.Lookup(context.Background(), "", "nobody"); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestProfileService_Lookup_BusyAudience(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	f.join(t, "Steve")
	ctx := context.Background()

	if err := f.deps.Call(ctx, func() error {
		f.deps.Senders.From(syncproto.ConsoleName).LoadingRemote = true
		return nil
	}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if _, err := NewProfileService(f.deps).Lookup(ctx, "", "Steve"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestProfileService_List_SortedByName(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	for _, n := range []string{"zed", "Alex", "bob"} {
		f.join(t, n)
	}
	list, err := NewProfileService(f.deps).List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].Identity.Name != "Alex" || list[1].Identity.Name != "bob" || list[2].Identity.Name != "zed" {
		t.Fatalf("order = %+v", list)
	}
}

func TestProfileService_MuteNotifiesAndPublishes(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	ident := f.join(t, "Steve")

	p, err := s.Mute(context.Background(), "", "Steve", time.Hour, "spam")
	if err != nil {
		t.Fatalf("Mute: %v", err)
	}
	if !p.Muted || p.MutedUntil == nil {
		t.Fatalf("profile = %+v", p)
	}

	notes, _ := f.deps.Presence.Inbox(ident.UUID)
	if len(notes) != 1 || notes[0].Text != "You have been muted by Console for 1h0m0s: spam" {
		t.Fatalf("inbox = %+v", notes)
	}

	f.lp.Wait()
	ups := f.pub.ofType(syncproto.TypeDatabaseUpdate)
	if len(ups) != 1 {
		t.Fatalf("updates = %d", len(ups))
	}
	u := decodeUpdate(t, ups[0])
	if keys := u.Fields.Keys(); len(keys) != 1 || keys[0] != player.KeyMutedUntil {
		t.Fatalf("keys = %v", keys)
	}
	if u.Message != "You have been muted by {player} for 1h0m0s: spam" || ups[0].Sender != domain.ConsoleID {
		t.Fatalf("update = %+v", u)
	}
}

func TestProfileService_MuteValidation(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	f.join(t, "Steve")

	if _, err := s.Mute(context.Background(), "", "Steve", 0, ""); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
	if _, err := s.Mute(context.Background(), "", "ghost", time.Minute, ""); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestProfileService_UnmuteSendsNull(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	ctx := context.Background()
	f.join(t, "Steve")

	if _, err := s.Mute(ctx, "", "Steve", time.Hour, ""); err != nil {
		t.Fatalf("Mute: %v", err)
	}
	p, err := s.Unmute(ctx, "", "Steve")
	if err != nil || p.Muted {
		t.Fatalf("Unmute = %+v, %v", p, err)
	}

	f.lp.Wait()
	var cleared bool
	for _, pk := range f.pub.ofType(syncproto.TypeDatabaseUpdate) {
		if u := decodeUpdate(t, pk); u.Fields.IsNull(player.KeyMutedUntil) {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("unmute should publish a null muted_until")
	}
}

func TestProfileService_IgnoreByName(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	ctx := context.Background()
	f.join(t, "Steve")
	alex := f.join(t, "Alex")

	p, err := s.Ignore(ctx, "", "Steve", "alex", true)
	if err != nil {
		t.Fatalf("Ignore: %v", err)
	}
	if len(p.Ignored) != 1 || p.Ignored[0] != alex.UUID {
		t.Fatalf("ignored = %v", p.Ignored)
	}
	p, err = s.Ignore(ctx, "", "Steve", "Alex", false)
	if err != nil || len(p.Ignored) != 0 {
		t.Fatalf("unignore = %v, %v", p.Ignored, err)
	}
}

func TestProfileService_TagsAndWarnings(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	ctx := context.Background()
	ident := f.join(t, "Steve")

	if _, err := s.SetTag(ctx, "", "Steve", " ", "x"); !errors.Is(err, ErrEmptyValue) {
		t.Fatalf("expected ErrEmptyValue, got %v", err)
	}
	p, err := s.SetTag(ctx, "", "Steve", "prefix", "[Mod]")
	if err != nil || p.Tags["prefix"] != "[Mod]" {
		t.Fatalf("SetTag = %v, %v", p.Tags, err)
	}

	if _, err := s.AddWarning(ctx, "", "Steve", "spam", 2); err != nil {
		t.Fatalf("AddWarning: %v", err)
	}
	p, err = s.AddWarning(ctx, "", "Steve", "spam", 3)
	if err != nil || p.Warnings["spam"] != 5 {
		t.Fatalf("warnings = %v, %v", p.Warnings, err)
	}
	p, _ = s.AddWarning(ctx, "", "Steve", "spam", -10)
	if _, ok := p.Warnings["spam"]; ok {
		t.Fatalf("zero total should be removed: %v", p.Warnings)
	}

	notes, _ := f.deps.Presence.Inbox(ident.UUID)
	if len(notes) != 3 {
		t.Fatalf("expected tag + two warning notices, got %+v", notes)
	}
}

func TestProfileService_JoinChannelRespectsAccess(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewProfileService(f.deps)
	ctx := context.Background()
	ident := f.join(t, "Steve")
	f.deps.Presence.Join(presenceWithChannels(ident, map[string]domain.ChannelMode{"help": domain.ModeRead}))

	if _, err := s.JoinChannel(ctx, "", "Steve", "help", domain.ModeWrite); !errors.Is(err, ErrChannelDenied) {
		t.Fatalf("expected ErrChannelDenied, got %v", err)
	}
	p, err := s.JoinChannel(ctx, "", "Steve", "Help", domain.ModeRead)
	if err != nil || p.Channels["help"] != domain.ModeRead {
		t.Fatalf("JoinChannel = %v, %v", p.Channels, err)
	}
	p, err = s.LeaveChannel(ctx, "", "Steve", "help")
	if err != nil || len(p.Channels) != 0 {
		t.Fatalf("LeaveChannel = %v, %v", p.Channels, err)
	}
}
