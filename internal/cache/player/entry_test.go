package player

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/store"
)

type access struct {
	denied map[string]bool
	max    int
}

func (a access) CanJoin(ch string, _ domain.ChannelMode) bool { return !a.denied[ch] }
func (a access) MaxReadChannels() int                         { return a.max }

func TestFields_SparseRoundTrip(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	e := f.cache.From(ident("Steve"))
	if got := e.Fields(); len(got) != 0 {
		t.Fatalf("fresh entry should serialize empty, got %v", got.Keys())
	}

	other := uuid.New()
	_ = e.SetIgnoring(other, true)
	_ = e.SetIgnoringBroadcast("death", "global", true)
	_, _ = e.AddWarningPoints("spam", 3)
	_ = e.JoinChannel("Global", domain.ModeWrite)
	_ = e.SetRuleData("swears", 2)
	_ = e.SetAutoReply("brb", time.Minute)
	_ = e.SetConversation(Conversation{Name: "Alex", UUID: other})
	_ = e.SetSpyingChannel("staff", true)

	doc := e.Fields()
	fresh := newEntry(f.cache, e.Identity())
	if err := fresh.apply(doc); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !fresh.IsIgnoring(other) || !fresh.IsIgnoringBroadcast("death", "global") {
		t.Fatalf("ignore state lost")
	}
	if fresh.WarningPoints("spam") != 3 || fresh.ChannelMode("global") != domain.ModeWrite {
		t.Fatalf("points/channels lost")
	}
	var n int
	if ok, _ := fresh.RuleData("swears", &n); !ok || n != 2 {
		t.Fatalf("rule data lost")
	}
	if r, ok := fresh.AutoReply(); !ok || r.Message != "brb" {
		t.Fatalf("auto reply lost")
	}
	if c, ok := fresh.Conversation(); !ok || c.UUID != other {
		t.Fatalf("conversation lost")
	}
	if !fresh.IsSpyingChannel("STAFF") {
		t.Fatalf("spy channel lost")
	}
}

func TestWarningPoints_NeverNegative(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	e := f.cache.From(ident("Steve"))
	if n, _ := e.AddWarningPoints("spam", -5); n != 0 {
		t.Fatalf("points = %d", n)
	}
	if e.Fields().Has(KeyWarningPoints) {
		t.Fatalf("zero totals must not be serialized")
	}
}

func TestJoinChannel_DemotesPreviousWriter(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	e := f.cache.From(ident("Steve"))
	_ = e.JoinChannel("a", domain.ModeWrite)
	_ = e.JoinChannel("b", domain.ModeWrite)
	if e.ChannelMode("a") != domain.ModeRead || e.WriteChannel() != "b" {
		t.Fatalf("channels = %v", e.Channels())
	}
}

func TestAutoReply_Expires(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	e := f.cache.From(ident("Steve"))
	_ = e.SetAutoReply("away", time.Minute)
	f.clk.t = f.clk.t.Add(2 * time.Minute)
	if _, ok := e.AutoReply(); ok {
		t.Fatalf("auto reply should have expired")
	}
}

func TestCheckLimits_CollapsesSecondWriter(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	id := ident("Steve")
	e := f.cache.From(id)
	e.channels["a"] = domain.ModeWrite
	e.channels["b"] = domain.ModeWrite

	changed, err := e.CheckLimits(access{max: 1})
	if err != nil || !changed {
		t.Fatalf("CheckLimits = %v, %v", changed, err)
	}
	writers := 0
	for _, m := range e.Channels() {
		if m == domain.ModeWrite {
			writers++
		}
	}
	if writers != 1 {
		t.Fatalf("writers = %d, channels = %v", writers, e.Channels())
	}

	rec, err := f.st.Players.Get(context.Background(), id.UUID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var stored map[string]domain.ChannelMode
	_, _ = rec.Fields.Decode(KeyChannels, &stored)
	if stored["a"] != domain.ModeWrite || stored["b"] == domain.ModeWrite {
		t.Fatalf("reconciliation not persisted: %v", stored)
	}

	if changed, _ := e.CheckLimits(access{max: 1}); changed {
		t.Fatalf("second call should be a no-op")
	}
}

func TestCheckLimits_DropsDeniedAndExcessReads(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	e := f.cache.From(ident("Steve"))
	e.channels["a"] = domain.ModeRead
	e.channels["b"] = domain.ModeRead
	e.channels["c"] = domain.ModeRead
	e.channels["secret"] = domain.ModeWrite

	if _, err := e.CheckLimits(access{denied: map[string]bool{"secret": true}, max: 2}); err != nil {
		t.Fatalf("CheckLimits: %v", err)
	}
	got := e.Channels()
	if _, ok := got["secret"]; ok {
		t.Fatalf("denied channel kept: %v", got)
	}
	if len(got) != 2 || got["a"] != domain.ModeRead || got["b"] != domain.ModeRead {
		t.Fatalf("channels = %v", got)
	}
}
