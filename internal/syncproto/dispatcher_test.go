package syncproto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDispatch_DedupWindow(t *testing.T) {
	for _, tc := range []struct {
		name string
		gap  time.Duration
		want int
	}{
		{"50ms apart", 50 * time.Millisecond, 1},
		{"150ms apart", 150 * time.Millisecond, 2},
	} {
		t.Run(tc.name, func(t *testing.T) {
			clk := &fakeClock{t: time.Unix(1700000000, 0)}
			d := NewDispatcher(NewDeduper(100*time.Millisecond, clk.Now))
			applied := 0
			d.Handle(TypeReplyUpdate, func(context.Context, Packet) error { applied++; return nil })

			p, _ := NewPacket(TypeReplyUpdate, "lobby", uuid.Nil, ReplyUpdate{Target: uuid.New()})
			if _, err := d.Dispatch(context.Background(), p); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			clk.Advance(tc.gap)
			if _, err := d.Dispatch(context.Background(), p); err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if applied != tc.want {
				t.Fatalf("applied = %d, want %d", applied, tc.want)
			}
		})
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	d := NewDispatcher(nil)
	_, err := d.Dispatch(context.Background(), Packet{Type: "bogus", Server: "x"})
	if !errors.Is(err, ErrUnknownPacket) {
		t.Fatalf("want ErrUnknownPacket, got %v", err)
	}
	if d.Known("bogus") {
		t.Fatalf("bogus should be unknown")
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	d := NewDispatcher(nil)
	boom := errors.New("boom")
	d.Handle(TypeMailSync, func(context.Context, Packet) error { return boom })
	ok, err := d.Dispatch(context.Background(), Packet{Type: TypeMailSync})
	if ok || !errors.Is(err, boom) {
		t.Fatalf("Dispatch = %v, %v", ok, err)
	}
}

func TestSignature_DiffersBySender(t *testing.T) {
	a, _ := NewPacket(TypeMailSync, "lobby", uuid.New(), MailSync{})
	b := a
	b.Sender = uuid.New()
	if a.Signature() == b.Signature() {
		t.Fatalf("signatures should differ by sender")
	}
}
