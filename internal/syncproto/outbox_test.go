package syncproto

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/loop"
)

func TestHTTPPublisher_HeadersAndStatus(t *testing.T) {
	var got Packet
	var token, node string
	status := http.StatusAccepted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, node = r.Header.Get(HeaderToken), r.Header.Get(HeaderNode)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	pub := NewHTTPPublisher(srv.URL+RelayPath, "s3cret", "lobby")
	p, _ := NewPacket(TypeReplyUpdate, "lobby", domain.ConsoleID, ReplyUpdate{Target: uuid.New()})
	if err := pub.Publish(context.Background(), p); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if token != "s3cret" || node != "lobby" || got.Type != TypeReplyUpdate || got.Signature() != p.Signature() {
		t.Fatalf("token=%q node=%q packet=%+v", token, node, got)
	}

	status = http.StatusUnprocessableEntity
	if err := pub.Publish(context.Background(), p); err == nil {
		t.Fatalf("expected error on 422")
	}
}

func TestLoopback_ReportBecomesSnapshot(t *testing.T) {
	var delivered []Packet
	lb := Loopback{Deliver: func(_ context.Context, p Packet) error {
		delivered = append(delivered, p)
		return nil
	}}

	upd, _ := NewPacket(TypeDatabaseUpdate, "lobby", domain.ConsoleID, DatabaseUpdate{Name: "Steve", UUID: uuid.New()})
	if err := lb.Publish(context.Background(), upd); err != nil || len(delivered) != 0 {
		t.Fatalf("non-report packets have no peer: err=%v delivered=%d", err, len(delivered))
	}

	rep, _ := NewPacket(TypePlayersReport, "lobby", domain.ConsoleID, PlayersReport{
		Players: []synced.Player{{Name: "Steve", UUID: uuid.New(), Server: "lobby"}},
	})
	if err := lb.Publish(context.Background(), rep); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(delivered) != 1 || delivered[0].Type != TypePlayersSync {
		t.Fatalf("delivered = %+v", delivered)
	}
	var snap PlayersSync
	if err := delivered[0].Decode(&snap); err != nil || snap.Players["Steve"].Server != "lobby" {
		t.Fatalf("snapshot = %+v, %v", snap, err)
	}
}

type chanPublisher chan Packet

func (c chanPublisher) Publish(_ context.Context, p Packet) error {
	c <- p
	return nil
}

func TestOutbox_StampsNodeAndPublishesOnWorker(t *testing.T) {
	pub := make(chanPublisher, 1)
	lp := loop.New(1, 0)
	ob := NewOutbox("survival", pub, lp)

	sender := uuid.New()
	if err := ob.Send(TypeMailSync, sender, MailSync{Mail: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("send: %v", err)
	}
	lp.Wait()

	p := <-pub
	if p.Server != "survival" || p.Sender != sender || p.Type != TypeMailSync || ob.Node() != "survival" {
		t.Fatalf("packet = %+v", p)
	}
	if err := ob.Send(TypeMailSync, sender, func() {}); err == nil {
		t.Fatalf("expected encode error for unmarshalable payload")
	}
}
