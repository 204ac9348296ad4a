package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

func TestMailService_SendDeliversAndSyncs(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewMailService(f.deps)
	ctx := context.Background()
	steve := f.join(t, "Steve")
	alex := f.join(t, "Alex")

	m, err := s.Send(ctx, "", SendMail{To: []string{"steve", "Alex", "STEVE"}, Subject: " hi ", Body: "welcome"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(m.Recipients) != 2 || m.Sender != domain.ConsoleID || m.SenderName != "Console" || m.Subject != "hi" {
		t.Fatalf("mail = %+v", m)
	}
	if m.ID == uuid.Nil || m.SentAt.IsZero() {
		t.Fatalf("mail id and time should be assigned: %+v", m)
	}

	for _, id := range []uuid.UUID{steve.UUID, alex.UUID} {
		notes, _ := f.deps.Presence.Inbox(id)
		if len(notes) != 1 || notes[0].Text != "You have new mail from Console." {
			t.Fatalf("notices of %s = %+v", id, notes)
		}
	}

	f.lp.Wait()
	syncs := f.pub.ofType(syncproto.TypeMailSync)
	if len(syncs) != 1 {
		t.Fatalf("mail_sync packets = %d", len(syncs))
	}
	var body syncproto.MailSync
	if err := syncs[0].Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, err := server.DecodeMail(body.Mail)
	if err != nil || got.ID != m.ID {
		t.Fatalf("synced mail = %+v, %v", got, err)
	}

	local, _, err := f.deps.Store.Stats(ctx)
	if err != nil || local.Mail != 1 {
		t.Fatalf("stored mail = %+v, %v", local, err)
	}
}

func TestMailService_SendValidation(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewMailService(f.deps)
	ctx := context.Background()
	f.join(t, "Steve")

	if _, err := s.Send(ctx, "", SendMail{To: []string{"Steve"}, Body: "  "}); !errors.Is(err, ErrEmptyValue) {
		t.Fatalf("expected ErrEmptyValue, got %v", err)
	}
	if _, err := s.Send(ctx, "", SendMail{Body: "x"}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
	if _, err := s.Send(ctx, "", SendMail{To: []string{"ghost"}, Body: "x"}); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("expected ErrPlayerNotFound, got %v", err)
	}
}

func TestMailService_SendFromPlayer(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewMailService(f.deps)
	alex := f.join(t, "Alex")
	f.join(t, "Steve")

	m, err := s.Send(context.Background(), "Alex", SendMail{To: []string{"Steve"}, Body: "yo"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.Sender != alex.UUID || m.SenderName != "Alex" {
		t.Fatalf("sender = %s %q", m.Sender, m.SenderName)
	}
}

func TestMailService_InboxReadDelete(t *testing.T) {
	f := newFixture(t, store.ModeLocal)
	s := NewMailService(f.deps)
	ctx := context.Background()
	steve := f.join(t, "Steve")

	m, err := s.Send(ctx, "", SendMail{To: []string{"Steve"}, Body: "one"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	inbox, err := s.Inbox(ctx, "", "Steve")
	if err != nil || len(inbox) != 1 {
		t.Fatalf("inbox = %+v, %v", inbox, err)
	}

	read, err := s.Read(ctx, m.ID, steve.UUID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r, ok := read.Recipient(steve.UUID); !ok || !r.Read || r.OpenedAt == nil {
		t.Fatalf("recipient = %+v", r)
	}
	if _, err := s.Read(ctx, uuid.New(), steve.UUID); !errors.Is(err, ErrMailNotFound) {
		t.Fatalf("expected ErrMailNotFound, got %v", err)
	}

	if err := s.Delete(ctx, m.ID, steve.UUID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	inbox, _ = s.Inbox(ctx, "", "Steve")
	if len(inbox) != 0 {
		t.Fatalf("deleted mail still listed: %+v", inbox)
	}
	if err := s.Delete(ctx, m.ID, uuid.New()); !errors.Is(err, ErrMailNotFound) {
		t.Fatalf("stranger delete: %v", err)
	}
}
