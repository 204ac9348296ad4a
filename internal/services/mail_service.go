// Package services – MailService
//
// This file implements the MailService. Mail lives in the node-wide server
// record; sending appends it there (persisted in the active store) and
// publishes a mail_sync packet so other nodes add it to their own copy.
// Recipients connected to this node are notified right away.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/syncproto"
)

const msgNewMail = "You have new mail from %s."

// SendMail is a mail to deliver. To holds names, aliases or ids.
type SendMail struct {
	To      []string
	Subject string
	Body    string
}

// MailService sends and reads mail.
type MailService struct {
	*Deps
}

// NewMailService returns a MailService over d.
func NewMailService(d *Deps) *MailService { return &MailService{Deps: d} }

// Send delivers req from actor. The console sends when actor is empty.
// Every recipient must resolve; duplicates are collapsed.
func (s *MailService) Send(ctx context.Context, actor string, req SendMail) (server.Mail, error) {
	tr := otel.Tracer("services/MailService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("mail.sender", actor),
			attribute.Int("mail.recipients", len(req.To)),
		),
	)
	defer span.End()

	if strings.TrimSpace(req.Body) == "" {
		return server.Mail{}, ErrEmptyValue
	}
	if len(req.To) == 0 {
		return server.Mail{}, ErrNoRecipients
	}

	from := domain.Identity{UUID: domain.ConsoleID, Name: syncproto.ConsoleName}
	if !isConsole(actor) {
		if err := s.Poll(ctx, actor, actor, func(e *player.Entry) error {
			from = e.Identity()
			return nil
		}); err != nil {
			return server.Mail{}, errors.Wrapf(err, "sender %q", actor)
		}
	}

	seen := make(map[uuid.UUID]struct{}, len(req.To))
	var to []domain.Identity
	for _, name := range req.To {
		var ident domain.Identity
		if err := s.Poll(ctx, actor, name, func(e *player.Entry) error {
			ident = e.Identity()
			return nil
		}); err != nil {
			return server.Mail{}, errors.Wrapf(err, "recipient %q", name)
		}
		if _, dup := seen[ident.UUID]; dup {
			continue
		}
		seen[ident.UUID] = struct{}{}
		to = append(to, ident)
	}

	m := &server.Mail{
		Sender:     from.UUID,
		SenderName: from.DisplayName(),
		Subject:    strings.TrimSpace(req.Subject),
		Body:       req.Body,
	}
	for _, r := range to {
		m.Recipients = append(m.Recipients, &server.Recipient{UUID: r.UUID})
	}

	var out server.Mail
	err := s.Call(ctx, func() error {
		if err := s.Server.AddMail(m); err != nil {
			return err
		}
		raw, err := m.Encode()
		if err != nil {
			return err
		}
		if err := s.Outbox.Send(syncproto.TypeMailSync, from.UUID, syncproto.MailSync{Mail: raw}); err != nil {
			return err
		}
		for _, r := range to {
			s.Presence.Tell(r.UUID, fmt.Sprintf(msgNewMail, m.SenderName))
		}
		out = copyMail(m)
		return nil
	})
	return out, err
}

// Inbox returns the mail addressed to key that it has not deleted, oldest
// first.
func (s *MailService) Inbox(ctx context.Context, actor, key string) ([]server.Mail, error) {
	tr := otel.Tracer("services/MailService")
	ctx, span := tr.Start(ctx, "Inbox", trace.WithAttributes(attribute.String("player.key", key)))
	defer span.End()

	var out []server.Mail
	err := s.Poll(ctx, actor, key, func(e *player.Entry) error {
		list := s.Server.Inbox(e.UUID())
		out = make([]server.Mail, 0, len(list))
		for _, m := range list {
			out = append(out, copyMail(m))
		}
		return nil
	})
	return out, err
}

// Read returns mail id and marks it read by reader. A reader of uuid.Nil
// (the console) reads without marking.
func (s *MailService) Read(ctx context.Context, id, reader uuid.UUID) (server.Mail, error) {
	tr := otel.Tracer("services/MailService")
	ctx, span := tr.Start(ctx, "Read", trace.WithAttributes(attribute.String("mail.id", id.String())))
	defer span.End()

	var out server.Mail
	err := s.Call(ctx, func() error {
		if reader != domain.ConsoleID {
			if err := s.Server.MarkRead(id, reader); err != nil {
				return mailErr(err)
			}
		}
		m, ok := s.Server.FindMail(id)
		if !ok {
			return ErrMailNotFound
		}
		out = copyMail(m)
		return nil
	})
	return out, err
}

// Delete hides mail id from reader's inbox.
func (s *MailService) Delete(ctx context.Context, id, reader uuid.UUID) error {
	tr := otel.Tracer("services/MailService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("mail.id", id.String())))
	defer span.End()

	return s.Call(ctx, func() error {
		return mailErr(s.Server.DeleteFor(id, reader))
	})
}

func mailErr(err error) error {
	if errors.Is(err, server.ErrMailNotFound) {
		return ErrMailNotFound
	}
	return err
}

// copyMail detaches a mail from the cache so it can leave the mutation
// context.
func copyMail(m *server.Mail) server.Mail {
	out := *m
	out.Recipients = make([]*server.Recipient, 0, len(m.Recipients))
	for _, r := range m.Recipients {
		rc := *r
		out.Recipients = append(out.Recipients, &rc)
	}
	return out
}
