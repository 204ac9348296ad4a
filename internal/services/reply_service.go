// Package services – ReplyService
//
// This file implements the ReplyService, which records whom an identity
// answers with a bare reply. The target lives in the ephemeral sender
// cache of whichever node the identity is connected to, so a change is
// applied locally when the identity is here and always published as a
// reply_update for the other nodes.
package services

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// ReplyService manages reply targets.
type ReplyService struct {
	*Deps
}

// NewReplyService returns a ReplyService over d.
func NewReplyService(d *Deps) *ReplyService { return &ReplyService{Deps: d} }

// SetReply makes target reply to replied. replied may name the console.
func (s *ReplyService) SetReply(ctx context.Context, actor, target, replied string) (sender.ReplyTarget, error) {
	tr := otel.Tracer("services/ReplyService")
	ctx, span := tr.Start(ctx, "SetReply",
		trace.WithAttributes(
			attribute.String("reply.target", target),
			attribute.String("reply.to", replied),
		),
	)
	defer span.End()

	var who domain.Identity
	if err := s.Poll(ctx, actor, target, func(e *player.Entry) error {
		who = e.Identity()
		return nil
	}); err != nil {
		return sender.ReplyTarget{}, err
	}

	rt := sender.ReplyTarget{Name: syncproto.ConsoleName, UUID: domain.ConsoleID}
	if !isConsole(replied) {
		if err := s.Poll(ctx, actor, replied, func(e *player.Entry) error {
			rt = sender.ReplyTarget{Name: e.Identity().DisplayName(), UUID: e.UUID()}
			return nil
		}); err != nil {
			return sender.ReplyTarget{}, err
		}
	}

	err := s.Call(ctx, func() error {
		if s.Presence.Online(who.UUID) {
			cp := rt
			s.Senders.FromIdentity(who).ReplyTarget = &cp
		}
		return s.Outbox.Send(syncproto.TypeReplyUpdate, s.actorID(actor), syncproto.ReplyUpdate{
			Target:      who.UUID,
			RepliedName: rt.Name,
			RepliedUUID: rt.UUID,
		})
	})
	return rt, err
}

// Reply returns the reply target of a connected identity.
func (s *ReplyService) Reply(ctx context.Context, id uuid.UUID) (sender.ReplyTarget, bool, error) {
	var (
		out sender.ReplyTarget
		ok  bool
	)
	err := s.Call(ctx, func() error {
		if !s.Presence.Online(id) {
			return ErrNotOnline
		}
		if se, found := s.Senders.GetID(id); found && se.ReplyTarget != nil {
			out, ok = *se.ReplyTarget, true
		}
		return nil
	})
	return out, ok, err
}
