// Package services – SessionService
//
// This file implements the SessionService, which handles identities joining
// and leaving this node. A join makes sure the durable entry is loaded (from
// the shared store in remote mode), stamps the ephemeral sender state,
// registers the presence session and reconciles channel memberships against
// the session's permissions. It also exposes the per-sender interaction
// history and the verification code flow.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/presence"
)

// DefaultMoveThreshold is the distance after which a sender counts as moved
// away from its join location.
const DefaultMoveThreshold = 3.0

// JoinRequest describes a connecting identity.
type JoinRequest struct {
	Identity    domain.Identity
	Vanished    bool
	AFK         bool
	IgnoringAll bool
	Access      presence.Access
	Location    *domain.Point
}

// JoinResult is the registered session with the durable profile after
// limits reconciliation.
type JoinResult struct {
	Session presence.Session `json:"session"`
	Profile Profile          `json:"profile"`
	// Reconciled is true when channel memberships had to be trimmed.
	Reconciled bool `json:"reconciled"`
}

// SessionService manages sessions of this node.
type SessionService struct {
	*Deps

	// MoveThreshold overrides DefaultMoveThreshold when positive.
	MoveThreshold float64
}

// NewSessionService returns a SessionService over d.
func NewSessionService(d *Deps) *SessionService { return &SessionService{Deps: d} }

// Join registers req.Identity on this node.
//
// In remote mode the identity is first polled so its shared document is
// loaded before the entry is used; an identity unknown everywhere is simply
// created. Joining again refreshes the session flags and keeps its inbox.
func (s *SessionService) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Join",
		trace.WithAttributes(
			attribute.String("player.uuid", req.Identity.UUID.String()),
			attribute.String("player.name", req.Identity.Name),
		),
	)
	defer span.End()

	ident := req.Identity
	ident.Name = strings.TrimSpace(ident.Name)
	ident.Nick = strings.TrimSpace(ident.Nick)
	if !ident.Valid() {
		return JoinResult{}, ErrInvalidIdentity
	}

	if s.Store.IsRemote() {
		err := s.Poll(ctx, ident.Name, ident.UUID.String(), func(*player.Entry) error { return nil })
		if err != nil && err != ErrPlayerNotFound {
			return JoinResult{}, err
		}
	}

	var out JoinResult
	err := s.Call(ctx, func() error {
		e := s.Resolve.From(ident)
		if e.Identity() != ident {
			var err error
			if e, err = s.Players.Merge(ident, nil); err != nil {
				return err
			}
		}

		out.Session = s.Presence.Join(presence.Session{
			Identity:    ident,
			Vanished:    req.Vanished,
			AFK:         req.AFK,
			IgnoringAll: req.IgnoringAll,
			Access:      req.Access,
		})

		se := s.Senders.FromIdentity(ident)
		se.LastLogin = s.Players.Now()
		se.Moved = false
		se.JoinLocation = nil
		if req.Location != nil {
			p := *req.Location
			se.JoinLocation = &p
		}

		changed, err := e.CheckLimits(req.Access)
		if err != nil {
			return err
		}
		if changed {
			out.Reconciled = true
			if err := s.update(e, domain.ConsoleID, "", player.KeyChannels); err != nil {
				return err
			}
		}
		out.Profile = s.profile(e)
		return nil
	})
	return out, err
}

// Quit removes the session of id.
func (s *SessionService) Quit(ctx context.Context, id uuid.UUID) error {
	tr := otel.Tracer("services/SessionService")
	ctx, span := tr.Start(ctx, "Quit", trace.WithAttributes(attribute.String("player.uuid", id.String())))
	defer span.End()

	return s.Call(ctx, func() error {
		if !s.Presence.Quit(id) {
			return ErrNotOnline
		}
		return nil
	})
}

// Inbox returns the notifications delivered to a connected identity.
func (s *SessionService) Inbox(_ context.Context, id uuid.UUID) ([]presence.Notice, error) {
	notes, ok := s.Presence.Inbox(id)
	if !ok {
		return nil, ErrNotOnline
	}
	return notes, nil
}

// Sessions lists the sessions of this node sorted by name.
func (s *SessionService) Sessions(_ context.Context) []presence.Session {
	return s.Presence.Sessions()
}

// Move reports a new position of a connected identity and returns whether
// it has moved away from where it joined.
func (s *SessionService) Move(ctx context.Context, id uuid.UUID, at domain.Point) (bool, error) {
	threshold := s.MoveThreshold
	if threshold <= 0 {
		threshold = DefaultMoveThreshold
	}
	var moved bool
	err := s.Call(ctx, func() error {
		sess, ok := s.Presence.Get(id)
		if !ok {
			return ErrNotOnline
		}
		moved = s.Senders.FromIdentity(sess.Identity).MarkMoved(at, threshold)
		return nil
	})
	return moved, err
}

// Record appends an interaction of a connected identity to its history.
func (s *SessionService) Record(ctx context.Context, id uuid.UUID, category sender.Category, text, channel string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyValue
	}
	return s.Call(ctx, func() error {
		sess, ok := s.Presence.Get(id)
		if !ok {
			return ErrNotOnline
		}
		s.Senders.FromIdentity(sess.Identity).Record(category, text, channel)
		return nil
	})
}

// History returns up to limit records of category, optionally restricted
// to a channel and to records at or after since, oldest first.
func (s *SessionService) History(ctx context.Context, id uuid.UUID, category sender.Category, channel string, limit int, since *time.Time) ([]sender.Record, error) {
	var out []sender.Record
	err := s.Call(ctx, func() error {
		se, ok := s.Senders.GetID(id)
		if !ok {
			return ErrNotOnline
		}
		out = se.Query(category, channel, limit, since)
		return nil
	})
	return out, err
}

// IssueCode generates a fresh verification code for a connected identity.
// The solved flag is left as is; ResetCode clears it.
func (s *SessionService) IssueCode(ctx context.Context, id uuid.UUID) (string, error) {
	var code string
	err := s.Call(ctx, func() error {
		sess, ok := s.Presence.Get(id)
		if !ok {
			return ErrNotOnline
		}
		code = s.Senders.FromIdentity(sess.Identity).GenerateCode()
		return nil
	})
	return code, err
}

// ResetCode clears the solved flag of a connected identity.
func (s *SessionService) ResetCode(ctx context.Context, id uuid.UUID) error {
	return s.Call(ctx, func() error {
		se, ok := s.Senders.GetID(id)
		if !ok {
			return ErrNotOnline
		}
		se.CodeSolved = false
		return nil
	})
}

// SolveCode checks an answer against the issued code. Spaces are ignored.
func (s *SessionService) SolveCode(ctx context.Context, id uuid.UUID, answer string) (bool, error) {
	var solved bool
	err := s.Call(ctx, func() error {
		se, ok := s.Senders.GetID(id)
		if !ok || se.Code == "" {
			return ErrNotOnline
		}
		strip := strings.NewReplacer(" ", "")
		if strip.Replace(answer) == strip.Replace(se.Code) {
			se.CodeSolved = true
		}
		solved = se.CodeSolved
		return nil
	})
	return solved, err
}
