// Package services – ProfileService
//
// This file implements the ProfileService: lookups of durable player
// entries by name, alias or id, and the moderation and preference
// mutations an operator or another player can apply to them.
//
// Every mutation is written through by the entry itself and then published
// as a sparse database_update carrying only the touched keys, so other
// nodes either merge it (shared store) or just notify the owner.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/domain"
)

// Notification templates. "{player}" is the acting identity and "{server}"
// the node it acted on.
const (
	msgMuted      = "You have been muted by {player} for %s."
	msgMutedWhy   = "You have been muted by {player} for %s: %s"
	msgUnmuted    = "You have been unmuted by {player}."
	msgWarned     = "{player} gave you %d warning point(s) in %q (total %d)."
	msgTagged     = "{player} set your %s tag to %q."
	msgTagCleared = "{player} cleared your %s tag."
)

// ProfileService reads and mutates durable player entries.
type ProfileService struct {
	*Deps
}

// NewProfileService returns a ProfileService over d.
func NewProfileService(d *Deps) *ProfileService { return &ProfileService{Deps: d} }

func (s *ProfileService) span(ctx context.Context, name, key string) (context.Context, trace.Span) {
	tr := otel.Tracer("services/ProfileService")
	return tr.Start(ctx, name, trace.WithAttributes(attribute.String("player.key", key)))
}

// Lookup resolves key (uuid, name or alias) on behalf of actor.
func (s *ProfileService) Lookup(ctx context.Context, actor, key string) (Profile, error) {
	ctx, span := s.span(ctx, "Lookup", key)
	defer span.End()

	var out Profile
	err := s.Poll(ctx, actor, key, func(e *player.Entry) error {
		out = s.profile(e)
		return nil
	})
	return out, err
}

// List returns every known profile sorted by name.
func (s *ProfileService) List(ctx context.Context, actor string) ([]Profile, error) {
	tr := otel.Tracer("services/ProfileService")
	ctx, span := tr.Start(ctx, "List")
	defer span.End()

	var out []Profile
	err := s.PollAll(ctx, actor, func(list []*player.Entry) error {
		out = make([]Profile, 0, len(list))
		for _, e := range list {
			out = append(out, s.profile(e))
		}
		return nil
	})
	return out, err
}

// Mute mutes key for d. reason is optional and shown to the player.
func (s *ProfileService) Mute(ctx context.Context, actor, key string, d time.Duration, reason string) (Profile, error) {
	ctx, span := s.span(ctx, "Mute", key)
	defer span.End()

	if d <= 0 {
		return Profile{}, ErrInvalidDuration
	}
	msg := fmt.Sprintf(msgMuted, d)
	if r := strings.TrimSpace(reason); r != "" {
		msg = fmt.Sprintf(msgMutedWhy, d, r)
	}
	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		return msg, e.SetMuted(d)
	}, player.KeyMutedUntil)
}

// Unmute lifts the mute of key.
func (s *ProfileService) Unmute(ctx context.Context, actor, key string) (Profile, error) {
	ctx, span := s.span(ctx, "Unmute", key)
	defer span.End()

	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		if !e.IsMuted() {
			return "", e.SetMuted(0)
		}
		return msgUnmuted, e.SetMuted(0)
	}, player.KeyMutedUntil)
}

// Ignore makes key ignore (or stop ignoring) target.
func (s *ProfileService) Ignore(ctx context.Context, actor, key, target string, ignore bool) (Profile, error) {
	ctx, span := s.span(ctx, "Ignore", key)
	defer span.End()

	var ident domain.Identity
	if err := s.Poll(ctx, actor, target, func(e *player.Entry) error {
		ident = e.Identity()
		return nil
	}); err != nil {
		return Profile{}, err
	}
	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		return "", e.SetIgnoring(ident.UUID, ignore)
	}, player.KeyIgnored)
}

// SetTag sets the tag of kind; an empty value clears it.
func (s *ProfileService) SetTag(ctx context.Context, actor, key, kind, value string) (Profile, error) {
	ctx, span := s.span(ctx, "SetTag", key)
	defer span.End()

	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Profile{}, ErrEmptyValue
	}
	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		if value == "" {
			return fmt.Sprintf(msgTagCleared, kind), e.SetTag(kind, "")
		}
		return fmt.Sprintf(msgTagged, kind, value), e.SetTag(kind, value)
	}, player.KeyTags)
}

// AddWarning adds points (negative to forgive) to a warning set and returns
// the profile with the new total.
func (s *ProfileService) AddWarning(ctx context.Context, actor, key, set string, points int) (Profile, error) {
	ctx, span := s.span(ctx, "AddWarning", key)
	defer span.End()

	set = strings.TrimSpace(set)
	if set == "" {
		return Profile{}, ErrEmptyValue
	}
	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		total, err := e.AddWarningPoints(set, points)
		if err != nil || points <= 0 {
			return "", err
		}
		return fmt.Sprintf(msgWarned, points, set, total), nil
	}, player.KeyWarningPoints)
}

// SetChatColor stores the chat color and decoration of key.
func (s *ProfileService) SetChatColor(ctx context.Context, actor, key, color, decoration string) (Profile, error) {
	ctx, span := s.span(ctx, "SetChatColor", key)
	defer span.End()

	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		return "", e.SetChatColor(color, decoration)
	}, player.KeyChatColor, player.KeyChatDecoration)
}

// JoinChannel adds a channel membership. When the owner is connected here
// the session's permissions are checked first and limits are reconciled
// afterwards.
func (s *ProfileService) JoinChannel(ctx context.Context, actor, key, channel string, mode domain.ChannelMode) (Profile, error) {
	ctx, span := s.span(ctx, "JoinChannel", key)
	defer span.End()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return Profile{}, ErrEmptyValue
	}
	if !mode.Valid() {
		mode = domain.ModeRead
	}
	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		sess, online := s.Presence.Get(e.UUID())
		if online && !sess.Access.CanJoin(channel, mode) {
			return "", ErrChannelDenied
		}
		if err := e.JoinChannel(channel, mode); err != nil {
			return "", err
		}
		if online {
			_, err := e.CheckLimits(sess.Access)
			return "", err
		}
		return "", nil
	}, player.KeyChannels, player.KeyLeftChannels)
}

// LeaveChannel drops a channel membership and remembers it was left.
func (s *ProfileService) LeaveChannel(ctx context.Context, actor, key, channel string) (Profile, error) {
	ctx, span := s.span(ctx, "LeaveChannel", key)
	defer span.End()

	return s.mutate(ctx, actor, key, func(e *player.Entry) (string, error) {
		if err := e.LeaveChannel(channel); err != nil {
			return "", err
		}
		return "", e.MarkLeft(channel, true)
	}, player.KeyChannels, player.KeyLeftChannels)
}

// mutate resolves key, applies fn and publishes the listed keys together
// with the notification fn returns.
func (s *ProfileService) mutate(ctx context.Context, actor, key string, fn func(*player.Entry) (string, error), keys ...string) (Profile, error) {
	var out Profile
	err := s.Poll(ctx, actor, key, func(e *player.Entry) error {
		msg, err := fn(e)
		if err != nil {
			return err
		}
		if err := s.update(e, s.actorID(actor), msg, keys...); err != nil {
			return err
		}
		out = s.profile(e)
		return nil
	})
	return out, err
}
