// Package services – ServerService
//
// This file implements the ServerService over the node-wide server record:
// the global mute, the one-time markers and named regions. Regions can be
// added directly or from the two corners a connected identity selected.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/domain"
)

// ServerStatus is the read model of the server record.
type ServerStatus struct {
	GlobalMute    bool `json:"global_mute"`
	Migrated      bool `json:"migrated"`
	TourCompleted bool `json:"tour_completed"`
	Regions       int  `json:"regions"`
	Mail          int  `json:"mail"`
}

// ServerService manages the server record.
type ServerService struct {
	*Deps
}

// NewServerService returns a ServerService over d.
func NewServerService(d *Deps) *ServerService { return &ServerService{Deps: d} }

// Status summarizes the server record.
func (s *ServerService) Status(ctx context.Context) (ServerStatus, error) {
	var out ServerStatus
	err := s.Call(ctx, func() error {
		out = ServerStatus{
			GlobalMute:    s.Server.IsMuted(),
			Migrated:      s.Server.Migrated(),
			TourCompleted: s.Server.TourCompleted(),
			Regions:       len(s.Server.Regions()),
			Mail:          len(s.Server.Mail()),
		}
		return nil
	})
	return out, err
}

// SetGlobalMute mutes every chat on this node for d; d <= 0 lifts it.
func (s *ServerService) SetGlobalMute(ctx context.Context, d time.Duration) error {
	tr := otel.Tracer("services/ServerService")
	ctx, span := tr.Start(ctx, "SetGlobalMute", trace.WithAttributes(attribute.String("duration", d.String())))
	defer span.End()

	return s.Call(ctx, func() error { return s.Server.SetGlobalMute(d) })
}

// MarkTourCompleted sets the first-run tour marker.
func (s *ServerService) MarkTourCompleted(ctx context.Context) error {
	return s.Call(ctx, s.Server.MarkTourCompleted)
}

// Regions returns every region, or only those containing at when non-nil.
func (s *ServerService) Regions(ctx context.Context, at *domain.Point) ([]server.Region, error) {
	var out []server.Region
	err := s.Call(ctx, func() error {
		if at != nil {
			out = s.Server.RegionsAt(*at)
		} else {
			out = s.Server.Regions()
		}
		return nil
	})
	return out, err
}

// AddRegion stores r.
func (s *ServerService) AddRegion(ctx context.Context, r server.Region) (server.Region, error) {
	tr := otel.Tracer("services/ServerService")
	ctx, span := tr.Start(ctx, "AddRegion", trace.WithAttributes(attribute.String("region.name", r.Name)))
	defer span.End()

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" || r.World == "" {
		return server.Region{}, ErrEmptyValue
	}
	r.Primary.World, r.Secondary.World = r.World, r.World
	err := s.Call(ctx, func() error { return regionErr(s.Server.AddRegion(r)) })
	return r, err
}

// RemoveRegion deletes the region named name.
func (s *ServerService) RemoveRegion(ctx context.Context, name string) error {
	tr := otel.Tracer("services/ServerService")
	ctx, span := tr.Start(ctx, "RemoveRegion", trace.WithAttributes(attribute.String("region.name", name)))
	defer span.End()

	return s.Call(ctx, func() error {
		ok, err := s.Server.RemoveRegion(name)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRegionNotFound
		}
		return nil
	})
}

// Select stores one corner of the region selection of a connected
// identity and returns the selection.
func (s *ServerService) Select(ctx context.Context, id uuid.UUID, primary bool, at domain.Point) (sender.Selection, error) {
	var out sender.Selection
	err := s.Call(ctx, func() error {
		sess, ok := s.Presence.Get(id)
		if !ok {
			return ErrNotOnline
		}
		se := s.Senders.FromIdentity(sess.Identity)
		p := at
		if primary {
			se.Selection.Primary = &p
		} else {
			se.Selection.Secondary = &p
		}
		out = se.Selection
		return nil
	})
	return out, err
}

// CreateRegion turns the complete selection of a connected identity into a
// region named name and clears the selection.
func (s *ServerService) CreateRegion(ctx context.Context, id uuid.UUID, name string) (server.Region, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return server.Region{}, ErrEmptyValue
	}
	var out server.Region
	err := s.Call(ctx, func() error {
		se, ok := s.Senders.GetID(id)
		if !ok || !s.Presence.Online(id) {
			return ErrNotOnline
		}
		if !se.Selection.Complete() {
			return ErrIncompleteSelection
		}
		r := server.Region{
			Name:      name,
			World:     se.Selection.Primary.World,
			Primary:   *se.Selection.Primary,
			Secondary: *se.Selection.Secondary,
		}
		if err := regionErr(s.Server.AddRegion(r)); err != nil {
			return err
		}
		se.Selection = sender.Selection{}
		out = r
		return nil
	})
	return out, err
}

func regionErr(err error) error {
	if err == server.ErrRegionExists {
		return ErrRegionExists
	}
	return err
}
