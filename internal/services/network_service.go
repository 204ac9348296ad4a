// Package services – NetworkService
//
// This file implements the NetworkService, the read-only view of the
// network as this node sees it: the projection of remote identities last
// received from the relay, the local sessions and store statistics.
package services

import (
	"context"

	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/repo"
	"github.com/tbourn/chatsync/internal/store"
)

// Network is a snapshot of the network view.
type Network struct {
	Node    string             `json:"node"`
	Mode    store.Mode         `json:"mode"`
	Servers []string           `json:"servers"`
	Players []synced.Player    `json:"players"`
	Local   []presence.Session `json:"local"`
	Cached  int                `json:"cached"`
}

// StoreStats are the row counts of the local file and, in remote mode, of
// the shared database.
type StoreStats struct {
	Mode   store.Mode  `json:"mode"`
	Local  repo.Stats  `json:"local"`
	Remote *repo.Stats `json:"remote,omitempty"`
}

// NetworkService exposes the network view.
type NetworkService struct {
	*Deps
}

// NewNetworkService returns a NetworkService over d.
func NewNetworkService(d *Deps) *NetworkService { return &NetworkService{Deps: d} }

// Snapshot returns the current projection and local sessions.
func (s *NetworkService) Snapshot(ctx context.Context) (Network, error) {
	var out Network
	err := s.Call(ctx, func() error {
		out = Network{
			Node:    s.Node,
			Mode:    s.Store.Mode,
			Servers: s.Synced.Servers(),
			Players: s.Synced.All(),
			Local:   s.Presence.Sessions(),
			Cached:  s.Players.Len(),
		}
		return nil
	})
	return out, err
}

// Stats reads row counts from the stores.
func (s *NetworkService) Stats(ctx context.Context) (StoreStats, error) {
	local, remote, err := s.Store.Stats(ctx)
	if err != nil {
		return StoreStats{}, err
	}
	return StoreStats{Mode: s.Store.Mode, Local: local, Remote: remote}, nil
}
