// Package relay is the packet hub between nodes. It aggregates the roster
// each node reports, broadcasts the fleet-wide union as one players_sync
// per interval and forwards every other core packet to all peers except
// its origin.
package relay

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/observability"
	"github.com/tbourn/chatsync/internal/syncproto"
)

// Name is stamped as the server of packets the relay originates.
const Name = "relay"

// forwarded lists the packet types passed from one node to the others.
var forwarded = map[syncproto.Type]bool{
	syncproto.TypeDatabaseUpdate: true,
	syncproto.TypeReplyUpdate:    true,
	syncproto.TypeMailSync:       true,
}

// ParsePeers parses "name=url" entries into a name → url map.
func ParsePeers(entries []string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		name, url, ok := strings.Cut(e, "=")
		name, url = strings.TrimSpace(name), strings.TrimRight(strings.TrimSpace(url), "/")
		if !ok || name == "" || url == "" {
			return nil, errors.Errorf("relay: peer %q must be name=url", e)
		}
		if _, dup := out[name]; dup {
			return nil, errors.Errorf("relay: duplicate peer %q", name)
		}
		out[name] = url
	}
	return out, nil
}

// Options tunes a Relay.
type Options struct {
	Interval   time.Duration
	StaleAfter time.Duration
	Dedup      *syncproto.Deduper
	Now        func() time.Time
}

type roster struct {
	players []synced.Player
	at      time.Time
}

// Relay fans packets out to peers. Safe for concurrent use.
type Relay struct {
	peers map[string]syncproto.Publisher
	opts  Options
	dedup *syncproto.Deduper
	log   zerolog.Logger

	mu      sync.Mutex
	rosters map[string]roster
}

// New returns a relay publishing to peers, keyed by node name.
func New(peers map[string]syncproto.Publisher, opts Options) *Relay {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * opts.Interval
	}
	dedup := opts.Dedup
	if dedup == nil {
		dedup = syncproto.NewDeduper(0, opts.Now)
	}
	return &Relay{
		peers:   peers,
		opts:    opts,
		dedup:   dedup,
		log:     log.With().Str("component", "relay").Logger(),
		rosters: make(map[string]roster),
	}
}

// Accept takes one packet from a node. Reports update the origin's roster;
// forwardable packets go to every other peer; anything else is an
// ErrUnknownPacket. Duplicates within the dedup window are dropped.
func (r *Relay) Accept(ctx context.Context, p syncproto.Packet) error {
	switch {
	case p.Type == syncproto.TypePlayersReport:
		var rep syncproto.PlayersReport
		if err := p.Decode(&rep); err != nil {
			return err
		}
		r.mu.Lock()
		r.rosters[p.Server] = roster{players: rep.Players, at: r.opts.Now()}
		r.mu.Unlock()
		observability.Packets.WithLabelValues(string(p.Type), "applied").Inc()
		return nil
	case forwarded[p.Type]:
		if r.dedup.Duplicate(p.Signature()) {
			observability.Packets.WithLabelValues(string(p.Type), "duplicate").Inc()
			return nil
		}
		observability.Packets.WithLabelValues(string(p.Type), "applied").Inc()
		r.fanout(ctx, p, p.Server)
		return nil
	default:
		observability.Packets.WithLabelValues("unknown", "unknown").Inc()
		return errors.Wrapf(syncproto.ErrUnknownPacket, "%q from %s", p.Type, p.Server)
	}
}

// Snapshot returns the union of every fresh roster keyed by name. Stale
// rosters are forgotten. When a name appears on two nodes the most recent
// report wins.
func (r *Relay) Snapshot() syncproto.PlayersSync {
	now := r.opts.Now()
	r.mu.Lock()
	nodes := make([]string, 0, len(r.rosters))
	for node, ro := range r.rosters {
		if now.Sub(ro.at) > r.opts.StaleAfter {
			delete(r.rosters, node)
			r.log.Info().Str("node", node).Msg("node roster expired")
			continue
		}
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return r.rosters[nodes[i]].at.Before(r.rosters[nodes[j]].at) })
	out := syncproto.PlayersSync{Players: make(map[string]synced.Player)}
	for _, node := range nodes {
		for _, p := range r.rosters[node].players {
			p.Server = node
			out.Players[p.Name] = p
		}
	}
	r.mu.Unlock()
	observability.RelayNodes.Set(float64(len(nodes)))
	return out
}

// Nodes returns the names of nodes with a fresh roster, sorted.
func (r *Relay) Nodes() []string {
	now := r.opts.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rosters))
	for node, ro := range r.rosters {
		if now.Sub(ro.at) <= r.opts.StaleAfter {
			out = append(out, node)
		}
	}
	sort.Strings(out)
	return out
}

// Broadcast sends the current snapshot to every peer.
func (r *Relay) Broadcast(ctx context.Context) error {
	p, err := syncproto.NewPacket(syncproto.TypePlayersSync, Name, uuid.Nil, r.Snapshot())
	if err != nil {
		return err
	}
	r.fanout(ctx, p, "")
	return nil
}

// Run broadcasts every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := r.Broadcast(ctx); err != nil {
				r.log.Error().Err(err).Msg("broadcast")
			}
		}
	}
}

// fanout publishes p to every peer except skip. Peer failures are logged
// and counted; one slow peer does not hold the others back.
func (r *Relay) fanout(ctx context.Context, p syncproto.Packet, skip string) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for name, pub := range r.peers {
		if name == skip {
			continue
		}
		name, pub := name, pub
		g.Go(func() error {
			err := pub.Publish(ctx, p)
			observability.PacketsSent.WithLabelValues(string(p.Type), observability.Result(err)).Inc()
			if err != nil {
				r.log.Warn().Err(err).Str("peer", name).Str("type", string(p.Type)).Msg("forward failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}
