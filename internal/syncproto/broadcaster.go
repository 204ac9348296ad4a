package syncproto

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/loop"
	"github.com/tbourn/chatsync/internal/presence"
)

// Broadcaster periodically reports the identities connected to this node.
type Broadcaster struct {
	Node     string
	Interval time.Duration
	Presence *presence.Registry
	Players  *player.Cache
	Outbox   *Outbox
	Loop     *loop.Loop
}

// Report builds this node's roster. It reads cache entries and must run on
// the mutation context.
func (b *Broadcaster) Report() PlayersReport {
	sessions := b.Presence.Sessions()
	rep := PlayersReport{Players: make([]synced.Player, 0, len(sessions))}
	for _, s := range sessions {
		p := synced.Player{
			Name:        s.Identity.Name,
			UUID:        s.Identity.UUID,
			Nick:        s.Identity.Nick,
			Server:      b.Node,
			Vanished:    s.Vanished,
			AFK:         s.AFK,
			IgnoringAll: s.IgnoringAll,
		}
		if e, ok := b.Players.Cached(s.Identity.UUID); ok {
			p.Ignored = e.Ignored()
			p.Channels = e.Channels()
		}
		rep.Players = append(rep.Players, p)
	}
	return rep
}

// Run sends a report every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	t := time.NewTicker(b.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			b.Tick(ctx)
		}
	}
}

// Tick builds one report on the mutation context and sends it.
func (b *Broadcaster) Tick(ctx context.Context) {
	var rep PlayersReport
	if err := b.Loop.Call(ctx, func() { rep = b.Report() }); err != nil {
		return
	}
	if err := b.Outbox.Send(TypePlayersReport, domain.ConsoleID, rep); err != nil {
		log.Warn().Err(err).Msg("roster report")
	}
}
