package syncproto

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/observability"
)

// HandlerFunc applies one packet.
type HandlerFunc func(ctx context.Context, p Packet) error

// Dispatcher routes inbound packets to handlers by type after dropping
// duplicates. Handlers run on the caller's goroutine; nodes call Dispatch
// from the mutation context.
type Dispatcher struct {
	dedup *Deduper
	log   zerolog.Logger

	mu       sync.RWMutex
	handlers map[Type]HandlerFunc
}

// NewDispatcher returns a dispatcher with no handlers.
func NewDispatcher(dedup *Deduper) *Dispatcher {
	if dedup == nil {
		dedup = NewDeduper(0, nil)
	}
	return &Dispatcher{
		dedup:    dedup,
		log:      log.With().Str("component", "dispatcher").Logger(),
		handlers: make(map[Type]HandlerFunc),
	}
}

// Handle registers fn for t, replacing any previous handler.
func (d *Dispatcher) Handle(t Type, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = fn
}

// Known reports whether a handler is registered for t.
func (d *Dispatcher) Known(t Type) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[t]
	return ok
}

// Dispatch applies p and reports whether it was applied. A duplicate within
// the dedup window is dropped silently (false, nil). An unregistered type
// returns ErrUnknownPacket.
func (d *Dispatcher) Dispatch(ctx context.Context, p Packet) (bool, error) {
	d.mu.RLock()
	fn, ok := d.handlers[p.Type]
	d.mu.RUnlock()
	if !ok {
		observability.Packets.WithLabelValues("unknown", "unknown").Inc()
		d.log.Error().Str("type", string(p.Type)).Str("server", p.Server).Msg("unknown packet type")
		return false, errors.Wrapf(ErrUnknownPacket, "%q from %s", p.Type, p.Server)
	}
	if d.dedup.Duplicate(p.Signature()) {
		observability.Packets.WithLabelValues(string(p.Type), "duplicate").Inc()
		return false, nil
	}
	if err := fn(ctx, p); err != nil {
		observability.Packets.WithLabelValues(string(p.Type), "failed").Inc()
		return false, err
	}
	observability.Packets.WithLabelValues(string(p.Type), "applied").Inc()
	return true, nil
}
