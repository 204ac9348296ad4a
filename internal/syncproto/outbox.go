package syncproto

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/loop"
	"github.com/tbourn/chatsync/internal/observability"
)

// Endpoints of the HTTP transport.
const (
	// RelayPath is where nodes post packets to the relay.
	RelayPath = "/relay/packets"
	// IngestPath is where the relay posts packets to a node.
	IngestPath = "/internal/packets"
)

// Publisher delivers an encoded packet to the bus.
type Publisher interface {
	Publish(ctx context.Context, p Packet) error
}

// HTTPPublisher posts packets to one HTTP endpoint (the relay, or a node
// when used by the relay).
type HTTPPublisher struct {
	URL    string
	Token  string
	Node   string
	Client *http.Client
}

// NewHTTPPublisher returns a publisher posting to url.
func NewHTTPPublisher(url, token, node string) *HTTPPublisher {
	return &HTTPPublisher{
		URL:    url,
		Token:  token,
		Node:   node,
		Client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Publish posts p as JSON; any non-2xx answer is an error.
func (h *HTTPPublisher) Publish(ctx context.Context, p Packet) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(err, "encode packet")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		req.Header.Set(HeaderToken, h.Token)
	}
	if h.Node != "" {
		req.Header.Set(HeaderNode, h.Node)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post %s", p.Type)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode/100 != 2 {
		return errors.Errorf("relay answered %d for %s", resp.StatusCode, p.Type)
	}
	return nil
}

// Loopback is the publisher of a node running without a relay: its own
// roster report becomes the fleet snapshot and every other packet has no
// peer to reach.
type Loopback struct {
	Deliver func(ctx context.Context, p Packet) error
}

// Publish turns a roster report into a players_sync delivered locally.
func (l Loopback) Publish(ctx context.Context, p Packet) error {
	if p.Type != TypePlayersReport {
		return nil
	}
	var rep PlayersReport
	if err := p.Decode(&rep); err != nil {
		return err
	}
	snap, err := NewPacket(TypePlayersSync, p.Server, p.Sender, rep.Snapshot())
	if err != nil {
		return err
	}
	return l.Deliver(ctx, snap)
}

// Outbox encodes packets stamped with this node's name and publishes them
// on a loop worker.
type Outbox struct {
	node    string
	pub     Publisher
	lp      *loop.Loop
	timeout time.Duration
	log     zerolog.Logger
}

// NewOutbox returns an outbox publishing through pub.
func NewOutbox(node string, pub Publisher, lp *loop.Loop) *Outbox {
	return &Outbox{
		node:    node,
		pub:     pub,
		lp:      lp,
		timeout: 5 * time.Second,
		log:     log.With().Str("component", "outbox").Logger(),
	}
}

// Node returns the name stamped on outgoing packets.
func (o *Outbox) Node() string { return o.node }

// Send encodes and queues a packet. Delivery is best effort; failures are
// logged and counted.
func (o *Outbox) Send(t Type, sender uuid.UUID, payload any) error {
	p, err := NewPacket(t, o.node, sender, payload)
	if err != nil {
		return err
	}
	o.lp.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()
		err := o.pub.Publish(ctx, p)
		observability.PacketsSent.WithLabelValues(string(t), observability.Result(err)).Inc()
		if err != nil {
			o.log.Warn().Err(err).Str("type", string(t)).Msg("publish failed")
		}
	})
	return nil
}
