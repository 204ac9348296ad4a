// Package syncproto is the inter-node sync protocol: the packet envelope,
// typed payloads, a short-window deduplicator, the dispatcher applying
// inbound packets to the caches, and the outbound side (outbox, publishers
// and the periodic roster broadcaster).
//
// Every packet carries its type, the originating node and the originating
// identity (uuid.Nil for the console). Dispatch is a lookup by type; an
// unknown type is a protocol mismatch and is returned as ErrUnknownPacket.
package syncproto

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/domain"
)

// Type tags a packet.
type Type string

// Packet types.
const (
	// TypePlayersSync carries the full fleet roster; it replaces the
	// remote projection.
	TypePlayersSync Type = "players_sync"
	// TypePlayersReport carries one node's roster to the relay.
	TypePlayersReport Type = "players_report"
	// TypeDatabaseUpdate carries a sparse patch for one identity.
	TypeDatabaseUpdate Type = "database_update"
	// TypeReplyUpdate sets the reply target of a connected identity.
	TypeReplyUpdate Type = "reply_update"
	// TypeMailSync carries one serialized mail record.
	TypeMailSync Type = "mail_sync"
)

// ErrUnknownPacket is returned for a type tag no handler is registered for.
var ErrUnknownPacket = errors.New("syncproto: unknown packet type")

// Headers used on the HTTP transport.
const (
	HeaderToken = "X-Sync-Token"
	HeaderNode  = "X-Sync-Node"
)

// Packet is the wire envelope.
type Packet struct {
	Type    Type            `json:"type"`
	Server  string          `json:"server"`
	Sender  uuid.UUID       `json:"sender"`
	Payload json.RawMessage `json:"payload"`
}

// NewPacket encodes payload into a packet.
func NewPacket(t Type, server string, sender uuid.UUID, payload any) (Packet, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Packet{}, errors.Wrapf(err, "encode %s payload", t)
	}
	return Packet{Type: t, Server: server, Sender: sender, Payload: b}, nil
}

// Decode unmarshals the payload into v.
func (p Packet) Decode(v any) error {
	if err := json.Unmarshal(p.Payload, v); err != nil {
		return errors.Wrapf(err, "decode %s payload", p.Type)
	}
	return nil
}

// FromConsole reports whether the packet was originated by the console.
func (p Packet) FromConsole() bool { return p.Sender == domain.ConsoleID }

// Signature is the content that makes a packet semantically unique.
func (p Packet) Signature() string {
	return string(p.Type) + "|" + p.Server + "|" + p.Sender.String() + "|" + string(p.Payload)
}

// PlayersSync is the payload of TypePlayersSync, keyed by name.
type PlayersSync struct {
	Players map[string]synced.Player `json:"players"`
}

// PlayersReport is the payload of TypePlayersReport.
type PlayersReport struct {
	Players []synced.Player `json:"players"`
}

// Snapshot turns the report into a one-node snapshot.
func (r PlayersReport) Snapshot() PlayersSync {
	out := PlayersSync{Players: make(map[string]synced.Player, len(r.Players))}
	for _, p := range r.Players {
		out.Players[p.Name] = p
	}
	return out
}

// DatabaseUpdate is the payload of TypeDatabaseUpdate. Fields is sparse; a
// null value clears a field. Message is an optional notification for the
// identity; "{player}" and "{server}" are replaced by the originator.
type DatabaseUpdate struct {
	Name    string        `json:"name"`
	UUID    uuid.UUID     `json:"uuid"`
	Nick    string        `json:"nick,omitempty"`
	Fields  domain.Fields `json:"fields"`
	Message string        `json:"message,omitempty"`
}

// Identity returns the identity the update is about.
func (u DatabaseUpdate) Identity() domain.Identity {
	return domain.Identity{UUID: u.UUID, Name: u.Name, Nick: u.Nick}
}

// ReplyUpdate is the payload of TypeReplyUpdate.
type ReplyUpdate struct {
	Target      uuid.UUID `json:"target"`
	RepliedName string    `json:"replied_name"`
	RepliedUUID uuid.UUID `json:"replied_uuid"`
}

// MailSync is the payload of TypeMailSync.
type MailSync struct {
	Mail json.RawMessage `json:"mail"`
}
