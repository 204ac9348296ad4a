package syncproto

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/chatsync/internal/cache/player"
	"github.com/tbourn/chatsync/internal/cache/sender"
	"github.com/tbourn/chatsync/internal/cache/server"
	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/presence"
	"github.com/tbourn/chatsync/internal/store"
)

// ConsoleName is substituted for "{player}" in notifications sent by the
// console.
const ConsoleName = "Console"

// Node bundles the state a node applies inbound packets to.
type Node struct {
	Store    *store.Store
	Players  *player.Cache
	Senders  *sender.Cache
	Server   *server.Cache
	Synced   *synced.Cache
	Presence *presence.Registry
	Log      *zerolog.Logger
}

// Register installs the handlers for every core packet type. The relay
// handles TypePlayersReport; nodes never receive it.
func (n *Node) Register(d *Dispatcher) {
	d.Handle(TypePlayersSync, n.playersSync)
	d.Handle(TypeDatabaseUpdate, n.databaseUpdate)
	d.Handle(TypeReplyUpdate, n.replyUpdate)
	d.Handle(TypeMailSync, n.mailSync)
}

func (n *Node) logger() zerolog.Logger {
	if n.Log != nil {
		return *n.Log
	}
	return log.Logger
}

func (n *Node) playersSync(_ context.Context, p Packet) error {
	var body PlayersSync
	if err := p.Decode(&body); err != nil {
		return err
	}
	n.Synced.Upload(body.Players)
	return nil
}

// databaseUpdate merges the patch when the shared database is active, then
// refreshes the session of a connected identity and delivers the
// notification.
func (n *Node) databaseUpdate(_ context.Context, p Packet) error {
	var body DatabaseUpdate
	if err := p.Decode(&body); err != nil {
		return err
	}
	ident := body.Identity()
	if !ident.Valid() {
		return errors.Errorf("database_update: invalid identity %+v", ident)
	}
	if n.Store.IsRemote() {
		if _, err := n.Players.Merge(ident, body.Fields); err != nil {
			return err
		}
	}
	if !n.Presence.Online(ident.UUID) {
		return nil
	}
	n.Presence.Rename(ident)
	if body.Message != "" {
		n.Presence.Tell(ident.UUID, n.render(body.Message, p))
	}
	return nil
}

func (n *Node) render(msg string, p Packet) string {
	who := ConsoleName
	if !p.FromConsole() {
		if e, ok := n.Players.Cached(p.Sender); ok {
			who = e.Identity().DisplayName()
		} else if sp, ok := n.Synced.FromUUID(p.Sender); ok {
			who = sp.Name
		} else {
			who = p.Sender.String()
		}
	}
	return strings.NewReplacer("{player}", who, "{server}", p.Server).Replace(msg)
}

func (n *Node) replyUpdate(_ context.Context, p Packet) error {
	var body ReplyUpdate
	if err := p.Decode(&body); err != nil {
		return err
	}
	s, ok := n.Presence.Get(body.Target)
	if !ok {
		return nil
	}
	n.Senders.FromIdentity(s.Identity).ReplyTarget = &sender.ReplyTarget{
		Name: body.RepliedName,
		UUID: body.RepliedUUID,
	}
	return nil
}

func (n *Node) mailSync(_ context.Context, p Packet) error {
	var body MailSync
	if err := p.Decode(&body); err != nil {
		return err
	}
	m, err := server.DecodeMail(body.Mail)
	if err != nil {
		return errors.Wrap(err, "mail_sync: decode mail")
	}
	if err := n.Server.SyncMail(m); err != nil {
		return errors.Wrapf(err, "mail_sync: store mail %s", m.ID)
	}
	l := n.logger()
	l.Debug().Str("mail", m.ID.String()).Str("from", p.Server).Msg("mail synced")
	return nil
}
