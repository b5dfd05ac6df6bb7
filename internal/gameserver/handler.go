package gameserver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/udisondev/crosszero/internal/game"
	"github.com/udisondev/crosszero/internal/model"
	"github.com/udisondev/crosszero/internal/protocol"
)

// Handler dispatches inbound packets to client operations. One per server.
type Handler struct {
	clients *ClientRegistry
	players *model.PlayerRegistry
}

// NewHandler creates a packet handler over the two registries.
func NewHandler(clients *ClientRegistry, players *model.PlayerRegistry) *Handler {
	return &Handler{clients: clients, players: players}
}

// HandlePacket routes one packet to the matching client operation. Domain
// failures (bad state, unknown name, full table) answer NACK and keep the
// session alive; an unknown packet type or a failed write to the acting
// client's own socket ends the session. Returns false to end the session.
func (h *Handler) HandlePacket(c *Client, hdr protocol.Header, payload []byte) bool {
	if c.Player() == nil && hdr.Type != protocol.PacketLogin {
		slog.Debug("packet before login", "type", protocol.TypeName(hdr.Type), "remote", c.IP())
		return c.SendNack() == nil
	}

	switch hdr.Type {
	case protocol.PacketLogin:
		return h.handleLogin(c, payload)
	case protocol.PacketUsers:
		return h.handleUsers(c)
	case protocol.PacketInvite:
		return h.handleInvite(c, hdr, payload)
	case protocol.PacketRevoke:
		return h.respond(c, c.Revoke(int(hdr.ID)), "revoke")
	case protocol.PacketDecline:
		return h.respond(c, c.Decline(int(hdr.ID)), "decline")
	case protocol.PacketAccept:
		return h.handleAccept(c, hdr)
	case protocol.PacketMove:
		return h.respond(c, c.Move(int(hdr.ID), string(payload)), "move")
	case protocol.PacketResign:
		return h.respond(c, c.Resign(int(hdr.ID)), "resign")
	default:
		slog.Warn("unknown packet type", "type", hdr.Type, "remote", c.IP())
		return false
	}
}

// respond maps an operation result to ACK or NACK.
func (h *Handler) respond(c *Client, err error, op string) bool {
	if err != nil {
		slog.Debug(op+" rejected", "remote", c.IP(), "err", err)
		return c.SendNack() == nil
	}
	return c.SendAck(nil) == nil
}

func (h *Handler) handleLogin(c *Client, payload []byte) bool {
	if c.Player() != nil {
		slog.Debug("duplicate login", "remote", c.IP(), "player", c.Player().Name())
		return c.SendNack() == nil
	}

	name := string(payload)
	player, err := h.players.Register(name)
	if err != nil {
		slog.Debug("login rejected", "remote", c.IP(), "err", err)
		return c.SendNack() == nil
	}
	if err := c.Login(player); err != nil {
		slog.Debug("login rejected", "remote", c.IP(), "name", name, "err", err)
		return c.SendNack() == nil
	}

	slog.Info("login", "player", name, "remote", c.IP())
	return c.SendAck(nil) == nil
}

// handleUsers answers with one "<name>\t<rating>\n" line per logged-in
// player in the ACK payload.
func (h *Handler) handleUsers(c *Client) bool {
	var b strings.Builder
	for _, p := range h.clients.AllPlayers() {
		fmt.Fprintf(&b, "%s\t%d\n", p.Name(), p.Rating())
	}
	return c.SendAck([]byte(b.String())) == nil
}

func (h *Handler) handleInvite(c *Client, hdr protocol.Header, payload []byte) bool {
	targetRole := game.RoleSecond
	if hdr.Role == uint8(game.RoleFirst) {
		targetRole = game.RoleFirst
	}
	sourceRole := targetRole.Other()

	name := string(payload)
	target := h.clients.Lookup(name)
	if target == nil {
		slog.Debug("invite to unknown player", "remote", c.IP(), "name", name)
		return c.SendNack() == nil
	}

	id, err := c.MakeInvitation(target, sourceRole, targetRole)
	if err != nil {
		slog.Debug("invite rejected", "remote", c.IP(), "name", name, "err", err)
		return c.SendNack() == nil
	}

	// The ACK's id field tells the inviter their side's slot id.
	return c.SendPacket(protocol.NewHeader(protocol.PacketAck, uint8(id), 0, 0), nil) == nil
}

func (h *Handler) handleAccept(c *Client, hdr protocol.Header) bool {
	board, err := c.Accept(int(hdr.ID))
	if err != nil {
		slog.Debug("accept rejected", "remote", c.IP(), "err", err)
		return c.SendNack() == nil
	}
	if board != "" {
		return c.SendAck([]byte(board)) == nil
	}
	return c.SendAck(nil) == nil
}
