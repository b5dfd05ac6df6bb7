package gameserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/crosszero/internal/game"
	"github.com/udisondev/crosszero/internal/model"
	"github.com/udisondev/crosszero/internal/protocol"
)

// invSlotsPerClient scales the per-client invitation table.
const invSlotsPerClient = 128

var (
	ErrNotLoggedIn     = errors.New("client is not logged in")
	ErrAlreadyLoggedIn = errors.New("client is already logged in")
	ErrNameInUse       = errors.New("player name already logged in elsewhere")
	ErrNoInvitation    = errors.New("no invitation at that id")
	ErrNotSource       = errors.New("client is not the invitation source")
	ErrNotTarget       = errors.New("client is not the invitation target")
	ErrNotParticipant  = errors.New("client is not a participant")
	ErrSlotsFull       = errors.New("invitation table is full")
)

// Client is one connected session. It owns the socket, the logged-in Player
// reference, and an indexed table of invitation slots. The slot index handed
// out on insert is the id the other side of the wire uses to refer to the
// invitation on this client.
//
// Each concern has its own lock: playerMu guards the login slot, writeMu
// serializes outbound packets so concurrent writers never interleave bytes
// on the connection, invMu guards the slot table. The table helpers take
// invMu themselves and never call back into other locking methods, so no
// lock re-entrancy is needed.
type Client struct {
	registry *ClientRegistry
	conn     net.Conn
	ip       string

	playerMu sync.Mutex
	player   *model.Player

	writeMu sync.Mutex

	invMu sync.Mutex
	invs  []*Invitation
}

// IP returns the client's remote address.
func (c *Client) IP() string {
	return c.ip
}

// Conn returns the underlying network connection.
func (c *Client) Conn() net.Conn {
	return c.conn
}

// Player returns the logged-in player, nil before login.
func (c *Client) Player() *model.Player {
	c.playerMu.Lock()
	defer c.playerMu.Unlock()
	return c.player
}

func (c *Client) setPlayer(p *model.Player) {
	c.playerMu.Lock()
	defer c.playerMu.Unlock()
	c.player = p
}

// Login binds p to this client. Fails if the client is already logged in or
// another active client already holds the same player.
func (c *Client) Login(p *model.Player) error {
	return c.registry.login(c, p)
}

// Logout closes every outstanding invitation and game of this client,
// attempting resign, then revoke, then decline on each occupied slot, and
// releases the player reference.
func (c *Client) Logout() error {
	if c.Player() == nil {
		return ErrNotLoggedIn
	}

	c.invMu.Lock()
	ids := make([]int, 0, 4)
	for id, inv := range c.invs {
		if inv != nil {
			ids = append(ids, id)
		}
	}
	c.invMu.Unlock()

	for _, id := range ids {
		if err := c.Resign(id); err == nil {
			continue
		}
		if err := c.Revoke(id); err == nil {
			continue
		}
		if err := c.Decline(id); err != nil {
			slog.Debug("logout could not close invitation", "id", id, "err", err)
		}
	}

	c.setPlayer(nil)
	return nil
}

// SendPacket writes one packet to the client's socket. The write mutex keeps
// concurrent writers from interleaving packets on the same connection.
func (c *Client) SendPacket(h protocol.Header, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WritePacket(c.conn, h, payload); err != nil {
		return fmt.Errorf("sending %s to %s: %w", protocol.TypeName(h.Type), c.ip, err)
	}
	return nil
}

// SendAck emits an ACK, optionally carrying data.
func (c *Client) SendAck(data []byte) error {
	return c.SendPacket(protocol.NewHeader(protocol.PacketAck, 0, 0, 0), data)
}

// SendNack emits a NACK.
func (c *Client) SendNack() error {
	return c.SendPacket(protocol.NewHeader(protocol.PacketNack, 0, 0, 0), nil)
}

// addInvitation inserts inv at the lowest empty slot index.
func (c *Client) addInvitation(inv *Invitation) (int, bool) {
	c.invMu.Lock()
	defer c.invMu.Unlock()
	for id, slot := range c.invs {
		if slot == nil {
			c.invs[id] = inv
			return id, true
		}
	}
	return 0, false
}

// removeInvitation clears inv from the table by identity and returns the
// slot index it occupied.
func (c *Client) removeInvitation(inv *Invitation) (int, bool) {
	c.invMu.Lock()
	defer c.invMu.Unlock()
	for id, slot := range c.invs {
		if slot == inv {
			c.invs[id] = nil
			return id, true
		}
	}
	return 0, false
}

// invitationAt returns the occupant of slot id, nil when empty.
func (c *Client) invitationAt(id int) *Invitation {
	c.invMu.Lock()
	defer c.invMu.Unlock()
	if id < 0 || id >= len(c.invs) {
		return nil
	}
	return c.invs[id]
}

// indexOf returns inv's slot index on this client without removing it.
func (c *Client) indexOf(inv *Invitation) (int, bool) {
	c.invMu.Lock()
	defer c.invMu.Unlock()
	for id, slot := range c.invs {
		if slot == inv {
			return id, true
		}
	}
	return 0, false
}

// MakeInvitation creates a fresh OPEN invitation from this client to target
// with the given roles, inserts it into both slot tables (rolling back the
// source insert if the target table is full), and notifies the target with
// an INVITED packet carrying this client's player name, the target-side slot
// id, and the target's role. Returns the source-side slot id.
func (c *Client) MakeInvitation(target *Client, sourceRole, targetRole game.Role) (int, error) {
	inv, err := NewInvitation(c, target, sourceRole, targetRole)
	if err != nil {
		return 0, err
	}

	srcID, ok := c.addInvitation(inv)
	if !ok {
		return 0, ErrSlotsFull
	}
	dstID, ok := target.addInvitation(inv)
	if !ok {
		c.removeInvitation(inv)
		return 0, ErrSlotsFull
	}

	name := c.Player().Name()
	h := protocol.NewHeader(protocol.PacketInvited, uint8(dstID), uint8(targetRole), 0)
	if err := target.SendPacket(h, []byte(name)); err != nil {
		return 0, err
	}
	return srcID, nil
}

// Revoke closes an OPEN invitation of which this client is the source,
// removes it from both slot tables, and notifies the target with REVOKED.
func (c *Client) Revoke(id int) error {
	inv := c.invitationAt(id)
	if inv == nil {
		return ErrNoInvitation
	}
	if inv.Source() != c {
		return ErrNotSource
	}
	if err := inv.Close(game.RoleNull); err != nil {
		return err
	}
	c.removeInvitation(inv)
	targetID, ok := inv.Target().removeInvitation(inv)
	if !ok {
		return ErrNoInvitation
	}
	return inv.Target().SendPacket(protocol.NewHeader(protocol.PacketRevoked, uint8(targetID), 0, 0), nil)
}

// Decline closes an OPEN invitation of which this client is the target,
// removes it from both slot tables, and notifies the source with DECLINED.
func (c *Client) Decline(id int) error {
	inv := c.invitationAt(id)
	if inv == nil {
		return ErrNoInvitation
	}
	if inv.Target() != c {
		return ErrNotTarget
	}
	if err := inv.Close(game.RoleNull); err != nil {
		return err
	}
	c.removeInvitation(inv)
	srcID, ok := inv.Source().removeInvitation(inv)
	if !ok {
		return ErrNoInvitation
	}
	return inv.Source().SendPacket(protocol.NewHeader(protocol.PacketDeclined, uint8(srcID), 0, 0), nil)
}

// Accept transitions an OPEN invitation of which this client is the target
// into ACCEPTED, creating the game. The initial board serialization goes to
// whichever participant moves first: when the source plays X it rides in
// the ACCEPTED payload to the source and the returned string is empty; when
// this client plays X the ACCEPTED payload is empty and the board is
// returned for the caller to deliver in the ACK.
func (c *Client) Accept(id int) (string, error) {
	inv := c.invitationAt(id)
	if inv == nil {
		return "", ErrNoInvitation
	}
	if inv.Target() != c {
		return "", ErrNotTarget
	}
	if err := inv.Accept(); err != nil {
		return "", err
	}

	srcID, ok := inv.Source().indexOf(inv)
	if !ok {
		return "", ErrNoInvitation
	}

	board := inv.Game().UnparseState()
	h := protocol.NewHeader(protocol.PacketAccepted, uint8(srcID), uint8(inv.SourceRole()), 0)
	if inv.SourceRole() == game.RoleFirst {
		return "", inv.Source().SendPacket(h, []byte(board))
	}
	if err := inv.Source().SendPacket(h, nil); err != nil {
		return "", err
	}
	return board, nil
}

// Resign resigns an ACCEPTED invitation of which this client is a
// participant. The game terminates with the opponent as winner, the
// invitation closes and leaves both slot tables, the opponent receives
// RESIGNED then ENDED back to back, this client receives ENDED, and the result is posted
// to the rating system.
func (c *Client) Resign(id int) error {
	inv := c.invitationAt(id)
	if inv == nil {
		return ErrNoInvitation
	}
	role := inv.roleOf(c)
	if role == game.RoleNull {
		return ErrNotParticipant
	}
	if err := inv.Close(role); err != nil {
		return err
	}

	opp := inv.opponentOf(c)
	c.removeInvitation(inv)
	oppID, ok := opp.removeInvitation(inv)
	if !ok {
		return ErrNoInvitation
	}

	winner := inv.Game().Winner()
	// RESIGNED and ENDED go to the opponent under one hold of its write
	// mutex, so no other writer's packet can land between them.
	opp.writeMu.Lock()
	err := protocol.WritePacket(opp.conn, protocol.NewHeader(protocol.PacketResigned, uint8(oppID), 0, 0), nil)
	if err == nil {
		err = protocol.WritePacket(opp.conn, protocol.NewHeader(protocol.PacketEnded, uint8(oppID), uint8(winner), 0), nil)
	}
	opp.writeMu.Unlock()
	c.SendPacket(protocol.NewHeader(protocol.PacketEnded, uint8(id), uint8(winner), 0), nil)

	c.postResult(inv, winner)
	return err
}

// Move applies a move to an ACCEPTED invitation's game on behalf of this
// client. On success the opponent receives MOVED with the new board
// serialization; if the move ended the game both participants receive ENDED
// with the winner role, the invitation leaves both slot tables, and the
// result is posted to the rating system.
func (c *Client) Move(id int, text string) error {
	inv := c.invitationAt(id)
	if inv == nil {
		return ErrNoInvitation
	}
	g := inv.Game()
	if g == nil {
		return ErrNotAccepted
	}
	role := inv.roleOf(c)
	if role == game.RoleNull {
		return ErrNotParticipant
	}

	m, err := g.ParseMove(role, text)
	if err != nil {
		return err
	}
	if err := g.ApplyMove(m); err != nil {
		return err
	}

	opp := inv.opponentOf(c)
	oppID, ok := opp.indexOf(inv)
	if !ok {
		return ErrNoInvitation
	}

	board := g.UnparseState()
	opp.SendPacket(protocol.NewHeader(protocol.PacketMoved, uint8(oppID), 0, 0), []byte(board))

	if g.IsOver() {
		inv.closeEnded()
		winner := g.Winner()
		c.SendPacket(protocol.NewHeader(protocol.PacketEnded, uint8(id), uint8(winner), 0), nil)
		opp.SendPacket(protocol.NewHeader(protocol.PacketEnded, uint8(oppID), uint8(winner), 0), nil)
		c.removeInvitation(inv)
		opp.removeInvitation(inv)
		c.postResult(inv, winner)
	}
	return nil
}

// postResult maps the invitation's participants to first/second players and
// posts the game result to the rating system.
func (c *Client) postResult(inv *Invitation, winner game.Role) {
	var first, second *model.Player
	if inv.SourceRole() == game.RoleFirst {
		first = inv.Source().Player()
		second = inv.Target().Player()
	} else {
		first = inv.Target().Player()
		second = inv.Source().Player()
	}
	model.PostResult(first, second, winner)
}
