package gameserver

import (
	"errors"
	"sync"

	"github.com/udisondev/crosszero/internal/game"
)

// InvitationState is the state machine for one invitation.
type InvitationState int

const (
	InvOpen     InvitationState = iota // created, not yet answered
	InvAccepted                        // game in progress
	InvClosed                          // terminal
)

func (s InvitationState) String() string {
	switch s {
	case InvOpen:
		return "OPEN"
	case InvAccepted:
		return "ACCEPTED"
	case InvClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrSameClient  = errors.New("source and target are the same client")
	ErrBadRoles    = errors.New("roles must be distinct and non-null")
	ErrNotOpen     = errors.New("invitation is not open")
	ErrNotAccepted = errors.New("invitation is not accepted")
	ErrInvClosed   = errors.New("invitation is closed")
)

// Invitation pairs two clients with assigned game roles. A fresh invitation
// is OPEN with no game; accepting it creates the game atomically with the
// transition to ACCEPTED; closing it (revoke, decline, resignation, or the
// game ending) makes it CLOSED, which is terminal.
type Invitation struct {
	source     *Client
	target     *Client
	sourceRole game.Role
	targetRole game.Role

	mu    sync.Mutex
	state InvitationState
	game  *game.Game
}

// NewInvitation creates an OPEN invitation. The clients must be distinct and
// the roles must be distinct and non-null.
func NewInvitation(source, target *Client, sourceRole, targetRole game.Role) (*Invitation, error) {
	if source == nil || target == nil || source == target {
		return nil, ErrSameClient
	}
	if sourceRole == game.RoleNull || targetRole == game.RoleNull || sourceRole == targetRole {
		return nil, ErrBadRoles
	}
	return &Invitation{
		source:     source,
		target:     target,
		sourceRole: sourceRole,
		targetRole: targetRole,
		state:      InvOpen,
	}, nil
}

// Source returns the inviting client.
func (inv *Invitation) Source() *Client { return inv.source }

// Target returns the invited client.
func (inv *Invitation) Target() *Client { return inv.target }

// SourceRole returns the inviter's game role.
func (inv *Invitation) SourceRole() game.Role { return inv.sourceRole }

// TargetRole returns the invitee's game role.
func (inv *Invitation) TargetRole() game.Role { return inv.targetRole }

// State returns the current state.
func (inv *Invitation) State() InvitationState {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Game returns the game, nil while the invitation is OPEN.
func (inv *Invitation) Game() *game.Game {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.game
}

// roleOf returns c's role in this invitation, RoleNull for a stranger.
func (inv *Invitation) roleOf(c *Client) game.Role {
	switch c {
	case inv.source:
		return inv.sourceRole
	case inv.target:
		return inv.targetRole
	default:
		return game.RoleNull
	}
}

// opponentOf returns the other participant, nil for a stranger.
func (inv *Invitation) opponentOf(c *Client) *Client {
	switch c {
	case inv.source:
		return inv.target
	case inv.target:
		return inv.source
	default:
		return nil
	}
}

// Accept transitions OPEN -> ACCEPTED, creating the game atomically with
// the state change.
func (inv *Invitation) Accept() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state != InvOpen {
		return ErrNotOpen
	}
	inv.game = game.New()
	inv.state = InvAccepted
	return nil
}

// Close closes the invitation. A RoleNull role revokes or declines: it is
// only valid while OPEN (no game exists). A participant role resigns: it is
// only valid while ACCEPTED, and terminates the game with the opposite role
// as winner.
func (inv *Invitation) Close(role game.Role) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.state == InvClosed {
		return ErrInvClosed
	}
	if role == game.RoleNull {
		if inv.game != nil {
			return ErrNotOpen
		}
		inv.state = InvClosed
		return nil
	}
	if inv.game == nil {
		return ErrNotAccepted
	}
	if err := inv.game.Resign(role); err != nil {
		return err
	}
	inv.state = InvClosed
	return nil
}

// closeEnded marks the invitation CLOSED after its game terminated through
// the last legal move. No-op unless the game is actually over.
func (inv *Invitation) closeEnded() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state == InvAccepted && inv.game != nil && inv.game.IsOver() {
		inv.state = InvClosed
	}
}
