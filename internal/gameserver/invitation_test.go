package gameserver

import (
	"errors"
	"testing"

	"github.com/udisondev/crosszero/internal/game"
)

func TestNewInvitationValidation(t *testing.T) {
	a := &Client{}
	b := &Client{}

	tests := []struct {
		name             string
		source, target   *Client
		srcRole, tgtRole game.Role
		wantErr          error
	}{
		{"same client", a, a, game.RoleFirst, game.RoleSecond, ErrSameClient},
		{"nil source", nil, b, game.RoleFirst, game.RoleSecond, ErrSameClient},
		{"null source role", a, b, game.RoleNull, game.RoleSecond, ErrBadRoles},
		{"null target role", a, b, game.RoleFirst, game.RoleNull, ErrBadRoles},
		{"equal roles", a, b, game.RoleFirst, game.RoleFirst, ErrBadRoles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInvitation(tt.source, tt.target, tt.srcRole, tt.tgtRole)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestInvitationLifecycle(t *testing.T) {
	a := &Client{}
	b := &Client{}

	inv, err := NewInvitation(a, b, game.RoleFirst, game.RoleSecond)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	if inv.State() != InvOpen {
		t.Errorf("state = %s, want OPEN", inv.State())
	}
	if inv.Game() != nil {
		t.Error("open invitation must have no game")
	}

	if err := inv.Accept(); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if inv.State() != InvAccepted {
		t.Errorf("state = %s, want ACCEPTED", inv.State())
	}
	if inv.Game() == nil {
		t.Fatal("accepted invitation must have a game")
	}

	// Resignation by the source: the game terminates with the target's
	// role as winner and the invitation closes.
	if err := inv.Close(game.RoleFirst); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if inv.State() != InvClosed {
		t.Errorf("state = %s, want CLOSED", inv.State())
	}
	if !inv.Game().IsOver() {
		t.Error("closed invitation's game must be terminated")
	}
	if inv.Game().Winner() != game.RoleSecond {
		t.Errorf("winner = %s, want SECOND", inv.Game().Winner())
	}
}

func TestAcceptTwiceFails(t *testing.T) {
	inv, err := NewInvitation(&Client{}, &Client{}, game.RoleFirst, game.RoleSecond)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	if err := inv.Accept(); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := inv.Accept(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second accept err = %v, want ErrNotOpen", err)
	}
}

func TestCloseOpenWithNullRole(t *testing.T) {
	inv, err := NewInvitation(&Client{}, &Client{}, game.RoleFirst, game.RoleSecond)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	if err := inv.Close(game.RoleNull); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if inv.State() != InvClosed {
		t.Errorf("state = %s, want CLOSED", inv.State())
	}

	// CLOSED is terminal.
	if err := inv.Close(game.RoleNull); !errors.Is(err, ErrInvClosed) {
		t.Errorf("close on closed err = %v, want ErrInvClosed", err)
	}
}

func TestCloseAcceptedWithNullRoleFails(t *testing.T) {
	inv, err := NewInvitation(&Client{}, &Client{}, game.RoleFirst, game.RoleSecond)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	if err := inv.Accept(); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	// Revoke/decline are only valid while no game exists.
	if err := inv.Close(game.RoleNull); !errors.Is(err, ErrNotOpen) {
		t.Errorf("err = %v, want ErrNotOpen", err)
	}
}

func TestCloseOpenWithRoleFails(t *testing.T) {
	inv, err := NewInvitation(&Client{}, &Client{}, game.RoleFirst, game.RoleSecond)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	if err := inv.Close(game.RoleFirst); !errors.Is(err, ErrNotAccepted) {
		t.Errorf("err = %v, want ErrNotAccepted", err)
	}
}

func TestCloseEndedAfterGameOver(t *testing.T) {
	inv, err := NewInvitation(&Client{}, &Client{}, game.RoleFirst, game.RoleSecond)
	if err != nil {
		t.Fatalf("NewInvitation: %v", err)
	}
	if err := inv.Accept(); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// Not over yet: closeEnded must be a no-op.
	inv.closeEnded()
	if inv.State() != InvAccepted {
		t.Errorf("state = %s, want ACCEPTED", inv.State())
	}

	if err := inv.Game().Resign(game.RoleSecond); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	inv.closeEnded()
	if inv.State() != InvClosed {
		t.Errorf("state = %s, want CLOSED", inv.State())
	}
}
