package game

import (
	"errors"
	"strings"
	"testing"
)

const initialBoard = " | | \n-----\n | | \n-----\n | | \nX to move\n"

// play applies alternating moves starting with X, failing the test on any
// rejection.
func play(t *testing.T, g *Game, cells ...int) {
	t.Helper()
	role := RoleFirst
	for _, cell := range cells {
		m, err := g.ParseMove(role, string(rune('0'+cell)))
		if err != nil {
			t.Fatalf("parse cell %d for %s: %v", cell, role, err)
		}
		if err := g.ApplyMove(m); err != nil {
			t.Fatalf("apply cell %d for %s: %v", cell, role, err)
		}
		role = role.Other()
	}
}

func TestNewGameState(t *testing.T) {
	g := New()
	if g.IsOver() {
		t.Error("fresh game must not be over")
	}
	if g.Winner() != RoleNull {
		t.Errorf("fresh game winner = %s, want NULL", g.Winner())
	}
	if got := g.UnparseState(); got != initialBoard {
		t.Errorf("initial board:\n%q\nwant:\n%q", got, initialBoard)
	}
}

func TestParseMoveGrammar(t *testing.T) {
	tests := []struct {
		text string
		role Role
		ok   bool
	}{
		{"5", RoleFirst, true},
		{"1", RoleFirst, true},
		{"9", RoleFirst, true},
		{"5<-X", RoleFirst, true},
		{"5<-O", RoleFirst, false}, // tag disagrees with role
		{"0", RoleFirst, false},
		{"a", RoleFirst, false},
		{"", RoleFirst, false},
		{"5<-", RoleFirst, false},
		{"5<X", RoleFirst, false},
		{"10", RoleFirst, false},
		{"5", RoleSecond, false}, // not second's turn
		{"5<-X", RoleNull, true}, // null role trusts the tag
		{"5", RoleNull, true},    // null role falls back to side to move
	}

	for _, tt := range tests {
		g := New()
		_, err := g.ParseMove(tt.role, tt.text)
		if (err == nil) != tt.ok {
			t.Errorf("ParseMove(%s, %q): err = %v, want ok=%v", tt.role, tt.text, err, tt.ok)
		}
	}
}

func TestParseMoveNullRoleUsesTurn(t *testing.T) {
	g := New()
	m, err := g.ParseMove(RoleNull, "5")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if m.Role != RoleFirst {
		t.Errorf("role = %s, want FIRST (side to move)", m.Role)
	}
}

func TestUnparseMoveCanonicalForm(t *testing.T) {
	g := New()
	m, err := g.ParseMove(RoleFirst, "5")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if got := m.String(); got != "5<-X\n" {
		t.Errorf("canonical form = %q, want %q", got, "5<-X\n")
	}

	play(t, g, 5)
	m, err = g.ParseMove(RoleSecond, "1<-O")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if got := m.String(); got != "1<-O\n" {
		t.Errorf("canonical form = %q, want %q", got, "1<-O\n")
	}
}

func TestApplyMoveCellTaken(t *testing.T) {
	g := New()
	play(t, g, 5)

	m, err := g.ParseMove(RoleSecond, "5")
	if err != nil {
		t.Fatalf("ParseMove: %v", err)
	}
	if err := g.ApplyMove(m); !errors.Is(err, ErrCellTaken) {
		t.Errorf("err = %v, want ErrCellTaken", err)
	}
}

func TestApplyMoveTogglesTurn(t *testing.T) {
	g := New()
	play(t, g, 5)
	if !strings.Contains(g.UnparseState(), "O to move") {
		t.Errorf("after X's move the state must show O to move:\n%s", g.UnparseState())
	}
}

func TestWinByRow(t *testing.T) {
	// X takes the top row: 1, 2, 3.
	g := New()
	play(t, g, 1, 4, 2, 5, 3)
	if !g.IsOver() {
		t.Fatal("game must be over")
	}
	if g.Winner() != RoleFirst {
		t.Errorf("winner = %s, want FIRST", g.Winner())
	}
}

func TestWinByColumn(t *testing.T) {
	// O takes the middle column: 2, 5, 8.
	g := New()
	play(t, g, 1, 2, 3, 5, 7, 8)
	if !g.IsOver() {
		t.Fatal("game must be over")
	}
	if g.Winner() != RoleSecond {
		t.Errorf("winner = %s, want SECOND", g.Winner())
	}
}

func TestWinByDiagonal(t *testing.T) {
	// X takes 1, 5, 9.
	g := New()
	play(t, g, 1, 2, 5, 3, 9)
	if g.Winner() != RoleFirst {
		t.Errorf("winner = %s, want FIRST", g.Winner())
	}
}

func TestWinByAntiDiagonal(t *testing.T) {
	// X takes 5, 3, 7 — the anti-diagonal, as in a straight opening trap.
	g := New()
	play(t, g, 5, 1, 3, 2, 7)
	if !g.IsOver() {
		t.Fatal("game must be over")
	}
	if g.Winner() != RoleFirst {
		t.Errorf("winner = %s, want FIRST", g.Winner())
	}
}

func TestDrawByFullBoard(t *testing.T) {
	// Nine moves, no line of three for either side.
	g := New()
	play(t, g, 5, 1, 2, 8, 7, 3, 6, 4, 9)
	if !g.IsOver() {
		t.Fatal("full board must terminate the game")
	}
	if g.Winner() != RoleNull {
		t.Errorf("winner = %s, want NULL (draw)", g.Winner())
	}
}

func TestMoveAfterGameOver(t *testing.T) {
	g := New()
	play(t, g, 1, 4, 2, 5, 3) // X wins

	m := Move{Role: RoleSecond, Cell: 6, row: 2, col: 4}
	if err := g.ApplyMove(m); !errors.Is(err, ErrGameOver) {
		t.Errorf("err = %v, want ErrGameOver", err)
	}
}

func TestResign(t *testing.T) {
	g := New()
	if err := g.Resign(RoleFirst); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if !g.IsOver() {
		t.Error("resigned game must be over")
	}
	if g.Winner() != RoleSecond {
		t.Errorf("winner = %s, want SECOND", g.Winner())
	}

	if err := g.Resign(RoleSecond); !errors.Is(err, ErrGameOver) {
		t.Errorf("second resign err = %v, want ErrGameOver", err)
	}
}

func TestUnparseStateAfterMoves(t *testing.T) {
	g := New()
	play(t, g, 5, 1)

	want := "O| | \n-----\n |X| \n-----\n | | \nX to move\n"
	if got := g.UnparseState(); got != want {
		t.Errorf("board:\n%q\nwant:\n%q", got, want)
	}
}
