package model

import (
	"math"
	"sync"

	"github.com/udisondev/crosszero/internal/game"
)

// InitialRating is the rating every player starts with.
const InitialRating = 1500.0

// kFactor is the Elo K constant.
const kFactor = 32.0

// Player is a named identity carrying a rating. The name is immutable; the
// rating is guarded by its own mutex so concurrent result posts stay
// consistent. Players are shared by reference between the registry and the
// clients logged in under them.
type Player struct {
	id   int // registration order; fixes the rating lock hierarchy
	name string

	ratingMu sync.Mutex
	rating   float64
}

// Name returns the player's name.
func (p *Player) Name() string {
	return p.name
}

// ID returns the registration-order id.
func (p *Player) ID() int {
	return p.id
}

// Rating returns the nearest integer to the internal real-valued rating.
func (p *Player) Rating() int {
	p.ratingMu.Lock()
	defer p.ratingMu.Unlock()
	return int(math.Round(p.rating))
}

// PostResult applies the rating update for a completed game between the
// first player and the second player. winner is the winning role, RoleNull
// for a draw.
//
// Both rating locks are taken in ascending player id order, always, so two
// concurrent posts over an overlapping pair can never deadlock.
func PostResult(first, second *Player, winner game.Role) {
	if first == nil || second == nil {
		return
	}
	if first.id < second.id {
		first.ratingMu.Lock()
		second.ratingMu.Lock()
		defer first.ratingMu.Unlock()
		defer second.ratingMu.Unlock()
	} else {
		second.ratingMu.Lock()
		first.ratingMu.Lock()
		defer second.ratingMu.Unlock()
		defer first.ratingMu.Unlock()
	}

	var s1 float64
	switch winner {
	case game.RoleFirst:
		s1 = 1.0
	case game.RoleSecond:
		s1 = 0.0
	default:
		s1 = 0.5
	}
	s2 := 1.0 - s1

	r1 := first.rating
	r2 := second.rating

	// Expected scores computed symmetrically so no rating points drift.
	e1 := 1.0 / (1.0 + math.Pow(10.0, (r2-r1)/400.0))
	e2 := 1.0 / (1.0 + math.Pow(10.0, (r1-r2)/400.0))

	first.rating = r1 + kFactor*(s1-e1)
	second.rating = r2 + kFactor*(s2-e2)
}
