package player

import (
	"math"
	"sync"

	"github.com/udisondev/jeux/internal/constants"
)

// Player is a known user: an immutable name and a rating that evolves over
// the lifetime of the process. Players are shared between the registry and
// the clients logged in under them; the rating is guarded by its own lock.
type Player struct {
	name string

	mu     sync.Mutex
	rating int
}

// New creates a player with the initial rating.
func New(name string) *Player {
	return &Player{name: name, rating: constants.InitialRating}
}

// Name returns the player's unique name.
func (p *Player) Name() string {
	return p.name
}

// Rating returns the player's current rating.
func (p *Player) Rating() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rating
}

// Outcome is the result of a terminated game, from player 1's perspective.
type Outcome int

const (
	Draw Outcome = iota
	P1Won
	P2Won
)

// score returns the Elo scores for both players.
func (o Outcome) score() (s1, s2 float64) {
	switch o {
	case P1Won:
		return 1, 0
	case P2Won:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// PostResult updates both players' ratings after a terminated game, using a
// fixed-K Elo update:
//
//	E1 = 1 / (1 + 10^((R2-R1)/400))
//	R1' = R1 + round(K * (S1 - E1))
//
// and symmetrically for player 2. Nil players or an out-of-range outcome
// make the call a no-op; ratings must never move on protocol failures.
func PostResult(p1, p2 *Player, outcome Outcome) {
	if p1 == nil || p2 == nil || outcome < Draw || outcome > P2Won {
		return
	}

	s1, s2 := outcome.score()
	r1 := float64(p1.Rating())
	r2 := float64(p2.Rating())

	e1 := 1 / (1 + math.Pow(10, (r2-r1)/400))
	e2 := 1 / (1 + math.Pow(10, (r1-r2)/400))

	p1.addRating(int(math.Round(constants.EloK * (s1 - e1))))
	p2.addRating(int(math.Round(constants.EloK * (s2 - e2))))
}

func (p *Player) addRating(delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rating += delta
}
