package player

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/jeux/internal/constants"
)

func TestNew_InitialRating(t *testing.T) {
	p := New("alice")
	assert.Equal(t, "alice", p.Name())
	assert.Equal(t, constants.InitialRating, p.Rating())
}

func TestPostResult_EqualRatingsWin(t *testing.T) {
	p1 := New("alice")
	p2 := New("bob")

	PostResult(p1, p2, P1Won)

	// E = 0.5 at equal ratings, so the winner gains exactly K/2.
	assert.Equal(t, constants.InitialRating+16, p1.Rating())
	assert.Equal(t, constants.InitialRating-16, p2.Rating())
}

func TestPostResult_Draw(t *testing.T) {
	p1 := New("alice")
	p2 := New("bob")

	PostResult(p1, p2, Draw)

	assert.Equal(t, constants.InitialRating, p1.Rating())
	assert.Equal(t, constants.InitialRating, p2.Rating())
}

func TestPostResult_UnderdogGainsMore(t *testing.T) {
	p1 := New("alice")
	p2 := New("bob")
	p1.addRating(200)

	PostResult(p1, p2, P2Won)

	favLoss := constants.InitialRating + 200 - p1.Rating()
	dogGain := p2.Rating() - constants.InitialRating
	assert.Equal(t, favLoss, dogGain, "zero-sum within rounding")
	assert.Greater(t, dogGain, 16, "an upset moves more than an even game")
}

// TestPostResult_RoundTrip verifies the win-then-loss round trip leaves both
// ratings within one point of where they started (integer rounding).
func TestPostResult_RoundTrip(t *testing.T) {
	p1 := New("alice")
	p2 := New("bob")

	PostResult(p1, p2, P1Won)
	PostResult(p1, p2, P2Won)

	assert.InDelta(t, constants.InitialRating, p1.Rating(), 1)
	assert.InDelta(t, constants.InitialRating, p2.Rating(), 1)
}

func TestPostResult_NoOps(t *testing.T) {
	p := New("alice")

	PostResult(nil, p, P1Won)
	PostResult(p, nil, P2Won)
	PostResult(p, New("bob"), Outcome(7))
	PostResult(p, New("bob"), Outcome(-1))

	assert.Equal(t, constants.InitialRating, p.Rating())
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()

	p1 := r.Register("alice")
	p2 := r.Register("alice")

	require.Same(t, p1, p2, "one Player per distinct name")
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_NamesAreCaseSensitive(t *testing.T) {
	r := NewRegistry()

	a := r.Register("alice")
	b := r.Register("Alice")

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, r.Count())
}

func TestRegistry_Lookup(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Lookup("ghost"))

	p := r.Register("alice")
	assert.Same(t, p, r.Lookup("alice"))
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := NewRegistry()

	const goroutines = 32
	players := make([]*Player, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			players[i] = r.Register("alice")
		}()
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		require.Same(t, players[0], players[i])
	}
	assert.Equal(t, 1, r.Count())
}

func TestPostResult_ConcurrentUpdatesKeepSum(t *testing.T) {
	p1 := New("alice")
	p2 := New("bob")

	// Alternating outcomes posted concurrently: each call is zero-sum up to
	// rounding, so the total drift stays bounded by the number of calls.
	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				PostResult(p1, p2, P1Won)
			} else {
				PostResult(p1, p2, P2Won)
			}
		}()
	}
	wg.Wait()

	sum := p1.Rating() + p2.Rating()
	assert.InDelta(t, 2*constants.InitialRating, sum, rounds)
}
