package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/udisondev/jeux/internal/game"
)

// InvState is the lifecycle state of an invitation. Transitions are
// monotone: OPEN→ACCEPTED→CLOSED or OPEN→CLOSED, never backwards.
type InvState int

const (
	StateOpen InvState = iota
	StateAccepted
	StateClosed
)

func (s InvState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateAccepted:
		return "ACCEPTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrInvitationState = errors.New("invitation in wrong state")
)

// Invitation is a two-party offer of a game, created by a source client and
// directed at a target. Both peers hold the same Invitation in their slot
// tables until one of the removal paths (revoke, decline, resign, game end,
// logout) clears it from both. Once accepted it owns the Game.
type Invitation struct {
	source     *Client
	target     *Client
	sourceRole game.Role
	targetRole game.Role

	mu    sync.Mutex
	state InvState
	g     *game.Game
}

func newInvitation(source, target *Client, sourceRole, targetRole game.Role) (*Invitation, error) {
	if source == nil || target == nil || source == target {
		return nil, fmt.Errorf("invitation: source and target must be distinct clients")
	}
	if sourceRole == game.None || targetRole != sourceRole.Other() {
		return nil, fmt.Errorf("invitation: roles %s/%s are not complementary", sourceRole, targetRole)
	}
	return &Invitation{
		source:     source,
		target:     target,
		sourceRole: sourceRole,
		targetRole: targetRole,
		state:      StateOpen,
	}, nil
}

// Source returns the client that issued the invitation.
func (inv *Invitation) Source() *Client { return inv.source }

// Target returns the client the invitation is directed at.
func (inv *Invitation) Target() *Client { return inv.target }

// SourceRole returns the role the source will play.
func (inv *Invitation) SourceRole() game.Role { return inv.sourceRole }

// TargetRole returns the role the target will play.
func (inv *Invitation) TargetRole() game.Role { return inv.targetRole }

// State returns the current lifecycle state.
func (inv *Invitation) State() InvState {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Game returns the game held by an accepted invitation, or nil. The
// reference stays valid only as long as the invitation is held by a peer.
func (inv *Invitation) Game() *game.Game {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.g
}

// Accept transitions OPEN→ACCEPTED and creates the game.
func (inv *Invitation) Accept() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if inv.state != StateOpen {
		return fmt.Errorf("accept: %w: %s", ErrInvitationState, inv.state)
	}
	inv.state = StateAccepted
	inv.g = game.New()
	return nil
}

// Close finishes the invitation. An OPEN invitation closes only with role
// NONE (revoke/decline); an ACCEPTED one closes only with the resigning
// role, which also resigns the game. A closed invitation never reopens.
func (inv *Invitation) Close(role game.Role) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	switch inv.state {
	case StateOpen:
		if role != game.None {
			return fmt.Errorf("close: %w: open invitation closes without a role", ErrInvitationState)
		}
	case StateAccepted:
		if role == game.None {
			return fmt.Errorf("close: %w: accepted invitation needs a resigning role", ErrInvitationState)
		}
		if err := inv.g.Resign(role); err != nil {
			return fmt.Errorf("close: %w", err)
		}
	default:
		return fmt.Errorf("close: %w: %s", ErrInvitationState, inv.state)
	}
	inv.state = StateClosed
	return nil
}
