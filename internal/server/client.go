package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/udisondev/jeux/internal/constants"
	"github.com/udisondev/jeux/internal/game"
	"github.com/udisondev/jeux/internal/player"
	"github.com/udisondev/jeux/internal/protocol"
)

var (
	ErrNotLoggedIn      = errors.New("client not logged in")
	ErrAlreadyLoggedIn  = errors.New("client already logged in")
	ErrNameInUse        = errors.New("player already logged in on another client")
	ErrSlotTableFull    = errors.New("invitation slot table full")
	ErrNoSuchInvitation = errors.New("no invitation in that slot")
	ErrWrongPeer        = errors.New("client is not the right peer for this operation")
)

// Client is one connected session: the socket, the player bound by login,
// and the slot table of invitations this client currently participates in.
//
// Two locks: mu guards the mutable session state, sendMu serializes packet
// writes on the socket. They are never held together, so a send to a peer
// can never wait on that peer's state transitions. Reads from the socket
// are unsynchronized; only the owning session goroutine reads.
type Client struct {
	conn     net.Conn
	registry *Registry

	mu          sync.Mutex
	p           *player.Player
	invitations [constants.MaxInvitations]*Invitation

	sendMu sync.Mutex
}

func newClient(conn net.Conn, registry *Registry) *Client {
	return &Client{conn: conn, registry: registry}
}

// Player returns the bound player, or nil while logged out.
func (c *Client) Player() *player.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.p
}

// Conn returns the client's network connection.
func (c *Client) Conn() net.Conn { return c.conn }

// RemoteAddr returns the peer address for logging.
func (c *Client) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "?"
}

// Login binds the client to a player. It fails if this client is already
// logged in or any registered client is logged in under the same name; the
// registry arbitrates so two concurrent logins cannot both win.
func (c *Client) Login(p *player.Player) error {
	if p == nil {
		return fmt.Errorf("login: nil player")
	}
	return c.registry.login(c, p)
}

// bind is called by the registry with the registry lock held.
func (c *Client) bind(p *player.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.p != nil {
		return ErrAlreadyLoggedIn
	}
	c.p = p
	return nil
}

// Logout tears down the session's game state: accepted games are resigned,
// open offers we issued are revoked, open offers we received are declined.
// Then the player binding is released. Fails if not logged in.
func (c *Client) Logout() error {
	c.mu.Lock()
	if c.p == nil {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	slots := c.invitations
	c.mu.Unlock()

	for id, inv := range slots {
		if inv == nil {
			continue
		}
		var err error
		switch {
		case inv.Game() != nil:
			err = c.ResignGame(id)
		case inv.Source() == c:
			err = c.RevokeInvitation(id)
		default:
			err = c.DeclineInvitation(id)
		}
		if err != nil {
			slog.Debug("logout: slot teardown failed", "slot", id, "err", err)
		}
	}

	c.mu.Lock()
	c.p = nil
	c.mu.Unlock()
	return nil
}

// AddInvitation places inv in the lowest-indexed free slot and returns its
// id.
func (c *Client) AddInvitation(inv *Invitation) (int, error) {
	if inv == nil {
		return -1, fmt.Errorf("add invitation: nil invitation")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.invitations {
		if c.invitations[id] == nil {
			c.invitations[id] = inv
			return id, nil
		}
	}
	return -1, ErrSlotTableFull
}

// RemoveInvitation clears the slot holding inv and returns its id.
func (c *Client) RemoveInvitation(inv *Invitation) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id := range c.invitations {
		if c.invitations[id] == inv {
			c.invitations[id] = nil
			return id, nil
		}
	}
	return -1, ErrNoSuchInvitation
}

// invitation returns the slot's invitation, or nil.
func (c *Client) invitation(id int) *Invitation {
	if id < 0 || id >= constants.MaxInvitations {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invitations[id]
}

// invitationID returns this client's slot id for inv, or -1.
func (c *Client) invitationID(inv *Invitation) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.invitations {
		if c.invitations[id] == inv {
			return id
		}
	}
	return -1
}

// MakeInvitation creates an OPEN invitation from this client to target,
// places it in both slot tables, and notifies the target with an INVITED
// packet carrying the target's slot id and role. Returns this client's
// slot id for the new invitation.
func (c *Client) MakeInvitation(target *Client, sourceRole, targetRole game.Role) (int, error) {
	inv, err := newInvitation(c, target, sourceRole, targetRole)
	if err != nil {
		return -1, err
	}

	srcID, err := c.AddInvitation(inv)
	if err != nil {
		return -1, err
	}
	tgtID, err := target.AddInvitation(inv)
	if err != nil {
		c.RemoveInvitation(inv)
		return -1, err
	}

	if err := target.SendPacket(protocol.Header{
		Type: protocol.TypeInvited,
		ID:   uint8(tgtID),
		Role: uint8(targetRole),
	}, nil); err != nil {
		slog.Warn("failed to deliver INVITED", "target", target.RemoteAddr(), "err", err)
	}
	return srcID, nil
}

// RevokeInvitation withdraws an open invitation this client issued. The
// invitation is closed, removed from both peers, and the target receives a
// REVOKED packet carrying its slot id.
func (c *Client) RevokeInvitation(id int) error {
	inv := c.invitation(id)
	if inv == nil {
		return ErrNoSuchInvitation
	}
	if inv.Source() != c {
		return fmt.Errorf("revoke: %w", ErrWrongPeer)
	}
	if err := inv.Close(game.None); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	target := inv.Target()
	if _, err := c.RemoveInvitation(inv); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	tgtID, err := target.RemoveInvitation(inv)
	if err != nil {
		return fmt.Errorf("revoke: %w", err)
	}

	if err := target.SendPacket(protocol.Header{
		Type: protocol.TypeRevoked,
		ID:   uint8(tgtID),
	}, nil); err != nil {
		slog.Warn("failed to deliver REVOKED", "target", target.RemoteAddr(), "err", err)
	}
	return nil
}

// DeclineInvitation refuses an open invitation this client received. The
// invitation is closed, removed from both peers, and the source receives a
// DECLINED packet carrying its slot id.
func (c *Client) DeclineInvitation(id int) error {
	inv := c.invitation(id)
	if inv == nil {
		return ErrNoSuchInvitation
	}
	if inv.Target() != c {
		return fmt.Errorf("decline: %w", ErrWrongPeer)
	}
	if err := inv.Close(game.None); err != nil {
		return fmt.Errorf("decline: %w", err)
	}

	source := inv.Source()
	if _, err := c.RemoveInvitation(inv); err != nil {
		return fmt.Errorf("decline: %w", err)
	}
	srcID, err := source.RemoveInvitation(inv)
	if err != nil {
		return fmt.Errorf("decline: %w", err)
	}

	if err := source.SendPacket(protocol.Header{
		Type: protocol.TypeDeclined,
		ID:   uint8(srcID),
	}, nil); err != nil {
		slog.Warn("failed to deliver DECLINED", "source", source.RemoteAddr(), "err", err)
	}
	return nil
}

// AcceptInvitation accepts an open invitation this client received,
// creating the game, and notifies the source with an ACCEPTED packet
// carrying its slot id. Whichever party moves first gets the initial board:
// as the ACCEPTED payload when the source plays FIRST, otherwise as the
// returned string, which the caller sends back to the accepter in its ACK.
func (c *Client) AcceptInvitation(id int) (string, error) {
	inv := c.invitation(id)
	if inv == nil {
		return "", ErrNoSuchInvitation
	}
	if inv.Target() != c {
		return "", fmt.Errorf("accept: %w", ErrWrongPeer)
	}
	if err := inv.Accept(); err != nil {
		return "", err
	}

	source := inv.Source()
	srcID := source.invitationID(inv)
	if srcID < 0 {
		return "", fmt.Errorf("accept: source lost the invitation")
	}

	state := inv.Game().UnparseState()
	hdr := protocol.Header{Type: protocol.TypeAccepted, ID: uint8(srcID)}

	if inv.SourceRole() == game.First {
		if err := source.SendPacket(hdr, []byte(state)); err != nil {
			slog.Warn("failed to deliver ACCEPTED", "source", source.RemoteAddr(), "err", err)
		}
		return "", nil
	}
	if err := source.SendPacket(hdr, nil); err != nil {
		slog.Warn("failed to deliver ACCEPTED", "source", source.RemoteAddr(), "err", err)
	}
	return state, nil
}

// ResignGame resigns the accepted game in the given slot. The opponent
// wins, ratings are posted, the invitation is closed and removed from both
// peers, and the opponent receives a RESIGNED packet carrying its slot id.
func (c *Client) ResignGame(id int) error {
	inv := c.invitation(id)
	if inv == nil {
		return ErrNoSuchInvitation
	}

	role, opp := c.roleIn(inv)
	if role == game.None {
		return fmt.Errorf("resign: %w", ErrWrongPeer)
	}
	if err := inv.Close(role); err != nil {
		return fmt.Errorf("resign: %w", err)
	}

	// The resigner loses; post from the FIRST player's perspective.
	if role == game.First {
		player.PostResult(c.Player(), opp.Player(), player.P2Won)
	} else {
		player.PostResult(opp.Player(), c.Player(), player.P1Won)
	}

	if _, err := c.RemoveInvitation(inv); err != nil {
		return fmt.Errorf("resign: %w", err)
	}
	oppID, err := opp.RemoveInvitation(inv)
	if err != nil {
		return fmt.Errorf("resign: %w", err)
	}

	if err := opp.SendPacket(protocol.Header{
		Type: protocol.TypeResigned,
		ID:   uint8(oppID),
	}, nil); err != nil {
		slog.Warn("failed to deliver RESIGNED", "opponent", opp.RemoteAddr(), "err", err)
	}
	return nil
}

// MakeMove plays a move in the accepted game in the given slot. A move that
// finishes the game posts the ratings, removes the invitation from both
// peers, and sends ENDED to both participants with their own slot ids. A
// move that keeps the game going sends MOVED with the new board to the
// opponent and an ACK to the mover.
func (c *Client) MakeMove(id int, moveStr string) error {
	inv := c.invitation(id)
	if inv == nil {
		return ErrNoSuchInvitation
	}
	g := inv.Game()
	if g == nil {
		return fmt.Errorf("move: %w", ErrInvitationState)
	}

	role, opp := c.roleIn(inv)
	if role == game.None {
		return fmt.Errorf("move: %w", ErrWrongPeer)
	}

	m, err := g.ParseMove(role, moveStr)
	if err != nil {
		return err
	}
	if err := g.Apply(m); err != nil {
		return fmt.Errorf("move: %w", err)
	}

	if g.Over() {
		c.finishGame(inv, g)
		return nil
	}

	oppID := opp.invitationID(inv)
	if oppID < 0 {
		return fmt.Errorf("move: opponent lost the invitation")
	}
	if err := opp.SendPacket(protocol.Header{
		Type: protocol.TypeMoved,
		ID:   uint8(oppID),
	}, []byte(g.UnparseState())); err != nil {
		slog.Warn("failed to deliver MOVED", "opponent", opp.RemoteAddr(), "err", err)
	}
	return c.SendAck(nil)
}

// finishGame settles a game that just terminated by a move: ratings, slot
// removal on both sides, ENDED to both participants.
func (c *Client) finishGame(inv *Invitation, g *game.Game) {
	source, target := inv.Source(), inv.Target()

	firstP, secondP := source.Player(), target.Player()
	if inv.SourceRole() != game.First {
		firstP, secondP = secondP, firstP
	}
	switch g.Winner() {
	case game.First:
		player.PostResult(firstP, secondP, player.P1Won)
	case game.Second:
		player.PostResult(firstP, secondP, player.P2Won)
	default:
		player.PostResult(firstP, secondP, player.Draw)
	}

	for _, peer := range []*Client{source, target} {
		peerID, err := peer.RemoveInvitation(inv)
		if err != nil {
			slog.Warn("finished game missing from peer table", "peer", peer.RemoteAddr(), "err", err)
			continue
		}
		if err := peer.SendPacket(protocol.Header{
			Type: protocol.TypeEnded,
			ID:   uint8(peerID),
		}, nil); err != nil {
			slog.Warn("failed to deliver ENDED", "peer", peer.RemoteAddr(), "err", err)
		}
	}
}

// roleIn returns the role this client plays in inv and the opposing client,
// or NONE if the client is not a participant.
func (c *Client) roleIn(inv *Invitation) (game.Role, *Client) {
	switch c {
	case inv.Target():
		return inv.TargetRole(), inv.Source()
	case inv.Source():
		return inv.SourceRole(), inv.Target()
	default:
		return game.None, nil
	}
}

// SendPacket stamps the header with the current wall clock and writes the
// packet, holding the send lock for the whole transmission so concurrent
// senders cannot interleave bytes.
func (c *Client) SendPacket(hdr protocol.Header, payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	hdr.Stamp()
	if err := protocol.Send(c.conn, hdr, payload); err != nil {
		return fmt.Errorf("send to %s: %w", c.RemoteAddr(), err)
	}
	return nil
}

// SendAck sends an ACK with an optional payload.
func (c *Client) SendAck(payload []byte) error {
	return c.SendPacket(protocol.Header{Type: protocol.TypeAck}, payload)
}

// SendNack sends a NACK.
func (c *Client) SendNack() error {
	return c.SendPacket(protocol.Header{Type: protocol.TypeNack}, nil)
}
