package server

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/jeux/internal/constants"
	"github.com/udisondev/jeux/internal/game"
	"github.com/udisondev/jeux/internal/player"
	"github.com/udisondev/jeux/internal/protocol"
	"github.com/udisondev/jeux/internal/testutil"
)

// nullConn is a connection that swallows writes; for tests that exercise
// state transitions without caring about emitted packets.
type nullConn struct{}

func (nullConn) Read(p []byte) (int, error)       { return 0, io.EOF }
func (nullConn) Write(p []byte) (int, error)      { return len(p), nil }
func (nullConn) Close() error                     { return nil }
func (nullConn) LocalAddr() net.Addr              { return &net.TCPAddr{} }
func (nullConn) RemoteAddr() net.Addr             { return &net.TCPAddr{} }
func (nullConn) SetDeadline(time.Time) error      { return nil }
func (nullConn) SetReadDeadline(time.Time) error  { return nil }
func (nullConn) SetWriteDeadline(time.Time) error { return nil }

func loggedInPair(t *testing.T) (*Registry, *Client, *Client) {
	t.Helper()
	r := NewRegistry()
	src := r.Register(nullConn{})
	tgt := r.Register(nullConn{})
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))
	return r, src, tgt
}

func TestClient_Login(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nullConn{})
	alice := player.New("alice")

	require.NoError(t, c.Login(alice))
	assert.Same(t, alice, c.Player())

	assert.ErrorIs(t, c.Login(player.New("bob")), ErrAlreadyLoggedIn)

	// Another client cannot claim the same name.
	c2 := r.Register(nullConn{})
	assert.ErrorIs(t, c2.Login(player.New("alice")), ErrNameInUse)

	// But a different name is fine.
	require.NoError(t, c2.Login(player.New("bob")))
}

func TestClient_LogoutReleasesName(t *testing.T) {
	r := NewRegistry()
	c := r.Register(nullConn{})
	require.NoError(t, c.Login(player.New("alice")))

	require.NoError(t, c.Logout())
	assert.Nil(t, c.Player())
	assert.ErrorIs(t, c.Logout(), ErrNotLoggedIn)

	c2 := r.Register(nullConn{})
	assert.NoError(t, c2.Login(player.New("alice")))
}

func TestClient_SlotTable(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	inv, err := newInvitation(src, tgt, game.First, game.Second)
	require.NoError(t, err)

	id, err := src.AddInvitation(inv)
	require.NoError(t, err)
	assert.Equal(t, 0, id, "lowest free slot first")

	inv2, err := newInvitation(src, tgt, game.Second, game.First)
	require.NoError(t, err)
	id2, err := src.AddInvitation(inv2)
	require.NoError(t, err)
	assert.Equal(t, 1, id2)

	got, err := src.RemoveInvitation(inv)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	_, err = src.RemoveInvitation(inv)
	assert.ErrorIs(t, err, ErrNoSuchInvitation)

	// Freed slot is reused before higher indices.
	id3, err := src.AddInvitation(inv)
	require.NoError(t, err)
	assert.Equal(t, 0, id3)
}

func TestClient_SlotTableFull(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	for n := 0; n < constants.MaxInvitations; n++ {
		inv, err := newInvitation(src, tgt, game.First, game.Second)
		require.NoError(t, err)
		_, err = src.AddInvitation(inv)
		require.NoError(t, err)
	}

	inv, err := newInvitation(src, tgt, game.First, game.Second)
	require.NoError(t, err)
	_, err = src.AddInvitation(inv)
	assert.ErrorIs(t, err, ErrSlotTableFull)
}

func TestMakeInvitation_BothTablesAndPacket(t *testing.T) {
	r := NewRegistry()
	src := r.Register(nullConn{})
	tgtConn, tgtServer := testutil.PipeConn(t)
	tgt := r.Register(tgtServer)
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	idCh := make(chan int, 1)
	go func() {
		id, err := src.MakeInvitation(tgt, game.First, game.Second)
		if err != nil {
			id = -1
		}
		idCh <- id
	}()

	hdr, payload := testutil.Expect(t, tgtConn, protocol.TypeInvited)
	assert.Equal(t, uint8(0), hdr.ID, "target's slot id")
	assert.Equal(t, uint8(game.Second), hdr.Role, "target's role")
	assert.Nil(t, payload)

	srcID := <-idCh
	require.Equal(t, 0, srcID)

	inv := src.invitation(srcID)
	require.NotNil(t, inv)
	assert.Same(t, inv, tgt.invitation(int(hdr.ID)), "one instance in both tables")
	assert.Equal(t, StateOpen, inv.State())
}

func TestRevokeInvitation(t *testing.T) {
	r := NewRegistry()
	src := r.Register(nullConn{})
	tgtConn, tgtServer := testutil.PipeConn(t)
	tgt := r.Register(tgtServer)
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	go func() { _, _ = src.MakeInvitation(tgt, game.First, game.Second) }()
	invited, _ := testutil.Expect(t, tgtConn, protocol.TypeInvited)

	// Target cannot revoke; only the source can.
	assert.ErrorIs(t, tgt.RevokeInvitation(int(invited.ID)), ErrWrongPeer)

	errCh := make(chan error, 1)
	go func() { errCh <- src.RevokeInvitation(0) }()

	revoked, _ := testutil.Expect(t, tgtConn, protocol.TypeRevoked)
	assert.Equal(t, invited.ID, revoked.ID)
	require.NoError(t, <-errCh)

	assert.Nil(t, src.invitation(0))
	assert.Nil(t, tgt.invitation(int(invited.ID)))
	assert.ErrorIs(t, src.RevokeInvitation(0), ErrNoSuchInvitation)
}

func TestDeclineInvitation(t *testing.T) {
	r := NewRegistry()
	srcConn, srcServer := testutil.PipeConn(t)
	src := r.Register(srcServer)
	tgt := r.Register(nullConn{})
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	srcID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)

	assert.ErrorIs(t, src.DeclineInvitation(srcID), ErrWrongPeer,
		"source cannot decline its own offer")

	errCh := make(chan error, 1)
	go func() { errCh <- tgt.DeclineInvitation(tgt.invitationID(src.invitation(srcID))) }()

	declined, _ := testutil.Expect(t, srcConn, protocol.TypeDeclined)
	assert.Equal(t, uint8(srcID), declined.ID)
	require.NoError(t, <-errCh)

	assert.Nil(t, src.invitation(srcID))
}

func TestAcceptInvitation_SourceMovesFirst(t *testing.T) {
	r := NewRegistry()
	srcConn, srcServer := testutil.PipeConn(t)
	src := r.Register(srcServer)
	tgt := r.Register(nullConn{})
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	srcID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)
	tgtID := tgt.invitationID(src.invitation(srcID))

	type result struct {
		state string
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		state, err := tgt.AcceptInvitation(tgtID)
		resCh <- result{state, err}
	}()

	accepted, payload := testutil.Expect(t, srcConn, protocol.TypeAccepted)
	assert.Equal(t, uint8(srcID), accepted.ID)
	assert.Equal(t, " | | \n | | \n | | \n", string(payload),
		"the first mover sees the initial board")

	res := <-resCh
	require.NoError(t, res.err)
	assert.Empty(t, res.state, "the accepter moves second, no board for it")

	inv := src.invitation(srcID)
	assert.Equal(t, StateAccepted, inv.State())
	assert.NotNil(t, inv.Game())
}

func TestAcceptInvitation_TargetMovesFirst(t *testing.T) {
	r := NewRegistry()
	srcConn, srcServer := testutil.PipeConn(t)
	src := r.Register(srcServer)
	tgt := r.Register(nullConn{})
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	srcID, err := src.MakeInvitation(tgt, game.Second, game.First)
	require.NoError(t, err)
	tgtID := tgt.invitationID(src.invitation(srcID))

	stateCh := make(chan string, 1)
	go func() {
		state, err := tgt.AcceptInvitation(tgtID)
		if err != nil {
			state = "err: " + err.Error()
		}
		stateCh <- state
	}()

	_, payload := testutil.Expect(t, srcConn, protocol.TypeAccepted)
	assert.Nil(t, payload, "source moves second, no board in ACCEPTED")

	assert.Equal(t, " | | \n | | \n | | \n", <-stateCh,
		"the accepter moves first and gets the board for its ACK")
}

func TestAcceptInvitation_Rejections(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	srcID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)
	tgtID := tgt.invitationID(src.invitation(srcID))

	_, err = src.AcceptInvitation(srcID)
	assert.ErrorIs(t, err, ErrWrongPeer, "only the target accepts")

	_, err = tgt.AcceptInvitation(tgtID + 1)
	assert.ErrorIs(t, err, ErrNoSuchInvitation)

	_, err = tgt.AcceptInvitation(tgtID)
	require.NoError(t, err)
	_, err = tgt.AcceptInvitation(tgtID)
	assert.Error(t, err, "double accept")
}

func TestResignGame_RatingsAndTeardown(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	srcID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)
	tgtID := tgt.invitationID(src.invitation(srcID))
	_, err = tgt.AcceptInvitation(tgtID)
	require.NoError(t, err)

	require.NoError(t, src.ResignGame(srcID))

	assert.Less(t, src.Player().Rating(), constants.InitialRating, "resigner loses points")
	assert.Greater(t, tgt.Player().Rating(), constants.InitialRating, "opponent gains points")
	assert.Nil(t, src.invitation(srcID))
	assert.Nil(t, tgt.invitation(tgtID))
}

func TestResignGame_RequiresAcceptedState(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	srcID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)

	assert.Error(t, src.ResignGame(srcID), "open invitation cannot be resigned")
	assert.NotNil(t, src.invitation(srcID), "failed resign leaves the slot intact")
	assert.Equal(t, constants.InitialRating, src.Player().Rating(), "no rating change on failure")
}

func TestMakeMove_MidGame(t *testing.T) {
	r := NewRegistry()
	srcConn, srcServer := testutil.PipeConn(t)
	src := r.Register(srcServer)
	tgtConn, tgtServer := testutil.PipeConn(t)
	tgt := r.Register(tgtServer)
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	go func() { _, _ = src.MakeInvitation(tgt, game.First, game.Second) }()
	invited, _ := testutil.Expect(t, tgtConn, protocol.TypeInvited)
	tgtID := int(invited.ID)
	go func() { _, _ = tgt.AcceptInvitation(tgtID) }()
	testutil.Expect(t, srcConn, protocol.TypeAccepted)

	errCh := make(chan error, 1)
	go func() { errCh <- src.MakeMove(0, "5") }()

	moved, payload := testutil.Expect(t, tgtConn, protocol.TypeMoved)
	assert.Equal(t, uint8(tgtID), moved.ID)
	assert.Equal(t, " | | \n |X| \n | | \n", string(payload))

	testutil.Expect(t, srcConn, protocol.TypeAck)
	require.NoError(t, <-errCh)
}

func TestMakeMove_Rejections(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	srcID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)

	assert.Error(t, src.MakeMove(srcID, "5"), "no game before accept")

	tgtID := tgt.invitationID(src.invitation(srcID))
	_, err = tgt.AcceptInvitation(tgtID)
	require.NoError(t, err)

	assert.Error(t, tgt.MakeMove(tgtID, "5"), "not the target's turn")
	assert.Error(t, src.MakeMove(srcID, "banana"), "unparseable move")
	assert.Error(t, src.MakeMove(srcID+1, "5"), "empty slot")
	assert.NotNil(t, src.invitation(srcID), "failed moves leave the match alive")
}

func TestMakeMove_WinEndsGame(t *testing.T) {
	r := NewRegistry()
	srcConn, srcServer := testutil.PipeConn(t)
	src := r.Register(srcServer)
	tgtConn, tgtServer := testutil.PipeConn(t)
	tgt := r.Register(tgtServer)
	require.NoError(t, src.Login(player.New("alice")))
	require.NoError(t, tgt.Login(player.New("bob")))

	go func() { _, _ = src.MakeInvitation(tgt, game.First, game.Second) }()
	invited, _ := testutil.Expect(t, tgtConn, protocol.TypeInvited)
	tgtID := int(invited.ID)
	go func() { _, _ = tgt.AcceptInvitation(tgtID) }()
	testutil.Expect(t, srcConn, protocol.TypeAccepted)

	move := func(c *Client, conn net.Conn, id int, s string) {
		t.Helper()
		errCh := make(chan error, 1)
		go func() { errCh <- c.MakeMove(id, s) }()
		if conn != nil {
			testutil.Expect(t, conn, protocol.TypeAck)
		}
		require.NoError(t, <-errCh)
	}

	// alice: 1 2 _, bob: 4 5. Opponent packets are drained as they arrive.
	go func() { _, _, _ = protocol.Recv(tgtConn) }()
	move(src, srcConn, 0, "1")
	go func() { _, _, _ = protocol.Recv(srcConn) }()
	move(tgt, tgtConn, tgtID, "4")
	go func() { _, _, _ = protocol.Recv(tgtConn) }()
	move(src, srcConn, 0, "2")
	go func() { _, _, _ = protocol.Recv(srcConn) }()
	move(tgt, tgtConn, tgtID, "5")

	// The winning move: no ACK, both sides get ENDED (source first).
	errCh := make(chan error, 1)
	go func() { errCh <- src.MakeMove(0, "3") }()

	endedSrc, _ := testutil.Expect(t, srcConn, protocol.TypeEnded)
	assert.Equal(t, uint8(0), endedSrc.ID)
	endedTgt, _ := testutil.Expect(t, tgtConn, protocol.TypeEnded)
	assert.Equal(t, uint8(tgtID), endedTgt.ID)
	require.NoError(t, <-errCh)

	assert.Nil(t, src.invitation(0))
	assert.Nil(t, tgt.invitation(tgtID))
	assert.Greater(t, src.Player().Rating(), constants.InitialRating)
	assert.Less(t, tgt.Player().Rating(), constants.InitialRating)
}

func TestLogout_TearsDownSlots(t *testing.T) {
	_, src, tgt := loggedInPair(t)

	// An accepted game, an open offer we made, an open offer we received.
	gameID, err := src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)
	_, err = tgt.AcceptInvitation(tgt.invitationID(src.invitation(gameID)))
	require.NoError(t, err)

	_, err = src.MakeInvitation(tgt, game.First, game.Second)
	require.NoError(t, err)
	_, err = tgt.MakeInvitation(src, game.First, game.Second)
	require.NoError(t, err)

	alice, bob := src.Player(), tgt.Player()
	require.NoError(t, src.Logout())

	for id := 0; id < constants.MaxInvitations; id++ {
		assert.Nil(t, src.invitation(id), "slot %d", id)
		assert.Nil(t, tgt.invitation(id), "slot %d", id)
	}

	// The accepted game counts as a resignation by the departing client.
	assert.Less(t, alice.Rating(), constants.InitialRating)
	assert.Greater(t, bob.Rating(), constants.InitialRating)
}
