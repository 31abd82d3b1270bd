package server

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/udisondev/jeux/internal/game"
	"github.com/udisondev/jeux/internal/player"
	"github.com/udisondev/jeux/internal/protocol"
)

// Handler dispatches one client request to the matching client operation.
// One Handler serves every session; it owns no per-connection state.
type Handler struct {
	players *player.Registry
	clients *Registry
}

// NewHandler creates the packet handler over both registries.
func NewHandler(players *player.Registry, clients *Registry) *Handler {
	return &Handler{players: players, clients: clients}
}

// Handle processes a single request packet for c. Requests dispatch by type
// and login state: while logged out only LOGIN is honored, afterwards LOGIN
// is rejected. Failures of any kind map to a NACK; the connection stays
// open. Send errors are returned so the session loop can tear down.
func (h *Handler) Handle(c *Client, hdr protocol.Header, payload []byte) error {
	if c.Player() == nil {
		if hdr.Type != protocol.TypeLogin {
			slog.Warn("packet before login", "type", hdr.Type, "remote", c.RemoteAddr())
			return c.SendNack()
		}
		return h.handleLogin(c, payload)
	}

	switch hdr.Type {
	case protocol.TypeLogin:
		slog.Warn("LOGIN while logged in", "remote", c.RemoteAddr())
		return c.SendNack()
	case protocol.TypeUsers:
		return h.handleUsers(c)
	case protocol.TypeInvite:
		return h.handleInvite(c, hdr, payload)
	case protocol.TypeRevoke:
		return h.reply(c, c.RevokeInvitation(int(hdr.ID)), nil)
	case protocol.TypeDecline:
		return h.reply(c, c.DeclineInvitation(int(hdr.ID)), nil)
	case protocol.TypeAccept:
		return h.handleAccept(c, hdr)
	case protocol.TypeMove:
		return h.handleMove(c, hdr, payload)
	case protocol.TypeResign:
		return h.reply(c, c.ResignGame(int(hdr.ID)), nil)
	default:
		slog.Warn("unknown packet type", "type", uint8(hdr.Type), "remote", c.RemoteAddr())
		return c.SendNack()
	}
}

// reply maps an operation result onto the wire: NACK on error, otherwise an
// ACK with the optional payload.
func (h *Handler) reply(c *Client, err error, payload []byte) error {
	if err != nil {
		slog.Debug("request failed", "remote", c.RemoteAddr(), "err", err)
		return c.SendNack()
	}
	return c.SendAck(payload)
}

func (h *Handler) handleLogin(c *Client, payload []byte) error {
	if len(payload) == 0 {
		slog.Warn("LOGIN without username", "remote", c.RemoteAddr())
		return c.SendNack()
	}
	name := string(payload)

	p := h.players.Register(name)
	if err := c.Login(p); err != nil {
		slog.Warn("login rejected", "player", name, "remote", c.RemoteAddr(), "err", err)
		return c.SendNack()
	}
	slog.Info("client logged in", "player", name, "remote", c.RemoteAddr())
	return c.SendAck(nil)
}

func (h *Handler) handleUsers(c *Client) error {
	var b strings.Builder
	for _, p := range h.clients.AllPlayers() {
		b.WriteString(p.Name())
		b.WriteByte('\t')
		b.WriteString(strconv.Itoa(p.Rating()))
		b.WriteByte('\n')
	}
	return c.SendAck([]byte(b.String()))
}

func (h *Handler) handleInvite(c *Client, hdr protocol.Header, payload []byte) error {
	sourceRole := game.Role(hdr.Role)
	if sourceRole != game.First && sourceRole != game.Second {
		return h.reply(c, fmt.Errorf("invite: role byte %d", hdr.Role), nil)
	}
	if len(payload) == 0 {
		return h.reply(c, fmt.Errorf("invite: missing target username"), nil)
	}

	target := h.clients.Lookup(string(payload))
	if target == nil {
		return h.reply(c, fmt.Errorf("invite: %q is not logged in", payload), nil)
	}

	id, err := c.MakeInvitation(target, sourceRole, sourceRole.Other())
	if err != nil {
		return h.reply(c, err, nil)
	}
	slog.Info("invitation made",
		"source", c.Player().Name(),
		"target", string(payload),
		"sourceRole", sourceRole)
	return c.SendPacket(protocol.Header{Type: protocol.TypeAck, ID: uint8(id)}, nil)
}

func (h *Handler) handleAccept(c *Client, hdr protocol.Header) error {
	state, err := c.AcceptInvitation(int(hdr.ID))
	if err != nil {
		return h.reply(c, err, nil)
	}
	// The accepter only sees the board in its ACK when it moves first.
	if state != "" {
		return c.SendAck([]byte(state))
	}
	return c.SendAck(nil)
}

func (h *Handler) handleMove(c *Client, hdr protocol.Header, payload []byte) error {
	if len(payload) == 0 {
		return h.reply(c, fmt.Errorf("move: missing move string"), nil)
	}
	// MakeMove acknowledges a mid-game move itself and sends ENDED to both
	// sides on a finishing move; only failures produce a reply here.
	if err := c.MakeMove(int(hdr.ID), string(payload)); err != nil {
		slog.Debug("move rejected", "remote", c.RemoteAddr(), "err", err)
		return c.SendNack()
	}
	return nil
}
