package constants

// Jeux Protocol Constants
//
// The wire format is a fixed 16-byte header followed by an optional payload.
// All multi-byte header fields are big-endian for compatibility with the
// existing clients.

// Packet Structure Constants
const (
	// PacketHeaderSize is the fixed packet header size in bytes.
	PacketHeaderSize = 16

	// MaxPayloadSize is the largest payload a single packet may carry
	// (the size field is an unsigned 16-bit count).
	MaxPayloadSize = 0xFFFF

	// GameStateSize is the length of the rendered 3x3 board:
	// three rows of "C|C|C\n".
	GameStateSize = 18
)

// Server Constants
const (
	// MaxInvitations is the capacity of each client's invitation slot
	// table. Invitation ids handed to clients are indices into it.
	MaxInvitations = 64

	// InitialRating is the Elo rating assigned to a player on first login.
	InitialRating = 1500

	// EloK is the K-factor of the rating update.
	EloK = 32
)
