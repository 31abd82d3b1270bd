package protocol

// Type identifies the kind of a packet.
type Type uint8

// Packet types. The zero value is reserved so an all-zero header is never a
// valid packet.
const (
	TypeNone Type = iota

	// Client → server requests.
	TypeLogin
	TypeUsers
	TypeInvite
	TypeRevoke
	TypeAccept
	TypeDecline
	TypeMove
	TypeResign

	// Server → client responses and events.
	TypeAck
	TypeNack
	TypeInvited
	TypeRevoked
	TypeAccepted
	TypeDeclined
	TypeMoved
	TypeResigned
	TypeEnded
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "NONE"
	case TypeLogin:
		return "LOGIN"
	case TypeUsers:
		return "USERS"
	case TypeInvite:
		return "INVITE"
	case TypeRevoke:
		return "REVOKE"
	case TypeAccept:
		return "ACCEPT"
	case TypeDecline:
		return "DECLINE"
	case TypeMove:
		return "MOVE"
	case TypeResign:
		return "RESIGN"
	case TypeAck:
		return "ACK"
	case TypeNack:
		return "NACK"
	case TypeInvited:
		return "INVITED"
	case TypeRevoked:
		return "REVOKED"
	case TypeAccepted:
		return "ACCEPTED"
	case TypeDeclined:
		return "DECLINED"
	case TypeMoved:
		return "MOVED"
	case TypeResigned:
		return "RESIGNED"
	case TypeEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// IsRequest reports whether t is a packet type clients may send.
func (t Type) IsRequest() bool {
	return t >= TypeLogin && t <= TypeResign
}
