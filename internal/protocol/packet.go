package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/udisondev/jeux/internal/constants"
)

// Header is the decoded form of the fixed 16-byte packet header.
//
// Wire layout (all multi-byte fields big-endian):
//
//	offset 0  type          (1 byte)
//	offset 1  id            (1 byte, local invitation id)
//	offset 2  role          (1 byte, 0=NONE 1=FIRST 2=SECOND)
//	offset 3  reserved      (1 byte, zero)
//	offset 4  size          (2 bytes, payload length)
//	offset 6  reserved      (2 bytes, zero)
//	offset 8  timestamp_sec (4 bytes)
//	offset 12 timestamp_nsec(4 bytes)
type Header struct {
	Type          Type
	ID            uint8
	Role          uint8
	Size          uint16
	TimestampSec  uint32
	TimestampNsec uint32
}

// Stamp sets the header timestamp to the current wall clock. Receivers do
// not validate timestamps; they exist for client-side latency display.
func (h *Header) Stamp() {
	now := time.Now()
	h.TimestampSec = uint32(now.Unix())
	h.TimestampNsec = uint32(now.Nanosecond())
}

func (h *Header) marshal(buf *[constants.PacketHeaderSize]byte) {
	buf[0] = byte(h.Type)
	buf[1] = h.ID
	buf[2] = h.Role
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:6], h.Size)
	binary.BigEndian.PutUint16(buf[6:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], h.TimestampSec)
	binary.BigEndian.PutUint32(buf[12:16], h.TimestampNsec)
}

func (h *Header) unmarshal(buf *[constants.PacketHeaderSize]byte) {
	h.Type = Type(buf[0])
	h.ID = buf[1]
	h.Role = buf[2]
	h.Size = binary.BigEndian.Uint16(buf[4:6])
	h.TimestampSec = binary.BigEndian.Uint32(buf[8:12])
	h.TimestampNsec = binary.BigEndian.Uint32(buf[12:16])
}

// Send writes one packet to w: the marshalled header, then payload.
// The header size field is forced to len(payload). Passing a payload longer
// than the size field can represent is an error.
func Send(w io.Writer, hdr Header, payload []byte) error {
	if len(payload) > constants.MaxPayloadSize {
		return fmt.Errorf("send packet: payload %d exceeds protocol limit", len(payload))
	}
	hdr.Size = uint16(len(payload))

	var buf [constants.PacketHeaderSize]byte
	hdr.marshal(&buf)

	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("writing packet header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("writing packet payload: %w", err)
		}
	}
	return nil
}

// Recv reads exactly one packet from r. The returned payload is an owned
// buffer, or nil when the header's size field is zero.
//
// A clean EOF before any header byte is returned as io.EOF unwrapped, so the
// session loop can distinguish an orderly half-close from a torn packet. A
// connection that dies mid-packet surfaces io.ErrUnexpectedEOF (wrapped).
func Recv(r io.Reader) (Header, []byte, error) {
	var hdr Header
	var buf [constants.PacketHeaderSize]byte

	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			// ReadFull reports io.EOF only when zero header bytes arrived.
			return hdr, nil, io.EOF
		}
		return hdr, nil, fmt.Errorf("reading packet header: %w", err)
	}
	hdr.unmarshal(&buf)

	if hdr.Size == 0 {
		return hdr, nil, nil
	}

	payload := make([]byte, hdr.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return hdr, nil, fmt.Errorf("reading packet payload: %w", err)
	}
	return hdr, payload, nil
}
