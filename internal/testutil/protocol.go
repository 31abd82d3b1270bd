package testutil

import (
	"net"
	"testing"
	"time"

	"github.com/udisondev/jeux/internal/protocol"
)

// DefaultTimeout bounds every packet exchange in tests so a protocol bug
// fails the test instead of hanging it.
const DefaultTimeout = 5 * time.Second

// SendPacket writes one packet to conn, failing the test on error.
func SendPacket(t testing.TB, conn net.Conn, hdr protocol.Header, payload []byte) {
	t.Helper()

	_ = conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
	if err := protocol.Send(conn, hdr, payload); err != nil {
		t.Fatalf("sending %s packet: %v", hdr.Type, err)
	}
	_ = conn.SetWriteDeadline(time.Time{})
}

// RecvPacket reads one packet from conn, failing the test on error.
func RecvPacket(t testing.TB, conn net.Conn) (protocol.Header, []byte) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
	hdr, payload, err := protocol.Recv(conn)
	if err != nil {
		t.Fatalf("receiving packet: %v", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	return hdr, payload
}

// Expect reads one packet and fails the test unless its type matches.
func Expect(t testing.TB, conn net.Conn, want protocol.Type) (protocol.Header, []byte) {
	t.Helper()

	hdr, payload := RecvPacket(t, conn)
	if hdr.Type != want {
		t.Fatalf("received %s packet, want %s", hdr.Type, want)
	}
	return hdr, payload
}
