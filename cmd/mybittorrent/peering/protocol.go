package peering

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/metainfo"
)

const (
	ProtocolName = "BitTorrent protocol"
	// HandshakeSize is pstrlen (1) + pstr (19) + reserved (8) + info hash (20) + peer id (20).
	HandshakeSize = 1 + len(ProtocolName) + 8 + metainfo.HashSize + 20
)

// Handshake is the fixed 68-byte greeting both sides send before any other message.
type Handshake struct {
	Reserved [8]byte
	InfoHash metainfo.Hash
	PeerID   PeerID
}

// Serialize lays the handshake out on the wire.
func (h *Handshake) Serialize() []byte {
	buf := make([]byte, HandshakeSize)
	buf[0] = byte(len(ProtocolName))
	curr := 1
	curr += copy(buf[curr:], ProtocolName)
	curr += copy(buf[curr:], h.Reserved[:])
	curr += copy(buf[curr:], h.InfoHash[:])
	copy(buf[curr:], h.PeerID[:])
	return buf
}

// ParseHandshake reads a received frame, checking the protocol length byte and name.
func ParseHandshake(buf []byte) (*Handshake, error) {
	if len(buf) != HandshakeSize {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("handshake is %d bytes, expected %d", len(buf), HandshakeSize),
			Err:    ErrTruncatedHandshake,
		}
	}

	pstrlen := int(buf[0])
	if pstrlen != len(ProtocolName) || string(buf[1:1+pstrlen]) != ProtocolName {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("peer speaks %q", buf[1:1+len(ProtocolName)]),
			Err:    ErrUnexpectedProtocol,
		}
	}

	h := &Handshake{}
	curr := 1 + pstrlen
	curr += copy(h.Reserved[:], buf[curr:])
	curr += copy(h.InfoHash[:], buf[curr:])
	copy(h.PeerID[:], buf[curr:])
	return h, nil
}

// PerformHandshake writes our handshake to conn, reads the peer's and checks that it
// echoes infoHash. The peer's frame is only trusted once all 68 bytes have arrived.
func PerformHandshake(conn io.ReadWriter, infoHash metainfo.Hash, peerID PeerID) (*Handshake, error) {
	sent := &Handshake{InfoHash: infoHash, PeerID: peerID}
	frame := sent.Serialize()

	n, err := conn.Write(frame)
	if err != nil {
		return nil, &NetworkError{Op: "write handshake", Err: err}
	}
	if n != len(frame) {
		return nil, &NetworkError{Op: "write handshake", Err: io.ErrShortWrite}
	}

	response := make([]byte, HandshakeSize)
	if n, err := io.ReadFull(conn, response); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &ProtocolError{
				Reason: fmt.Sprintf("connection closed after %d of %d bytes", n, HandshakeSize),
				Err:    ErrTruncatedHandshake,
			}
		}
		return nil, &NetworkError{Op: "read handshake", Err: err}
	}

	received, err := ParseHandshake(response)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Received handshake",
		zap.Binary("reserved", received.Reserved[:]),
		zap.Stringer("infoHash", received.InfoHash),
		zap.Stringer("peerID", received.PeerID),
	)

	if received.InfoHash != infoHash {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("expected info hash %s, got %s", infoHash, received.InfoHash),
			Err:    ErrInfoHashMismatch,
		}
	}

	return received, nil
}
