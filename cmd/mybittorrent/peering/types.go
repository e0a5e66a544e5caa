package peering

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
)

const (
	// ClientID is the peer id this client announces with and sends in handshakes.
	ClientID = "-MB0001-483920174625"
	// Port is the listening port reported to trackers.
	Port = 6881

	compactPeerSize = 6
)

// PeerID is the 20-byte identifier a peer reports about itself.
type PeerID [20]byte

func (id PeerID) String() string {
	return hex.EncodeToString(id[:])
}

type Peer struct {
	IP   net.IP
	Port uint16
}

func (p Peer) String() string {
	return net.JoinHostPort(p.IP.String(), strconv.Itoa(int(p.Port)))
}

// ParsePeers splits a compact peer list into addresses, keeping the tracker's order.
// Each peer is 4 bytes of IPv4 address followed by a big-endian port.
func ParsePeers(peersData []byte) ([]Peer, error) {
	if err := checkCompactLength(peersData); err != nil {
		return nil, err
	}

	peers := make([]Peer, 0, len(peersData)/compactPeerSize)
	for i := 0; i < len(peersData); i += compactPeerSize {
		ip := make(net.IP, net.IPv4len)
		copy(ip, peersData[i:i+4])
		peers = append(peers, Peer{
			IP:   ip,
			Port: binary.BigEndian.Uint16(peersData[i+4 : i+6]),
		})
	}

	return peers, nil
}

func checkCompactLength(peersData []byte) error {
	if len(peersData)%compactPeerSize != 0 {
		return &ProtocolError{
			Reason: fmt.Sprintf("compact peer list length %d is not a multiple of %d", len(peersData), compactPeerSize),
		}
	}
	return nil
}
