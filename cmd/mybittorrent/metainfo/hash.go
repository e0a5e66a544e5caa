package metainfo

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/bencode"
)

const HashSize = sha1.Size

// Hash is a 20-byte SHA-1 digest: the info hash of a torrent or one of its piece hashes.
type Hash [HashSize]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashInfo computes the info hash: SHA-1 over the canonical bencoding of info.
func HashInfo(info *Info) (Hash, error) {
	encoded, err := bencode.Marshal(info)
	if err != nil {
		return Hash{}, fmt.Errorf("failed to encode info: %w", err)
	}
	return sha1.Sum(encoded), nil
}

// ParseHash decodes a 40-character hex digest.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != hex.EncodedLen(HashSize) {
		return h, fmt.Errorf("invalid hash length %d", len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("invalid hex-encoded hash: %w", err)
	}
	return h, nil
}
