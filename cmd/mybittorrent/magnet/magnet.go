package magnet

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"strings"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/metainfo"
)

const btihPrefix = "urn:btih:"

// Link represents a parsed magnet link with its components
type Link struct {
	InfoHash   metainfo.Hash
	Name       string
	Trackers   []string
	ExactTopic string
}

// Parse parses a magnet URI. The info hash in xt may be 40 hex characters or
// 32 base32 characters.
func Parse(uri string) (*Link, error) {
	queryStr, ok := strings.CutPrefix(uri, "magnet:?")
	if !ok {
		return nil, fmt.Errorf("invalid magnet URI format")
	}

	values, err := url.ParseQuery(queryStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse magnet URI query: %w", err)
	}

	xt := values.Get("xt")
	encoded, ok := strings.CutPrefix(xt, btihPrefix)
	if !ok {
		return nil, fmt.Errorf("invalid or missing %s prefix in xt parameter", btihPrefix)
	}

	infoHash, err := parseInfoHash(encoded)
	if err != nil {
		return nil, err
	}

	return &Link{
		ExactTopic: xt,
		InfoHash:   infoHash,
		Name:       values.Get("dn"),
		Trackers:   values["tr"],
	}, nil
}

func parseInfoHash(encoded string) (metainfo.Hash, error) {
	switch len(encoded) {
	case 40:
		return metainfo.ParseHash(encoded)
	case 32:
		var h metainfo.Hash
		decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(encoded))
		if err != nil {
			return h, fmt.Errorf("invalid base32-encoded info hash: %w", err)
		}
		copy(h[:], decoded)
		return h, nil
	default:
		return metainfo.Hash{}, fmt.Errorf("invalid info hash length %d", len(encoded))
	}
}
