package peering

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/bencode"
	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/metainfo"
)

// MaxResponseSize caps the tracker response body HTTPRequester will read.
const MaxResponseSize = 1 << 20

// Requester performs the tracker's HTTP GET and returns the response body.
type Requester interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HTTPRequester is the default Requester. A nil Client means http.DefaultClient.
type HTTPRequester struct {
	Client *http.Client
}

// StatusError is returned by HTTPRequester for any status other than 200.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tracker responded with status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (r HTTPRequester) Get(ctx context.Context, rawURL string) (body []byte, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(resp.Body))

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response body exceeds %d bytes", MaxResponseSize)
	}
	return body, nil
}

type TrackerRequest struct {
	InfoHash   metainfo.Hash
	PeerID     string
	Port       int
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Compact    bool
}

// URL appends the announce parameters to the tracker's announce URL. The info hash is
// percent-encoded byte by byte.
func (r *TrackerRequest) URL(announce string) (string, error) {
	u, err := url.Parse(announce)
	if err != nil {
		return "", fmt.Errorf("invalid announce url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported announce url scheme %q", u.Scheme)
	}

	compact := "0"
	if r.Compact {
		compact = "1"
	}

	var query strings.Builder
	query.WriteString("info_hash=" + escapeBytes(r.InfoHash[:]))
	query.WriteString("&peer_id=" + url.QueryEscape(r.PeerID))
	query.WriteString("&port=" + strconv.Itoa(r.Port))
	query.WriteString("&uploaded=" + strconv.FormatUint(r.Uploaded, 10))
	query.WriteString("&downloaded=" + strconv.FormatUint(r.Downloaded, 10))
	query.WriteString("&left=" + strconv.FormatUint(r.Left, 10))
	query.WriteString("&compact=" + compact)

	if u.RawQuery != "" {
		u.RawQuery += "&" + query.String()
	} else {
		u.RawQuery = query.String()
	}
	return u.String(), nil
}

func escapeBytes(b []byte) string {
	const hexDigits = "0123456789ABCDEF"
	escaped := make([]byte, 0, len(b)*3)
	for _, c := range b {
		escaped = append(escaped, '%', hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return string(escaped)
}

type TrackerResponse struct {
	Interval   int64  `bencode:"interval"`
	Peers      []byte `bencode:"peers"`
	Complete   int64  `bencode:"complete"`
	Incomplete int64  `bencode:"incomplete"`
}

// PeerList parses the compact peer list.
func (r *TrackerResponse) PeerList() ([]Peer, error) {
	return ParsePeers(r.Peers)
}

// ParseTrackerResponse decodes a tracker's bencoded reply. A reply carrying
// "failure reason" is reported as a ProtocolError with the tracker's message.
func ParseTrackerResponse(body []byte) (*TrackerResponse, error) {
	decoded, err := bencode.Decode(body)
	if err != nil {
		return nil, &ProtocolError{Reason: "malformed tracker response", Err: err}
	}

	dict, ok := decoded.(bencode.Dict)
	if !ok {
		return nil, &ProtocolError{Reason: fmt.Sprintf("tracker response is a %s, not a dictionary", decoded.Kind())}
	}

	if reason, ok := dict["failure reason"].(bencode.String); ok {
		return nil, &ProtocolError{Reason: fmt.Sprintf("tracker failure: %s", reason)}
	}

	if _, err := dict.Require("interval", bencode.KindInteger); err != nil {
		return nil, &ProtocolError{Reason: "invalid tracker response", Err: err}
	}
	if _, err := dict.Require("peers", bencode.KindString); err != nil {
		return nil, &ProtocolError{Reason: "invalid tracker response", Err: err}
	}

	var resp TrackerResponse
	required := bencode.Dict{"interval": dict["interval"], "peers": dict["peers"]}
	if err := bencode.Unmarshal(required, &resp); err != nil {
		return nil, &ProtocolError{Reason: "invalid tracker response", Err: err}
	}
	if err := checkCompactLength(resp.Peers); err != nil {
		return nil, err
	}

	// complete and incomplete are advisory; a malformed counter is left at zero.
	if n, ok := dict["complete"].(bencode.Integer); ok {
		resp.Complete = int64(n)
	}
	if n, ok := dict["incomplete"].(bencode.Integer); ok {
		resp.Incomplete = int64(n)
	}

	return &resp, nil
}

// Announce sends one announce for the torrent and returns the tracker's reply.
func (c *Client) Announce(ctx context.Context, torrent *metainfo.Torrent, infoHash metainfo.Hash) (*TrackerResponse, error) {
	trackerReq := &TrackerRequest{
		InfoHash:   infoHash,
		PeerID:     ClientID,
		Port:       Port,
		Uploaded:   0,
		Downloaded: 0,
		Left:       torrent.Info.Length,
		Compact:    true,
	}

	trackerURL, err := trackerReq.URL(torrent.Announce)
	if err != nil {
		return nil, &NetworkError{Op: "announce", Err: err}
	}

	logger := zap.L().With(zap.String("tracker", torrent.Announce))
	logger.Debug("Announcing", zap.String("url", trackerURL))

	body, err := c.requester.Get(ctx, trackerURL)
	if err != nil {
		return nil, &NetworkError{Op: "announce", Err: err}
	}

	resp, err := ParseTrackerResponse(body)
	if err != nil {
		logger.Debug("Tracker response rejected", zap.Int("bytes", len(body)))
		return nil, err
	}

	logger.Debug("Tracker responded",
		zap.Int64("interval", resp.Interval),
		zap.Int("peers", len(resp.Peers)/compactPeerSize),
	)
	return resp, nil
}

// GetPeers computes the info hash, announces and returns the tracker's peer list.
func (c *Client) GetPeers(ctx context.Context, torrent *metainfo.Torrent) ([]Peer, error) {
	infoHash, err := metainfo.HashInfo(&torrent.Info)
	if err != nil {
		return nil, fmt.Errorf("failed to get info hash: %w", err)
	}

	resp, err := c.Announce(ctx, torrent, infoHash)
	if err != nil {
		return nil, err
	}
	return resp.PeerList()
}
