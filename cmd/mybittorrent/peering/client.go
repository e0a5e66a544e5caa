package peering

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mcheviron/bittorrent-bootstrap/cmd/mybittorrent/metainfo"
)

// Dialer opens the stream used for a handshake. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client announces to trackers and handshakes with peers. It holds no per-peer state,
// so one Client may run handshakes with many peers concurrently.
type Client struct {
	requester Requester
	dialer    Dialer
	peerID    PeerID
}

type Option func(*Client)

func WithRequester(r Requester) Option {
	return func(c *Client) { c.requester = r }
}

func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		requester: HTTPRequester{Client: &http.Client{}},
		dialer:    &net.Dialer{},
		peerID:    PeerID([]byte(ClientID)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) PeerID() PeerID {
	return c.peerID
}

type State int

const (
	Connecting State = iota
	Established
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Established:
		return "established"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is a peer connection that has completed the handshake. The caller owns Conn
// and must Close the session.
type Session struct {
	Addr     string
	State    State
	PeerID   PeerID
	Reserved [8]byte
	Conn     net.Conn
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Handshake connects to addr and exchanges handshakes for infoHash. The context bounds
// the whole exchange: its deadline is applied to the connection and cancelling it
// closes the connection, unblocking any pending read or write.
func (c *Client) Handshake(ctx context.Context, addr string, infoHash metainfo.Hash) (*Session, error) {
	logger := zap.L().With(zap.String("peer", addr))
	session := &Session{Addr: addr, State: Connecting}

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		session.State = Failed
		logger.Debug("Dial failed", zap.Stringer("state", session.State), zap.Error(err))
		return nil, &NetworkError{Op: "dial", Err: err}
	}

	remote, err := c.exchange(ctx, conn, infoHash)
	if err != nil {
		session.State = Failed
		logger.Debug("Handshake failed", zap.Stringer("state", session.State), zap.Error(err))
		return nil, err
	}

	session.State = Established
	session.PeerID = remote.PeerID
	session.Reserved = remote.Reserved
	session.Conn = conn
	logger.Debug("Handshake completed",
		zap.Stringer("state", session.State),
		zap.Stringer("peerID", session.PeerID),
	)
	return session, nil
}

// exchange runs the handshake on conn, closing conn on any failure.
func (c *Client) exchange(ctx context.Context, conn net.Conn, infoHash metainfo.Hash) (*Handshake, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, multierr.Append(&NetworkError{Op: "set deadline", Err: err}, conn.Close())
		}
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	remote, err := PerformHandshake(conn, infoHash, c.peerID)
	if !stop() {
		// conn was closed by the context; whatever failed, the cause is the context.
		return nil, &NetworkError{Op: "handshake", Err: ctx.Err()}
	}
	if err != nil {
		return nil, multierr.Append(err, conn.Close())
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, multierr.Append(&NetworkError{Op: "clear deadline", Err: err}, conn.Close())
	}
	return remote, nil
}
