// Package probe queries a single game server for its status. A Client is
// safe for concurrent use; every call is bounded by the client's timeout and
// by a semaphore shared across all in-flight calls, so a polling iteration
// over many servers never opens more than MaxParallel connections at once.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"mcstatus/internal/config"
	"mcstatus/internal/probe/slp"
	"mcstatus/internal/status"
)

const (
	DefaultTimeout     = 100 * time.Millisecond
	DefaultMaxParallel = 10
)

// ErrUnsupportedEdition is returned for protocol families the client cannot
// speak. Callers must not treat it as an ordinary probe failure: it signals
// a configuration the process cannot serve.
var ErrUnsupportedEdition = errors.New("probe: unsupported edition")

// Edition is the protocol family of a game server.
type Edition int

const (
	Java Edition = iota
	Bedrock
)

func (e Edition) String() string {
	switch e {
	case Java:
		return config.EditionJava
	case Bedrock:
		return config.EditionBedrock
	default:
		return "edition(" + strconv.Itoa(int(e)) + ")"
	}
}

// ParseEdition maps a config edition name onto an Edition.
func ParseEdition(s string) (Edition, error) {
	switch strings.ToLower(s) {
	case "", config.EditionJava:
		return Java, nil
	case config.EditionBedrock:
		return Bedrock, nil
	default:
		return 0, fmt.Errorf("probe: unknown edition %q", s)
	}
}

// Result is a successful probe. Online is false when the server answered but
// did not report a player list, which is how servers that are still starting
// and proxies without a backend respond.
type Result struct {
	Online      bool
	Players     *status.PlayersInfo
	Favicon     string
	Version     string
	Description string
	Latency     time.Duration
}

// DialFunc opens a connection; it matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each probe, from dial to decoded response.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxParallel sets how many probes may be in flight at once.
func WithMaxParallel(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxParallel = int64(n)
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(d DialFunc) Option {
	return func(c *Client) { c.dial = d }
}

// WithProtocolVersion sets the protocol version announced in the handshake.
func WithProtocolVersion(v int32) Option {
	return func(c *Client) { c.protocol = v }
}

// Client performs status probes.
type Client struct {
	timeout     time.Duration
	maxParallel int64
	protocol    int32
	dial        DialFunc

	sem      *semaphore.Weighted
	inFlight atomic.Int64
}

// New creates a Client. Without options it uses a 100ms timeout and at most
// 10 simultaneous probes.
func New(opts ...Option) *Client {
	c := &Client{
		timeout:     DefaultTimeout,
		maxParallel: DefaultMaxParallel,
		protocol:    slp.DefaultProtocolVersion,
		dial:        (&net.Dialer{}).DialContext,
	}
	for _, o := range opts {
		o(c)
	}
	c.sem = semaphore.NewWeighted(c.maxParallel)
	return c
}

// Timeout returns the per-probe timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// InFlight returns the number of probes currently holding a slot.
func (c *Client) InFlight() int64 { return c.inFlight.Load() }

// Ping queries the server at address (host:port). Waiting for a free slot
// is bounded only by ctx; once a slot is held the probe gets c.Timeout to
// complete, after which the connection is closed and an error returned.
func (c *Client) Ping(ctx context.Context, address string, edition Edition) (*Result, error) {
	// Bedrock servers speak RakNet over UDP, which this client does not
	// implement yet.
	if edition != Java {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedEdition, edition, address)
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("probe: %s: waiting for slot: %w", address, err)
	}
	defer c.sem.Release(1)
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.pingJava(ctx, address)
	if err != nil {
		// The conn deadline and the ctx timer fire at the same instant; report
		// either as the context error so callers can match on it.
		if !errors.Is(err, context.DeadlineExceeded) && (ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded)) {
			cause := ctx.Err()
			if cause == nil {
				cause = context.DeadlineExceeded
			}
			err = fmt.Errorf("%w (%v)", cause, err)
		}
		return nil, fmt.Errorf("probe: %s: %w", address, err)
	}
	return res, nil
}

func (c *Client) pingJava(ctx context.Context, address string) (*Result, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	conn, err := c.dial(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// A custom dialer may hand back a conn that ignores deadlines; closing
	// it on cancellation unblocks any pending read either way.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	hs := slp.Handshake{
		ProtocolVersion: c.protocol,
		ServerAddress:   host,
		ServerPort:      uint16(port),
		NextState:       slp.NextStateStatus,
	}
	if err := slp.WritePacket(conn, slp.PacketHandshake, hs.Encode()); err != nil {
		return nil, fmt.Errorf("write handshake: %w", err)
	}
	start := time.Now()
	if err := slp.WritePacket(conn, slp.PacketStatusRequest, nil); err != nil {
		return nil, fmt.Errorf("write status request: %w", err)
	}

	pkt, err := slp.ReadPacket(bufio.NewReader(conn))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	latency := time.Since(start)
	if pkt.ID != slp.PacketStatusResponse {
		return nil, fmt.Errorf("unexpected packet id 0x%02x", pkt.ID)
	}
	doc, err := slp.DecodeStatusResponse(pkt.Data)
	if err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	res, err := parseStatus(doc)
	if err != nil {
		return nil, err
	}
	res.Latency = latency
	return res, nil
}
