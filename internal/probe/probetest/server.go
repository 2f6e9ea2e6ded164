// Package probetest runs an in-process game server that answers Server List
// Ping requests, for tests of the probe client, the poller and the binary.
package probetest

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"mcstatus/internal/probe/slp"
)

// Status is the document a Server returns. A nil Players makes the server
// look like one that is up but not accepting players.
type Status struct {
	Version     Version  `json:"version"`
	Players     *Players `json:"players,omitempty"`
	Description string   `json:"description"`
	Favicon     string   `json:"favicon,omitempty"`
}

type Version struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type Players struct {
	Online int `json:"online"`
	Max    int `json:"max"`
}

// OnlineStatus is a convenience constructor for a server reporting players.
func OnlineStatus(online, max int) Status {
	return Status{
		Version:     Version{Name: "1.21", Protocol: int(slp.DefaultProtocolVersion)},
		Players:     &Players{Online: online, Max: max},
		Description: "A Minecraft Server",
	}
}

// Server is a fake game server listening on 127.0.0.1.
type Server struct {
	ln net.Listener

	mu     sync.Mutex
	doc    string
	silent bool
	conns  map[net.Conn]struct{}

	handshakes atomic.Int64
	wg         sync.WaitGroup
}

// NewServer starts a server answering with st. It is closed when the test ends.
func NewServer(t testing.TB, st Status) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probetest: listen: %v", err)
	}
	s := &Server{ln: ln, conns: make(map[net.Conn]struct{})}
	s.SetStatus(st)

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// NewSilentServer starts a server that accepts connections and never
// answers, for timeout tests.
func NewSilentServer(t testing.TB) *Server {
	t.Helper()
	s := NewServer(t, Status{})
	s.SetSilent(true)
	return s
}

// Addr returns host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Host returns the listen host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listen port.
func (s *Server) Port() int {
	_, p, _ := net.SplitHostPort(s.Addr())
	port, _ := strconv.Atoi(p)
	return port
}

// SetStatus replaces the document returned to subsequent requests.
func (s *Server) SetStatus(st Status) {
	b, err := json.Marshal(st)
	if err != nil {
		panic(err)
	}
	s.SetRawStatus(string(b))
}

// SetRawStatus replaces the document with an arbitrary string.
func (s *Server) SetRawStatus(doc string) {
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

// SetSilent toggles whether the server answers at all.
func (s *Server) SetSilent(v bool) {
	s.mu.Lock()
	s.silent = v
	s.mu.Unlock()
}

// Handshakes returns the number of handshakes received so far.
func (s *Server) Handshakes() int { return int(s.handshakes.Load()) }

// Close stops the listener and drops open connections.
func (s *Server) Close() {
	_ = s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			s.handle(conn)
		}()
	}
}

func (s *Server) handle(conn net.Conn) {
	r := bufio.NewReader(conn)

	pkt, err := slp.ReadPacket(r)
	if err != nil || pkt.ID != slp.PacketHandshake {
		return
	}
	hs, err := slp.DecodeHandshake(pkt.Data)
	if err != nil || hs.NextState != slp.NextStateStatus {
		return
	}
	s.handshakes.Add(1)

	s.mu.Lock()
	doc, silent := s.doc, s.silent
	s.mu.Unlock()

	if silent {
		// Hold the connection open until the client gives up.
		_, _ = r.WriteTo(discard{})
		return
	}

	if pkt, err = slp.ReadPacket(r); err != nil || pkt.ID != slp.PacketStatusRequest {
		return
	}
	if err := slp.WritePacket(conn, slp.PacketStatusResponse, slp.EncodeStatusResponse(doc)); err != nil {
		return
	}

	if pkt, err = slp.ReadPacket(r); err != nil || pkt.ID != slp.PacketPing {
		return
	}
	_ = slp.WritePacket(conn, slp.PacketPong, pkt.Data)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
