// Package status holds the live view of every monitored server: the State
// model and the Cache the poller writes and the API reads.
package status

import (
	"fmt"
	"net/http"
)

// Kind tags a State. The zero value is Unreachable so that a freshly
// created entry reports Unreachable until its first probe completes.
type Kind uint8

const (
	Unreachable Kind = iota
	Offline
	Online
)

func (k Kind) String() string {
	switch k {
	case Online:
		return "Online"
	case Offline:
		return "Offline"
	case Unreachable:
		return "Unreachable"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// PlayersInfo is the player count reported by a server.
type PlayersInfo struct {
	Online uint32 `json:"online"`
	Max    uint32 `json:"max"`
}

// State is the last observation of a server. It is a comparable value:
// two States are equal exactly when they describe the same observation,
// which the poller relies on for change detection.
type State struct {
	Kind    Kind
	Players PlayersInfo // zero unless Kind == Online
}

// OnlineState returns an Online state carrying the given player counts.
func OnlineState(online, max uint32) State {
	return State{Kind: Online, Players: PlayersInfo{Online: online, Max: max}}
}

// OfflineState returns the Offline state. Player counts are discarded.
func OfflineState() State { return State{Kind: Offline} }

// UnreachableState returns the Unreachable state.
func UnreachableState() State { return State{Kind: Unreachable} }

func (s State) String() string {
	if s.Kind == Online {
		return fmt.Sprintf("Online(%d/%d)", s.Players.Online, s.Players.Max)
	}
	return s.Kind.String()
}

// Code classifies the state the way an HTTP health check would.
func (s State) Code() Code {
	switch s.Kind {
	case Online:
		return OK
	case Offline:
		return ServiceUnavailable
	default:
		return BadGateway
	}
}

// Report is the wire form of a State. Player fields are nil unless the
// state is Online.
type Report struct {
	State  string  `json:"state"`
	Online *uint32 `json:"online,omitempty"`
	Max    *uint32 `json:"max,omitempty"`
}

// Report returns the wire form of s.
func (s State) Report() Report {
	r := Report{State: s.Kind.String()}
	if s.Kind == Online {
		online, max := s.Players.Online, s.Players.Max
		r.Online, r.Max = &online, &max
	}
	return r
}

// Code is the HTTP-style classification of a server's last known state. It
// is not the status of the API call that reports it.
type Code uint8

const (
	OK Code = iota
	ServiceUnavailable
	BadGateway
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case ServiceUnavailable:
		return "service_unavailable"
	case BadGateway:
		return "bad_gateway"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// HTTPStatus maps the code onto the matching HTTP response status.
func (c Code) HTTPStatus() int {
	switch c {
	case OK:
		return http.StatusOK
	case ServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
