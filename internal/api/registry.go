// Package api serves the read-only status API: the configured server list,
// each server's last known state and status code, and saved favicons.
package api

import (
	"mcstatus/internal/config"
	"mcstatus/internal/status"
)

// ServerInfo is the JSON representation of a configured server.
type ServerInfo struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Registry answers status queries. The server list comes from configuration
// and never changes; live state is read from the cache on every call.
type Registry struct {
	servers []ServerInfo
	cache   *status.Cache
}

// NewRegistry creates a Registry over servers and cache.
func NewRegistry(servers []config.ServerCfg, cache *status.Cache) *Registry {
	infos := make([]ServerInfo, len(servers))
	for i, s := range servers {
		infos[i] = ServerInfo{Name: s.Name, ID: s.ID, Host: s.Host, Port: s.Port}
	}
	return &Registry{servers: infos, cache: cache}
}

// Servers returns the configured servers in configuration order.
func (r *Registry) Servers() []ServerInfo {
	out := make([]ServerInfo, len(r.servers))
	copy(out, r.servers)
	return out
}

// Status returns the last known state of id. ok is false for unknown ids.
func (r *Registry) Status(id string) (s status.State, ok bool) {
	e, ok := r.cache.Get(id)
	if !ok {
		return status.State{}, false
	}
	return e.State(), true
}

// Code returns the status code for id's last known state.
func (r *Registry) Code(id string) (status.Code, bool) {
	s, ok := r.Status(id)
	if !ok {
		return 0, false
	}
	return s.Code(), true
}

// FaviconPath returns where id's favicon was saved. ok is false when the id
// is unknown or no favicon has been saved yet.
func (r *Registry) FaviconPath(id string) (string, bool) {
	e, ok := r.cache.Get(id)
	if !ok {
		return "", false
	}
	return e.FaviconPath()
}

// Known reports whether id is a configured server.
func (r *Registry) Known(id string) bool {
	_, ok := r.cache.Get(id)
	return ok
}

// Counts tallies servers by state kind.
func (r *Registry) Counts() (online, offline, unreachable int) {
	for _, e := range r.cache.Entries() {
		switch e.State().Kind {
		case status.Online:
			online++
		case status.Offline:
			offline++
		default:
			unreachable++
		}
	}
	return online, offline, unreachable
}
