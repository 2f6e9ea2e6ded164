package status

import (
	"sync/atomic"

	"mcstatus/internal/config"
)

// Entry is the runtime record of one configured server. Server and Address
// are immutable; state and favicon path use atomics so that readers never
// block the poller and never observe a partially written value.
type Entry struct {
	Server  config.ServerCfg
	Address string

	state   atomic.Pointer[State]
	favicon atomic.Pointer[string]
}

func newEntry(s config.ServerCfg) *Entry {
	e := &Entry{Server: s, Address: s.Address()}
	initial := UnreachableState()
	e.state.Store(&initial)
	return e
}

// State returns the last stored state.
func (e *Entry) State() State { return *e.state.Load() }

// SetState replaces the stored state in a single atomic store.
func (e *Entry) SetState(s State) { e.state.Store(&s) }

// SwapState stores s and returns the state it replaced.
func (e *Entry) SwapState(s State) State { return *e.state.Swap(&s) }

// FaviconPath returns the saved favicon path, if any.
func (e *Entry) FaviconPath() (string, bool) {
	p := e.favicon.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetFaviconPathIfAbsent records path only if no path was recorded before.
// It reports whether this call set it.
func (e *Entry) SetFaviconPathIfAbsent(path string) bool {
	return e.favicon.CompareAndSwap(nil, &path)
}

// Cache maps server ids to entries. The set of entries is fixed at
// construction; only the entries themselves change afterwards, so lookups
// need no lock.
type Cache struct {
	entries map[string]*Entry
	order   []*Entry
}

// NewCache builds one Unreachable entry per configured server. Server ids
// are expected to be unique (config.Load guarantees it); a repeated id keeps
// its first entry.
func NewCache(servers []config.ServerCfg) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry, len(servers)),
		order:   make([]*Entry, 0, len(servers)),
	}
	for _, s := range servers {
		if _, ok := c.entries[s.ID]; ok {
			continue
		}
		e := newEntry(s)
		c.entries[s.ID] = e
		c.order = append(c.order, e)
	}
	return c
}

// Get returns the entry for id.
func (c *Cache) Get(id string) (*Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// SetState stores s for id. It returns false if id is unknown.
func (c *Cache) SetState(id string, s State) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	e.SetState(s)
	return true
}

// SetFaviconPathIfAbsent records path for id unless one is already set.
// It returns false if id is unknown or a path was already recorded.
func (c *Cache) SetFaviconPathIfAbsent(id, path string) bool {
	e, ok := c.entries[id]
	if !ok {
		return false
	}
	return e.SetFaviconPathIfAbsent(path)
}

// Entries returns all entries in configuration order. The slice is shared;
// callers must not modify it.
func (c *Cache) Entries() []*Entry { return c.order }

// Len returns the number of entries.
func (c *Cache) Len() int { return len(c.order) }
