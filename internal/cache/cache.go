package cache

import (
	"sync"
)

// PlayerIndex maps a player to the session they are seated in. Commands and
// disconnects arrive keyed by player, so this lookup sits on the hot path.
type PlayerIndex struct {
	mu       sync.RWMutex
	sessions map[string]string
}

func NewPlayerIndex() *PlayerIndex {
	return &PlayerIndex{
		sessions: make(map[string]string),
	}
}

func (c *PlayerIndex) Get(playerID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.sessions[playerID]
	return id, ok
}

// Add seats every player in sessionID. It fails without changes if any of them
// is already seated elsewhere and returns that player's id.
func (c *PlayerIndex) Add(sessionID string, playerIDs ...string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range playerIDs {
		if _, ok := c.sessions[p]; ok {
			return p, false
		}
	}
	for _, p := range playerIDs {
		c.sessions[p] = sessionID
	}
	return "", true
}

func (c *PlayerIndex) Remove(playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, playerID)
}

// RemoveSession drops every player seated in sessionID.
func (c *PlayerIndex) RemoveSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p, s := range c.sessions {
		if s == sessionID {
			delete(c.sessions, p)
		}
	}
}

func (c *PlayerIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *PlayerIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = make(map[string]string)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}

func (c *SafeCounter) Dec() {
	c.mu.Lock()
	c.v--
	c.mu.Unlock()
}
