package domain

import (
	"crypto/sha256"
	"fmt"
)

// Connection is an undirected wire between two detectors
type Connection struct {
	ID     string `json:"id" yaml:"id"`
	FromID string `json:"from_id" yaml:"from_id"`
	ToID   string `json:"to_id" yaml:"to_id"`
}

// NewConnection creates a normalized connection with a generated ID
func NewConnection(a, b string) Connection {
	c := Connection{FromID: a, ToID: b}
	c.Normalize()
	c.ID = c.GenerateID()
	return c
}

// GenerateID creates a deterministic ID from the endpoints.
// The same pair always gets the same ID regardless of direction.
func (c *Connection) GenerateID() string {
	key := c.pairKey()
	hash := sha256.Sum256([]byte(key.from + "\x00" + key.to))
	return fmt.Sprintf("%x", hash[:8])
}

// Normalize orders the endpoints so FromID < ToID
func (c *Connection) Normalize() {
	if c.FromID > c.ToID {
		c.FromID, c.ToID = c.ToID, c.FromID
	}
}

// Involves checks if this connection touches the given detector
func (c *Connection) Involves(detectorID string) bool {
	return c.FromID == detectorID || c.ToID == detectorID
}

// OtherEnd returns the detector ID on the other end of this connection
func (c *Connection) OtherEnd(detectorID string) string {
	if c.FromID == detectorID {
		return c.ToID
	}
	return c.FromID
}

type pairKey struct{ from, to string }

func (c *Connection) pairKey() pairKey {
	if c.FromID > c.ToID {
		return pairKey{c.ToID, c.FromID}
	}
	return pairKey{c.FromID, c.ToID}
}
