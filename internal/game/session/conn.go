// Package session provides the registry of connected players: who is online,
// which room each occupies, and the one outbound channel per connection that
// all simulation fan-out flows through.
package session

import (
	"fmt"
	"sync"

	"github.com/cory-johannsen/duskfall/internal/game/message"
)

// Conn routes push calls to a buffered channel, bridging the simulation core
// to whatever transport drains the channel (the websocket adapter in the
// gameserver package).
type Conn struct {
	uid    string
	events chan message.Message
	mu     sync.Mutex
	closed bool
}

// NewConn creates a Conn for the given player UID.
//
// Precondition: uid must be non-empty.
// Postcondition: Returns a Conn with an open events channel.
func NewConn(uid string, bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Conn{
		uid:    uid,
		events: make(chan message.Message, bufferSize),
	}
}

// UID returns the player's unique identifier.
func (c *Conn) UID() string {
	return c.uid
}

// Push enqueues msg for delivery. Delivery is best-effort: a closed or full
// connection returns an error the caller is free to ignore.
//
// Postcondition: msg is enqueued, or an error if the conn is closed or full.
func (c *Conn) Push(msg message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("conn %s is closed", c.uid)
	}
	select {
	case c.events <- msg:
		return nil
	default:
		return fmt.Errorf("conn %s event buffer full", c.uid)
	}
}

// Events returns the read-only events channel.
// The transport goroutine reads from this channel to deliver messages.
func (c *Conn) Events() <-chan message.Message {
	return c.events
}

// Close marks the conn as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// IsClosed reports whether the conn has been closed.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
