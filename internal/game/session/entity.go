// Package session maps stable account ids onto live connections. The core
// addresses players only by stable id; this layer subscribes the broker
// subjects for a connected account and forwards lines to the connection.
package session

import (
	"fmt"
	"sync"
)

// BridgeEntity routes delivered lines to a Go channel, bridging the broker
// subscriptions to whatever is reading for the connection.
type BridgeEntity struct {
	accountID string
	lines     chan string
	mu        sync.Mutex
	closed    bool
}

// NewBridgeEntity creates a BridgeEntity for the given stable account id.
//
// Precondition: accountID must be non-empty.
// Postcondition: Returns a BridgeEntity with an open lines channel.
func NewBridgeEntity(accountID string, bufferSize int) *BridgeEntity {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &BridgeEntity{
		accountID: accountID,
		lines:     make(chan string, bufferSize),
	}
}

// AccountID returns the stable id this bridge serves.
func (e *BridgeEntity) AccountID() string {
	return e.accountID
}

// Push enqueues one line for the connection. Never blocks.
//
// Postcondition: The line is enqueued, or an error if the bridge is closed
// or the buffer is full. A slow reader loses lines rather than stalling the
// delivery path.
func (e *BridgeEntity) Push(line string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return fmt.Errorf("session %s is closed", e.accountID)
	}
	select {
	case e.lines <- line:
		return nil
	default:
		return fmt.Errorf("session %s line buffer full", e.accountID)
	}
}

// Lines returns the read-only line channel the connection reads from.
func (e *BridgeEntity) Lines() <-chan string {
	return e.lines
}

// Close marks the bridge as closed and closes the line channel.
//
// Postcondition: The lines channel is closed. Further Push calls return an error.
func (e *BridgeEntity) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.closed {
		e.closed = true
		close(e.lines)
	}
	return nil
}

// IsClosed reports whether the bridge has been closed.
func (e *BridgeEntity) IsClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
