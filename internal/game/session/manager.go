package session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cory-johannsen/hearth/internal/transport"
)

// Session tracks one live connection bound to a stable account id. The Ref
// is volatile and changes on every reconnect; all world-side references use
// the AccountID.
type Session struct {
	// Ref is the volatile per-connection reference.
	Ref string
	// AccountID is the stable id owning this connection.
	AccountID string
	// Name is the display name shown in-game.
	Name string
	// RoomID is the room whose broadcasts this session receives.
	RoomID string
	// Entity is the bridge carrying delivered lines to the connection.
	Entity *BridgeEntity

	unsubSelf func()
	unsubRoom func()
}

// Manager tracks active sessions and their broker subscriptions.
// All methods are safe for concurrent use.
type Manager struct {
	mu         sync.RWMutex
	broker     *transport.Server
	byRef      map[string]*Session // ref → session
	byAccount  map[string]string   // accountID → ref
	bufferSize int
}

// NewManager creates a session Manager on top of the given broker.
//
// Precondition: broker must not be nil.
func NewManager(broker *transport.Server) *Manager {
	if broker == nil {
		panic("session.NewManager: broker must not be nil")
	}
	return &Manager{
		broker:     broker,
		byRef:      make(map[string]*Session),
		byAccount:  make(map[string]string),
		bufferSize: 64,
	}
}

// Attach binds a connection to a stable account id and subscribes its
// subjects. A reconnect for an already-attached account replaces the old
// session; the stale connection's bridge is closed.
//
// Precondition: accountID, name, and roomID must be non-empty.
// Postcondition: Returns a Session with a fresh volatile Ref, receiving
// emits for accountID and broadcasts for roomID.
func (m *Manager) Attach(accountID, name, roomID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if oldRef, ok := m.byAccount[accountID]; ok {
		m.detachLocked(oldRef)
	}

	sess := &Session{
		Ref:       uuid.NewString(),
		AccountID: accountID,
		Name:      name,
		RoomID:    roomID,
		Entity:    NewBridgeEntity(accountID, m.bufferSize),
	}

	unsubSelf, err := m.broker.Subscribe(transport.SessionSubject(accountID), func(msg transport.Message) {
		_ = sess.Entity.Push(msg.Line)
	})
	if err != nil {
		return nil, fmt.Errorf("session.Manager.Attach: %w", err)
	}
	unsubRoom, err := m.subscribeRoom(sess, roomID)
	if err != nil {
		unsubSelf()
		return nil, fmt.Errorf("session.Manager.Attach: %w", err)
	}
	sess.unsubSelf = unsubSelf
	sess.unsubRoom = unsubRoom

	m.byRef[sess.Ref] = sess
	m.byAccount[accountID] = sess.Ref
	return sess, nil
}

// subscribeRoom subscribes a session to one room's broadcast subject,
// dropping messages that exclude its own stable id.
func (m *Manager) subscribeRoom(sess *Session, roomID string) (func(), error) {
	return m.broker.Subscribe(transport.RoomSubject(roomID), func(msg transport.Message) {
		if msg.Exclude == sess.AccountID {
			return
		}
		_ = sess.Entity.Push(msg.Line)
	})
}

// MoveRoom re-points a session's broadcast subscription at a new room.
//
// Precondition: ref and newRoomID must be non-empty.
// Postcondition: Returns the old room id, or an error if the session is not
// found.
func (m *Manager) MoveRoom(ref, newRoomID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byRef[ref]
	if !ok {
		return "", fmt.Errorf("session %q not found", ref)
	}

	unsubRoom, err := m.subscribeRoom(sess, newRoomID)
	if err != nil {
		return "", fmt.Errorf("session.Manager.MoveRoom: %w", err)
	}

	oldRoomID := sess.RoomID
	if sess.unsubRoom != nil {
		sess.unsubRoom()
	}
	sess.RoomID = newRoomID
	sess.unsubRoom = unsubRoom
	return oldRoomID, nil
}

// Detach removes a session, drops its subscriptions, and closes its bridge.
//
// Postcondition: Returns an error if the session is not found. The account's
// stable id remains valid for a later reconnect.
func (m *Manager) Detach(ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byRef[ref]; !ok {
		return fmt.Errorf("session %q not found", ref)
	}
	m.detachLocked(ref)
	return nil
}

// detachLocked unsubscribes and removes one session.
//
// Precondition: m.mu held.
func (m *Manager) detachLocked(ref string) {
	sess, ok := m.byRef[ref]
	if !ok {
		return
	}
	if sess.unsubSelf != nil {
		sess.unsubSelf()
	}
	if sess.unsubRoom != nil {
		sess.unsubRoom()
	}
	_ = sess.Entity.Close()
	delete(m.byRef, ref)
	if m.byAccount[sess.AccountID] == ref {
		delete(m.byAccount, sess.AccountID)
	}
}

// Get returns the session for the given volatile ref.
func (m *Manager) Get(ref string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.byRef[ref]
	return sess, ok
}

// ByAccount returns the live session for a stable account id, if any.
func (m *Manager) ByAccount(accountID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ref, ok := m.byAccount[accountID]
	if !ok {
		return nil, false
	}
	sess, ok := m.byRef[ref]
	return sess, ok
}

// Count returns the number of attached sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byRef)
}
