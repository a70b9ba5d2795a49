package session_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/executor"
	"github.com/cory-johannsen/hearth/internal/game/session"
	"github.com/cory-johannsen/hearth/internal/transport"
)

func startBroker(t *testing.T) (*transport.Server, *transport.Publisher) {
	t.Helper()
	srv, err := transport.NewServer(transport.Config{Port: -1}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv, transport.NewPublisher(srv, zap.NewNop())
}

func expectLine(t *testing.T, sess *session.Session, want string) {
	t.Helper()
	select {
	case line := <-sess.Entity.Lines():
		if line != want {
			t.Fatalf("line = %q, want %q", line, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectSilence(t *testing.T, sess *session.Session) {
	t.Helper()
	select {
	case line, ok := <-sess.Entity.Lines():
		if ok {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAttach_ReceivesEmits(t *testing.T) {
	srv, pub := startBroker(t)
	mgr := session.NewManager(srv)

	sess, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	pub.Deliver([]executor.Event{executor.Emit("acct-1", "You feel watched.")})
	expectLine(t, sess, "You feel watched.")
}

func TestAttach_ReceivesRoomBroadcasts(t *testing.T) {
	srv, pub := startBroker(t)
	mgr := session.NewManager(srv)

	sess, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	pub.Deliver([]executor.Event{executor.Broadcast("square", "The Baker whistles.")})
	expectLine(t, sess, "The Baker whistles.")
}

func TestBroadcast_ExcludesOwnStableID(t *testing.T) {
	srv, pub := startBroker(t)
	mgr := session.NewManager(srv)

	alice, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	bob, err := mgr.Attach("acct-2", "Bob", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	pub.Deliver([]executor.Event{executor.BroadcastExcept("square", "acct-1", "Alice waves.")})
	expectLine(t, bob, "Alice waves.")
	expectSilence(t, alice)
}

func TestAttach_ReconnectReplacesOldSession(t *testing.T) {
	srv, pub := startBroker(t)
	mgr := session.NewManager(srv)

	first, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	second, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("reattach: %v", err)
	}

	if first.Ref == second.Ref {
		t.Fatal("reconnect should issue a fresh volatile ref")
	}
	if !first.Entity.IsClosed() {
		t.Fatal("stale session bridge should be closed")
	}
	if mgr.Count() != 1 {
		t.Fatalf("Count = %d, want 1", mgr.Count())
	}

	pub.Deliver([]executor.Event{executor.Emit("acct-1", "Welcome back.")})
	expectLine(t, second, "Welcome back.")
}

func TestMoveRoom_SwitchesBroadcastSubject(t *testing.T) {
	srv, pub := startBroker(t)
	mgr := session.NewManager(srv)

	sess, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	old, err := mgr.MoveRoom(sess.Ref, "tavern")
	if err != nil {
		t.Fatalf("MoveRoom: %v", err)
	}
	if old != "square" {
		t.Fatalf("old room = %q, want square", old)
	}

	pub.Deliver([]executor.Event{executor.Broadcast("tavern", "A fire crackles.")})
	expectLine(t, sess, "A fire crackles.")

	pub.Deliver([]executor.Event{executor.Broadcast("square", "Rain falls.")})
	expectSilence(t, sess)
}

func TestDetach_ClosesBridgeAndFreesAccount(t *testing.T) {
	srv, _ := startBroker(t)
	mgr := session.NewManager(srv)

	sess, err := mgr.Attach("acct-1", "Alice", "square")
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := mgr.Detach(sess.Ref); err != nil {
		t.Fatalf("Detach: %v", err)
	}

	if !sess.Entity.IsClosed() {
		t.Fatal("bridge not closed on detach")
	}
	if _, ok := mgr.ByAccount("acct-1"); ok {
		t.Fatal("account still mapped after detach")
	}
	if err := mgr.Detach(sess.Ref); err == nil {
		t.Fatal("second detach should fail")
	}
}

func TestBridgeEntity_FullBufferDropsNotBlocks(t *testing.T) {
	e := session.NewBridgeEntity("acct-1", 2)
	if err := e.Push("one"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := e.Push("two"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := e.Push("three"); err == nil {
		t.Fatal("push into a full buffer should error")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Push("four"); err == nil {
		t.Fatal("push after close should error")
	}
}
