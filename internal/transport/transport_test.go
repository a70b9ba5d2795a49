package transport_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/hearth/internal/game/executor"
	"github.com/cory-johannsen/hearth/internal/transport"
)

func startServer(t *testing.T) *transport.Server {
	t.Helper()
	srv, err := transport.NewServer(transport.Config{Port: -1}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func TestPublisher_EmitReachesSessionSubject(t *testing.T) {
	srv := startServer(t)

	got := make(chan transport.Message, 1)
	unsub, err := srv.Subscribe(transport.SessionSubject("npc-1"), func(m transport.Message) {
		got <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	transport.NewPublisher(srv, zap.NewNop()).Deliver([]executor.Event{
		executor.Emit("npc-1", "A purse vanishes."),
	})

	select {
	case m := <-got:
		if m.Target != "npc-1" || m.Line != "A purse vanishes." {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("emit never arrived")
	}
}

func TestPublisher_BroadcastCarriesExclusion(t *testing.T) {
	srv := startServer(t)

	got := make(chan transport.Message, 1)
	unsub, err := srv.Subscribe(transport.RoomSubject("square"), func(m transport.Message) {
		got <- m
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsub()

	transport.NewPublisher(srv, zap.NewNop()).Deliver([]executor.Event{
		executor.BroadcastExcept("square", "npc-1", "Someone leaves."),
	})

	select {
	case m := <-got:
		if m.Room != "square" || m.Exclude != "npc-1" {
			t.Fatalf("unexpected message: %+v", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never arrived")
	}
}
