package ratelimit_test

import (
	"testing"

	"github.com/cory-johannsen/hearth/internal/ratelimit"
)

func TestCheckAndConsume_BurstThenDenial(t *testing.T) {
	l := ratelimit.NewLimiter(ratelimit.Config{
		Planner: ratelimit.TierConfig{PerSecond: 0.001, Burst: 2},
	})

	if !l.CheckAndConsume("npc-1", ratelimit.TierPlanner) {
		t.Fatal("first call denied")
	}
	if !l.CheckAndConsume("npc-1", ratelimit.TierPlanner) {
		t.Fatal("second call within burst denied")
	}
	if l.CheckAndConsume("npc-1", ratelimit.TierPlanner) {
		t.Fatal("third call should exceed the burst")
	}
}

func TestCheckAndConsume_KeysIsolated(t *testing.T) {
	l := ratelimit.NewLimiter(ratelimit.Config{
		Planner: ratelimit.TierConfig{PerSecond: 0.001, Burst: 1},
	})

	if !l.CheckAndConsume("npc-1", ratelimit.TierPlanner) {
		t.Fatal("npc-1 denied")
	}
	if !l.CheckAndConsume("npc-2", ratelimit.TierPlanner) {
		t.Fatal("npc-2 should have its own bucket")
	}
}

func TestCheckAndConsume_TiersIsolated(t *testing.T) {
	l := ratelimit.NewLimiter(ratelimit.Config{
		Planner: ratelimit.TierConfig{PerSecond: 0.001, Burst: 1},
		Admin:   ratelimit.TierConfig{PerSecond: 0.001, Burst: 1},
	})

	if !l.CheckAndConsume("k", ratelimit.TierPlanner) {
		t.Fatal("planner tier denied")
	}
	if !l.CheckAndConsume("k", ratelimit.TierAdmin) {
		t.Fatal("admin tier shares a bucket with planner")
	}
}

func TestReset_DropsAllBuckets(t *testing.T) {
	l := ratelimit.NewLimiter(ratelimit.Config{
		Planner: ratelimit.TierConfig{PerSecond: 0.001, Burst: 1},
	})

	l.CheckAndConsume("npc-1", ratelimit.TierPlanner)
	l.CheckAndConsume("npc-2", ratelimit.TierPlanner)
	l.Reset()
	if !l.CheckAndConsume("npc-1", ratelimit.TierPlanner) ||
		!l.CheckAndConsume("npc-2", ratelimit.TierPlanner) {
		t.Fatal("reset should refresh every bucket")
	}
}

func TestForget_ResetsBudget(t *testing.T) {
	l := ratelimit.NewLimiter(ratelimit.Config{
		Planner: ratelimit.TierConfig{PerSecond: 0.001, Burst: 1},
	})

	l.CheckAndConsume("npc-1", ratelimit.TierPlanner)
	if l.CheckAndConsume("npc-1", ratelimit.TierPlanner) {
		t.Fatal("budget should be exhausted")
	}
	l.Forget("npc-1")
	if !l.CheckAndConsume("npc-1", ratelimit.TierPlanner) {
		t.Fatal("forgotten key should start a fresh bucket")
	}
}
