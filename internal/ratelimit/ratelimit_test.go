package ratelimit

import (
	"testing"
	"time"
)

func withFakeClock(t *testing.T) func(d time.Duration) {
	t.Helper()
	now := time.Now()
	real := nowFunc
	nowFunc = func() time.Time { return now }
	t.Cleanup(func() { nowFunc = real })
	return func(d time.Duration) { now = now.Add(d) }
}

func TestLimiter_AllowWithinBurst(t *testing.T) {
	withFakeClock(t)
	rl := New()
	for i := 0; i < 5; i++ {
		if !rl.Allow("conn-1", "CREATE_ROOM") {
			t.Fatalf("expected allow on request %d", i)
		}
	}
	if rl.Allow("conn-1", "CREATE_ROOM") {
		t.Fatal("expected deny after limit exhausted")
	}
}

func TestLimiter_DecaysAcrossWindow(t *testing.T) {
	advance := withFakeClock(t)
	rl := New()
	for i := 0; i < 5; i++ {
		rl.Allow("conn-1", "CREATE_ROOM")
	}
	if rl.Allow("conn-1", "CREATE_ROOM") {
		t.Fatal("expected deny immediately after exhausting limit")
	}

	// Halfway into the next window, the previous window's weight has
	// decayed by half, so room should open up before it's fully forgotten.
	advance(90 * time.Second)
	if !rl.Allow("conn-1", "CREATE_ROOM") {
		t.Fatal("expected allow once the previous window's weight has decayed by half")
	}
}

func TestLimiter_IndependentPerIdentifier(t *testing.T) {
	withFakeClock(t)
	rl := New()
	for i := 0; i < 5; i++ {
		rl.Allow("conn-1", "CREATE_ROOM")
	}
	if !rl.Allow("conn-2", "CREATE_ROOM") {
		t.Fatal("expected a different identifier to have its own budget")
	}
}

func TestLimiter_IndependentPerAction(t *testing.T) {
	withFakeClock(t)
	rl := New()
	for i := 0; i < 5; i++ {
		rl.Allow("conn-1", "CREATE_ROOM")
	}
	if !rl.Allow("conn-1", "JOIN_ROOM") {
		t.Fatal("expected a different action to have its own budget")
	}
}

func TestLimiter_UnknownActionUsesDefault(t *testing.T) {
	withFakeClock(t)
	rl := New()
	for i := 0; i < 20; i++ {
		if !rl.Allow("conn-1", "SOME_UNKNOWN_TYPE") {
			t.Fatalf("expected allow on request %d under default limit", i)
		}
	}
	if rl.Allow("conn-1", "SOME_UNKNOWN_TYPE") {
		t.Fatal("expected deny after default limit exhausted")
	}
}

func TestLimiter_Forget(t *testing.T) {
	withFakeClock(t)
	rl := New()
	for i := 0; i < 5; i++ {
		rl.Allow("conn-1", "CREATE_ROOM")
	}
	rl.Forget("conn-1")
	if !rl.Allow("conn-1", "CREATE_ROOM") {
		t.Fatal("expected a forgotten identifier to start with a fresh budget")
	}
}

func TestIPGuard_CapsConcurrentConnections(t *testing.T) {
	withFakeClock(t)
	g := NewIPGuard(2)
	if !g.Allow("1.2.3.4") {
		t.Fatal("expected first connection to be admitted")
	}
	if !g.Allow("1.2.3.4") {
		t.Fatal("expected second connection to be admitted")
	}
	if g.Allow("1.2.3.4") {
		t.Fatal("expected third concurrent connection to be rejected")
	}
	g.Release("1.2.3.4")
	if !g.Allow("1.2.3.4") {
		t.Fatal("expected a connection to be admitted after one was released")
	}
}

func TestIPGuard_ClampsMaxConnsToCeiling(t *testing.T) {
	g := NewIPGuard(999)
	if g.maxConns != MaxConnsPerIPCeiling {
		t.Fatalf("maxConns = %d, want %d", g.maxConns, MaxConnsPerIPCeiling)
	}
}

func TestIPGuard_MarksSuspiciousAfterRapidConnects(t *testing.T) {
	advance := withFakeClock(t)
	g := NewIPGuard(MaxConnsPerIPCeiling)
	for i := 0; i < rapidConnectLimit; i++ {
		if !g.Allow("5.6.7.8") {
			t.Fatalf("expected attempt %d within the rapid-connect budget to be admitted", i)
		}
		g.Release("5.6.7.8")
		advance(time.Second)
	}
	if g.Allow("5.6.7.8") {
		t.Fatal("expected the attempt crossing the rapid-connect threshold to be rejected")
	}
	if !g.Suspicious("5.6.7.8") {
		t.Fatal("expected the address to be marked suspicious")
	}

	// Suspicion does not expire on its own, even well outside the window.
	advance(time.Hour)
	if g.Allow("5.6.7.8") {
		t.Fatal("expected a suspicious address to remain rejected indefinitely")
	}
}

func TestIPGuard_IndependentPerAddress(t *testing.T) {
	withFakeClock(t)
	g := NewIPGuard(1)
	if !g.Allow("1.1.1.1") {
		t.Fatal("expected first address to be admitted")
	}
	if !g.Allow("2.2.2.2") {
		t.Fatal("expected a different address to have its own budget")
	}
}
