package conn

import (
	"testing"
	"time"
)

func TestConnection_CheckMissedBeat_NoBeatSentYet(t *testing.T) {
	c := &Connection{}
	if c.CheckMissedBeat(DefaultHeartbeatTimeout) {
		t.Fatal("expected no missed beat before any beat was sent")
	}
}

func TestConnection_CheckMissedBeat_WithinTimeout(t *testing.T) {
	c := &Connection{}
	c.MarkBeatSent()
	if c.CheckMissedBeat(time.Hour) {
		t.Fatal("expected no missed beat within the timeout window")
	}
}

func TestConnection_CheckMissedBeat_EscalatesToLoss(t *testing.T) {
	c := &Connection{}
	c.lastBeatSentAt = time.Now().Add(-time.Hour)

	for i := 0; i < MaxMissedHeartbeats-1; i++ {
		if c.CheckMissedBeat(time.Millisecond) {
			t.Fatalf("did not expect liveness loss on missed beat %d", i+1)
		}
	}
	if !c.CheckMissedBeat(time.Millisecond) {
		t.Fatalf("expected liveness loss after %d missed beats", MaxMissedHeartbeats)
	}
}

func TestConnection_RecordPong_ResetsMissedCount(t *testing.T) {
	c := &Connection{}
	c.lastBeatSentAt = time.Now().Add(-time.Hour)
	c.CheckMissedBeat(time.Millisecond)
	c.RecordPong()
	if c.missedBeats != 0 {
		t.Fatalf("expected missed beat count to reset, got %d", c.missedBeats)
	}
}

func TestConnection_Enqueue_ReportsBackpressure(t *testing.T) {
	c := &Connection{Send: make(chan []byte, sendBufferSize)}
	big := make([]byte, 2<<20) // 2 MiB, over the 1 MiB ceiling
	if !c.Enqueue(big) {
		t.Fatal("expected enqueue of an oversized payload to report backpressure")
	}
}

func TestRegistry_TrackSupersedesExistingUserConnection(t *testing.T) {
	r := NewRegistry()
	first := newConnection("conn-1", "user-1", nil)
	if old := r.Track(first); old != nil {
		t.Fatal("expected no superseded connection on first track")
	}

	second := newConnection("conn-2", "user-1", nil)
	old := r.Track(second)

	if old != first {
		t.Fatal("expected to observe the superseded connection")
	}
	if r.GetByUser("user-1") != second {
		t.Fatal("expected the newest connection to be the tracked one")
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	c := newConnection("conn-1", "user-1", nil)
	r.Track(c)

	r.Remove("conn-1")
	if r.Get("conn-1") != nil {
		t.Fatal("expected connection to be removed from the id index")
	}
	if r.GetByUser("user-1") != nil {
		t.Fatal("expected connection to be removed from the user index")
	}
}
