package game

import (
	"sync"
	"testing"

	"flagsgame.dev/internal/clock"
	"flagsgame.dev/internal/countries"
	"flagsgame.dev/internal/rooms"
)

// fakeProvider hands out a fixed sequence of questions, then runs dry.
type fakeProvider struct {
	mu    sync.Mutex
	calls int
	max   int
}

func (f *fakeProvider) NextQuestion(difficulty string, used map[string]bool) (*countries.Question, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls >= f.max {
		return nil, false
	}
	f.calls++
	correct := countries.Country{Name: "Testland", Code: "TL", Flag: "🏳️"}
	other := countries.Country{Name: "Otherland", Code: "OL", Flag: "🏴"}
	return &countries.Question{
		CurrentCountry: correct,
		Options:        []countries.Country{correct, other},
	}, true
}

// recordingBroadcaster captures every emitted message type for assertions.
type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []string
}

func (b *recordingBroadcaster) ToRoom(roomID, msgType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msgType)
}

func (b *recordingBroadcaster) last() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.msgs) == 0 {
		return ""
	}
	return b.msgs[len(b.msgs)-1]
}

func newTestRoom() *rooms.Room {
	r := rooms.New("room-1", "Test Room", "ABC123", "user-1")
	r.AddMemberLocked("user-1", "alice", true)
	r.AddMemberLocked("user-2", "bob", false)
	r.Settings.Difficulty = "easy"
	r.Settings.QuestionTimeLimit = 1
	return r
}

func TestEngine_SubmitAnswer_AwardsPointOnlyForCorrect(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseQuestion
	r.Game.CurrentCountry = "TL"
	r.Game.Scores = map[string]int{"user-1": 0, "user-2": 0}
	r.Game.Answers = make(map[string]*rooms.Answer)

	e := New(&fakeProvider{max: 1}, clock.NewRegistry(nil), &recordingBroadcaster{})

	if err := e.SubmitAnswer(r, "user-1", "TL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SubmitAnswer(r, "user-2", "OL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Lock()
	defer r.Unlock()
	if r.Game.Scores["user-1"] != CorrectPointCost {
		t.Fatalf("expected correct answer to score %d, got %d", CorrectPointCost, r.Game.Scores["user-1"])
	}
	if r.Game.Scores["user-2"] != 0 {
		t.Fatalf("expected incorrect answer to score 0, got %d", r.Game.Scores["user-2"])
	}
}

func TestEngine_SubmitAnswer_RejectsDuplicate(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseQuestion
	r.Game.CurrentCountry = "TL"
	r.Game.Scores = map[string]int{"user-1": 0}
	r.Game.Answers = make(map[string]*rooms.Answer)

	e := New(&fakeProvider{max: 1}, clock.NewRegistry(nil), &recordingBroadcaster{})
	if err := e.SubmitAnswer(r, "user-1", "TL"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SubmitAnswer(r, "user-1", "TL"); err == nil {
		t.Fatal("expected second submission from the same user to be rejected")
	}
}

func TestEngine_SubmitAnswer_RejectsOutsideQuestionPhase(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseWaiting

	e := New(&fakeProvider{max: 1}, clock.NewRegistry(nil), &recordingBroadcaster{})
	if err := e.SubmitAnswer(r, "user-1", "TL"); err == nil {
		t.Fatal("expected an error outside the question phase")
	}
}

func TestEngine_StartGame_TransitionsToStarting(t *testing.T) {
	r := newTestRoom()
	b := &recordingBroadcaster{}
	e := New(&fakeProvider{max: 3}, clock.NewRegistry(nil), b)

	if err := e.StartGame(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.Lock()
	phase := r.Game.Phase
	r.Unlock()
	if phase != rooms.PhaseStarting {
		t.Fatalf("expected phase %q, got %q", rooms.PhaseStarting, phase)
	}
	if b.last() != "GAME_STARTING" {
		t.Fatalf("expected a GAME_STARTING broadcast, got %q", b.last())
	}
}

func TestEngine_StartGame_RejectsWhenNotWaiting(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseQuestion

	e := New(&fakeProvider{max: 1}, clock.NewRegistry(nil), &recordingBroadcaster{})
	if err := e.StartGame(r); err == nil {
		t.Fatal("expected an error starting a game already in progress")
	}
}

func TestEngine_NextQuestion_EndsGameWhenPoolExhausted(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseStarting
	r.Game.QuestionCount = 5
	r.Game.UsedCountries = make(map[string]bool)
	r.Game.Scores = map[string]int{"user-1": 0, "user-2": 0}

	b := &recordingBroadcaster{}
	e := New(&fakeProvider{max: 0}, clock.NewRegistry(nil), b)
	e.NextQuestion(r)

	r.Lock()
	phase := r.Game.Phase
	r.Unlock()
	if phase != rooms.PhaseFinished {
		t.Fatalf("expected phase %q, got %q", rooms.PhaseFinished, phase)
	}
	if b.last() != "GAME_ENDED" {
		t.Fatalf("expected a GAME_ENDED broadcast, got %q", b.last())
	}
}

func TestEngine_StopGame_ReturnsToWaitingFromAnyPhase(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseResults

	b := &recordingBroadcaster{}
	e := New(&fakeProvider{max: 1}, clock.NewRegistry(nil), b)
	e.StopGame(r)

	r.Lock()
	phase := r.Game.Phase
	r.Unlock()
	if phase != rooms.PhaseWaiting {
		t.Fatalf("expected phase %q, got %q", rooms.PhaseWaiting, phase)
	}
	if b.last() != "GAME_STOPPED" {
		t.Fatalf("expected a GAME_STOPPED broadcast, got %q", b.last())
	}
}

func TestEngine_EndGame_IsIdempotent(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseResults
	r.Game.Scores = map[string]int{"user-1": 2}

	b := &recordingBroadcaster{}
	timers := clock.NewRegistry(nil)
	e := New(&fakeProvider{max: 1}, timers, b)

	e.EndGame(r)
	e.EndGame(r)

	count := 0
	b.mu.Lock()
	for _, m := range b.msgs {
		if m == "GAME_ENDED" {
			count++
		}
	}
	b.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one GAME_ENDED broadcast, got %d", count)
	}
}

func TestEngine_EndQuestion_SetsLastWinner(t *testing.T) {
	r := newTestRoom()
	r.Game.Phase = rooms.PhaseQuestion
	r.Game.CurrentCountry = "TL"
	r.Game.Answers = make(map[string]*rooms.Answer)
	r.Game.Scores = map[string]int{"user-1": 5, "user-2": 1}

	e := New(&fakeProvider{max: 1}, clock.NewRegistry(nil), &recordingBroadcaster{})
	e.EndQuestion(r)

	r.Lock()
	defer r.Unlock()
	if r.Game.LastWinnerUserID != "user-1" {
		t.Fatalf("expected user-1 to lead, got %q", r.Game.LastWinnerUserID)
	}
	if r.Game.Phase != rooms.PhaseResults {
		t.Fatalf("expected phase %q, got %q", rooms.PhaseResults, r.Game.Phase)
	}
}
