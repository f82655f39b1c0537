// Package game implements the per-room flag-guessing state machine:
// starting a game, emitting questions, collecting answers, scoring rounds,
// and finalizing results. It operates on the room and game-state types
// from internal/rooms rather than holding any state of its own.
package game

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"flagsgame.dev/internal/clock"
	"flagsgame.dev/internal/countries"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/wire"
)

// CorrectPointCost is the flat score awarded for a correct answer. There is
// no speed bonus: every correct answer in a round is worth the same.
const CorrectPointCost = 1

// startingCountdownSeconds is the fixed delay between GAME_STARTING/
// GAME_RESTARTED and the first question, not configurable per room.
const startingCountdownSeconds = 5

// resultsDisplaySeconds is the fixed delay between QUESTION_RESULTS and the
// next question, not configurable per room.
const resultsDisplaySeconds = 3

// QuestionProvider is the external collaborator that hands out rounds. It
// is satisfied by *countries.Provider in production and can be swapped for
// a fake in tests.
type QuestionProvider interface {
	NextQuestion(difficulty string, used map[string]bool) (*countries.Question, bool)
}

// Broadcaster is the narrow slice of the broadcast layer the engine needs:
// emitting an outbound frame type/data pair to every member of a room.
type Broadcaster interface {
	ToRoom(roomID string, msgType string, data any)
}

// Engine drives every room's game state machine. It holds no per-room
// state itself; all state lives on the rooms.Room/rooms.GameState it is
// given.
type Engine struct {
	mu        sync.Mutex
	questions QuestionProvider
	timers    *clock.Registry
	broadcast Broadcaster
}

// New constructs a game Engine.
func New(questions QuestionProvider, timers *clock.Registry, broadcast Broadcaster) *Engine {
	return &Engine{questions: questions, timers: timers, broadcast: broadcast}
}

// LeaderboardEntry is one row of the results/final standings payload.
type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Score  int    `json:"score"`
}

// leaderboardLocked builds a score-descending leaderboard. Caller must hold
// r.mu (via the caller's own lock, not e.mu).
func leaderboardLocked(state *rooms.GameState) []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(state.Scores))
	for uid, score := range state.Scores {
		out = append(out, LeaderboardEntry{UserID: uid, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// StartGame transitions a room from waiting to starting and schedules the
// first question. Only the host may call this with room members already
// present; the caller is responsible for that permission check.
func (e *Engine) StartGame(r *rooms.Room) error {
	r.Lock()
	if r.Game.Phase != rooms.PhaseWaiting {
		r.Unlock()
		return fmt.Errorf("game is not in the waiting phase")
	}
	r.Game.Phase = rooms.PhaseStarting
	r.Game.IsActive = true
	r.Game.QuestionIndex = 0
	r.Game.QuestionCount = countries.QuestionCount(r.Settings.Difficulty)
	r.Game.UsedCountries = make(map[string]bool)
	r.Game.Scores = make(map[string]int)
	for _, m := range r.Members {
		r.Game.Scores[m.UserID] = 0
	}
	r.Unlock()

	e.broadcast.ToRoom(r.ID, wire.TypeGameStarting, map[string]any{
		"roomId":        r.ID,
		"questionCount": r.Game.QuestionCount,
		"countdown":     startingCountdownSeconds,
	})

	e.timers.Schedule(r.ID, startingCountdownSeconds*time.Second, func() { e.NextQuestion(r) })
	return nil
}

// NextQuestion advances to the next round, or finishes the game if the
// question pool or the configured round count is exhausted.
func (e *Engine) NextQuestion(r *rooms.Room) {
	r.Lock()
	if r.Game.Phase != rooms.PhaseStarting && r.Game.Phase != rooms.PhaseResults {
		r.Unlock()
		return
	}
	if r.Game.QuestionIndex >= r.Game.QuestionCount {
		r.Unlock()
		e.EndGame(r)
		return
	}

	q, ok := e.questions.NextQuestion(r.Settings.Difficulty, r.Game.UsedCountries)
	if !ok {
		r.Unlock()
		e.EndGame(r)
		return
	}

	r.Game.UsedCountries[q.CurrentCountry.Code] = true
	r.Game.CurrentCountry = q.CurrentCountry.Code
	r.Game.CurrentOptions = make([]string, len(q.Options))
	for i, o := range q.Options {
		r.Game.CurrentOptions[i] = o.Code
	}
	r.Game.Answers = make(map[string]*rooms.Answer)
	r.Game.QuestionIndex++
	r.Game.Phase = rooms.PhaseQuestion

	timeLimit := r.Settings.QuestionTimeLimit
	if timeLimit <= 0 {
		timeLimit = 15
	}
	roomID, index, count := r.ID, r.Game.QuestionIndex, r.Game.QuestionCount
	r.Unlock()

	e.broadcast.ToRoom(roomID, wire.TypeNewQuestion, map[string]any{
		"roomId":            roomID,
		"questionIndex":     index,
		"questionCount":     count,
		"flag":              q.CurrentCountry.Flag,
		"options":           q.Options,
		"timeLimitSeconds":  timeLimit,
	})

	e.timers.Schedule(roomID, time.Duration(timeLimit)*time.Second, func() { e.EndQuestion(r) })
}

// SubmitAnswer records userID's answer for the current question, scoring
// it immediately. A second submission from the same user is rejected.
func (e *Engine) SubmitAnswer(r *rooms.Room, userID, optionCode string) error {
	r.Lock()
	defer r.Unlock()

	if r.Game.Phase != rooms.PhaseQuestion {
		return fmt.Errorf("no question is currently active")
	}
	if _, already := r.Game.Answers[userID]; already {
		return fmt.Errorf("answer already submitted")
	}

	correct := optionCode == r.Game.CurrentCountry
	points := 0
	if correct {
		points = CorrectPointCost
		r.Game.Scores[userID] += points
	}
	r.Game.Answers[userID] = &rooms.Answer{
		UserID:        userID,
		OptionCode:    optionCode,
		Correct:       correct,
		SubmittedAt:   time.Now(),
		PointsAwarded: points,
	}

	if len(r.Game.Answers) >= len(r.Members) {
		go e.EndQuestion(r)
	}
	return nil
}

// EndQuestion closes the current round, reveals the answer, and schedules
// the next question after the configured results display time. It is
// idempotent: calling it twice for the same round (once from the timer,
// once from every member having answered) only acts once.
func (e *Engine) EndQuestion(r *rooms.Room) {
	r.Lock()
	if r.Game.Phase != rooms.PhaseQuestion {
		r.Unlock()
		return
	}
	r.Game.Phase = rooms.PhaseResults
	board := leaderboardLocked(r.Game)
	if len(board) > 0 {
		r.Game.LastWinnerUserID = board[0].UserID
	}
	roomID, correctCode := r.ID, r.Game.CurrentCountry
	answers := make(map[string]*rooms.Answer, len(r.Game.Answers))
	for k, v := range r.Game.Answers {
		answers[k] = v
	}
	r.Unlock()

	e.broadcast.ToRoom(roomID, wire.TypeQuestionResults, map[string]any{
		"roomId":        roomID,
		"correctOption": correctCode,
		"answers":       answers,
		"leaderboard":   board,
	})

	e.timers.Schedule(roomID, resultsDisplaySeconds*time.Second, func() { e.NextQuestion(r) })
}

// EndGame finalizes the room: marks it finished and broadcasts the final
// standings.
func (e *Engine) EndGame(r *rooms.Room) {
	r.Lock()
	if r.Game.Phase == rooms.PhaseFinished {
		r.Unlock()
		return
	}
	r.Game.Phase = rooms.PhaseFinished
	r.Game.IsActive = false
	board := leaderboardLocked(r.Game)
	roomID := r.ID
	r.Unlock()

	e.timers.Cancel(roomID)
	e.broadcast.ToRoom(roomID, wire.TypeGameEnded, map[string]any{
		"roomId":      roomID,
		"leaderboard": board,
	})
}

// StopGame immediately returns a room to the waiting phase from any other
// phase, used by the host to abort a game in progress.
func (e *Engine) StopGame(r *rooms.Room) {
	r.Lock()
	r.Game.Phase = rooms.PhaseWaiting
	r.Game.IsActive = false
	roomID := r.ID
	r.Unlock()

	e.timers.Cancel(roomID)
	e.broadcast.ToRoom(roomID, wire.TypeGameStopped, map[string]any{"roomId": roomID})
}

// RestartGame starts a new game from a finished room. Only a room that has
// actually reached the finished phase may be restarted; an in-progress
// game must be stopped first.
func (e *Engine) RestartGame(r *rooms.Room) error {
	r.Lock()
	if r.Game.Phase != rooms.PhaseFinished {
		r.Unlock()
		return fmt.Errorf("game must be finished to restart")
	}
	r.Game.Phase = rooms.PhaseWaiting
	r.Unlock()

	e.timers.Cancel(r.ID)
	e.broadcast.ToRoom(r.ID, wire.TypeGameRestarted, map[string]any{
		"roomId":    r.ID,
		"countdown": startingCountdownSeconds,
	})
	return e.StartGame(r)
}
