// Package quiz keeps timed quiz sessions in memory.
package quiz

import (
	"errors"
	"sync"
	"time"

	"mathquiz/internal/problem"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound indicates no session exists for the given ID
	ErrSessionNotFound = errors.New("quiz session not found")

	// ErrSessionExpired indicates the session deadline has passed
	ErrSessionExpired = errors.New("quiz session expired")

	// ErrSessionFinished indicates the session was already finished
	ErrSessionFinished = errors.New("quiz session already finished")

	// ErrProblemNotFound indicates the problem is not part of the session
	ErrProblemNotFound = errors.New("problem not in session")

	// ErrAlreadyAnswered indicates the problem was answered before
	ErrAlreadyAnswered = errors.New("problem already answered")
)

// Session is one player's run through a timed set of problems.
type Session struct {
	ID         string            `json:"id"`
	PlayerName string            `json:"player_name"`
	Problems   []problem.Problem `json:"problems"`
	Answers    map[string]bool   `json:"answers"`
	Correct    int               `json:"correct"`
	Streak     int               `json:"streak"`
	BestStreak int               `json:"best_streak"`
	StartedAt  time.Time         `json:"started_at"`
	Deadline   time.Time         `json:"deadline"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Result is the outcome of a finished session.
type Result struct {
	SessionID  string        `json:"session_id"`
	PlayerName string        `json:"player_name"`
	Operation  string        `json:"operation"`
	Correct    int           `json:"correct"`
	Total      int           `json:"total"`
	BestStreak int           `json:"best_streak"`
	Duration   time.Duration `json:"duration"`
}

// AnswerOutcome reports how a submitted answer was judged.
type AnswerOutcome struct {
	Correct   bool `json:"correct"`
	Expected  int  `json:"expected"`
	Score     int  `json:"score"`
	Streak    int  `json:"streak"`
	Remaining int  `json:"remaining"`
}

// Store holds sessions keyed by ID.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	duration time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewStore creates a store whose sessions last duration.
func NewStore(duration time.Duration, logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		duration: duration,
		now:      time.Now,
		logger:   logger,
	}
}

// Start opens a session over problems.
func (s *Store) Start(playerName string, problems []problem.Problem) *Session {
	now := s.now()
	session := &Session{
		ID:         uuid.NewString(),
		PlayerName: playerName,
		Problems:   problems,
		Answers:    make(map[string]bool, len(problems)),
		StartedAt:  now,
		Deadline:   now.Add(s.duration),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	s.logger.Info("Quiz session started",
		zap.String("session_id", session.ID),
		zap.String("player", playerName),
		zap.Int("problems", len(problems)),
		zap.Time("deadline", session.Deadline))
	return cloneSession(session)
}

// Get returns a snapshot of the session.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// Answer records answer for the given problem.
func (s *Store) Answer(id, problemID string, answer int) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return AnswerOutcome{}, ErrSessionNotFound
	}
	if session.FinishedAt != nil {
		return AnswerOutcome{}, ErrSessionFinished
	}
	if s.now().After(session.Deadline) {
		return AnswerOutcome{}, ErrSessionExpired
	}
	if _, done := session.Answers[problemID]; done {
		return AnswerOutcome{}, ErrAlreadyAnswered
	}

	var p *problem.Problem
	for i := range session.Problems {
		if session.Problems[i].ID == problemID {
			p = &session.Problems[i]
			break
		}
	}
	if p == nil {
		return AnswerOutcome{}, ErrProblemNotFound
	}

	correct := p.Check(answer)
	session.Answers[problemID] = correct
	if correct {
		session.Correct++
		session.Streak++
		session.BestStreak = max(session.BestStreak, session.Streak)
	} else {
		session.Streak = 0
	}

	return AnswerOutcome{
		Correct:   correct,
		Expected:  p.Answer,
		Score:     session.Correct,
		Streak:    session.Streak,
		Remaining: len(session.Problems) - len(session.Answers),
	}, nil
}

// Finish closes the session and returns its result. A session past its
// deadline can still be finished; the duration is capped at the deadline.
func (s *Store) Finish(id string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Result{}, ErrSessionNotFound
	}
	if session.FinishedAt != nil {
		return Result{}, ErrSessionFinished
	}

	finished := s.now()
	if finished.After(session.Deadline) {
		finished = session.Deadline
	}
	session.FinishedAt = &finished

	result := Result{
		SessionID:  session.ID,
		PlayerName: session.PlayerName,
		Operation:  sessionOperation(session.Problems),
		Correct:    session.Correct,
		Total:      len(session.Problems),
		BestStreak: session.BestStreak,
		Duration:   finished.Sub(session.StartedAt),
	}

	s.logger.Info("Quiz session finished",
		zap.String("session_id", session.ID),
		zap.Int("correct", result.Correct),
		zap.Int("total", result.Total),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// Prune drops sessions finished or expired more than grace ago and returns
// how many were removed.
func (s *Store) Prune(grace time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-grace)
	removed := 0
	for id, session := range s.sessions {
		end := session.Deadline
		if session.FinishedAt != nil {
			end = *session.FinishedAt
		}
		if end.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("Pruned quiz sessions", zap.Int("removed", removed))
	}
	return removed
}

// sessionOperation names the single operation of the session, or "mixed".
func sessionOperation(problems []problem.Problem) string {
	if len(problems) == 0 {
		return "mixed"
	}
	op := problems[0].Operation
	for _, p := range problems[1:] {
		if p.Operation != op {
			return "mixed"
		}
	}
	return op.String()
}

func cloneSession(s *Session) *Session {
	c := *s
	c.Problems = append([]problem.Problem(nil), s.Problems...)
	c.Answers = make(map[string]bool, len(s.Answers))
	for k, v := range s.Answers {
		c.Answers[k] = v
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
