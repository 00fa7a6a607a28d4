package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mathquiz/internal/config"
	"mathquiz/internal/controller"
	"mathquiz/internal/db"
	"mathquiz/internal/problem"
	"mathquiz/internal/quiz"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryScores struct {
	mu      sync.Mutex
	scores  []db.Score
	failing bool
}

func (m *memoryScores) Insert(_ context.Context, score *db.Score) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("database down")
	}
	score.ID = "score-1"
	m.scores = append(m.scores, *score)
	return nil
}

func (m *memoryScores) Top(_ context.Context, filter db.LeaderboardFilter) (*db.LeaderboardPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	filter = filter.Normalize()
	page := &db.LeaderboardPage{Scores: []db.Score{}, Page: filter.Page, PageSize: filter.PageSize}
	for _, s := range m.scores {
		if filter.Operation == "" || s.Operation == filter.Operation {
			page.Scores = append(page.Scores, s)
		}
	}
	page.Total = len(page.Scores)
	return page, nil
}

func newTestRouter(t *testing.T, scores controller.ScoreStore) *gin.Engine {
	t.Helper()
	cfg := config.DefaultConfig()
	logger := zap.NewNop()
	generator := problem.NewGenerator(rand.New(rand.NewPCG(42, 43)), logger)
	sessions := quiz.NewStore(time.Minute, logger)
	qc := controller.NewQuizController(generator, sessions, scores, cfg.Quiz, logger)
	return SetupRouter(qc, logger)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAnswerRangeEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantMin    int
		wantMax    int
		fallback   bool
	}{
		{
			name:       "multiplication with negatives",
			body:       map[string]any{"operation": "multiplication", "min1": -3, "max1": 2, "min2": -4, "max2": 5, "allow_negatives": true},
			wantStatus: http.StatusOK,
			wantMin:    -15,
			wantMax:    12,
		},
		{
			name:       "division symbol",
			body:       map[string]any{"operation": "÷", "min1": 10, "max1": 50, "min2": 0, "max2": 5},
			wantStatus: http.StatusOK,
			wantMin:    2,
			wantMax:    50,
		},
		{
			name:       "unknown operation falls back",
			body:       map[string]any{"operation": "modulo", "min1": 1, "max1": 5, "min2": 1, "max2": 5},
			wantStatus: http.StatusOK,
			wantMin:    1,
			wantMax:    20,
			fallback:   true,
		},
		{
			name:       "strict rejects unknown operation",
			body:       map[string]any{"operation": "modulo", "strict": true},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "strict rejects inverted range",
			body:       map[string]any{"operation": "addition", "min1": 9, "max1": 1, "strict": true},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing operation",
			body:       map[string]any{"min1": 1},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/api/v1/answerRange", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := decode[controller.AnswerRangeResponse](t, w)
			assert.Equal(t, tt.wantMin, resp.Min)
			assert.Equal(t, tt.wantMax, resp.Max)
			assert.Equal(t, tt.fallback, resp.Fallback)
		})
	}
}

func TestRandomEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/random?min=3&max=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, decode[map[string]int](t, w)["value"])

	w = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/random?min=%d&max=%d", math.MinInt, math.MaxInt), nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/random?min=9&max=1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/random?min=a", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProblemsEndpoint(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/problems", map[string]any{
		"operation": "subtraction",
		"range":     map[string]int{"min1": 1, "max1": 10, "min2": 1, "max2": 10},
		"count":     4,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[struct {
		Problems []map[string]any `json:"problems"`
	}](t, w)
	require.Len(t, resp.Problems, 4)
	for _, p := range resp.Problems {
		assert.NotContains(t, p, "Answer")
		assert.NotEmpty(t, p["text"])
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/problems", map[string]any{"operation": "addition", "count": 10000})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/problems", map[string]any{"operation": "modulo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProblemsEndpoint_OversizedRange(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/problems", map[string]any{
		"operation": "addition",
		"range":     map[string]int{"min1": -1, "max1": math.MaxInt, "min2": 1, "max2": 2},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/problems", map[string]any{
		"operation": "addition",
		"range":     map[string]int{"min1": 0, "max1": math.MaxInt, "min2": 1, "max2": 2},
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	done := make(chan int, 1)
	go func() {
		done <- doJSON(t, router, http.MethodPost, "/api/v1/problems", map[string]any{"operation": "addition"}).Code
	}()
	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(3 * time.Second):
		t.Fatal("problems endpoint blocked after an oversized range")
	}
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Problems  []struct {
		ID    string `json:"id"`
		Left  int    `json:"left"`
		Right int    `json:"right"`
	} `json:"problems"`
}

func TestQuizFlow(t *testing.T) {
	scores := &memoryScores{}
	router := newTestRouter(t, scores)

	w := doJSON(t, router, http.MethodPost, "/api/v1/quizzes", map[string]any{
		"player_name": "ada",
		"operations":  []string{"addition"},
		"count":       3,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	started := decode[startResponse](t, w)
	require.Len(t, started.Problems, 3)

	for i, p := range started.Problems {
		answer := p.Left + p.Right
		if i == 2 {
			answer++
		}
		w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes/"+started.SessionID+"/answers",
			map[string]any{"problem_id": p.ID, "answer": answer})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		outcome := decode[quiz.AnswerOutcome](t, w)
		assert.Equal(t, i != 2, outcome.Correct)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes/"+started.SessionID+"/answers",
		map[string]any{"problem_id": started.Problems[0].ID, "answer": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes/"+started.SessionID+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, scores.scores, 1)
	assert.Equal(t, 2, scores.scores[0].Correct)
	assert.Equal(t, "addition", scores.scores[0].Operation)

	w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes/"+started.SessionID+"/finish", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/leaderboard?operation=%2B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[db.LeaderboardPage](t, w)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "ada", page.Scores[0].PlayerName)
}

func TestQuizErrors(t *testing.T) {
	router := newTestRouter(t, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/quizzes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes", map[string]any{"operations": []string{"addition"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes", map[string]any{"player_name": "x", "operations": []string{"pow"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/leaderboard", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFinishQuiz_ScoreStoreFailure(t *testing.T) {
	scores := &memoryScores{failing: true}
	router := newTestRouter(t, scores)

	w := doJSON(t, router, http.MethodPost, "/api/v1/quizzes", map[string]any{"player_name": "bo"})
	require.Equal(t, http.StatusCreated, w.Code)
	started := decode[startResponse](t, w)

	w = doJSON(t, router, http.MethodPost, "/api/v1/quizzes/"+started.SessionID+"/finish", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Contains(t, body, "result")
	assert.NotContains(t, body, "score")
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil)
	w := doJSON(t, router, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(CustomRecoveryMiddleware(zap.NewNop()))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := doJSON(t, router, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
