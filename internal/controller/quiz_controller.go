package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"mathquiz/internal/answerrange"
	"mathquiz/internal/config"
	"mathquiz/internal/db"
	"mathquiz/internal/problem"
	"mathquiz/internal/quiz"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScoreStore persists finished quizzes for the leaderboard.
type ScoreStore interface {
	Insert(ctx context.Context, score *db.Score) error
	Top(ctx context.Context, filter db.LeaderboardFilter) (*db.LeaderboardPage, error)
}

type QuizController struct {
	generator *problem.Generator
	sessions  *quiz.Store
	scores    ScoreStore
	config    config.QuizConfig
	logger    *zap.Logger
}

// NewQuizController wires the quiz endpoints. scores may be nil, in which case
// results are not persisted and the leaderboard is unavailable.
func NewQuizController(generator *problem.Generator, sessions *quiz.Store, scores ScoreStore, cfg config.QuizConfig, logger *zap.Logger) *QuizController {
	return &QuizController{
		generator: generator,
		sessions:  sessions,
		scores:    scores,
		config:    cfg,
		logger:    logger,
	}
}

type AnswerRangeRequest struct {
	Operation      string `json:"operation" binding:"required"`
	Min1           int    `json:"min1"`
	Max1           int    `json:"max1"`
	Min2           int    `json:"min2"`
	Max2           int    `json:"max2"`
	AllowNegatives bool   `json:"allow_negatives"`
	Strict         bool   `json:"strict"` // Reject unknown operations and unordered ranges
}

type AnswerRangeResponse struct {
	Operation string `json:"operation"`
	Min       int    `json:"min"`
	Max       int    `json:"max"`
	Fallback  bool   `json:"fallback,omitempty"`
}

func (qc *QuizController) AnswerRange(c *gin.Context) {
	var request AnswerRangeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, qc.logger, "Invalid request payload", err)
		return
	}

	r := answerrange.ProblemRange{Min1: request.Min1, Max1: request.Max1, Min2: request.Min2, Max2: request.Max2}
	op, err := answerrange.ParseOperation(request.Operation)
	if err != nil {
		if request.Strict {
			badRequest(c, qc.logger, "Unknown operation", err)
			return
		}
		// Unknown names go through the calculator's fallback.
		op = answerrange.Operation(request.Operation)
	}

	var result answerrange.AnswerRange
	if request.Strict {
		result, err = answerrange.CalculateAnswerRangeStrict(op, r, request.AllowNegatives)
		if err != nil {
			badRequest(c, qc.logger, "Invalid range", err)
			return
		}
	} else {
		result = answerrange.CalculateAnswerRange(op, r, request.AllowNegatives)
	}

	c.JSON(http.StatusOK, AnswerRangeResponse{
		Operation: string(op),
		Min:       result.Min,
		Max:       result.Max,
		Fallback:  !op.Valid(),
	})
}

func (qc *QuizController) Random(c *gin.Context) {
	lo, errMin := strconv.Atoi(c.Query("min"))
	hi, errMax := strconv.Atoi(c.Query("max"))
	if err := errors.Join(errMin, errMax); err != nil {
		badRequest(c, qc.logger, "min and max must be integers", err)
		return
	}
	if lo > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min must not exceed max"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"min":   lo,
		"max":   hi,
		"value": answerrange.GenerateRandomInRange(lo, hi),
	})
}

type GenerateProblemsRequest struct {
	Operation      string                    `json:"operation" binding:"required"`
	Range          *answerrange.ProblemRange `json:"range"`
	AllowNegatives *bool                     `json:"allow_negatives"`
	Count          int                       `json:"count"`
}

type ProblemView struct {
	problem.Problem
	Text string `json:"text"`
}

func (qc *QuizController) GenerateProblems(c *gin.Context) {
	var request GenerateProblemsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, qc.logger, "Invalid request payload", err)
		return
	}

	op, err := answerrange.ParseOperation(request.Operation)
	if err != nil {
		badRequest(c, qc.logger, "Unknown operation", err)
		return
	}

	r, ok := qc.config.RangeFor(op)
	if request.Range != nil {
		r, ok = *request.Range, true
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No range configured for operation"})
		return
	}

	count := request.Count
	if count <= 0 {
		count = 1
	}
	if count > qc.config.MaxProblems {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Too many problems requested",
			"max":   qc.config.MaxProblems,
		})
		return
	}

	allowNegatives := qc.config.AllowNegatives
	if request.AllowNegatives != nil {
		allowNegatives = *request.AllowNegatives
	}

	problems, err := qc.generator.GenerateSet(problem.Settings{
		Operations:     []answerrange.Operation{op},
		Ranges:         map[answerrange.Operation]answerrange.ProblemRange{op: r},
		AllowNegatives: allowNegatives,
	}, count)
	if err != nil {
		badRequest(c, qc.logger, "Failed to generate problems", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer_range": answerrange.CalculateAnswerRange(op, r, allowNegatives),
		"problems":     problemViews(problems),
	})
}

type StartQuizRequest struct {
	PlayerName     string   `json:"player_name" binding:"required,max=64"`
	Operations     []string `json:"operations"`
	AllowNegatives *bool    `json:"allow_negatives"`
	Count          int      `json:"count"`
}

func (qc *QuizController) StartQuiz(c *gin.Context) {
	var request StartQuizRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, qc.logger, "Invalid request payload", err)
		return
	}

	settings := problem.Settings{
		AllowNegatives: qc.config.AllowNegatives,
		Ranges:         make(map[answerrange.Operation]answerrange.ProblemRange),
	}
	if request.AllowNegatives != nil {
		settings.AllowNegatives = *request.AllowNegatives
	}

	names := request.Operations
	if len(names) == 0 {
		names = qc.config.Operations
	}
	for _, name := range names {
		op, err := answerrange.ParseOperation(name)
		if err != nil {
			badRequest(c, qc.logger, "Unknown operation", err)
			return
		}
		r, ok := qc.config.RangeFor(op)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No range configured for operation", "operation": op})
			return
		}
		settings.Operations = append(settings.Operations, op)
		settings.Ranges[op] = r
	}

	count := request.Count
	if count <= 0 {
		count = qc.config.ProblemsPerQuiz
	}
	if count > qc.config.MaxProblems {
		count = qc.config.MaxProblems
	}

	problems, err := qc.generator.GenerateSet(settings, count)
	if err != nil {
		qc.logger.Error("Failed to generate quiz", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to generate quiz",
			"details": err.Error(),
		})
		return
	}

	session := qc.sessions.Start(request.PlayerName, problems)
	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"deadline":   session.Deadline,
		"problems":   problemViews(session.Problems),
	})
}

type SubmitAnswerRequest struct {
	ProblemID string `json:"problem_id" binding:"required"`
	Answer    *int   `json:"answer" binding:"required"`
}

func (qc *QuizController) SubmitAnswer(c *gin.Context) {
	var request SubmitAnswerRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, qc.logger, "Invalid request payload", err)
		return
	}

	outcome, err := qc.sessions.Answer(c.Param("id"), request.ProblemID, *request.Answer)
	if err != nil {
		qc.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (qc *QuizController) FinishQuiz(c *gin.Context) {
	result, err := qc.sessions.Finish(c.Param("id"))
	if err != nil {
		qc.sessionError(c, err)
		return
	}

	response := gin.H{"result": result}
	if qc.scores != nil {
		score := &db.Score{
			SessionID:  result.SessionID,
			PlayerName: result.PlayerName,
			Operation:  result.Operation,
			Correct:    result.Correct,
			Total:      result.Total,
			BestStreak: result.BestStreak,
			DurationMS: result.Duration.Milliseconds(),
		}
		if err := qc.scores.Insert(c.Request.Context(), score); err != nil {
			// The result is still returned; only the leaderboard entry is lost.
			qc.logger.Error("Failed to record score",
				zap.String("session_id", result.SessionID),
				zap.Error(err))
		} else {
			response["score"] = score
		}
	}
	c.JSON(http.StatusOK, response)
}

func (qc *QuizController) GetQuiz(c *gin.Context) {
	session, err := qc.sessions.Get(c.Param("id"))
	if err != nil {
		qc.sessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (qc *QuizController) Leaderboard(c *gin.Context) {
	if qc.scores == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Leaderboard storage not configured"})
		return
	}

	filter := db.LeaderboardFilter{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 0),
	}
	if name := c.Query("operation"); name != "" && name != "mixed" {
		op, err := answerrange.ParseOperation(name)
		if err != nil {
			badRequest(c, qc.logger, "Unknown operation", err)
			return
		}
		filter.Operation = string(op)
	} else {
		filter.Operation = name
	}

	page, err := qc.scores.Top(c.Request.Context(), filter)
	if err != nil {
		qc.logger.Error("Failed to load leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load leaderboard",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (qc *QuizController) sessionError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, quiz.ErrSessionNotFound), errors.Is(err, quiz.ErrProblemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quiz.ErrSessionExpired):
		status = http.StatusGone
	case errors.Is(err, quiz.ErrSessionFinished), errors.Is(err, quiz.ErrAlreadyAnswered):
		status = http.StatusConflict
	}

	qc.logger.Warn("Quiz session request rejected",
		zap.String("session_id", c.Param("id")),
		zap.Int("status", status),
		zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}

func problemViews(problems []problem.Problem) []ProblemView {
	views := make([]ProblemView, len(problems))
	for i, p := range problems {
		views[i] = ProblemView{Problem: p, Text: p.String()}
	}
	return views
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func badRequest(c *gin.Context, logger *zap.Logger, msg string, err error) {
	logger.Warn(msg, zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   msg,
		"details": err.Error(),
	})
}
