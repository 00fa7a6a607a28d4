package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a score lookup matches no row
var ErrNotFound = errors.New("score not found")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Score is a finished quiz as stored on the leaderboard
type Score struct {
	ID         string    `db:"id" json:"id"`
	SessionID  string    `db:"session_id" json:"session_id"`
	PlayerName string    `db:"player_name" json:"player_name"`
	Operation  string    `db:"operation" json:"operation"`
	Correct    int       `db:"correct" json:"correct"`
	Total      int       `db:"total" json:"total"`
	BestStreak int       `db:"best_streak" json:"best_streak"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// LeaderboardFilter selects and pages leaderboard rows
type LeaderboardFilter struct {
	Operation string
	Page      int
	PageSize  int
}

// Normalize clamps paging to sane values.
func (f LeaderboardFilter) Normalize() LeaderboardFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	f.Operation = strings.TrimSpace(f.Operation)
	return f
}

// LeaderboardPage is one page of ranked scores
type LeaderboardPage struct {
	Scores   []Score `json:"scores"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// ScoreRepository manages the scores table
type ScoreRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewScoreRepository creates a repository and ensures its table exists
func NewScoreRepository(ctx context.Context, db *sql.DB, logger *zap.Logger) (*ScoreRepository, error) {
	repo := &ScoreRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure table: %w", err)
	}
	return repo, nil
}

// EnsureTable creates the scores table if it doesn't exist
func (r *ScoreRepository) EnsureTable(ctx context.Context) error {
	r.logger.Info("Ensuring scores table exists")

	query := `
		CREATE TABLE IF NOT EXISTS scores (
			id CHAR(36) PRIMARY KEY,
			session_id CHAR(36) NOT NULL,
			player_name VARCHAR(64) NOT NULL,
			operation VARCHAR(32) NOT NULL,
			correct INT NOT NULL,
			total INT NOT NULL,
			best_streak INT NOT NULL DEFAULT 0,
			duration_ms BIGINT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY unique_session (session_id),
			INDEX idx_operation_rank (operation, correct, duration_ms)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create scores table: %w", err)
	}
	return nil
}

// Insert stores a score, assigning an ID if it has none
func (r *ScoreRepository) Insert(ctx context.Context, score *Score) error {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scores (id, session_id, player_name, operation, correct, total, best_streak, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		score.ID, score.SessionID, score.PlayerName, score.Operation,
		score.Correct, score.Total, score.BestStreak, score.DurationMS, score.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert score: %w", err)
	}

	r.logger.Info("Score recorded",
		zap.String("score_id", score.ID),
		zap.String("player", score.PlayerName),
		zap.String("operation", score.Operation),
		zap.Int("correct", score.Correct))
	return nil
}

// Get returns a single score by ID
func (r *ScoreRepository) Get(ctx context.Context, id string) (*Score, error) {
	var s Score
	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, player_name, operation, correct, total, best_streak, duration_ms, created_at
		FROM scores WHERE id = ?`, id).
		Scan(&s.ID, &s.SessionID, &s.PlayerName, &s.Operation, &s.Correct, &s.Total, &s.BestStreak, &s.DurationMS, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return &s, nil
}

// Top returns one leaderboard page, best score first
func (r *ScoreRepository) Top(ctx context.Context, filter LeaderboardFilter) (*LeaderboardPage, error) {
	filter = filter.Normalize()
	where, args := leaderboardWhere(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scores"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count scores: %w", err)
	}

	query, pageArgs := leaderboardQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	page := &LeaderboardPage{
		Scores:   []Score{},
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	for rows.Next() {
		var s Score
		if err := rows.Scan(&s.ID, &s.SessionID, &s.PlayerName, &s.Operation, &s.Correct, &s.Total, &s.BestStreak, &s.DurationMS, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		page.Scores = append(page.Scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return page, nil
}

func leaderboardWhere(f LeaderboardFilter) (string, []any) {
	if f.Operation == "" {
		return "", nil
	}
	return " WHERE operation = ?", []any{f.Operation}
}

// leaderboardQuery ranks by correct answers, then by the faster run.
func leaderboardQuery(f LeaderboardFilter) (string, []any) {
	where, args := leaderboardWhere(f)
	query := `SELECT id, session_id, player_name, operation, correct, total, best_streak, duration_ms, created_at FROM scores` +
		where +
		` ORDER BY correct DESC, duration_ms ASC, created_at ASC LIMIT ? OFFSET ?`
	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	return query, args
}
