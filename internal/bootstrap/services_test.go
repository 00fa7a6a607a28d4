package bootstrap

import (
	"context"
	"testing"

	"mathquiz/internal/config"

	"go.uber.org/zap"
)

func TestNewServiceContainer_WithoutMySQL(t *testing.T) {
	cfg := config.DefaultConfig()

	sc, err := NewServiceContainer(context.Background(), &cfg, GetServerModeOptions(&cfg), zap.NewNop())
	if err != nil {
		t.Fatalf("NewServiceContainer error: %v", err)
	}
	defer sc.Close()

	if sc.Generator == nil || sc.Sessions == nil {
		t.Fatal("core services not initialized")
	}
	if sc.Scores != nil {
		t.Error("scores should be nil without MySQL configuration")
	}
	if sc.QuizController(&cfg) == nil {
		t.Error("QuizController returned nil")
	}
}

func TestNewServiceContainer_RequireMySQL(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := NewServiceContainer(context.Background(), &cfg, ServiceInitOptions{RequireMySQL: true}, zap.NewNop())
	if err == nil {
		t.Error("expected error when MySQL is required but not configured")
	}
}
