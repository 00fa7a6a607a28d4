package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mathquiz/internal/answerrange"
	"mathquiz/internal/bootstrap"
	"mathquiz/internal/config"
	"mathquiz/internal/handler"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	var appConfigPath = flag.String("app", "", "Path to app configuration file")
	var port = flag.Int("port", 0, "Server port (overrides configuration)")
	var rangeSpec = flag.String("range", "", "Print the answer range for op,min1,max1,min2,max2 and exit")
	var allowNegatives = flag.Bool("allow-negatives", false, "Allow negative answers with -range")
	flag.Parse()

	cfg, err := loadConfig(*appConfigPath)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	if *port != 0 {
		cfg.App.Port = *port
	}

	logger, err := buildLogger(cfg.App)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	answerrange.SetLogger(logger)

	if *rangeSpec != "" {
		op, r, err := parseRangeFlag(*rangeSpec)
		if err != nil {
			logger.Fatal("Invalid -range value", zap.String("range", *rangeSpec), zap.Error(err))
		}
		result := answerrange.CalculateAnswerRange(op, r, *allowNegatives)
		fmt.Printf("%s %+v allow_negatives=%v -> %s\n", op, r, *allowNegatives, result)
		return
	}

	logger.Info("Configuration loaded successfully",
		zap.Int("port", cfg.App.Port),
		zap.Strings("operations", cfg.Quiz.Operations),
		zap.Int("problems_per_quiz", cfg.Quiz.ProblemsPerQuiz),
		zap.Bool("mysql", cfg.MySQL.Host != ""))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := bootstrap.NewServiceContainer(ctx, cfg, bootstrap.GetServerModeOptions(cfg), logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	go pruneSessions(ctx, services, cfg.Quiz.Duration(), logger)

	router := handler.SetupRouter(services.QuizController(cfg), logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.Int("port", cfg.App.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.DefaultConfig()
		return &cfg, nil
	}
	return config.LoadConfig(path)
}

func buildLogger(app config.App) (*zap.Logger, error) {
	cfgZap := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(app.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", app.LogLevel, err)
	}
	cfgZap.Level.SetLevel(level)
	cfgZap.OutputPaths = app.LogOutputs
	return cfgZap.Build()
}

// pruneSessions drops stale quiz sessions once per quiz length.
func pruneSessions(ctx context.Context, services *bootstrap.ServiceContainer, every time.Duration, logger *zap.Logger) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := services.Sessions.Prune(every); n > 0 {
				logger.Info("Pruned stale quiz sessions", zap.Int("removed", n))
			}
		}
	}
}

// parseRangeFlag parses "op,min1,max1,min2,max2".
func parseRangeFlag(s string) (answerrange.Operation, answerrange.ProblemRange, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return "", answerrange.ProblemRange{}, fmt.Errorf("expected op,min1,max1,min2,max2, got %d fields", len(parts))
	}

	op, err := answerrange.ParseOperation(parts[0])
	if err != nil {
		return "", answerrange.ProblemRange{}, err
	}

	var bounds [4]int
	for i, p := range parts[1:] {
		bounds[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return "", answerrange.ProblemRange{}, fmt.Errorf("field %d: %w", i+2, err)
		}
	}

	r := answerrange.ProblemRange{Min1: bounds[0], Max1: bounds[1], Min2: bounds[2], Max2: bounds[3]}
	if err := r.Validate(); err != nil {
		return "", answerrange.ProblemRange{}, err
	}
	return op, r, nil
}
