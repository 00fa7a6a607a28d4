package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"mathquiz/internal/answerrange"

	"gopkg.in/yaml.v2"
)

type App struct {
	Port       int      `yaml:"port"`
	LogLevel   string   `yaml:"log_level,omitempty"`
	LogOutputs []string `yaml:"log_outputs,omitempty"`
}

type QuizConfig struct {
	Operations      []string                            `yaml:"operations"`
	Ranges          map[string]answerrange.ProblemRange `yaml:"ranges"`
	AllowNegatives  bool                                `yaml:"allow_negatives"`
	ProblemsPerQuiz int                                 `yaml:"problems_per_quiz"`
	DurationSeconds int                                 `yaml:"duration_seconds"`
	MaxProblems     int                                 `yaml:"max_problems,omitempty"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type Config struct {
	App   App         `yaml:"app"`
	Quiz  QuizConfig  `yaml:"quiz"`
	MySQL MySQLConfig `yaml:"mysql"`
}

// Duration returns the configured quiz length.
func (q QuizConfig) Duration() time.Duration {
	return time.Duration(q.DurationSeconds) * time.Second
}

// ParsedOperations resolves the configured operation names.
func (q QuizConfig) ParsedOperations() ([]answerrange.Operation, error) {
	ops := make([]answerrange.Operation, 0, len(q.Operations))
	for _, name := range q.Operations {
		op, err := answerrange.ParseOperation(name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// RangeFor returns the operand range configured for op.
func (q QuizConfig) RangeFor(op answerrange.Operation) (answerrange.ProblemRange, bool) {
	r, ok := q.Ranges[string(op)]
	return r, ok
}

// DefaultConfig returns the settings used when a field is left empty.
func DefaultConfig() Config {
	return Config{
		App: App{
			Port:       8080,
			LogLevel:   "info",
			LogOutputs: []string{"stdout"},
		},
		Quiz: QuizConfig{
			Operations: []string{"addition", "subtraction", "multiplication", "division"},
			Ranges: map[string]answerrange.ProblemRange{
				"addition":       {Min1: 1, Max1: 20, Min2: 1, Max2: 20},
				"subtraction":    {Min1: 1, Max1: 20, Min2: 1, Max2: 20},
				"multiplication": {Min1: 1, Max1: 12, Min2: 1, Max2: 12},
				"division":       {Min1: 1, Max1: 144, Min2: 1, Max2: 12},
			},
			ProblemsPerQuiz: 10,
			DurationSeconds: 60,
			MaxProblems:     100,
		},
	}
}

// LoadConfig reads the YAML file at path, expands environment variables,
// fills defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("app config file does not exist: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig is LoadConfig over raw YAML.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.App.Port == 0 {
		cfg.App.Port = def.App.Port
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = def.App.LogLevel
	}
	if len(cfg.App.LogOutputs) == 0 {
		cfg.App.LogOutputs = def.App.LogOutputs
	}
	if len(cfg.Quiz.Operations) == 0 {
		cfg.Quiz.Operations = def.Quiz.Operations
	}
	if cfg.Quiz.Ranges == nil {
		cfg.Quiz.Ranges = make(map[string]answerrange.ProblemRange)
	}
	for op, r := range def.Quiz.Ranges {
		if _, ok := cfg.Quiz.Ranges[op]; !ok {
			cfg.Quiz.Ranges[op] = r
		}
	}
	if cfg.Quiz.ProblemsPerQuiz == 0 {
		cfg.Quiz.ProblemsPerQuiz = def.Quiz.ProblemsPerQuiz
	}
	if cfg.Quiz.DurationSeconds == 0 {
		cfg.Quiz.DurationSeconds = def.Quiz.DurationSeconds
	}
	if cfg.Quiz.MaxProblems == 0 {
		cfg.Quiz.MaxProblems = def.Quiz.MaxProblems
	}
	if cfg.MySQL.Host != "" && cfg.MySQL.Port == 0 {
		cfg.MySQL.Port = 3306
	}
	if cfg.MySQL.Host != "" && cfg.MySQL.Database == "" {
		cfg.MySQL.Database = "mathquiz"
	}
}

// validate checks quiz settings
func validate(cfg *Config) error {
	if _, err := cfg.Quiz.ParsedOperations(); err != nil {
		return err
	}
	for name, r := range cfg.Quiz.Ranges {
		if _, err := answerrange.ParseOperation(name); err != nil {
			return fmt.Errorf("range %q: %w", name, err)
		}
		if err := r.Validate(); err != nil {
			return fmt.Errorf("range %q: %w", name, err)
		}
	}
	if cfg.Quiz.ProblemsPerQuiz < 1 || cfg.Quiz.ProblemsPerQuiz > cfg.Quiz.MaxProblems {
		return fmt.Errorf("problems_per_quiz must be between 1 and %d", cfg.Quiz.MaxProblems)
	}
	if cfg.Quiz.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds must be positive")
	}
	return nil
}

// envVar matches ${VAR}, ${VAR:-default} (groups 1-3) or $VAR (group 4).
var envVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR}, ${VAR:-default} and $VAR with environment
// values in a single pass, so substituted values are never expanded again.
// An unset ${VAR} becomes empty; an unset $VAR is left as written.
func expandEnvVars(s string) string {
	return envVar.ReplaceAllStringFunc(s, func(m string) string {
		parts := envVar.FindStringSubmatch(m)
		if parts[1] != "" {
			if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
				return v
			}
			return parts[3]
		}
		if v, ok := os.LookupEnv(parts[4]); ok {
			return v
		}
		return m
	})
}
