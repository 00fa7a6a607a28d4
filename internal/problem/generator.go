// Package problem draws arithmetic problems whose answers fall inside the
// interval computed by answerrange.
package problem

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"mathquiz/internal/answerrange"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoOperations is returned when a quiz is requested without any operation enabled
var ErrNoOperations = errors.New("no operations enabled")

// Problem is a single question shown to a player.
type Problem struct {
	ID        string                  `json:"id"`
	Operation answerrange.Operation   `json:"operation"`
	Left      int                     `json:"left"`
	Right     int                     `json:"right"`
	Answer    int                     `json:"-"`
	Range     answerrange.AnswerRange `json:"answer_range"`
}

// Symbol returns the operator shown between the operands.
func (p Problem) Symbol() string {
	return p.Operation.Symbol()
}

func (p Problem) String() string {
	if p.Right < 0 {
		return fmt.Sprintf("%d %s (%d)", p.Left, p.Symbol(), p.Right)
	}
	return fmt.Sprintf("%d %s %d", p.Left, p.Symbol(), p.Right)
}

// Check reports whether answer solves the problem.
func (p Problem) Check(answer int) bool {
	return answer == p.Answer
}

// Settings selects what a quiz draws from.
type Settings struct {
	Operations     []answerrange.Operation
	Ranges         map[answerrange.Operation]answerrange.ProblemRange
	AllowNegatives bool
}

// Generator produces problems. It is safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *zap.Logger
}

// NewGenerator creates a generator over rng. A nil rng is seeded randomly.
func NewGenerator(rng *rand.Rand, logger *zap.Logger) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{
		rng:    rng,
		logger: logger,
	}
}

// Generate draws one problem for op from r.
func (g *Generator) Generate(op answerrange.Operation, r answerrange.ProblemRange, allowNegatives bool) (Problem, error) {
	if !op.Valid() {
		return Problem{}, fmt.Errorf("%w: %q", answerrange.ErrUnknownOperation, op)
	}
	if err := r.Validate(); err != nil {
		return Problem{}, err
	}

	left, right, answer, err := g.drawLocked(op, r, allowNegatives)
	if err != nil {
		return Problem{}, err
	}

	return Problem{
		ID:        uuid.NewString(),
		Operation: op,
		Left:      left,
		Right:     right,
		Answer:    answer,
		Range:     answerrange.CalculateAnswerRange(op, r, allowNegatives),
	}, nil
}

func (g *Generator) drawLocked(op answerrange.Operation, r answerrange.ProblemRange, allowNegatives bool) (int, int, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draw(op, r, allowNegatives)
}

func (g *Generator) draw(op answerrange.Operation, r answerrange.ProblemRange, allowNegatives bool) (int, int, int, error) {
	switch op {
	case answerrange.Addition:
		a := answerrange.RandomInRange(g.rng, r.Min1, r.Max1)
		b := answerrange.RandomInRange(g.rng, r.Min2, r.Max2)
		return a, b, a + b, nil

	case answerrange.Subtraction:
		if allowNegatives {
			a := answerrange.RandomInRange(g.rng, r.Min1, r.Max1)
			b := answerrange.RandomInRange(g.rng, r.Min2, r.Max2)
			return a, b, a - b, nil
		}
		// Keep both operands in their ranges with a >= b.
		if r.Max1 < r.Min2 {
			return 0, 0, 0, fmt.Errorf("%w: no non-negative difference for [%d, %d] - [%d, %d]",
				answerrange.ErrInvalidRange, r.Min1, r.Max1, r.Min2, r.Max2)
		}
		a := answerrange.RandomInRange(g.rng, max(r.Min1, r.Min2), r.Max1)
		b := answerrange.RandomInRange(g.rng, r.Min2, min(r.Max2, a))
		return a, b, a - b, nil

	case answerrange.Multiplication:
		a := answerrange.RandomInRange(g.rng, r.Min1, r.Max1)
		b := answerrange.RandomInRange(g.rng, r.Min2, r.Max2)
		return a, b, a * b, nil

	case answerrange.Division:
		// The dividend is built from divisor*quotient so every answer is whole.
		lo := max(1, r.Min2)
		if lo > r.Max2 {
			return 0, 0, 0, fmt.Errorf("%w: divisor range [%d, %d] has no positive value",
				answerrange.ErrInvalidRange, r.Min2, r.Max2)
		}
		divisor := answerrange.RandomInRange(g.rng, lo, r.Max2)
		qlo, qhi := ceilDivPos(r.Min1, divisor), floorDivPos(r.Max1, divisor)
		if qlo > qhi {
			return 0, 0, 0, fmt.Errorf("%w: no multiple of %d in [%d, %d]",
				answerrange.ErrInvalidRange, divisor, r.Min1, r.Max1)
		}
		quotient := answerrange.RandomInRange(g.rng, qlo, qhi)
		return quotient * divisor, divisor, quotient, nil
	}

	return 0, 0, 0, answerrange.ErrUnknownOperation
}

// GenerateSet draws n problems, cycling through the enabled operations.
func (g *Generator) GenerateSet(s Settings, n int) ([]Problem, error) {
	if len(s.Operations) == 0 {
		return nil, ErrNoOperations
	}

	problems := make([]Problem, 0, n)
	for i := 0; i < n; i++ {
		op := s.Operations[i%len(s.Operations)]
		r, ok := s.Ranges[op]
		if !ok {
			return nil, fmt.Errorf("no range configured for %s", op)
		}
		p, err := g.Generate(op, r, s.AllowNegatives)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s problem: %w", op, err)
		}
		problems = append(problems, p)
	}

	g.logger.Debug("Generated problem set",
		zap.Int("count", len(problems)),
		zap.Int("operations", len(s.Operations)),
		zap.Bool("allow_negatives", s.AllowNegatives))
	return problems, nil
}

// ceilDivPos and floorDivPos round a/b for b > 0.
func ceilDivPos(a, b int) int {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}

func floorDivPos(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
