// Package answerrange computes the bounds of the answers an arithmetic
// problem can produce, given the bounds of its two operands.
package answerrange

import (
	"math"
	"math/rand/v2"
	"sync/atomic"

	"go.uber.org/zap"
)

// FallbackRange is returned for operations outside the supported set.
var FallbackRange = AnswerRange{Min: 1, Max: 20}

var pkgLogger atomic.Pointer[zap.Logger]

func init() {
	pkgLogger.Store(zap.NewNop())
}

// SetLogger sets the logger used to report unknown operations. A nil logger
// silences them again.
func SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pkgLogger.Store(logger)
}

// CalculateAnswerRange returns the tightest interval covering op applied to any
// pair of operands drawn from r. When allowNegatives is false, subtraction has
// its lower bound clamped at zero and multiplication assumes non-negative
// operands. Division substitutes a divisor of 1 when the divisor range starts
// at zero, so its result is an approximation rather than exact interval
// arithmetic.
func CalculateAnswerRange(op Operation, r ProblemRange, allowNegatives bool) AnswerRange {
	switch op {
	case Addition:
		return AnswerRange{Min: r.Min1 + r.Min2, Max: r.Max1 + r.Max2}

	case Subtraction:
		if allowNegatives {
			return AnswerRange{Min: r.Min1 - r.Max2, Max: r.Max1 - r.Min2}
		}
		// Only the lower bound is clamped.
		return AnswerRange{Min: max(0, r.Min1-r.Max2), Max: r.Max1 - r.Min2}

	case Multiplication:
		if allowNegatives {
			a, b, c, d := r.Min1*r.Min2, r.Min1*r.Max2, r.Max1*r.Min2, r.Max1*r.Max2
			return AnswerRange{Min: min(a, b, c, d), Max: max(a, b, c, d)}
		}
		return AnswerRange{Min: r.Min1 * r.Min2, Max: r.Max1 * r.Max2}

	case Division:
		return AnswerRange{
			Min: floorDiv(r.Min1, safeDivisor(r.Max2)),
			Max: ceilDiv(r.Max1, safeDivisor(r.Min2)),
		}
	}

	pkgLogger.Load().Warn("Unknown operation, using fallback answer range",
		zap.String("operation", string(op)),
		zap.Int("fallback_min", FallbackRange.Min),
		zap.Int("fallback_max", FallbackRange.Max))
	return FallbackRange
}

// CalculateAnswerRangeStrict is CalculateAnswerRange with input checks: it
// rejects unknown operations and unordered ranges instead of answering.
func CalculateAnswerRangeStrict(op Operation, r ProblemRange, allowNegatives bool) (AnswerRange, error) {
	if !op.Valid() {
		return AnswerRange{}, ErrUnknownOperation
	}
	if err := r.Validate(); err != nil {
		return AnswerRange{}, err
	}
	return CalculateAnswerRange(op, r, allowNegatives), nil
}

// Source is satisfied by *rand.Rand from math/rand/v2.
type Source interface {
	Uint64() uint64
	Uint64N(n uint64) uint64
}

type globalSource struct{}

func (globalSource) Uint64() uint64 { return rand.Uint64() }
func (globalSource) Uint64N(n uint64) uint64 { return rand.Uint64N(n) }

// GenerateRandomInRange returns a uniformly distributed integer in [min, max].
// It panics if min > max.
func GenerateRandomInRange(min, max int) int {
	return RandomInRange(nil, min, max)
}

// RandomInRange is GenerateRandomInRange drawing from src; a nil src uses the
// global generator. Any ordered pair of ints is accepted, including the full
// int range.
func RandomInRange(src Source, min, max int) int {
	if min > max {
		panic("answerrange: min greater than max")
	}
	if src == nil {
		src = globalSource{}
	}

	// The span is taken in uint64 so it cannot overflow.
	span := uint64(max) - uint64(min)
	var offset uint64
	if span == math.MaxUint64 {
		offset = src.Uint64()
	} else {
		offset = src.Uint64N(span + 1)
	}
	return int(uint64(min) + offset)
}

// A zero divisor bound is replaced with 1.
func safeDivisor(d int) int {
	if d == 0 {
		return 1
	}
	return d
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}
