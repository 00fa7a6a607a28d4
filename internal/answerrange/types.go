package answerrange

import (
	"errors"
	"fmt"
	"strings"
)

// Operation is one of the four arithmetic operations a quiz can ask about.
type Operation string

const (
	Addition       Operation = "addition"
	Subtraction    Operation = "subtraction"
	Multiplication Operation = "multiplication"
	Division       Operation = "division"
)

// Operations lists every supported operation in display order.
var Operations = []Operation{Addition, Subtraction, Multiplication, Division}

var (
	// ErrUnknownOperation indicates an operation name outside the supported set
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidRange indicates a range whose minimum exceeds its maximum
	ErrInvalidRange = errors.New("invalid range")
)

// ParseOperation accepts the canonical names as well as the usual symbols.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "addition", "add", "+":
		return Addition, nil
	case "subtraction", "subtract", "sub", "-":
		return Subtraction, nil
	case "multiplication", "multiply", "mul", "*", "x", "×":
		return Multiplication, nil
	case "division", "divide", "div", "/", "÷":
		return Division, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

// Valid reports whether op is one of the four supported operations.
func (op Operation) Valid() bool {
	switch op {
	case Addition, Subtraction, Multiplication, Division:
		return true
	}
	return false
}

// Symbol returns the operator as shown to players.
func (op Operation) Symbol() string {
	switch op {
	case Addition:
		return "+"
	case Subtraction:
		return "−"
	case Multiplication:
		return "×"
	case Division:
		return "÷"
	}
	return "?"
}

func (op Operation) String() string {
	return string(op)
}

// ProblemRange holds the inclusive bounds of the two operands.
type ProblemRange struct {
	Min1 int `json:"min1" yaml:"min1"`
	Max1 int `json:"max1" yaml:"max1"`
	Min2 int `json:"min2" yaml:"min2"`
	Max2 int `json:"max2" yaml:"max2"`
}

// Validate checks that both operand bounds are ordered.
func (r ProblemRange) Validate() error {
	if r.Min1 > r.Max1 {
		return fmt.Errorf("%w: min1 %d > max1 %d", ErrInvalidRange, r.Min1, r.Max1)
	}
	if r.Min2 > r.Max2 {
		return fmt.Errorf("%w: min2 %d > max2 %d", ErrInvalidRange, r.Min2, r.Max2)
	}
	// Ordered bounds whose difference wraps negative span more than an int holds.
	if r.Max1-r.Min1 < 0 || r.Max2-r.Min2 < 0 {
		return fmt.Errorf("%w: operand span overflows int", ErrInvalidRange)
	}
	return nil
}

// AnswerRange is the inclusive interval of every possible answer.
type AnswerRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether v lies inside the range.
func (a AnswerRange) Contains(v int) bool {
	return v >= a.Min && v <= a.Max
}

func (a AnswerRange) String() string {
	return fmt.Sprintf("[%d, %d]", a.Min, a.Max)
}
