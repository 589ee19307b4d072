// Package dice parses and evaluates tabletop dice notation such as 2d6+3.
package dice

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidExpression indicates the text is not valid [count]d<faces>[+|-modifier] notation.
var ErrInvalidExpression = errors.New("dice: invalid expression")

// Limits on a single expression. Anything larger is rejected as invalid rather
// than rolled, so a typo cannot exhaust memory.
const (
	MaxCount    = 1000
	MaxFaces    = 1_000_000
	MaxModifier = 1_000_000
)

var expressionPattern = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Expression is a parsed dice expression.
type Expression struct {
	Count    int
	Faces    int
	Modifier int
}

// String renders the expression in canonical form.
func (e Expression) String() string {
	s := fmt.Sprintf("%dd%d", e.Count, e.Faces)
	if e.Modifier != 0 {
		s += fmt.Sprintf("%+d", e.Modifier)
	}
	return s
}

// Result is an evaluated expression. Outcomes is exactly the sequence summed into Total.
type Result struct {
	Expression string `json:"expression"`
	Outcomes   []int  `json:"outcomes"`
	Modifier   int    `json:"modifier"`
	Total      int    `json:"total"`
}

// Breakdown renders the arithmetic, e.g. "4 + 5 +3 = 12".
func (r Result) Breakdown() string {
	parts := make([]string, len(r.Outcomes))
	for i, v := range r.Outcomes {
		parts[i] = strconv.Itoa(v)
	}
	s := strings.Join(parts, " + ")
	if r.Modifier != 0 {
		s += fmt.Sprintf(" %+d", r.Modifier)
	}
	return fmt.Sprintf("%s = %d", s, r.Total)
}

// Details renders the per-die outcomes as stored alongside a roll record, e.g. "[4, 5]".
func (r Result) Details() string {
	parts := make([]string, len(r.Outcomes))
	for i, v := range r.Outcomes {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Parse validates expr and returns its components. Surrounding whitespace and
// letter case are ignored; anything else that does not match the grammar exactly
// returns ErrInvalidExpression.
func Parse(expr string) (Expression, error) {
	text := strings.ToLower(strings.TrimSpace(expr))
	m := expressionPattern.FindStringSubmatch(text)
	if m == nil {
		return Expression{}, fmt.Errorf("%w: %q", ErrInvalidExpression, expr)
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > MaxCount {
			return Expression{}, fmt.Errorf("%w: dice count must be between 1 and %d", ErrInvalidExpression, MaxCount)
		}
		count = n
	}

	faces, err := strconv.Atoi(m[2])
	if err != nil || faces < 1 || faces > MaxFaces {
		return Expression{}, fmt.Errorf("%w: dice must have between 1 and %d faces", ErrInvalidExpression, MaxFaces)
	}

	modifier := 0
	if m[3] != "" {
		modifier, err = strconv.Atoi(m[3])
		if err != nil || modifier < -MaxModifier || modifier > MaxModifier {
			return Expression{}, fmt.Errorf("%w: modifier must be within ±%d", ErrInvalidExpression, MaxModifier)
		}
	}

	return Expression{Count: count, Faces: faces, Modifier: modifier}, nil
}

// Roller returns one outcome in [1, faces].
type Roller func(faces int) int

// DefaultRoller draws uniformly from math/rand/v2. It is not cryptographically secure.
func DefaultRoller(faces int) int {
	return rand.IntN(faces) + 1
}

// Resolver evaluates dice expressions with a pluggable Roller.
type Resolver struct {
	roll Roller
}

// NewResolver returns a Resolver. A nil roller selects DefaultRoller.
func NewResolver(roll Roller) *Resolver {
	if roll == nil {
		roll = DefaultRoller
	}
	return &Resolver{roll: roll}
}

// Resolve parses expr and rolls it.
//
// Outcomes appear in the order they were drawn, and
// Total == sum(Outcomes) + Modifier always holds for a nil error.
func (r *Resolver) Resolve(expr string) (Result, error) {
	e, err := Parse(expr)
	if err != nil {
		return Result{}, err
	}
	return r.Roll(e), nil
}

// Roll evaluates an already parsed expression.
func (r *Resolver) Roll(e Expression) Result {
	outcomes := make([]int, e.Count)
	total := e.Modifier
	for i := range outcomes {
		outcomes[i] = r.roll(e.Faces)
		total += outcomes[i]
	}
	return Result{
		Expression: e.String(),
		Outcomes:   outcomes,
		Modifier:   e.Modifier,
		Total:      total,
	}
}
