package formula

import (
	"fmt"

	"gogrid/domain/grid"
)

// ErrorMarker is the display text of a cell whose formula failed to evaluate
const ErrorMarker = "#ERR"

// ErrorKind classifies evaluation failures
type ErrorKind string

const (
	// ErrorKindFault covers any fault raised while tokenizing or resolving
	ErrorKindFault ErrorKind = "evaluation_fault"
	// ErrorKindNotFormula is returned when the text lacks the formula marker
	ErrorKindNotFormula ErrorKind = "not_formula"
)

// EvalError describes why a formula produced no value
type EvalError struct {
	Kind    ErrorKind
	Formula string
	Cause   error
}

func (e *EvalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s in %q: %v", e.Kind, e.Formula, e.Cause)
	}
	return fmt.Sprintf("%s in %q", e.Kind, e.Formula)
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}

// Result is either a value or an evaluation error, never both
type Result struct {
	Value float64
	Err   *EvalError
}

// OK reports whether evaluation produced a value
func (r Result) OK() bool {
	return r.Err == nil
}

// Display renders the result as cell text: the decimal value, or the error marker
func (r Result) Display() string {
	if r.Err != nil {
		return ErrorMarker
	}
	return FormatNumber(r.Value)
}

// Operator is one of the binary operators a formula may contain
type Operator byte

const (
	OpAdd      Operator = '+'
	OpSubtract Operator = '-'
	OpMultiply Operator = '*'
)

func isOperator(b byte) bool {
	switch Operator(b) {
	case OpAdd, OpSubtract, OpMultiply:
		return true
	}
	return false
}

// Apply combines the accumulator with the next operand. Unknown operators
// leave the accumulator unchanged.
func (op Operator) Apply(acc, next float64) float64 {
	switch op {
	case OpAdd:
		return acc + next
	case OpSubtract:
		return acc - next
	case OpMultiply:
		return acc * next
	default:
		return acc
	}
}

// Tokenize splits an expression (without the leading marker) into
// operand, operator, operand, ... The result always has odd length;
// operands may be empty strings, e.g. "-5" gives ["", "-", "5"].
func Tokenize(expr string) []string {
	tokens := make([]string, 0, 8)
	start := 0
	for i := 0; i < len(expr); i++ {
		if isOperator(expr[i]) {
			tokens = append(tokens, expr[start:i], expr[i:i+1])
			start = i + 1
		}
	}
	return append(tokens, expr[start:])
}

// Evaluator folds a formula strictly left to right. There is no operator
// precedence and no grouping: "=2+3*4" is (2+3)*4.
type Evaluator struct {
	resolver Resolver
}

// NewEvaluator creates an evaluator; a nil resolver selects ReferenceResolver
func NewEvaluator(resolver Resolver) *Evaluator {
	if resolver == nil {
		resolver = ReferenceResolver{}
	}
	return &Evaluator{resolver: resolver}
}

// Evaluate computes one formula cell against a raw snapshot. Faults are
// contained and reported through the result, never propagated.
func (e *Evaluator) Evaluate(formula string, raw grid.RawGrid) (res Result) {
	if !grid.IsFormula(formula) {
		return Result{Err: &EvalError{Kind: ErrorKindNotFormula, Formula: formula}}
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: &EvalError{Kind: ErrorKindFault, Formula: formula, Cause: fmt.Errorf("%v", r)}}
		}
	}()

	tokens := Tokenize(formula[len(grid.FormulaMarker):])
	acc := e.resolver.Resolve(tokens[0], raw)
	for i := 1; i+1 < len(tokens); i += 2 {
		op := Operator(tokens[i][0])
		acc = op.Apply(acc, e.resolver.Resolve(tokens[i+1], raw))
	}
	return Result{Value: acc}
}

var defaultEvaluator = NewEvaluator(nil)

// Evaluate computes a formula with the default resolver
func Evaluate(formula string, raw grid.RawGrid) Result {
	return defaultEvaluator.Evaluate(formula, raw)
}
