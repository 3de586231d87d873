// Package filter narrows recommendation candidates with CEL expressions
// evaluated against each club, for example
//
//	item.brand == "Titleist" && item.year >= 2021
//	has(item.price) && item.price < 400.0
//
// The variable item exposes id, brand, model, category, year, skill_level
// and, when known, price.
package filter

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/okian/fairway/internal/domain/model"
)

// ErrInvalidExpression is returned when an expression does not compile to a boolean.
var ErrInvalidExpression = errors.New("invalid filter expression")

var (
	env     *cel.Env
	envErr  error
	envOnce sync.Once
)

func getEnv() (*cel.Env, error) {
	envOnce.Do(func() {
		env, envErr = cel.NewEnv(
			cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
			cel.CrossTypeNumericComparisons(true),
		)
	})
	return env, envErr
}

// Expression is a compiled filter. It is safe for concurrent use.
type Expression struct {
	source string
	prg    cel.Program
}

// Compile parses and type-checks src. An empty expression matches everything.
func Compile(src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return &Expression{}, nil
	}

	e, err := getEnv()
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	ast, issues := e.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsAssignableType(cel.BoolType) {
		return nil, fmt.Errorf("%w: result is %s, want bool", ErrInvalidExpression, ast.OutputType())
	}
	prg, err := e.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}
	return &Expression{source: src, prg: prg}, nil
}

// String returns the expression source.
func (x *Expression) String() string {
	return x.source
}

// Match reports whether item satisfies the expression. Evaluation errors,
// such as reading an unknown price, are returned with a false result.
func (x *Expression) Match(item model.CandidateItem) (bool, error) {
	if x == nil || x.prg == nil {
		return true, nil
	}
	out, _, err := x.prg.Eval(map[string]any{"item": activation(item)})
	if err != nil {
		return false, fmt.Errorf("evaluate %q on %s: %w", x.source, item.ID, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("evaluate %q on %s: result is %T", x.source, item.ID, out.Value())
	}
	return ok, nil
}

// Apply returns the candidates that match, in their original order, and the
// number that failed to evaluate.
func (x *Expression) Apply(items []model.CandidateItem) (kept []model.CandidateItem, failed int) {
	if x == nil || x.prg == nil {
		return items, 0
	}
	kept = make([]model.CandidateItem, 0, len(items))
	for _, it := range items {
		ok, err := x.Match(it)
		if err != nil {
			failed++
			continue
		}
		if ok {
			kept = append(kept, it)
		}
	}
	return kept, failed
}

func activation(item model.CandidateItem) map[string]any {
	m := map[string]any{
		"id":          item.ID,
		"brand":       item.Brand,
		"model":       item.Model,
		"category":    item.Category,
		"year":        int64(item.Year),
		"skill_level": item.SkillLevel,
	}
	if p, ok := item.Price.Get(); ok {
		m["price"] = p
	}
	return m
}
