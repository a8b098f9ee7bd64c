package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

var (
	celEnvOnce sync.Once
	celEnv     *cel.Env
	celEnvErr  error
)

// predicateEnv returns the shared CEL environment for custom predicates.
// The only variable is `value`, the metric value under validation.
func predicateEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("value", cel.DoubleType),
		)
		if celEnvErr != nil {
			celEnvErr = fmt.Errorf("failed to create CEL environment: %w", celEnvErr)
		}
	})
	return celEnv, celEnvErr
}

// predicate is a compiled custom expression.
type predicate struct {
	expr    string
	program cel.Program
}

// compilePredicate compiles a custom expression that must return bool.
func compilePredicate(metric, expr string) (*predicate, error) {
	env, err := predicateEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: metric %s: %v", ErrInvalidExpression, metric, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: metric %s: expression must return bool, got %s",
			ErrInvalidExpression, metric, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for metric %s: %w", metric, err)
	}

	return &predicate{expr: expr, program: program}, nil
}

// eval reports whether value satisfies the predicate. Evaluation errors count as failures.
func (p *predicate) eval(value float64) (bool, error) {
	out, _, err := p.program.Eval(map[string]any{"value": value})
	if err != nil {
		return false, err
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("expression returned %v, want bool", out.Type())
	}
	return bool(b), nil
}
