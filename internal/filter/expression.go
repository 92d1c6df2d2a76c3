package filter

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"dispatch/internal/event"
)

type expressionPredicate struct {
	name    string
	program cel.Program
}

// Expression compiles a CEL expression into a predicate. The expression sees
// the event as {id, kind, scope_id, occurred_at, payload} and must evaluate
// to bool. Compilation happens once, at construction.
func Expression(name, expr string) (Predicate, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("scope_id", cel.StringType),
		cel.Variable("occurred_at", cel.TimestampType),
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &expressionPredicate{name: name, program: program}, nil
}

func (p *expressionPredicate) Name() string { return p.name }

func (p *expressionPredicate) Evaluate(ctx context.Context, ev event.Event) (bool, error) {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}

	vars := map[string]interface{}{
		"id":          ev.ID,
		"kind":        ev.Kind.String(),
		"scope_id":    ev.ScopeID,
		"occurred_at": ev.OccurredAt,
		"payload":     payload,
	}

	result, _, err := p.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}
	return boolVal, nil
}
