package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Evaluator compiles and runs the transform expressions attached to import
// profile column mappings. Expressions see two variables: "value", the mapped
// cell after whitespace trimming, and "row", the whole source row keyed by
// source header. They must produce a string; typed columns are parsed after
// the transform has run.
type Evaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		ext.Strings(),
		cel.Variable("value", cel.StringType),
		cel.Variable("row", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

func (e *Evaluator) ValidateTransformExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.StringType {
		return fmt.Errorf("transform expression must return string, got %v", ast.OutputType())
	}

	return nil
}

func (e *Evaluator) EvaluateTransform(ctx context.Context, expression string, value string, row map[string]string) (string, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return "", err
	}

	vars := map[string]interface{}{
		"value": value,
		"row":   row,
	}

	result, _, err := program.ContextEval(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	strVal, ok := result.Value().(string)
	if !ok {
		return "", fmt.Errorf("CEL expression did not return string, got %T", result.Value())
	}

	return strVal, nil
}

// getProgram returns the compiled program for an expression, compiling it at
// most once. Imports evaluate the same handful of expressions for every row
// of a file, so the cache stays tiny.
func (e *Evaluator) getProgram(expression string) (cel.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := e.CompileExpression(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.programs[expression] = program
	e.mu.Unlock()

	return program, nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}
