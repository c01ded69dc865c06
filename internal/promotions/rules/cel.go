package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/angelmondragon/promoengine/internal/promotions"
	"github.com/google/cel-go/cel"
)

// CELEvaluator evaluates dynamic promotion conditions written in CEL.
// Compiled programs are cached per expression for the evaluator's lifetime.
type CELEvaluator struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELEvaluator declares the cart variables available to expressions:
// customer_id, subtotal, current_total, item_count, total_quantity,
// product_ids, family_ids and now.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("current_total", cel.DoubleType),
		cel.Variable("item_count", cel.IntType),
		cel.Variable("total_quantity", cel.IntType),
		cel.Variable("product_ids", cel.ListType(cel.StringType)),
		cel.Variable("family_ids", cel.ListType(cel.StringType)),
		cel.Variable("now", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}
	return &CELEvaluator{env: env, programs: map[string]cel.Program{}}, nil
}

// Compile checks that expression is a valid boolean CEL expression and caches
// the program. Errors wrap promotions.ErrInvalidConfiguration.
func (e *CELEvaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate implements promotions.DynamicConditionEvaluator.
func (e *CELEvaluator) Evaluate(ctx context.Context, expression string, facts promotions.Facts) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	prg, err := e.program(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(activation(facts))
	if err != nil {
		return false, fmt.Errorf("%w: evaluate %q: %v", promotions.ErrInvalidConfiguration, expression, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: expression %q did not return a bool", promotions.ErrInvalidConfiguration, expression)
	}
	return result, nil
}

func (e *CELEvaluator) program(expression string) (cel.Program, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, fmt.Errorf("%w: empty dynamic condition", promotions.ErrInvalidConfiguration)
	}

	e.mu.RLock()
	prg, ok := e.programs[expression]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: compile %q: %v", promotions.ErrInvalidConfiguration, expression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression %q returns %s, want bool", promotions.ErrInvalidConfiguration, expression, ast.OutputType())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: program %q: %v", promotions.ErrInvalidConfiguration, expression, err)
	}

	e.mu.Lock()
	e.programs[expression] = prg
	e.mu.Unlock()
	return prg, nil
}

func activation(facts promotions.Facts) map[string]any {
	productIDs := facts.ProductIDs
	if productIDs == nil {
		productIDs = []string{}
	}
	familyIDs := facts.FamilyIDs
	if familyIDs == nil {
		familyIDs = []string{}
	}
	return map[string]any{
		"customer_id":    facts.CustomerID,
		"subtotal":       facts.Subtotal.InexactFloat64(),
		"current_total":  facts.CurrentTotal.InexactFloat64(),
		"item_count":     int64(facts.ItemCount),
		"total_quantity": int64(facts.TotalQuantity),
		"product_ids":    productIDs,
		"family_ids":     familyIDs,
		"now":            facts.Now,
	}
}
