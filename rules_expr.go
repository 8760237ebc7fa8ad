package settings

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	engineConfig
}

// NewExprEvaluator returns the default Evaluator, backed by expr-lang/expr.
// Missing keys evaluate to nil, so rules can guard optional settings with
// the ?. and ?? operators.
func NewExprEvaluator(opts ...EngineOption) Evaluator {
	return &exprEvaluator{engineConfig: newEngineConfig(opts)}
}

func (e *exprEvaluator) Engine() string { return "expr" }

func (e *exprEvaluator) Check(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *exprEvaluator) Evaluate(env RuleEnv, expression string) (any, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	return exprlang.Run(program, env.complete().bindings())
}

func (e *exprEvaluator) program(expression string) (*exprvm.Program, error) {
	key := "expr:" + expression
	if cached, ok := e.cached(key); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return program, nil
		}
	}
	options := []exprlang.Option{
		exprlang.AllowUndefinedVariables(),
		exprlang.Function("call", e.call),
	}
	for _, name := range e.functions.Names() {
		options = append(options, exprlang.Function(name, e.functions.lookup(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	e.store(key, program)
	return program, nil
}
