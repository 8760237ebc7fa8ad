//go:build js_eval

package settings

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	engineConfig
}

// NewJSEvaluator returns an Evaluator backed by goja. Each evaluation runs
// in a fresh runtime.
func NewJSEvaluator(opts ...EngineOption) Evaluator {
	return &jsEvaluator{engineConfig: newEngineConfig(opts)}
}

func (e *jsEvaluator) Engine() string { return "js" }

func (e *jsEvaluator) Check(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *jsEvaluator) Evaluate(env RuleEnv, expression string) (any, error) {
	program, err := e.program(expression)
	if err != nil {
		return nil, err
	}
	vm := goja.New()
	for name, value := range env.complete().bindings() {
		if err := vm.Set(name, value); err != nil {
			return nil, err
		}
	}
	if err := vm.Set("call", e.call); err != nil {
		return nil, err
	}
	for _, name := range e.functions.Names() {
		if err := vm.Set(name, e.functions.lookup(name)); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func (e *jsEvaluator) program(expression string) (*goja.Program, error) {
	key := "js:" + expression
	if cached, ok := e.cached(key); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	program, err := goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, err
	}
	e.store(key, program)
	return program, nil
}
