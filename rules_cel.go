package settings

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celMaxArity bounds how many arguments a registered function accepts in
// CEL, which has no variadic overloads.
const celMaxArity = 4

// Keys that are not CEL identifiers stay reachable through settings["..."].
var celIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type celEvaluator struct {
	engineConfig
}

// NewCELEvaluator returns an Evaluator backed by cel-go. Every binding is
// declared dyn except now, which is a timestamp.
func NewCELEvaluator(opts ...EngineOption) Evaluator {
	return &celEvaluator{engineConfig: newEngineConfig(opts)}
}

func (e *celEvaluator) Engine() string { return "cel" }

func (e *celEvaluator) Check(expression string) error {
	env, err := e.environment(nil)
	if err != nil {
		return err
	}
	_, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}
	return nil
}

func (e *celEvaluator) Evaluate(env RuleEnv, expression string) (any, error) {
	bindings := env.complete().bindings()
	program, err := e.program(expression, bindings)
	if err != nil {
		return nil, err
	}
	out, _, err := program.Eval(bindings)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

// program caches per expression and set of bound names, since the checked
// environment declares one variable per name.
func (e *celEvaluator) program(expression string, bindings map[string]any) (celgo.Program, error) {
	names := slices.DeleteFunc(slices.Sorted(maps.Keys(bindings)), func(name string) bool {
		return !celIdentifier.MatchString(name)
	})
	key := "cel:" + strings.Join(names, ",") + ":" + expression
	if cached, ok := e.cached(key); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}
	env, err := e.environment(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.store(key, program)
	return program, nil
}

func (e *celEvaluator) environment(names []string) (*celgo.Env, error) {
	var opts []celgo.EnvOption
	for _, name := range names {
		if name == "now" {
			opts = append(opts, celgo.Variable(name, celgo.TimestampType))
			continue
		}
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	opts = append(opts, celgo.Function("call", celOverloads("call", []*celgo.Type{celgo.StringType}, e.call)...))
	for _, name := range e.functions.Names() {
		opts = append(opts, celgo.Function(name, celOverloads(name, nil, e.functions.lookup(name))...))
	}
	return celgo.NewEnv(opts...)
}

// celOverloads declares fn for every arity up to celMaxArity after the
// leading fixed arguments.
func celOverloads(name string, fixed []*celgo.Type, fn Function) []celgo.FunctionOpt {
	out := make([]celgo.FunctionOpt, 0, celMaxArity+1)
	for extra := 0; extra <= celMaxArity; extra++ {
		args := slices.Clone(fixed)
		for range extra {
			args = append(args, celgo.DynType)
		}
		id := fmt.Sprintf("%s_%d", name, len(args))
		var binding celgo.OverloadOpt
		switch len(args) {
		case 1:
			binding = celgo.UnaryBinding(func(arg ref.Val) ref.Val { return celInvoke(fn, arg) })
		case 2:
			binding = celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return celInvoke(fn, lhs, rhs) })
		default:
			binding = celgo.FunctionBinding(func(values ...ref.Val) ref.Val { return celInvoke(fn, values...) })
		}
		out = append(out, celgo.Overload(id, args, celgo.DynType, binding))
	}
	return out
}

func celInvoke(fn Function, values ...ref.Val) ref.Val {
	args := make([]any, len(values))
	for i, value := range values {
		args[i] = value.Value()
	}
	result, err := fn(args...)
	if err != nil {
		return types.WrapErr(err)
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
