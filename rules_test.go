package settings

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

var engines = []struct {
	name    string
	factory func(...EngineOption) Evaluator
}{
	{name: "expr", factory: NewExprEvaluator},
	{name: "cel", factory: NewCELEvaluator},
	{name: "js", factory: NewJSEvaluator},
}

func finderChain(t *testing.T, opts ...Option) *Dictionary {
	t.Helper()
	root := New("Default", nil, opts...)
	mustSet(t, root, "chordfinderoptions.numfrets", "12")
	mustSet(t, root, "chordfinderoptions.maxreach", "4")
	mustSet(t, root, "chordfinderoptions.rootnote", "G")
	user := root.NewChild("User")
	mustSet(t, user, "chordfinderoptions.numfrets", "15")
	return user
}

func mustBeTrue(t *testing.T, d *Dictionary, expr string) {
	t.Helper()
	result, err := d.Evaluate(expr)
	if err != nil {
		t.Fatalf("evaluate %q: %v", expr, err)
	}
	if ok, _ := result.(bool); !ok {
		t.Fatalf("expected %q to hold, got %#v", expr, result)
	}
}

func TestEvaluateAcrossEngines(t *testing.T) {
	for _, tc := range engines {
		t.Run(tc.name, func(t *testing.T) {
			evaluator := tc.factory()
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", tc.name)
			}
			if evaluator.Engine() != tc.name {
				t.Fatalf("expected engine %q, got %q", tc.name, evaluator.Engine())
			}
			d := finderChain(t, WithEvaluator(evaluator))

			mustBeTrue(t, d, "chordfinderoptions.maxreach <= chordfinderoptions.numfrets")
			mustBeTrue(t, d, `level == "User"`)
			mustBeTrue(t, d, "settings.chordfinderoptions.numfrets == 15")
		})
	}
}

func TestNoteHelpersAcrossEngines(t *testing.T) {
	for _, tc := range engines {
		t.Run(tc.name, func(t *testing.T) {
			evaluator := tc.factory()
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", tc.name)
			}
			d := finderChain(t, WithEvaluator(evaluator))

			mustBeTrue(t, d, `note("Eb") == 3`)
			mustBeTrue(t, d, `interval("C", chordfinderoptions.rootnote) == 7`)
			mustBeTrue(t, d, `isnote(chordfinderoptions.rootnote)`)
			mustBeTrue(t, d, `isnote("H") == false`)

			if _, err := d.Evaluate(`note("H") == 0`); err == nil {
				t.Fatalf("expected bad note name to fail")
			}
		})
	}
}

func TestCustomFunctionsAcrossEngines(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Clamp", func(args ...any) (any, error) {
		if len(args) != 3 {
			return nil, errors.New("clamp expects three arguments")
		}
		value, low, high := toInt(args[0]), toInt(args[1]), toInt(args[2])
		return min(max(value, low), high), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, tc := range engines {
		t.Run(tc.name, func(t *testing.T) {
			evaluator := tc.factory(WithEngineFunctions(registry))
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", tc.name)
			}
			d := finderChain(t, WithEvaluator(evaluator))

			for _, expr := range []string{
				`call("clamp", chordfinderoptions.numfrets, 0, 12)`,
				`clamp(chordfinderoptions.numfrets, 0, 12)`,
			} {
				result, err := d.Evaluate(expr)
				if err != nil {
					t.Fatalf("evaluate %q: %v", expr, err)
				}
				if toInt(result) != 12 {
					t.Fatalf("expected %q to clamp to 12, got %#v", expr, result)
				}
			}
		})
	}
}

func TestEvaluateDefaultsToExpr(t *testing.T) {
	cache := NewMapProgramCache()
	var events []EvaluatorLogEvent
	d := finderChain(t,
		WithProgramCache(cache),
		WithEvaluatorLogger(EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
			events = append(events, event)
		})),
	)

	for range 2 {
		if _, err := d.Evaluate("chordfinderoptions.numfrets * 2"); err != nil {
			t.Fatalf("evaluate: %v", err)
		}
	}
	if cache.Len() != 1 {
		t.Fatalf("expected program compiled once, cache has %d entries", cache.Len())
	}
	if len(events) != 2 || events[0].Engine != "expr" || events[0].Level != "User" {
		t.Fatalf("unexpected evaluation events %+v", events)
	}
}

func TestConcurrentEvaluationOnFrozenChain(t *testing.T) {
	d := finderChain(t)
	for cur := d; cur != nil; cur = cur.Parent() {
		cur.MarkAsReadOnly()
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				result, err := d.Evaluate("chordfinderoptions.numfrets > 3")
				if err != nil {
					errs <- err
					return
				}
				if ok, _ := result.(bool); !ok {
					errs <- errors.New("expected the rule to hold")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("evaluate: %v", err)
	}
}

func TestDefaultEvaluatorCachesPrograms(t *testing.T) {
	d := finderChain(t)
	rule := Rule{Name: "reach", Expr: "chordfinderoptions.maxreach <= chordfinderoptions.numfrets"}
	for range 3 {
		if err := d.CheckRules(rule); err != nil {
			t.Fatalf("check rules: %v", err)
		}
	}
	cache, ok := d.cfg.programCache.(*MapProgramCache)
	if !ok || cache.Len() != 1 {
		t.Fatalf("expected one cached program, got %#v", d.cfg.programCache)
	}
}

func TestEvaluateInExplicitEnv(t *testing.T) {
	d := New("User", nil)
	result, err := d.EvaluateIn(RuleEnv{
		Values: map[string]any{"frets": 3},
		Level:  "Scratch",
		Args:   map[string]any{"limit": 5},
	}, `frets < args.limit && level == "Scratch"`)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if ok, _ := result.(bool); !ok {
		t.Fatalf("expected true, got %#v", result)
	}
}

func TestEvaluateRejectsEmptyExpression(t *testing.T) {
	d := New("User", nil)
	if _, err := d.Evaluate(""); !errors.Is(err, ErrArgumentEmpty) {
		t.Fatalf("expected ErrArgumentEmpty, got %v", err)
	}
}

func TestEvaluateWrapsFailures(t *testing.T) {
	d := finderChain(t)
	_, err := d.Evaluate("chordfinderoptions.numfrets +")
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T: %v", err, err)
	}
	if evalErr.Engine != "expr" || evalErr.Level != "User" || !strings.Contains(evalErr.Expr, "numfrets") {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
}

func TestEvaluationErrorKeepsExistingMetadata(t *testing.T) {
	base := errors.New("compile failure")
	existing := &EvaluationError{Engine: "expr", Err: base}

	err := evaluationError("cel", "rule", "App", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" || existing.Expr != "rule" || existing.Level != "App" {
		t.Fatalf("expected only empty fields filled, got %+v", existing)
	}
	if evaluationError("expr", "x", "", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestCheckRules(t *testing.T) {
	d := finderChain(t)
	err := d.CheckRules(
		Rule{Name: "reach", Expr: "chordfinderoptions.maxreach <= chordfinderoptions.numfrets"},
		Rule{Name: "frets", Expr: "chordfinderoptions.numfrets <= 12", Message: "too many frets"},
		Rule{Name: "shape", Expr: "chordfinderoptions.numfrets + 1"},
		Rule{Name: "skipped"},
	)
	if err == nil {
		t.Fatalf("expected violations")
	}
	if !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid, got %v", err)
	}
	var violation *RuleViolation
	if !errors.As(err, &violation) || violation.Rule.Name != "frets" {
		t.Fatalf("expected frets violation, got %v", err)
	}
	if !strings.Contains(err.Error(), "too many frets") || !strings.Contains(err.Error(), `"shape"`) {
		t.Fatalf("expected both failures reported, got %v", err)
	}

	if err := d.CheckRules(Rule{Name: "ok", Expr: "chordfinderoptions.numfrets > 0"}); err != nil {
		t.Fatalf("expected rules to pass, got %v", err)
	}
}

func TestValidateRulesChecksSyntaxOnly(t *testing.T) {
	d := New("User", nil)
	if err := d.ValidateRules(
		Rule{Name: "missing keys are fine", Expr: "(scalefinderoptions?.numfrets ?? 0) >= 0"},
		Rule{Name: "empty"},
	); err != nil {
		t.Fatalf("expected valid rules, got %v", err)
	}

	err := d.ValidateRules(Rule{Name: "broken", Expr: "numfrets <="})
	if !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid, got %v", err)
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Expr != "numfrets <=" {
		t.Fatalf("expected EvaluationError for the broken rule, got %v", err)
	}
}

func TestWithCustomFunctionReachesDefaultEvaluator(t *testing.T) {
	d := New("User", nil, WithCustomFunction("double", func(args ...any) (any, error) {
		return toInt(args[0]) * 2, nil
	}))
	mustSet(t, d, "frets", "6")
	result, err := d.Evaluate("double(frets)")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if toInt(result) != 12 {
		t.Fatalf("expected 12, got %#v", result)
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register(" ", func(...any) (any, error) { return nil, nil }); !errors.Is(err, ErrArgumentEmpty) {
		t.Fatalf("expected ErrArgumentEmpty, got %v", err)
	}
	if err := registry.Register("nil", nil); !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid, got %v", err)
	}
	if err := registry.Register("Note", func(...any) (any, error) { return "mine", nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("NOTE", func(...any) (any, error) { return nil, nil }); !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected duplicate to fail, got %v", err)
	}
	if _, err := registry.Call("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	merged := registry.withBuiltins()
	if got := strings.Join(merged.Names(), ","); got != "interval,isnote,note" {
		t.Fatalf("unexpected names %q", got)
	}
	result, err := merged.Call("note", "C")
	if err != nil || result != "mine" {
		t.Fatalf("expected registered note to replace the built-in, got %#v, %v", result, err)
	}
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
