package settings

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoEvaluator = errors.New("settings: evaluator not configured")

// RuleEnv is what a rule expression can see. Every top-level key of Values
// is bound by name next to the reserved names settings, level, now and args,
// which win on collision.
type RuleEnv struct {
	Values map[string]any
	Level  string
	Now    time.Time
	Args   map[string]any
}

func (env RuleEnv) complete() RuleEnv {
	if env.Values == nil {
		env.Values = map[string]any{}
	}
	if env.Now.IsZero() {
		env.Now = time.Now()
	}
	if env.Args == nil {
		env.Args = map[string]any{}
	}
	return env
}

func (env RuleEnv) bindings() map[string]any {
	out := make(map[string]any, len(env.Values)+4)
	for key, value := range env.Values {
		out[key] = value
	}
	out["settings"] = env.Values
	out["level"] = env.Level
	out["now"] = env.Now
	out["args"] = env.Args
	return out
}

// Evaluator runs rule expressions for one expression language.
type Evaluator interface {
	// Engine names the expression language, e.g. "expr".
	Engine() string
	// Evaluate runs expr against env.
	Evaluate(env RuleEnv, expr string) (any, error)
	// Check reports syntax errors in expr without running it.
	Check(expr string) error
}

// Evaluate runs expr against the resolved view of d. Dotted keys become
// nested objects, so "chordfinderoptions.numfrets" is addressable as written.
func (d *Dictionary) Evaluate(expr string) (any, error) {
	return d.EvaluateIn(RuleEnv{}, expr)
}

// EvaluateIn runs expr against env. Empty fields of env are filled from d:
// the resolved tree, the level label and the current time.
func (d *Dictionary) EvaluateIn(env RuleEnv, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("%w: expression", ErrArgumentEmpty)
	}
	evaluator, err := d.evaluator()
	if err != nil {
		return nil, err
	}
	if env.Values == nil {
		env.Values = d.Tree("")
	}
	if env.Level == "" {
		env.Level = d.level
	}
	env = env.complete()

	start := time.Now()
	value, err := evaluator.Evaluate(env, expr)
	err = evaluationError(evaluator.Engine(), expr, env.Level, err)
	d.cfg.evaluationLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluator.Engine(),
		Expr:     expr,
		Level:    describeLevel(env.Level),
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// evaluator never writes d, so frozen dictionaries may be evaluated from
// several goroutines.
func (d *Dictionary) evaluator() (Evaluator, error) {
	if d.cfg.evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return d.cfg.evaluator, nil
}

// Rule is a boolean expression that must hold for a dictionary's resolved
// values.
type Rule struct {
	Name    string
	Expr    string
	Message string
}

// RuleViolation reports a rule that evaluated to false.
type RuleViolation struct {
	Rule  Rule
	Level string
}

func (v *RuleViolation) Error() string {
	message := v.Rule.Message
	if message == "" {
		message = v.Rule.Expr
	}
	return fmt.Sprintf("settings: rule %q violated at level %s: %s", v.Rule.Name, describeLevel(v.Level), message)
}

// Is reports ErrArgumentInvalid equivalence.
func (v *RuleViolation) Is(target error) bool {
	return target == ErrArgumentInvalid
}

// ValidateRules checks the syntax of every rule with d's evaluator.
func (d *Dictionary) ValidateRules(rules ...Rule) error {
	evaluator, err := d.evaluator()
	if err != nil {
		return err
	}
	var errs []error
	for _, rule := range rules {
		if rule.Expr == "" {
			continue
		}
		if err := evaluator.Check(rule.Expr); err != nil {
			errs = append(errs, fmt.Errorf("%w: rule %q: %w", ErrArgumentInvalid, rule.Name,
				evaluationError(evaluator.Engine(), rule.Expr, d.level, err)))
		}
	}
	return errors.Join(errs...)
}

// CheckRules evaluates every rule against d and returns the violations and
// evaluation failures joined together, or nil when all rules hold.
func (d *Dictionary) CheckRules(rules ...Rule) error {
	var errs []error
	for _, rule := range rules {
		if rule.Expr == "" {
			continue
		}
		result, err := d.Evaluate(rule.Expr)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ok, isBool := result.(bool)
		if !isBool {
			errs = append(errs, fmt.Errorf("%w: rule %q returned %T, want bool", ErrArgumentInvalid, rule.Name, result))
			continue
		}
		if !ok {
			errs = append(errs, &RuleViolation{Rule: rule, Level: d.level})
		}
	}
	return errors.Join(errs...)
}
