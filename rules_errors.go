package settings

import (
	"errors"
	"fmt"
)

// EvaluationError reports a rule expression that failed to compile or run.
type EvaluationError struct {
	Engine string
	Expr   string
	Level  string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("settings: %s rule %q at level %s: %v", e.Engine, e.Expr, describeLevel(e.Level), e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// evaluationError wraps err unless it already is an *EvaluationError, in
// which case only its empty fields are filled.
func evaluationError(engine, expr, level string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Level == "" {
			evalErr.Level = level
		}
		return err
	}
	return &EvaluationError{Engine: engine, Expr: expr, Level: level, Err: err}
}
