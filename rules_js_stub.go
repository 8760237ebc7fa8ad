//go:build !js_eval

package settings

// NewJSEvaluator returns nil unless built with the js_eval tag.
func NewJSEvaluator(opts ...EngineOption) Evaluator {
	return nil
}
