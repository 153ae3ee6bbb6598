//go:build !js_eval

package patcher

// NewJSEvaluator is unavailable without the js_eval build tag.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	_ = applyEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}
