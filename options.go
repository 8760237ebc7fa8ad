package settings

// Option configures a Dictionary on construction.
type Option func(*dictionaryConfig)

type dictionaryConfig struct {
	logger          Logger
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
	isolated        bool
}

func applyOptions(opts []Option) dictionaryConfig {
	cfg := dictionaryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluator == nil {
		if cfg.programCache == nil {
			cfg.programCache = NewMapProgramCache()
		}
		cfg.evaluator = NewExprEvaluator(WithEngineCache(cfg.programCache), WithEngineFunctions(cfg.functions))
	}
	return cfg
}

// WithLogger attaches a mutation logger.
func WithLogger(logger Logger) Option {
	return func(cfg *dictionaryConfig) {
		cfg.logger = logger
	}
}

// WithEvaluator configures the evaluator used by Evaluate and rule checks.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *dictionaryConfig) {
		cfg.evaluator = e
	}
}

// WithProgramCache registers the program cache of the default evaluator.
// Without it the default evaluator gets a private MapProgramCache.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *dictionaryConfig) {
		cfg.programCache = cache
	}
}

// WithIsolatedParent keeps the parent out of reach of mutations made on
// this level. Recursive clears stop here, and SetParent, SetParentAll and
// Reparent fail with ErrReadOnly. Edit buffers use it so nothing reaches
// their target before Apply.
func WithIsolatedParent() Option {
	return func(cfg *dictionaryConfig) {
		cfg.isolated = true
	}
}

// WithEvaluatorLogger attaches an evaluator logger.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *dictionaryConfig) {
		cfg.evaluatorLogger = logger
	}
}

func (cfg dictionaryConfig) mutationLogger() Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

func (cfg dictionaryConfig) evaluationLogger() EvaluatorLogger {
	if cfg.evaluatorLogger != nil {
		return cfg.evaluatorLogger
	}
	return noopEvaluatorLogger{}
}
