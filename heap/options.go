package heap

// Option configures a Heap at construction time. The zero value of every
// unset option is the behavior described below.
type Option func(*config)

type config struct {
	initialPages    int
	growthPages     int
	validateOnOp    bool
	logger          Logger
}

func defaultConfig() config {
	return config{
		initialPages: 1,
		growthPages:  1,
		validateOnOp: false,
		logger:       nopLogger{},
	}
}

// WithInitialPages sets how many pages New's first InitSegment call
// requests. Default 1.
func WithInitialPages(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.initialPages = n
		}
	}
}

// WithGrowthPages sets a floor on how many pages a single growth request
// asks for, even when the computed shortfall would round up to fewer. This
// amortizes the cost of many small growths at the expense of some slack.
// Default 1 (no floor beyond the shortfall computation).
func WithGrowthPages(minPages int) Option {
	return func(c *config) {
		if minPages > 0 {
			c.growthPages = minPages
		}
	}
}

// WithValidateOnOp, when enabled, makes Alloc, Free and Realloc call
// Validate before returning and panic if it detects corruption. Intended for
// test and debug builds only: it turns an O(1)/O(n) operation into an O(heap
// size) one. Default false.
func WithValidateOnOp(enabled bool) Option {
	return func(c *config) { c.validateOnOp = enabled }
}

// WithLogger injects a diagnostic logger invoked on heap growth, on every
// merge of a freed block with one or both free neighbors, and on corruption
// detected under WithValidateOnOp. Default a no-op logger.
func WithLogger(logger Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}
