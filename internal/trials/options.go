package trials

import "log/slog"

// Option configures trial construction.
type Option func(*options)

type options struct {
	nSelect    []int
	isRanked   []bool
	nReference []int
	groupID    []int
	sessionID  []int
	nStimuli   int
	logger     *slog.Logger
}

// WithNSelect sets n_select. A single value applies to every trial;
// otherwise one value per trial is required.
func WithNSelect(values ...int) Option {
	return func(o *options) { o.nSelect = values }
}

// WithIsRanked sets is_ranked, broadcast like WithNSelect.
func WithIsRanked(values ...bool) Option {
	return func(o *options) { o.isRanked = values }
}

// WithNReference declares n_reference instead of inferring it from the
// stimulus set. Reference columns past the declared count are dropped.
func WithNReference(values ...int) Option {
	return func(o *options) { o.nReference = values }
}

// WithGroupID sets the agent group of each trial. Observations only.
func WithGroupID(values ...int) Option {
	return func(o *options) { o.groupID = values }
}

// WithSessionID sets the agent session of each trial. Observations only.
func WithSessionID(values ...int) Option {
	return func(o *options) { o.sessionID = values }
}

// WithNStimuli bounds stimulus indices to [0, n).
func WithNStimuli(n int) Option {
	return func(o *options) { o.nStimuli = n }
}

// WithLogger sets the logger that receives construction warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// broadcast expands values to n entries. A nil slice yields def everywhere.
func broadcast[T any](field string, values []T, n int, def T) ([]T, error) {
	out := make([]T, n)
	switch len(values) {
	case 0:
		for i := range out {
			out[i] = def
		}
	case 1:
		for i := range out {
			out[i] = values[0]
		}
	case n:
		copy(out, values)
	default:
		return nil, &ShapeMismatchError{Field: field, Got: len(values), Want: n}
	}
	return out, nil
}
