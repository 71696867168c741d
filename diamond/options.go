package diamond

import (
	"github.com/YuminosukeSato/diamondprice/ensemble"
	"github.com/YuminosukeSato/diamondprice/evaluate"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

type options struct {
	sep        rune
	seed       uint64
	testSize   float64
	forestOpts []ensemble.Option
	plot       evaluate.PlotConfig
	logger     log.Logger
}

// Option configures Train and Predict.
type Option func(*options)

// WithSeparator sets the input field delimiter. The default is tab.
func WithSeparator(sep rune) Option {
	return func(o *options) {
		o.sep = sep
	}
}

// WithSeed sets the seed of the train/test split and of the random forest.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithTestSize sets the held-out fraction, in (0, 1).
func WithTestSize(size float64) Option {
	return func(o *options) {
		o.testSize = size
	}
}

// WithForestOptions passes options to the random forest. They are applied
// after the seed, so an explicit ensemble.WithRandomState wins.
func WithForestOptions(opts ...ensemble.Option) Option {
	return func(o *options) {
		o.forestOpts = append(o.forestOpts, opts...)
	}
}

// WithPlot renders the held-out scatter to cfg.Path after training.
// An empty path disables the plot.
func WithPlot(cfg evaluate.PlotConfig) Option {
	return func(o *options) {
		o.plot = cfg
	}
}

// WithLogger sets the logger for progress and summary output.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		sep:      '\t',
		seed:     DefaultSeed,
		testSize: DefaultTestSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("diamond")
	}
	return o
}
