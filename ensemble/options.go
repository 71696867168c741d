package ensemble

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) {
		f.NEstimators = n
	}
}

// WithMaxDepth limits tree depth; <= 0 grows trees until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) {
		f.Params.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum number of samples needed to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) {
		f.Params.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in each leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) {
		f.Params.MinSamplesLeaf = n
	}
}

// WithBootstrap toggles sampling rows with replacement for each tree.
func WithBootstrap(bootstrap bool) Option {
	return func(f *RandomForestRegressor) {
		f.Bootstrap = bootstrap
	}
}

// WithRandomState sets the forest seed.
func WithRandomState(seed uint64) Option {
	return func(f *RandomForestRegressor) {
		f.RandomState = seed
	}
}

// WithNJobs sets the number of trees built concurrently; <= 0 uses all CPUs.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) {
		f.NJobs = n
	}
}
