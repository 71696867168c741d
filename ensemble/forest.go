package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/core/parallel"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// Default forest parameters.
const (
	DefaultNEstimators = 200
	DefaultMaxDepth    = 10
)

// predictThreshold is the row count below which Predict stays sequential.
const predictThreshold = 512

// RandomForestRegressor averages regression trees grown on bootstrap samples.
//
// Tree t draws its sample from a PCG stream seeded with (RandomState, t), so
// the fitted forest depends only on the data and the seed, not on NJobs.
type RandomForestRegressor struct {
	State model.StateManager

	NEstimators int
	Params      TreeParams
	Bootstrap   bool
	RandomState uint64
	NJobs       int

	Trees []Tree
}

// NewRandomForestRegressor creates a forest with 200 trees of depth at most 10.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		NEstimators: DefaultNEstimators,
		Params: TreeParams{
			MaxDepth:        DefaultMaxDepth,
			MinSamplesSplit: 2,
			MinSamplesLeaf:  1,
		},
		Bootstrap: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows NEstimators trees concurrently and blocks until all are done.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if f.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", f.NEstimators)
	}
	if err := f.Params.validate(); err != nil {
		return err
	}
	rows, cols, err := checkFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	table := rowsOf(X)
	target := mat.Col(nil, 0, y)
	trees := make([]Tree, f.NEstimators)

	err = parallel.ForEach(f.NEstimators, f.NJobs, func(t int) error {
		idx := make([]int, rows)
		if f.Bootstrap {
			rng := rand.New(rand.NewPCG(f.RandomState, uint64(t)))
			for i := range idx {
				idx[i] = rng.IntN(rows)
			}
		} else {
			for i := range idx {
				idx[i] = i
			}
		}
		trees[t] = buildTree(table, target, idx, f.Params)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RandomForestRegressor.Fit")
	}

	f.Trees = trees
	f.State.SetDimensions(cols, rows)
	f.State.SetFitted()
	return nil
}

// Predict returns the mean of the tree outputs for each row as an
// n_samples × 1 matrix.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewModelError("RandomForestRegressor.Predict", "empty data", errors.ErrEmptyData)
	}
	if nf, _ := f.State.GetDimensions(); cols != nf {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", nf, cols, 1)
	}

	table := rowsOf(X)
	out := make([]float64, rows)
	parallel.ParallelizeWithThreshold(rows, predictThreshold, f.NJobs, func(start, end int) {
		for i := start; i < end; i++ {
			sum := 0.0
			for t := range f.Trees {
				sum += f.Trees[t].Evaluate(table[i])
			}
			out[i] = sum / float64(len(f.Trees))
		}
	})
	return mat.NewDense(rows, 1, out), nil
}

// IsFitted reports whether Fit has completed.
func (f *RandomForestRegressor) IsFitted() bool {
	return f.State.IsFitted()
}
