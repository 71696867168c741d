package ensemble

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
	// y = 1 (x < 5), 10 (x >= 5); second column is noise-free constant
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, 3)
		if i < 5 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 10)
		}
	}
	return X, y
}

// singleTree fits a one-tree forest without bootstrap, which grows the tree
// on every row.
func singleTree(t *testing.T, X, y mat.Matrix, opts ...Option) *RandomForestRegressor {
	t.Helper()
	opts = append([]Option{WithNEstimators(1), WithBootstrap(false)}, opts...)
	f := NewRandomForestRegressor(opts...)
	require.NoError(t, f.Fit(X, y))
	require.Len(t, f.Trees, 1)
	return f
}

func TestTree_LearnsStep(t *testing.T) {
	X, y := stepData()
	f := singleTree(t, X, y, WithMaxDepth(3))
	tree := f.Trees[0]

	require.Len(t, tree.Nodes, 1, "a single split separates the step")
	root := tree.Nodes[0]
	assert.Equal(t, 0, root.FeatureIndex)
	assert.InDelta(t, 4.5, root.Threshold, 1e-12)
	assert.Equal(t, 1, tree.Depth)

	pred, err := f.Predict(mat.NewDense(2, 2, []float64{0.5, 3, 8, 3}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 10.0, pred.At(1, 0), 1e-12)
}

func TestTree_RespectsMaxDepth(t *testing.T) {
	n := 64
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i*i))
	}
	tree := singleTree(t, X, y, WithMaxDepth(3)).Trees[0]
	assert.LessOrEqual(t, tree.Depth, 3)
	assert.LessOrEqual(t, len(tree.Outputs), 8)
}

func TestTree_MinSamplesLeaf(t *testing.T) {
	X, y := stepData()
	tree := singleTree(t, X, y, WithMinSamplesLeaf(6)).Trees[0]
	assert.Empty(t, tree.Nodes, "no split can leave 6 samples on both sides")
	assert.Equal(t, []float64{5.5}, tree.Outputs)
}

func TestRandomForestRegressor_Defaults(t *testing.T) {
	f := NewRandomForestRegressor()
	assert.Equal(t, 200, f.NEstimators)
	assert.Equal(t, 10, f.Params.MaxDepth)
	assert.True(t, f.Bootstrap)
}

func TestRandomForestRegressor_FitPredict(t *testing.T) {
	X, y := stepData()
	f := NewRandomForestRegressor(WithNEstimators(50), WithRandomState(101))
	require.NoError(t, f.Fit(X, y))
	require.Len(t, f.Trees, 50)

	pred, err := f.Predict(mat.NewDense(2, 2, []float64{0, 3, 9, 3}))
	require.NoError(t, err)
	assert.Less(t, pred.At(0, 0), 5.5)
	assert.Greater(t, pred.At(1, 0), 5.5)
}

func TestRandomForestRegressor_DeterministicAcrossWorkers(t *testing.T) {
	X := mat.NewDense(40, 3, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		a, b, c := float64(i%7), float64(i%5), float64(i)
		X.Set(i, 0, a)
		X.Set(i, 1, b)
		X.Set(i, 2, c)
		y.Set(i, 0, 2*a-b+0.1*c)
	}

	serial := NewRandomForestRegressor(WithNEstimators(20), WithRandomState(7), WithNJobs(1))
	concurrent := NewRandomForestRegressor(WithNEstimators(20), WithRandomState(7), WithNJobs(8))
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, concurrent.Fit(X, y))

	a, err := serial.Predict(X)
	require.NoError(t, err)
	b, err := concurrent.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a, b), "forest must not depend on scheduling")

	other := NewRandomForestRegressor(WithNEstimators(20), WithRandomState(8))
	require.NoError(t, other.Fit(X, y))
	c, err := other.Predict(X)
	require.NoError(t, err)
	assert.False(t, mat.Equal(a, c), "different seeds should give different forests")
}

func TestRandomForestRegressor_NoBootstrapMatchesTree(t *testing.T) {
	X, y := stepData()
	f := NewRandomForestRegressor(WithNEstimators(3), WithBootstrap(false))
	require.NoError(t, f.Fit(X, y))
	for _, tr := range f.Trees {
		assert.Equal(t, f.Trees[0], tr)
	}
}

func TestRandomForestRegressor_Errors(t *testing.T) {
	f := NewRandomForestRegressor(WithNEstimators(2))
	_, err := f.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := stepData()
	require.NoError(t, f.Fit(X, y))
	_, err = f.Predict(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	err = NewRandomForestRegressor(WithNEstimators(0)).Fit(X, y)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = NewRandomForestRegressor(WithMinSamplesSplit(1)).Fit(X, y)
	assert.True(t, errors.As(err, &ve))

	bad := mat.NewDense(2, 1, []float64{1, math.NaN()})
	err = NewRandomForestRegressor().Fit(bad, mat.NewDense(2, 1, []float64{1, 2}))
	var ne *errors.NumericalInstabilityError
	assert.True(t, errors.As(err, &ne))
}

func TestRandomForestRegressor_GobRoundTrip(t *testing.T) {
	X, y := stepData()
	f := NewRandomForestRegressor(WithNEstimators(10), WithRandomState(3))
	require.NoError(t, f.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(f, &buf))
	restored := &RandomForestRegressor{}
	require.NoError(t, model.LoadModelFromReader(restored, &buf))

	want, err := f.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
