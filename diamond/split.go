package diamond

import (
	"math"
	"math/rand/v2"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// Split defaults.
const (
	DefaultSeed     uint64  = 101
	DefaultTestSize float64 = 0.25
)

// Split partitions row indices 0..n-1 into a training and a held-out subset.
// The held-out subset has ceil(testSize·n) rows, the training subset the rest.
// Both are drawn from one PCG permutation seeded by seed, so equal inputs
// always give equal splits.
func Split(n int, testSize float64, seed uint64) (train, test []int, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if n < 2 {
		return nil, nil, errors.NewModelError("diamond.Split", "insufficient data",
			errors.Wrapf(errors.ErrEmptyData, "need at least 2 rows to split, got %d", n))
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest >= n {
		nTest = n - 1
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}

func subsetFrame(df dataframe.DataFrame, idx []int) (dataframe.DataFrame, error) {
	out := df.Subset(idx)
	if out.Err != nil {
		return out, errors.Wrap(out.Err, "diamond: select rows")
	}
	return out, nil
}

func subsetTarget(y *mat.VecDense, idx []int) *mat.Dense {
	out := mat.NewDense(len(idx), 1, nil)
	for i, j := range idx {
		out.Set(i, 0, y.AtVec(j))
	}
	return out
}
