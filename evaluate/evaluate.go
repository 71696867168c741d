// Package evaluate scores price predictions and draws the true-vs-predicted
// diagnostic scatter.
package evaluate

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/metrics"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

// Summary holds regression metrics over one held-out set, in price units.
// R2 and ExplainedVariance are NaN when the true prices have no variance.
type Summary struct {
	N                 int
	MAE               float64
	RMSE              float64
	R2                float64
	ExplainedVariance float64
	MAPE              float64
}

// Evaluate computes the summary of yPred against yTrue.
func Evaluate(yTrue, yPred []float64) (*Summary, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("evaluate.Evaluate", "no samples to evaluate")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("evaluate.Evaluate", len(yTrue), len(yPred), 0)
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	s := &Summary{N: len(yTrue)}
	var err error
	if s.MAE, err = metrics.MAE(t, p); err != nil {
		return nil, err
	}
	if s.RMSE, err = metrics.RMSE(t, p); err != nil {
		return nil, err
	}
	if s.R2, err = metrics.R2Score(t, p); err != nil {
		return nil, err
	}
	if s.ExplainedVariance, err = metrics.ExplainedVarianceScore(t, p); err != nil {
		return nil, err
	}
	if s.MAPE, err = metrics.MAPE(t, p); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteTo prints the three-line report.
func (s *Summary) WriteTo(w io.Writer) (int64, error) {
	n, err := fmt.Fprintf(w,
		"mean absolute error = %.2f\nroot mean squared error = %.2f\nR squared = %.2f\n",
		s.MAE, s.RMSE, s.R2)
	return int64(n), err
}

func (s *Summary) String() string {
	return fmt.Sprintf("n=%d mae=%.4f rmse=%.4f r2=%.4f", s.N, s.MAE, s.RMSE, s.R2)
}

// LogFields returns the summary as structured logging fields.
func (s *Summary) LogFields() []any {
	return []any{
		log.SamplesKey, s.N,
		log.MAEKey, s.MAE,
		log.RMSEKey, s.RMSE,
		log.R2ScoreKey, s.R2,
	}
}
