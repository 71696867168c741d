package diamond

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/dataset"
	"github.com/YuminosukeSato/diamondprice/ensemble"
	"github.com/YuminosukeSato/diamondprice/evaluate"
	"github.com/YuminosukeSato/diamondprice/features"
	"github.com/YuminosukeSato/diamondprice/linear"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
	"github.com/YuminosukeSato/diamondprice/pipeline"
	"github.com/YuminosukeSato/diamondprice/preprocessing"
)

// Train loads the table at path, splits it, fits the pipeline on the training
// rows and scores it on the held-out rows. useTree selects the random forest
// instead of linear regression.
//
// The table must have a price column. Metrics are reported on exp of the
// log-scale target and predictions.
func Train(fs afero.Fs, path string, useTree bool, opts ...Option) (*Model, *evaluate.Summary, error) {
	o := newOptions(opts)
	start := time.Now()

	ds, err := dataset.Load(fs, path, dataset.WithSeparator(o.sep), dataset.WithLogger(o.logger))
	if err != nil {
		return nil, nil, err
	}
	if !ds.HasTarget {
		return nil, nil, errors.NewSchemaError(dataset.TargetColumn, "required for training")
	}

	trainIdx, testIdx, err := Split(ds.Len(), o.testSize, o.seed)
	if err != nil {
		return nil, nil, err
	}
	trainDF, err := subsetFrame(ds.Features, trainIdx)
	if err != nil {
		return nil, nil, err
	}
	testDF, err := subsetFrame(ds.Features, testIdx)
	if err != nil {
		return nil, nil, err
	}

	m := &Model{
		FormatVersion: FormatVersion,
		Schema:        features.Schema(),
		RunID:         uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		Seed:          o.seed,
		Scaler:        preprocessing.NewStandardScalerDefault(),
		NTrain:        len(trainIdx),
		NTest:         len(testIdx),
	}
	var reg model.Regressor
	if useTree {
		m.Kind = KindRandomForest
		m.Forest = ensemble.NewRandomForestRegressor(append([]ensemble.Option{ensemble.WithRandomState(o.seed)}, o.forestOpts...)...)
		reg = m.Forest
	} else {
		m.Kind = KindLinear
		m.Linear = linear.NewLinearRegression()
		reg = m.Linear
	}

	logger := o.logger.With(log.RunIDKey, m.RunID, log.RegressorKey, string(m.Kind))
	logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PathKey, path,
		log.RandomSeedKey, o.seed,
		log.SamplesKey, ds.Len(),
	)

	p := pipeline.New(features.Featurizer{},
		pipeline.Step{Name: "scaler", Estimator: m.Scaler},
		pipeline.Step{Name: string(m.Kind), Estimator: reg},
	)
	p.SetLogger(logger)
	if err := p.Fit(trainDF, subsetTarget(ds.Target, trainIdx)); err != nil {
		return nil, nil, err
	}

	pred, err := p.Predict(testDF)
	if err != nil {
		return nil, nil, err
	}
	yTrue := make([]float64, len(testIdx))
	for i, j := range testIdx {
		yTrue[i] = math.Exp(ds.Target.AtVec(j))
	}
	yPred := expColumn(pred)

	summary, err := evaluate.Evaluate(yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	m.Summary = summary

	if o.plot.Path != "" {
		if err := evaluate.RenderScatter(fs, yTrue, yPred, o.plot); err != nil {
			return nil, nil, err
		}
		logger.Debug("Scatter written", log.PathKey, o.plot.Path)
	}

	logger.Info("Training completed", append(summary.LogFields(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)...)
	return m, summary, nil
}

func expColumn(m mat.Matrix) []float64 {
	out := mat.Col(nil, 0, m)
	for i, v := range out {
		out[i] = math.Exp(v)
	}
	return out
}
