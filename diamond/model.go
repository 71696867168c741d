// Package diamond trains, persists and applies the diamond price model.
//
// Train fits featurizer → StandardScaler → regressor on ln(price) and reports
// held-out metrics in price units. Predict applies a saved Model to a new
// table and returns prices for the rows that survive the outlier filter.
package diamond

import (
	"time"

	"github.com/spf13/afero"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/ensemble"
	"github.com/YuminosukeSato/diamondprice/evaluate"
	"github.com/YuminosukeSato/diamondprice/features"
	"github.com/YuminosukeSato/diamondprice/linear"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pipeline"
	"github.com/YuminosukeSato/diamondprice/preprocessing"
)

// FormatVersion is the artifact layout written by Save and accepted by Load.
const FormatVersion = 1

// Kind names the regressor family stored in a Model.
type Kind string

const (
	KindLinear       Kind = "linear"
	KindRandomForest Kind = "random_forest"
)

// Model is the persisted artifact of one training run.
type Model struct {
	FormatVersion int
	Schema        features.FeatureSchema
	RunID         string
	CreatedAt     time.Time
	Kind          Kind
	Seed          uint64

	Scaler *preprocessing.StandardScaler
	Linear *linear.LinearRegression
	Forest *ensemble.RandomForestRegressor

	// Summary holds the held-out metrics of the training run. It is nil for
	// a model fitted on every row.
	Summary *evaluate.Summary
	NTrain  int
	NTest   int
}

// Regressor returns the fitted regressor for the model's kind.
func (m *Model) Regressor() (model.Regressor, error) {
	switch m.Kind {
	case KindLinear:
		if m.Linear != nil {
			return m.Linear, nil
		}
	case KindRandomForest:
		if m.Forest != nil {
			return m.Forest, nil
		}
	default:
		return nil, errors.NewValidationError("model kind", "unknown regressor kind", string(m.Kind))
	}
	return nil, errors.NewModelError("diamond.Model", "corrupt artifact",
		errors.Newf("no %s regressor stored", m.Kind))
}

// Validate checks the artifact version, the feature schema and that every
// stage is fitted.
func (m *Model) Validate() error {
	if m.FormatVersion != FormatVersion {
		return errors.NewArtifactVersionError(m.FormatVersion, FormatVersion)
	}
	if want := features.Schema(); !m.Schema.Equal(want) {
		return errors.NewSchemaMismatchError(want.String(), m.Schema.String())
	}
	if m.Scaler == nil || !m.Scaler.IsFitted() {
		return errors.NewModelError("diamond.Model", "corrupt artifact", errors.New("scaler is not fitted"))
	}
	if n := m.Scaler.NFeatures(); n != len(m.Schema.Columns) {
		return errors.NewDimensionError("diamond.Model", len(m.Schema.Columns), n, 1)
	}
	reg, err := m.Regressor()
	if err != nil {
		return err
	}
	if !reg.IsFitted() {
		return errors.NewModelError("diamond.Model", "corrupt artifact", errors.Newf("%s regressor is not fitted", m.Kind))
	}
	return nil
}

// Pipeline assembles the fitted stages into a ready-to-predict pipeline.
func (m *Model) Pipeline() (*pipeline.Pipeline, error) {
	reg, err := m.Regressor()
	if err != nil {
		return nil, err
	}
	return pipeline.New(features.Featurizer{},
		pipeline.Step{Name: "scaler", Estimator: m.Scaler},
		pipeline.Step{Name: string(m.Kind), Estimator: reg},
	), nil
}

// Save writes the model to path on fs. An existing file is replaced
// atomically.
func Save(fs afero.Fs, path string, m *Model) error {
	if err := model.SaveModel(fs, m, path); err != nil {
		return errors.Wrapf(err, "diamond: save model %s", path)
	}
	return nil
}

// Load reads a model from path on fs and validates it.
//
// Errors:
//   - ArtifactVersionError: the file was written with another FormatVersion
//   - SchemaMismatchError: the model was trained on another feature layout
func Load(fs afero.Fs, path string) (*Model, error) {
	var m Model
	if err := model.LoadModel(fs, &m, path); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "diamond: load model %s", path)
	}
	return &m, nil
}
