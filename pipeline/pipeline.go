// Package pipeline chains a table featurizer, matrix transformers and a final
// regressor into one estimator.
//
//	p := pipeline.New(features.Featurizer{},
//		pipeline.Step{Name: "scaler", Estimator: preprocessing.NewStandardScalerDefault()},
//		pipeline.Step{Name: "regressor", Estimator: linear.NewLinearRegression()},
//	)
//	err := p.Fit(df, y)
//	pred, err := p.Predict(dfTest)
package pipeline

import (
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

// FrameStage turns a raw table into a numeric matrix. It holds no fitted state.
type FrameStage interface {
	Transform(df dataframe.DataFrame) (mat.Matrix, error)
}

// Step is one named stage after the frame stage.
// Intermediate steps must implement model.Transformer; the last step must
// implement model.Regressor.
type Step struct {
	Name      string
	Estimator interface{}
}

// Pipeline applies a frame stage, then every intermediate step's Transform,
// then the final step's Predict.
type Pipeline struct {
	state  *model.StateManager
	logger log.Logger

	frame FrameStage
	steps []Step
}

// New creates a pipeline. Steps may already be fitted (e.g. restored from an
// artifact), in which case Predict works without calling Fit.
func New(frame FrameStage, steps ...Step) *Pipeline {
	return &Pipeline{
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("Pipeline"),
		frame:  frame,
		steps:  steps,
	}
}

// SetLogger replaces the logger used for step timings.
func (p *Pipeline) SetLogger(l log.Logger) {
	p.logger = l
}

// validate checks the shape of the step list.
func (p *Pipeline) validate() error {
	if p.frame == nil {
		return errors.NewValidationError("pipeline frame stage", "must not be nil", nil)
	}
	if len(p.steps) == 0 {
		return errors.NewValidationError("pipeline steps", "at least a final regressor is required", 0)
	}
	seen := make(map[string]bool, len(p.steps))
	for i, step := range p.steps {
		if seen[step.Name] {
			return errors.NewValidationError("pipeline step", "duplicate step name", step.Name)
		}
		seen[step.Name] = true
		if i == len(p.steps)-1 {
			if _, ok := step.Estimator.(model.Regressor); !ok {
				return errors.NewValidationError("pipeline final step", "final step must be a regressor", step.Name)
			}
			continue
		}
		if _, ok := step.Estimator.(model.Transformer); !ok {
			return errors.NewValidationError("pipeline step", "all intermediate steps must be transformers", step.Name)
		}
	}
	return nil
}

// Fit runs the frame stage, fits and applies every intermediate transformer
// in order, then fits the final regressor on the result.
func (p *Pipeline) Fit(df dataframe.DataFrame, y mat.Matrix) error {
	if err := p.validate(); err != nil {
		return err
	}

	Xt, err := p.frame.Transform(df)
	if err != nil {
		return errors.Wrap(err, "failed to transform frame")
	}

	for _, step := range p.steps[:len(p.steps)-1] {
		start := time.Now()
		transformer := step.Estimator.(model.Transformer)
		Xt, err = transformer.FitTransform(Xt)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to fit step '%s'", step.Name))
		}
		p.logger.Debug("Step fitted",
			log.StepKey, step.Name,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}

	final := p.steps[len(p.steps)-1]
	start := time.Now()
	if err := final.Estimator.(model.Regressor).Fit(Xt, y); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to fit final step '%s'", final.Name))
	}
	p.logger.Debug("Step fitted",
		log.StepKey, final.Name,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	rows, cols := Xt.Dims()
	p.state.SetDimensions(cols, rows)
	p.state.SetFitted()
	return nil
}

// Transform applies the frame stage and every intermediate step, returning
// the matrix the final regressor sees.
func (p *Pipeline) Transform(df dataframe.DataFrame) (mat.Matrix, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Transform")
	}
	return p.transform(df)
}

func (p *Pipeline) transform(df dataframe.DataFrame) (mat.Matrix, error) {
	Xt, err := p.frame.Transform(df)
	if err != nil {
		return nil, errors.Wrap(err, "failed to transform frame")
	}
	for _, step := range p.steps[:len(p.steps)-1] {
		Xt, err = step.Estimator.(model.Transformer).Transform(Xt)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("failed to transform at step '%s'", step.Name))
		}
	}
	return Xt, nil
}

// Predict transforms df and predicts with the final regressor.
func (p *Pipeline) Predict(df dataframe.DataFrame) (mat.Matrix, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Pipeline", "Predict")
	}
	Xt, err := p.transform(df)
	if err != nil {
		return nil, err
	}
	final := p.steps[len(p.steps)-1]
	pred, err := final.Estimator.(model.Regressor).Predict(Xt)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("failed to predict with final step '%s'", final.Name))
	}
	return pred, nil
}

// IsFitted reports whether Fit has completed, or whether every step that
// tracks fitted state reports itself fitted.
func (p *Pipeline) IsFitted() bool {
	if p.state.IsFitted() {
		return true
	}
	if len(p.steps) == 0 {
		return false
	}
	for _, step := range p.steps {
		f, ok := step.Estimator.(interface{ IsFitted() bool })
		if !ok || !f.IsFitted() {
			return false
		}
	}
	return true
}
