// Package preprocessing は特徴量行列の前処理を提供する
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// minScale 未満の標準偏差は1として扱う（定数列）
const minScale = 1e-8

// StandardScaler は特徴量を平均0、標準偏差1に変換する
//
// 標準偏差は母標準偏差（nで割る）を用いる。学習時に定数だった列の
// スケールは1となり、変換後は常に0になる。
type StandardScaler struct {
	State model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差
	Scale []float64

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
// 使用例:
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから各列の平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := errors.CheckMatrix("StandardScaler.Fit", X, r, c); err != nil {
		return err
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd {
			if sd := math.Sqrt(variance); sd >= minScale {
				s.Scale[j] = sd
			}
		}
	}

	s.State.SetDimensions(c, r)
	s.State.SetFitted()
	return nil
}

// Transform は学習済みの統計情報を使ってデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.check(X, "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// FitTransform はFitとTransformを続けて実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// IsFitted は学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool {
	return s.State.IsFitted()
}

// NFeatures は学習時の特徴量数を返す
func (s *StandardScaler) NFeatures() int {
	nf, _ := s.State.GetDimensions()
	return nf
}

func (s *StandardScaler) check(X mat.Matrix, method string) error {
	if err := s.State.RequireFitted("StandardScaler", method); err != nil {
		return err
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.NewModelError("StandardScaler."+method, "empty data", errors.ErrEmptyData)
	}
	if c != len(s.Mean) {
		return errors.NewDimensionError("StandardScaler."+method, len(s.Mean), c, 1)
	}
	return nil
}
