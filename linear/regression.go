// Package linear は最小二乗法による線形回帰を提供する
package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// Solver names recorded in LinearRegression.Solver.
const (
	SolverQR  = "qr"
	SolverSVD = "svd"
)

// maxCondition を超える条件数のQR解は信用せずSVDに切り替える
const maxCondition = 1e12

// LinearRegression は通常の最小二乗法による線形回帰モデル
//
// まずQR分解で解き、行数が係数の数より少ない場合や計画行列が
// ランク落ちしている場合はSVDによる最小ノルム解に切り替える。
// 切り替え時は SolverFallbackWarning を発行する。
type LinearRegression struct {
	State model.StateManager

	// Coef は各特徴量の係数
	Coef []float64

	// Intercept は切片
	Intercept float64

	// FitIntercept は切片を学習するかどうか (デフォルト: true)
	FitIntercept bool

	// Rcond はSVDのランク判定に用いる相対閾値
	Rcond float64

	// Solver は最後のFitで使われたソルバー
	Solver string
}

// NewLinearRegression は新しい線形回帰モデルを作成する
//
// 使用例:
//
//	lr := linear.NewLinearRegression()
//	err := lr.Fit(X, y)
//	predictions, err := lr.Predict(XTest)
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習する
//
// パラメータ:
//   - X: 特徴量行列 (n_samples × n_features)
//   - y: ターゲット (n_samples × 1)
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if rows != yRows {
		return errors.NewDimensionError("LinearRegression.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LinearRegression.Fit", 1, yCols, 1)
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", X, rows, cols); err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", y, yRows, 1); err != nil {
		return err
	}

	design := lr.designMatrix(X)
	_, dCols := design.Dims()

	coefficients := mat.NewDense(dCols, 1, nil)
	lr.Solver = SolverQR
	reason := ""
	if rows < dCols {
		reason = "fewer samples than coefficients"
	} else {
		var qr mat.QR
		qr.Factorize(design)
		if cond := qr.Cond(); cond > maxCondition {
			reason = fmt.Sprintf("ill-conditioned design matrix (cond=%.3g)", cond)
		} else if err := qr.SolveTo(coefficients, false, y); err != nil {
			reason = err.Error()
		} else if !allFinite(coefficients.RawMatrix().Data) {
			reason = "non-finite coefficients"
		}
	}

	if reason != "" {
		errors.Warn(errors.NewSolverFallbackWarning("LinearRegression", SolverQR, SolverSVD, reason))
		if err := lr.solveSVD(coefficients, design, y); err != nil {
			return err
		}
		lr.Solver = SolverSVD
	}

	if err := errors.CheckNumericalStability("LinearRegression.Fit", coefficients.RawMatrix().Data); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "numerical instability", err)
	}

	lr.Coef = make([]float64, cols)
	lr.Intercept = 0
	offset := 0
	if lr.FitIntercept {
		lr.Intercept = coefficients.At(0, 0)
		offset = 1
	}
	for j := 0; j < cols; j++ {
		lr.Coef[j] = coefficients.At(j+offset, 0)
	}

	lr.State.SetDimensions(cols, rows)
	lr.State.SetFitted()
	return nil
}

// designMatrix は切片を学習する場合 [1 | X] を返す
func (lr *LinearRegression) designMatrix(X mat.Matrix) *mat.Dense {
	rows, cols := X.Dims()
	if !lr.FitIntercept {
		return mat.DenseCopyOf(X)
	}
	design := mat.NewDense(rows, cols+1, nil)
	for i := 0; i < rows; i++ {
		design.Set(i, 0, 1.0)
		for j := 0; j < cols; j++ {
			design.Set(i, j+1, X.At(i, j))
		}
	}
	return design
}

// solveSVD は特異値分解による最小ノルム最小二乗解を dst に書き込む
func (lr *LinearRegression) solveSVD(dst, design *mat.Dense, y mat.Matrix) error {
	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "svd factorization failed", errors.ErrSingularMatrix)
	}

	rcond := lr.Rcond
	if rcond <= 0 {
		r, c := design.Dims()
		rcond = 2.220446049250313e-16 * float64(max(r, c))
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		return errors.NewModelError("LinearRegression.Fit", "design matrix has rank 0", errors.ErrSingularMatrix)
	}

	var sol mat.Dense
	svd.SolveTo(&sol, y, rank)
	dst.Copy(&sol)
	return nil
}

// Predict は入力データに対する予測を行う
//
// 戻り値は n_samples × 1 の行列。
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.State.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if rows == 0 {
		return nil, errors.NewModelError("LinearRegression.Predict", "empty data", errors.ErrEmptyData)
	}
	if cols != len(lr.Coef) {
		return nil, errors.NewDimensionError("LinearRegression.Predict", len(lr.Coef), cols, 1)
	}

	coef := mat.NewVecDense(cols, lr.Coef)
	pred := mat.NewVecDense(rows, nil)
	pred.MulVec(X, coef)
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, pred.AtVec(i)+lr.Intercept)
	}
	return out, nil
}

// IsFitted は学習済みかどうかを返す
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
