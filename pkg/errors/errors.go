// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// scikit-learnの警告・例外システムにインスパイアされており、構造化されたエラー情報を提供します。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("diamondprice-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
//
// 直前のハンドラを返すので、テストなどで元に戻せます。
func SetWarningHandler(handler func(w error)) (previous func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	previous = warningHandler
	warningHandler = handler
	return previous
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// UndefinedMetricWarning は評価指標が計算できない場合に発生する警告です。
// 例えば、テストデータが1件しかなく決定係数の分母が0になる場合など。
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64 // この条件で返される値
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning は新しいUndefinedMetricWarningを作成します。
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// SolverFallbackWarning は主ソルバーが失敗し、代替ソルバーで解を求めた場合の警告です。
type SolverFallbackWarning struct {
	Model    string
	Primary  string
	Fallback string
	Reason   string
}

func (w *SolverFallbackWarning) Error() string {
	return fmt.Sprintf("%s: %s solver failed (%s); using %s instead", w.Model, w.Primary, w.Reason, w.Fallback)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *SolverFallbackWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("model_name", w.Model).
		Str("primary", w.Primary).
		Str("fallback", w.Fallback).
		Str("reason", w.Reason).
		Str("type", "SolverFallbackWarning")
}

// NewSolverFallbackWarning は新しいSolverFallbackWarningを作成します。
func NewSolverFallbackWarning(model, primary, fallback, reason string) *SolverFallbackWarning {
	return &SolverFallbackWarning{Model: model, Primary: primary, Fallback: fallback, Reason: reason}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NotFittedError はモデルが未学習の状態で `Predict` や `Transform` を呼び出した場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("diamondprice: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError は入力データの次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("diamondprice: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("diamondprice: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
// 例えば、`log`関数に負の数を渡した場合など。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("diamondprice: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError は機械学習モデルに関する一般的なエラーです。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diamondprice: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("diamondprice: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError は新しいModelErrorを作成し、スタックトレースを付与します。
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	入力テーブルとモデル成果物のエラー型
//
// ===========================================================================

// SchemaError は入力テーブルが期待する列構成・値を満たさない場合のエラーです。
// 列の欠落、数値列への非数値、未知のカテゴリ値などを表します。
type SchemaError struct {
	Column string
	Row    int    // 0始まりの行番号。行に依存しない場合は -1
	Value  string // 問題の値（オプション）
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("diamondprice: column '%s', row %d: %s (got: %q)", e.Column, e.Row, e.Reason, e.Value)
	}
	return fmt.Sprintf("diamondprice: column '%s': %s", e.Column, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Int("row", e.Row).
		Str("value", e.Value).
		Str("reason", e.Reason).
		Str("type", "SchemaError")
}

// NewSchemaError は列単位のSchemaErrorを作成します。
func NewSchemaError(column, reason string) error {
	return errors.WithStack(&SchemaError{Column: column, Row: -1, Reason: reason})
}

// NewSchemaValueError は特定の行・値に起因するSchemaErrorを作成します。
func NewSchemaValueError(column string, row int, value, reason string) error {
	return errors.WithStack(&SchemaError{Column: column, Row: row, Value: value, Reason: reason})
}

// SchemaMismatchError は保存済みモデルが期待する特徴量スキーマと、
// 現在の特徴量変換が生成するスキーマが一致しない場合のエラーです。
type SchemaMismatchError struct {
	Expected string
	Got      string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("diamondprice: feature schema mismatch: model was fitted with %s, current transformer produces %s", e.Got, e.Expected)
}

// NewSchemaMismatchError は新しいSchemaMismatchErrorを作成します。
// expected は現在の変換器のスキーマ、got は成果物に記録されたスキーマです。
func NewSchemaMismatchError(expected, got string) error {
	return errors.WithStack(&SchemaMismatchError{Expected: expected, Got: got})
}

// ArtifactVersionError はモデル成果物のフォーマットバージョンが未対応の場合のエラーです。
type ArtifactVersionError struct {
	Supported []int
	Got       int
}

func (e *ArtifactVersionError) Error() string {
	versions := make([]string, len(e.Supported))
	for i, v := range e.Supported {
		versions[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("diamondprice: unsupported model artifact version %d (supported: %s)", e.Got, strings.Join(versions, ", "))
}

// NewArtifactVersionError は新しいArtifactVersionErrorを作成します。
func NewArtifactVersionError(got int, supported ...int) error {
	return errors.WithStack(&ArtifactVersionError{Supported: supported, Got: got})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	数値計算のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// NaN、Inf、定義域外の対数などを検出します。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "log_price", "log_volume"）
	Values    []float64 // 問題のある値
	Index     int       // 発生した行番号（不明な場合は -1）
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("diamondprice: numerical instability detected in %s at index %d. Values: [%s]",
		e.Operation, e.Index, valStr)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("index", e.Index).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, index int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Index:     index,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix は特異行列の場合のエラーです。
	ErrSingularMatrix = New("singular matrix")
)
