// Package features turns raw diamond rows into the five-column model input
// [color, cut, clarity, log_volume, table].
//
// Transform is a pure function of its input. Zero or missing x, y and z are
// imputed with the mean of the other values in the same batch, so a
// prediction batch is imputed with its own statistics, not the training ones.
package features

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// Raw input columns.
const (
	ColCut     = "cut"
	ColColor   = "color"
	ColClarity = "clarity"
	ColTable   = "table"
	ColX       = "x"
	ColY       = "y"
	ColZ       = "z"
)

// ColLogVolume is the derived ln(x·y·z) feature.
const ColLogVolume = "log_volume"

// SchemaName and SchemaVersion identify the feature layout stored in model artifacts.
const (
	SchemaName    = "diamond"
	SchemaVersion = 1
)

var (
	outputColumns   = [...]string{ColColor, ColCut, ColClarity, ColLogVolume, ColTable}
	requiredColumns = [...]string{ColCut, ColColor, ColClarity, ColTable, ColX, ColY, ColZ}

	clarityCodes = map[string]float64{
		"I1": 1, "SI2": 2, "SI1": 3, "VS2": 4, "VS1": 5, "VVS2": 6, "VVS1": 7, "IF": 8,
	}
	cutCodes = map[string]float64{
		"Fair": 1, "Good": 2, "Very Good": 3, "Premium": 4, "Ideal": 5,
	}
	colorCodes = map[string]float64{
		"D": 7, "E": 6, "F": 5, "G": 4, "H": 3, "I": 2, "J": 1,
	}
)

// Columns returns the output column order.
func Columns() []string {
	return slices.Clone(outputColumns[:])
}

// RequiredColumns returns the raw columns Transform reads.
func RequiredColumns() []string {
	return slices.Clone(requiredColumns[:])
}

// ClarityCode maps a clarity grade (I1 worst … IF best) to 1…8.
func ClarityCode(level string) (float64, bool) {
	v, ok := clarityCodes[level]
	return v, ok
}

// CutCode maps a cut grade (Fair worst … Ideal best) to 1…5.
func CutCode(level string) (float64, bool) {
	v, ok := cutCodes[level]
	return v, ok
}

// ColorCode maps a color grade to 1…7 with D (best) = 7 and J (worst) = 1.
func ColorCode(level string) (float64, bool) {
	v, ok := colorCodes[level]
	return v, ok
}

// FeatureSchema identifies a feature layout.
type FeatureSchema struct {
	Name    string
	Version int
	Columns []string
}

// Schema returns the layout produced by Transform.
func Schema() FeatureSchema {
	return FeatureSchema{Name: SchemaName, Version: SchemaVersion, Columns: Columns()}
}

// Equal reports whether two schemas describe the same layout.
func (s FeatureSchema) Equal(o FeatureSchema) bool {
	return s.Name == o.Name && s.Version == o.Version && slices.Equal(s.Columns, o.Columns)
}

func (s FeatureSchema) String() string {
	return fmt.Sprintf("%s/v%d[%s]", s.Name, s.Version, strings.Join(s.Columns, ","))
}

// Transform builds the n×5 feature matrix from a raw table.
//
// Errors:
//   - SchemaError: a required column is missing, x/y/z/table is not numeric,
//     or a categorical value is not a known grade
//   - ValueError: the table has no rows, or every x (or y, z) value is missing
//   - NumericalInstabilityError: a volume is not strictly positive or a table value is missing
func Transform(df dataframe.DataFrame) (*mat.Dense, error) {
	if df.Err != nil {
		return nil, errors.NewSchemaError("*", df.Err.Error())
	}
	names := df.Names()
	for _, col := range requiredColumns {
		if !slices.Contains(names, col) {
			return nil, errors.NewSchemaError(col, "required column is missing")
		}
	}
	n := df.Nrow()
	if n == 0 {
		return nil, errors.NewValueError("features.Transform", "no rows to transform")
	}

	numeric := make(map[string][]float64, 4)
	for _, col := range []string{ColX, ColY, ColZ, ColTable} {
		s := df.Col(col)
		if t := s.Type(); t != series.Int && t != series.Float {
			return nil, errors.NewSchemaError(col, "non-numeric values in numeric column")
		}
		numeric[col] = s.Float()
	}
	for _, col := range []string{ColX, ColY, ColZ} {
		imputed, err := ImputeZeros(col, numeric[col])
		if err != nil {
			return nil, err
		}
		numeric[col] = imputed
	}

	color, err := encode(df, ColColor, ColorCode)
	if err != nil {
		return nil, err
	}
	cut, err := encode(df, ColCut, CutCode)
	if err != nil {
		return nil, err
	}
	clarity, err := encode(df, ColClarity, ClarityCode)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, len(outputColumns), nil)
	for i := 0; i < n; i++ {
		logVolume, err := errors.StrictLog("features.logVolume", numeric[ColX][i]*numeric[ColY][i]*numeric[ColZ][i], i)
		if err != nil {
			return nil, errors.Wrapf(err, "volume must be strictly positive (row %d)", i)
		}
		table := numeric[ColTable][i]
		if err := errors.CheckScalar("features.table", table, i); err != nil {
			return nil, err
		}
		out.SetRow(i, []float64{color[i], cut[i], clarity[i], logVolume, table})
	}
	return out, nil
}

// ImputeZeros replaces 0 and NaN with the mean of the remaining values.
func ImputeZeros(column string, values []float64) ([]float64, error) {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !missing(v) {
			present = append(present, v)
		}
	}
	if len(present) == 0 {
		return nil, errors.NewValueError("features.ImputeZeros", fmt.Sprintf("column %q has no non-zero values to impute from", column))
	}
	mean := stat.Mean(present, nil)

	out := make([]float64, len(values))
	for i, v := range values {
		if missing(v) {
			v = mean
		}
		out[i] = v
	}
	return out, nil
}

func missing(v float64) bool {
	return v == 0 || math.IsNaN(v)
}

func encode(df dataframe.DataFrame, column string, lookup func(string) (float64, bool)) ([]float64, error) {
	levels := df.Col(column).Records()
	codes := make([]float64, len(levels))
	for i, level := range levels {
		code, ok := lookup(level)
		if !ok {
			return nil, errors.NewSchemaValueError(column, i, level, "unknown category")
		}
		codes[i] = code
	}
	return codes, nil
}

// Featurizer adapts Transform to the first stage of a pipeline.
type Featurizer struct{}

// Transform implements the pipeline frame stage.
func (Featurizer) Transform(df dataframe.DataFrame) (mat.Matrix, error) {
	X, err := Transform(df)
	if err != nil {
		return nil, err
	}
	return X, nil
}

// Schema returns the layout the featurizer produces.
func (Featurizer) Schema() FeatureSchema {
	return Schema()
}
