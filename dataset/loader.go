// Package dataset loads raw diamond tables, drops outlier rows and derives
// the log-price training target.
package dataset

import (
	"io"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/montanaflynn/stats"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

// TargetColumn is the raw price column. Its natural log is the training target.
const TargetColumn = "price"

// ZThreshold is the exclusive bound on |z| a numeric cell must stay under
// for its row to be kept.
const ZThreshold = 3.0

// Dataset is a loaded table after outlier filtering.
type Dataset struct {
	// Features holds the retained rows without the price column.
	Features dataframe.DataFrame
	// HasTarget reports whether the table had a price column.
	HasTarget bool
	// Target is ln(price) per retained row. It is nil when HasTarget is false
	// or when no row was retained.
	Target *mat.VecDense
	// Retained lists the original 0-based data row index of every retained row, in order.
	Retained []int
	// NRaw is the number of data rows read before filtering.
	NRaw int
}

// Len returns the number of retained rows.
func (d *Dataset) Len() int {
	return len(d.Retained)
}

type options struct {
	sep    rune
	logger log.Logger
}

// Option configures loading.
type Option func(*options)

// WithSeparator sets the field delimiter for delimited text. The default is tab.
func WithSeparator(sep rune) Option {
	return func(o *options) {
		o.sep = sep
	}
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{sep: '\t'}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.GetLoggerWithName("dataset")
	}
	return o
}

// Load reads the table at path from fs. Paths ending in .xlsx are read as
// workbooks; anything else as delimited text with a header row.
func Load(fs afero.Fs, path string, opts ...Option) (*Dataset, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	var ds *Dataset
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		ds, err = ReadXLSX(f, opts...)
	} else {
		ds, err = Read(f, opts...)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: load %s", path)
	}
	return ds, nil
}

// Read parses delimited text with a header row.
func Read(r io.Reader, opts ...Option) (*Dataset, error) {
	o := newOptions(opts)
	df := dataframe.ReadCSV(r,
		dataframe.WithDelimiter(o.sep),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	return fromFrame(df, o)
}

// ReadXLSX parses the first sheet of an .xlsx workbook. The first row is the header.
func ReadXLSX(r io.Reader, opts ...Option) (*Dataset, error) {
	o := newOptions(opts)
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "dataset: open workbook")
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewSchemaError("*", "workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: read sheet %s", sheets[0])
	}
	if len(rows) == 0 {
		return nil, errors.NewSchemaError("*", "sheet "+sheets[0]+" is empty")
	}

	// GetRows は末尾の空セルを省略するため、ヘッダー幅にそろえる
	width := len(rows[0])
	records := make([][]string, 0, len(rows))
	for i, row := range rows {
		if len(row) > width {
			return nil, errors.NewSchemaValueError("*", i-1, strings.Join(row, ","), "row is wider than the header")
		}
		padded := make([]string, width)
		copy(padded, row)
		records = append(records, padded)
	}
	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	return fromFrame(df, o)
}

func fromFrame(df dataframe.DataFrame, o *options) (*Dataset, error) {
	if df.Err != nil {
		return nil, errors.NewSchemaError("*", "parse table: "+df.Err.Error())
	}
	nRaw := df.Nrow()

	mask := OutlierMask(df)
	retained := make([]int, 0, nRaw)
	for i, keep := range mask {
		if keep {
			retained = append(retained, i)
		}
	}
	kept := df.Subset(retained)
	if kept.Err != nil {
		return nil, errors.Wrap(kept.Err, "dataset: select retained rows")
	}

	ds := &Dataset{Features: kept, Retained: retained, NRaw: nRaw}
	if slices.Contains(kept.Names(), TargetColumn) {
		target, err := logTarget(kept.Col(TargetColumn), retained)
		if err != nil {
			return nil, err
		}
		ds.HasTarget = true
		ds.Target = target
		ds.Features = kept.Drop(TargetColumn)
		if ds.Features.Err != nil {
			return nil, errors.NewSchemaError(TargetColumn, "table has no feature columns besides price")
		}
	}

	o.logger.Debug("Dataset loaded",
		log.RawRowsKey, nRaw,
		log.SamplesKey, len(retained),
		log.DroppedRowsKey, nRaw-len(retained),
	)
	return ds, nil
}

func logTarget(price series.Series, retained []int) (*mat.VecDense, error) {
	if !isNumeric(price.Type()) {
		return nil, errors.NewSchemaError(TargetColumn, "non-numeric values in numeric column")
	}
	values := price.Float()
	if len(values) == 0 {
		return nil, nil
	}
	target := make([]float64, len(values))
	for i, v := range values {
		lv, err := errors.StrictLog("dataset.logPrice", v, retained[i])
		if err != nil {
			return nil, errors.Wrapf(err, "price must be strictly positive (row %d)", retained[i])
		}
		target[i] = lv
	}
	return mat.NewVecDense(len(target), target), nil
}

// OutlierMask reports, for each row, whether every numeric column has
// |z| < ZThreshold, where z uses the column mean and population standard
// deviation. A constant column contributes z = 0, so it never drops rows and
// a single-row table survives. A missing numeric cell fails only its own row
// and is left out of its column's mean and deviation. Both differ from a
// plain z-score over the column, where a zero deviation or a NaN cell makes
// the whole column NaN and removes every row. A table without numeric
// columns keeps every row.
func OutlierMask(df dataframe.DataFrame) []bool {
	mask := make([]bool, df.Nrow())
	for i := range mask {
		mask[i] = true
	}

	names := df.Names()
	for c, t := range df.Types() {
		if !isNumeric(t) {
			continue
		}
		values := df.Col(names[c]).Float()
		present := make(stats.Float64Data, 0, len(values))
		for _, v := range values {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		mean, errMean := stats.Mean(present)
		sd, errSD := stats.StandardDeviationPopulation(present)
		for r, v := range values {
			if math.IsNaN(v) || errMean != nil || errSD != nil {
				mask[r] = false
				continue
			}
			if z := errors.SafeDivide(v-mean, sd); math.Abs(z) >= ZThreshold {
				mask[r] = false
			}
		}
	}
	return mask
}

func isNumeric(t series.Type) bool {
	return t == series.Int || t == series.Float
}
