package diamond

import (
	"bufio"
	"io"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/dataset"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

// Prediction is the output of one prediction run.
type Prediction struct {
	// Prices holds one predicted price per retained row, in input order.
	Prices []float64
	// Retained lists the original 0-based data row index of each price.
	Retained []int
	// NRaw is the number of data rows read before outlier filtering.
	NRaw int
}

// Predict loads the table at path and predicts a price for every row that
// survives the outlier filter. A price column, if present, is ignored.
func Predict(fs afero.Fs, path string, m *Model, opts ...Option) (*Prediction, error) {
	o := newOptions(opts)
	start := time.Now()

	if err := m.Validate(); err != nil {
		return nil, err
	}
	ds, err := dataset.Load(fs, path, dataset.WithSeparator(o.sep), dataset.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return nil, errors.NewModelError("diamond.Predict", "insufficient data",
			errors.Wrapf(errors.ErrEmptyData, "no rows of %s survived the outlier filter", path))
	}

	p, err := m.Pipeline()
	if err != nil {
		return nil, err
	}
	logger := o.logger.With(log.RunIDKey, m.RunID, log.RegressorKey, string(m.Kind))
	p.SetLogger(logger)

	pred, err := p.Predict(ds.Features)
	if err != nil {
		return nil, err
	}

	out := &Prediction{Prices: expColumn(pred), Retained: ds.Retained, NRaw: ds.NRaw}
	logger.Info("Prediction completed",
		log.OperationKey, log.OperationPredict,
		log.PathKey, path,
		log.RawRowsKey, ds.NRaw,
		log.PredsKey, len(out.Prices),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

// WritePredictions writes one price per line in %.18e notation. The file
// appears only once every line has been written.
func WritePredictions(fs afero.Fs, path string, prices []float64) error {
	return writeLines(fs, path, len(prices), func(i int, buf []byte) []byte {
		return strconv.AppendFloat(buf, prices[i], 'e', 18, 64)
	})
}

// WriteRetained writes the retained original row indices, one per line.
func WriteRetained(fs afero.Fs, path string, retained []int) error {
	return writeLines(fs, path, len(retained), func(i int, buf []byte) []byte {
		return strconv.AppendInt(buf, int64(retained[i]), 10)
	})
}

func writeLines(fs afero.Fs, path string, n int, appendLine func(i int, buf []byte) []byte) error {
	err := model.WriteFileAtomic(fs, path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		var buf []byte
		for i := 0; i < n; i++ {
			buf = append(appendLine(i, buf[:0]), '\n')
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
		return bw.Flush()
	})
	if err != nil {
		return errors.Wrapf(err, "diamond: write %s", path)
	}
	return nil
}
