package evaluate

import (
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/diamondprice/core/model"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

// Plot defaults.
const (
	DefaultFontSize = 14.0
	DefaultWidth    = 6 * 72.0
	DefaultHeight   = 6 * 72.0
)

// PlotConfig controls the diagnostic scatter. Sizes are in points. The image
// format follows the extension of Path (png, svg, pdf, jpg, eps, tif).
type PlotConfig struct {
	Path     string
	FontSize float64
	Width    float64
	Height   float64
}

func (c PlotConfig) withDefaults() PlotConfig {
	if c.FontSize <= 0 {
		c.FontSize = DefaultFontSize
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	return c
}

// TrendLine fits predicted = alpha + beta·true by least squares. ok is false
// when there are fewer than two points or every true value is the same.
func TrendLine(yTrue, yPred []float64) (alpha, beta float64, ok bool) {
	if len(yTrue) < 2 || len(yTrue) != len(yPred) {
		return 0, 0, false
	}
	if floats.Min(yTrue) == floats.Max(yTrue) {
		return 0, 0, false
	}
	alpha, beta = stat.LinearRegression(yTrue, yPred, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return 0, 0, false
	}
	return alpha, beta, true
}

// Scatter builds the true-vs-predicted price plot with its trend line.
func Scatter(yTrue, yPred []float64, cfg PlotConfig) (*plot.Plot, error) {
	if len(yTrue) == 0 {
		return nil, errors.NewValueError("evaluate.Scatter", "no samples to plot")
	}
	if len(yTrue) != len(yPred) {
		return nil, errors.NewDimensionError("evaluate.Scatter", len(yTrue), len(yPred), 0)
	}
	cfg = cfg.withDefaults()
	size := vg.Points(cfg.FontSize)

	p := plot.New()
	p.X.Label.Text = "True Price ($)"
	p.Y.Label.Text = "Predicted Price($)"
	p.X.Label.TextStyle.Font.Size = size
	p.Y.Label.TextStyle.Font.Size = size
	p.X.Tick.Label.Font.Size = size
	p.Y.Tick.Label.Font.Size = size

	pts := make(plotter.XYs, len(yTrue))
	for i := range yTrue {
		pts[i].X = yTrue[i]
		pts[i].Y = yPred[i]
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "evaluate: scatter points")
	}
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(2)
	sc.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(sc)

	if alpha, beta, ok := TrendLine(yTrue, yPred); ok {
		lo, hi := floats.Min(yTrue), floats.Max(yTrue)
		line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: alpha + beta*lo}, {X: hi, Y: alpha + beta*hi}})
		if err != nil {
			return nil, errors.Wrap(err, "evaluate: trend line")
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		p.Add(line)
	}
	return p, nil
}

// RenderScatter draws the scatter and writes it to cfg.Path on fs. The file
// is replaced atomically.
func RenderScatter(fs afero.Fs, yTrue, yPred []float64, cfg PlotConfig) error {
	if cfg.Path == "" {
		return errors.NewValidationError("plot path", "must not be empty", cfg.Path)
	}
	cfg = cfg.withDefaults()
	p, err := Scatter(yTrue, yPred, cfg)
	if err != nil {
		return err
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(cfg.Path)), ".")
	wt, err := p.WriterTo(vg.Points(cfg.Width), vg.Points(cfg.Height), format)
	if err != nil {
		return errors.Wrapf(err, "evaluate: unsupported plot format %q", format)
	}
	return model.WriteFileAtomic(fs, cfg.Path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}
