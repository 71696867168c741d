package diamond

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/diamondprice/ensemble"
	"github.com/YuminosukeSato/diamondprice/evaluate"
	"github.com/YuminosukeSato/diamondprice/features"
	"github.com/YuminosukeSato/diamondprice/pkg/errors"
	"github.com/YuminosukeSato/diamondprice/pkg/log"
)

var (
	cuts      = []string{"Fair", "Good", "Very Good", "Premium", "Ideal"}
	colors    = []string{"D", "E", "F", "G", "H", "I", "J"}
	clarities = []string{"I1", "SI2", "SI1", "VS2", "VS1", "VVS2", "VVS1", "IF"}
)

func quiet() Option {
	l, _ := log.NewTestLogger(log.LevelError)
	return WithLogger(l)
}

// synthetic returns a tab-separated table whose ln(price) is exactly linear
// in the engineered features.
func synthetic(n int, withPrice bool) string {
	var b strings.Builder
	b.WriteString("cut\tcolor\tclarity\ttable\tx\ty\tz")
	if withPrice {
		b.WriteString("\tprice")
	}
	b.WriteString("\n")
	for i := 0; i < n; i++ {
		cut := cuts[i%len(cuts)]
		color := colors[(i*3)%len(colors)]
		clarity := clarities[(i*5)%len(clarities)]
		table := float64(54 + i%6)
		x := 3.5 + float64(i%4)*0.25
		y := 3.6 + float64(i%3)*0.2
		z := 2.2 + float64(i%7)*0.05
		fmt.Fprintf(&b, "%s\t%s\t%s\t%g\t%g\t%g\t%g", cut, color, clarity, table, x, y, z)
		if withPrice {
			cc, _ := features.CutCode(cut)
			co, _ := features.ColorCode(color)
			cl, _ := features.ClarityCode(clarity)
			logPrice := 5 + math.Log(x*y*z) + 0.05*cl + 0.03*co + 0.02*cc + 0.001*table
			fmt.Fprintf(&b, "\t%.6f", math.Exp(logPrice))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestSplit_Sizes(t *testing.T) {
	tests := []struct {
		n, train, test int
	}{
		{20, 15, 5},
		{21, 15, 6},
		{4, 3, 1},
		{3, 2, 1},
		{2, 1, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			train, test, err := Split(tt.n, DefaultTestSize, DefaultSeed)
			require.NoError(t, err)
			assert.Len(t, train, tt.train)
			assert.Len(t, test, tt.test)

			all := slices.Concat(train, test)
			slices.Sort(all)
			for i, v := range all {
				assert.Equal(t, i, v)
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	train1, test1, err := Split(50, 0.25, 101)
	require.NoError(t, err)
	train2, test2, err := Split(50, 0.25, 101)
	require.NoError(t, err)
	assert.Equal(t, train1, train2)
	assert.Equal(t, test1, test2)

	_, test3, err := Split(50, 0.25, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1, test3)
}

func TestSplit_Errors(t *testing.T) {
	_, _, err := Split(1, 0.25, 101)
	var me *errors.ModelError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, "insufficient data", me.Kind)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	for _, size := range []float64{0, 1, -0.5, math.NaN()} {
		_, _, err := Split(10, size, 101)
		var ve *errors.ValidationError
		assert.True(t, errors.As(err, &ve), "test size %v: got %v", size, err)
	}
}

func TestTrain_LinearSmoke(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/train.tsv", synthetic(20, true))

	m, summary, err := Train(fs, "/train.tsv", false, quiet())
	require.NoError(t, err)

	assert.Equal(t, KindLinear, m.Kind)
	assert.NotNil(t, m.Linear)
	assert.Nil(t, m.Forest)
	assert.Equal(t, FormatVersion, m.FormatVersion)
	assert.True(t, m.Schema.Equal(features.Schema()))
	assert.NotEmpty(t, m.RunID)
	assert.Equal(t, DefaultSeed, m.Seed)
	assert.Equal(t, summary, m.Summary)
	assert.Equal(t, 20, m.NTrain+m.NTest)

	assert.Greater(t, summary.R2, 0.5)
	assert.Equal(t, m.NTest, summary.N)
	require.NoError(t, m.Validate())
}

func TestTrain_RandomForest(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/train.tsv", synthetic(40, true))

	m, summary, err := Train(fs, "/train.tsv", true, quiet(),
		WithForestOptions(ensemble.WithNEstimators(15)))
	require.NoError(t, err)

	assert.Equal(t, KindRandomForest, m.Kind)
	require.NotNil(t, m.Forest)
	assert.Len(t, m.Forest.Trees, 15)
	assert.Equal(t, DefaultSeed, m.Forest.RandomState)
	assert.Equal(t, ensemble.DefaultMaxDepth, m.Forest.Params.MaxDepth)
	assert.False(t, math.IsNaN(summary.MAE))
	assert.Greater(t, summary.MAE, 0.0)
}

func TestTrain_Errors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/noprice.tsv", synthetic(10, false))
	writeFile(t, fs, "/one.tsv", synthetic(1, true))

	_, _, err := Train(fs, "/noprice.tsv", false, quiet())
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "price", se.Column)

	_, _, err = Train(fs, "/one.tsv", false, quiet())
	assert.True(t, errors.Is(err, errors.ErrEmptyData), "got %v", err)

	_, _, err = Train(fs, "/missing.tsv", false, quiet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/missing.tsv")
}

func TestTrain_EveryRowFiltered(t *testing.T) {
	fs := afero.NewMemMapFs()
	in := "cut\tcolor\tclarity\ttable\tx\ty\tz\tprice\n" +
		"Ideal\tE\tSI1\tNaN\t3.9\t3.95\t2.4\t326\n" +
		"Premium\tE\tSI2\t61\tNaN\t3.8\t2.3\t327\n" +
		"Good\tF\tVS1\t58\t4.1\t4.0\tNaN\t340\n"
	writeFile(t, fs, "/filtered.tsv", in)

	_, _, err := Train(fs, "/filtered.tsv", false, quiet())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyData), "got %v", err)
	var me *errors.ModelError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, "insufficient data", me.Kind)
	var se *errors.SchemaError
	assert.False(t, errors.As(err, &se), "got %v", err)
}

func TestTrain_WritesPlot(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/train.tsv", synthetic(20, true))

	_, _, err := Train(fs, "/train.tsv", false, quiet(),
		WithPlot(evaluate.PlotConfig{Path: "/scatter.svg"}))
	require.NoError(t, err)
	ok, err := afero.Exists(fs, "/scatter.svg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, useTree := range []bool{false, true} {
		t.Run(fmt.Sprintf("tree=%v", useTree), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, "/train.tsv", synthetic(30, true))
			writeFile(t, fs, "/new.tsv", synthetic(12, false))

			m, _, err := Train(fs, "/train.tsv", useTree, quiet(),
				WithForestOptions(ensemble.WithNEstimators(10)))
			require.NoError(t, err)
			want, err := Predict(fs, "/new.tsv", m, quiet())
			require.NoError(t, err)

			require.NoError(t, Save(fs, "/model.gob", m))
			loaded, err := Load(fs, "/model.gob")
			require.NoError(t, err)
			assert.Equal(t, m.RunID, loaded.RunID)
			assert.Equal(t, m.Kind, loaded.Kind)

			got, err := Predict(fs, "/new.tsv", loaded, quiet())
			require.NoError(t, err)
			require.Len(t, got.Prices, len(want.Prices))
			for i := range want.Prices {
				assert.InEpsilon(t, want.Prices[i], got.Prices[i], 1e-9, "row %d", i)
			}
			assert.Equal(t, want.Retained, got.Retained)
		})
	}
}

func TestPredict_Deterministic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/train.tsv", synthetic(24, true))
	writeFile(t, fs, "/new.tsv", synthetic(9, true))

	m1, _, err := Train(fs, "/train.tsv", false, quiet())
	require.NoError(t, err)
	m2, _, err := Train(fs, "/train.tsv", false, quiet())
	require.NoError(t, err)
	assert.NotEqual(t, m1.RunID, m2.RunID)

	p1, err := Predict(fs, "/new.tsv", m1, quiet())
	require.NoError(t, err)
	p2, err := Predict(fs, "/new.tsv", m1, quiet())
	require.NoError(t, err)
	p3, err := Predict(fs, "/new.tsv", m2, quiet())
	require.NoError(t, err)

	if diff := cmp.Diff(p1, p2); diff != "" {
		t.Errorf("repeated prediction differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(p1, p3); diff != "" {
		t.Errorf("retrained model predicts differently (-first +second):\n%s", diff)
	}
	assert.Equal(t, 9, p1.NRaw)
	for _, price := range p1.Prices {
		assert.Greater(t, price, 0.0)
	}
}

func TestLoad_RejectsIncompatibleArtifacts(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/train.tsv", synthetic(20, true))
	m, _, err := Train(fs, "/train.tsv", false, quiet())
	require.NoError(t, err)

	t.Run("version", func(t *testing.T) {
		bad := *m
		bad.FormatVersion = FormatVersion + 1
		require.NoError(t, Save(fs, "/v.gob", &bad))
		_, err := Load(fs, "/v.gob")
		var ve *errors.ArtifactVersionError
		require.True(t, errors.As(err, &ve), "got %v", err)
		assert.Equal(t, FormatVersion+1, ve.Got)
	})

	t.Run("schema", func(t *testing.T) {
		bad := *m
		bad.Schema = features.Schema()
		slices.Reverse(bad.Schema.Columns)
		require.NoError(t, Save(fs, "/s.gob", &bad))
		_, err := Load(fs, "/s.gob")
		var se *errors.SchemaMismatchError
		require.True(t, errors.As(err, &se), "got %v", err)

		writeFile(t, fs, "/new.tsv", synthetic(5, false))
		_, err = Predict(fs, "/new.tsv", &bad, quiet())
		require.True(t, errors.As(err, &se), "got %v", err)
	})

	t.Run("missing regressor", func(t *testing.T) {
		bad := *m
		bad.Linear = nil
		var me *errors.ModelError
		require.True(t, errors.As(bad.Validate(), &me))
	})

	t.Run("garbage", func(t *testing.T) {
		writeFile(t, fs, "/garbage.gob", "not a model")
		_, err := Load(fs, "/garbage.gob")
		require.Error(t, err)
	})
}

func TestPredict_UnknownCategory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/train.tsv", synthetic(20, true))
	m, _, err := Train(fs, "/train.tsv", false, quiet())
	require.NoError(t, err)

	in := synthetic(6, false)
	in = strings.Replace(in, "Very Good", "Excellent", 1)
	writeFile(t, fs, "/bad.tsv", in)

	_, err = Predict(fs, "/bad.tsv", m, quiet())
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "cut", se.Column)
	assert.Equal(t, "Excellent", se.Value)
}

func TestWritePredictions(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WritePredictions(fs, "/preds.txt", []float64{326, 0.5}))
	data, err := afero.ReadFile(fs, "/preds.txt")
	require.NoError(t, err)
	assert.Equal(t, "3.260000000000000000e+02\n5.000000000000000000e-01\n", string(data))

	require.NoError(t, WriteRetained(fs, "/rows.txt", []int{0, 2, 7}))
	data, err = afero.ReadFile(fs, "/rows.txt")
	require.NoError(t, err)
	assert.Equal(t, "0\n2\n7\n", string(data))
}

func TestWritePredictions_FailureLeavesNoFile(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := WritePredictions(fs, "/preds.txt", []float64{1})
	require.Error(t, err)
	ok, _ := afero.Exists(fs, "/preds.txt")
	assert.False(t, ok)
}
