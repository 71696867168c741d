package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Train",
			kind:    "insufficient data",
			err:     fmt.Errorf("1 row after outlier filtering"),
			wantMsg: "diamondprice: Train: insufficient data: 1 row after outlier filtering",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "diamondprice: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("StandardScaler.Transform", 5, 4, 1)

	want := "diamondprice: StandardScaler.Transform: dimension mismatch on axis 1 (features). Expected 5, got 4"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	want := "diamondprice: LinearRegression: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestSchemaError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
		wantRow int
	}{
		{
			name:    "missing column",
			err:     NewSchemaError("clarity", "required column is missing"),
			wantMsg: "diamondprice: column 'clarity': required column is missing",
			wantRow: -1,
		},
		{
			name:    "unknown level",
			err:     NewSchemaValueError("color", 3, "Z", "unknown category"),
			wantMsg: `diamondprice: column 'color', row 3: unknown category (got: "Z")`,
			wantRow: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.wantMsg)
			}
			var schemaErr *SchemaError
			if !As(tt.err, &schemaErr) {
				t.Fatal("Error should be castable to *SchemaError")
			}
			if schemaErr.Row != tt.wantRow {
				t.Errorf("Row = %d, want %d", schemaErr.Row, tt.wantRow)
			}
		})
	}
}

func TestArtifactErrors(t *testing.T) {
	err := NewArtifactVersionError(3, 1, 2)
	if want := "diamondprice: unsupported model artifact version 3 (supported: 1, 2)"; err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	err = NewSchemaMismatchError("diamond/v2", "diamond/v1")
	var mismatch *SchemaMismatchError
	if !As(err, &mismatch) {
		t.Fatal("Error should be castable to *SchemaMismatchError")
	}
	if mismatch.Got != "diamond/v1" || mismatch.Expected != "diamond/v2" {
		t.Errorf("unexpected fields: %+v", mismatch)
	}
}

func TestStrictLog(t *testing.T) {
	got, err := StrictLog("log_price", math.E, 0)
	if err != nil {
		t.Fatalf("StrictLog(e) returned error: %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("StrictLog(e) = %v, want 1", got)
	}

	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := StrictLog("log_price", v, 7); err == nil {
			t.Errorf("StrictLog(%v) should fail", v)
		} else {
			var numErr *NumericalInstabilityError
			if !As(err, &numErr) || numErr.Index != 7 {
				t.Errorf("StrictLog(%v) error = %v, want NumericalInstabilityError at index 7", v, err)
			}
		}
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("exp", []float64{1, 2, 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckNumericalStability("exp", []float64{1, math.Inf(1), 3})
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Index != 1 {
		t.Errorf("Index = %d, want 1", numErr.Index)
	}
}

func TestWarnRoutesToHandler(t *testing.T) {
	var got []error
	prev := warningHandler
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(prev)

	Warn(NewUndefinedMetricWarning("r2_score", "fewer than two samples", math.NaN()))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "'r2_score' is ill-defined") {
		t.Errorf("unexpected warning: %v", got[0])
	}
}

func TestWrapfAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: %d rows", "Train", 1)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Train: 1 rows") {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}
