package model

import (
	"bytes"
	"io"
	"testing"

	"github.com/spf13/afero"

	"github.com/YuminosukeSato/diamondprice/pkg/errors"
)

type savedWeights struct {
	State     StateManager
	Coef      []float64
	Intercept float64
}

func TestSaveLoadModel_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/models", 0o755); err != nil {
		t.Fatal(err)
	}

	in := savedWeights{Coef: []float64{0.5, -1.25, 3}, Intercept: 7.5}
	in.State.SetDimensions(3, 20)
	in.State.SetFitted()

	if err := SaveModel(fs, &in, "/models/model.gob"); err != nil {
		t.Fatalf("SaveModel() error = %v", err)
	}

	var out savedWeights
	if err := LoadModel(fs, &out, "/models/model.gob"); err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if !out.State.IsFitted() {
		t.Error("fitted flag not restored")
	}
	if nf, ns := out.State.GetDimensions(); nf != 3 || ns != 20 {
		t.Errorf("dimensions = (%d, %d), want (3, 20)", nf, ns)
	}
	if out.Intercept != in.Intercept || len(out.Coef) != 3 || out.Coef[1] != -1.25 {
		t.Errorf("restored %+v, want %+v", &out, &in)
	}
}

func TestWriteFileAtomic_FailureLeavesNoFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/out", 0o755)

	writeErr := errors.New("disk full")
	err := WriteFileAtomic(fs, "/out/predictions.txt", func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return writeErr
	})
	if !errors.Is(err, writeErr) {
		t.Fatalf("err = %v, want %v", err, writeErr)
	}

	entries, err := afero.ReadDir(fs, "/out")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory not empty after failed write: %v", names)
	}
}

func TestWriteFileAtomic_ReplacesExisting(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/out.txt", []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := WriteFileAtomic(fs, "/out.txt", func(w io.Writer) error {
		_, err := w.Write([]byte("new"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := afero.ReadFile(fs, "/out.txt")
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestLoadModelFromReader_Garbage(t *testing.T) {
	var out savedWeights
	if err := LoadModelFromReader(&out, bytes.NewReader([]byte("not gob"))); err == nil {
		t.Error("expected decode error")
	}
}

func TestStateManager_RequireFitted(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("LinearRegression", "Predict")
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	s.SetFitted()
	if err := s.RequireFitted("LinearRegression", "Predict"); err != nil {
		t.Errorf("unexpected error after SetFitted: %v", err)
	}
	s.Reset()
	if s.IsFitted() {
		t.Error("Reset should clear fitted flag")
	}
}
