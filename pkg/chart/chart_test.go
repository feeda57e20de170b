package chart

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestScatterSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scatter.png")
	s := Scatter{
		Title:    "age",
		XLabel:   "true",
		YLabel:   "predicted",
		Identity: true,
		Series: []Series{
			{Name: "a", X: []float64{20, 30, 40}, Y: []float64{22, 29, math.NaN()}},
			{Name: "b", X: []float64{25, 35}, Y: []float64{24, 36}},
		},
	}
	if err := s.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("plot not written: %v", err)
	}
	if info.Size() == 0 {
		t.Error("plot is empty")
	}
}

func TestScatterLengthMismatch(t *testing.T) {
	s := Scatter{Series: []Series{{X: []float64{1, 2}, Y: []float64{1}}}}
	if err := s.Save(filepath.Join(t.TempDir(), "bad.png")); err == nil {
		t.Error("expected dimension error")
	}
}
