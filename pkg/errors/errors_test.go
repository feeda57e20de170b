package errors

import (
	"fmt"
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
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "brainage: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "brainage: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

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
	err := NewDimensionError("Predict", 3, 5, 1)
	want := "brainage: Predict: dimension mismatch on axis 1 (features). Expected 3, got 5"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 3 || dimErr.Got != 5 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("KernelRidge", "Predict")
	if !strings.Contains(err.Error(), "KernelRidge") || !strings.Contains(err.Error(), "Predict()") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("dataset_flag", "must be one of ixi, enki, camcan, 1000brains", "oasis")
	var vErr *ValidationError
	if !As(err, &vErr) {
		t.Fatal("Error should be castable to *ValidationError")
	}
	if vErr.Value != "oasis" {
		t.Errorf("Value = %v, want oasis", vErr.Value)
	}
}

func TestWarnRoutesToHandler(t *testing.T) {
	var got []error
	SetZerologWarnFunc(nil)
	SetWarningHandler(func(w error) { got = append(got, w) })
	t.Cleanup(func() {
		SetWarningHandler(func(w error) {})
	})

	Warn(NewConvergenceWarning("ElasticNet", 1000, ""))
	Warn(NewSplitWarning("StratifiedKFold", 5, 2))

	if len(got) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "ElasticNet failed to converge after 1000 iterations") {
		t.Errorf("unexpected warning: %v", got[0])
	}
	if !strings.Contains(got[1].Error(), "less than n_splits=5") {
		t.Errorf("unexpected warning: %v", got[1])
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrSingularMatrix, "solving kernel system")
	if !Is(wrapped, ErrSingularMatrix) {
		t.Error("wrapped error should match ErrSingularMatrix")
	}
	if !strings.Contains(wrapped.Error(), "solving kernel system") {
		t.Errorf("unexpected message: %v", wrapped)
	}

	wrappedf := Wrapf(ErrEmptyData, "reading %s", "features.csv")
	if !Is(wrappedf, ErrEmptyData) {
		t.Error("wrapped error should match ErrEmptyData")
	}
}

func TestCheckNumericalStability(t *testing.T) {
	if err := CheckNumericalStability("op", []float64{1, 2, 3}, 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	nan := 0.0
	nan = nan / nan
	err := CheckNumericalStability("op", []float64{1, nan}, 4)
	var numErr *NumericalInstabilityError
	if !As(err, &numErr) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if numErr.Iteration != 4 {
		t.Errorf("Iteration = %d, want 4", numErr.Iteration)
	}
}
