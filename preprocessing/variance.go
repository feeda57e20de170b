package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// VarianceThreshold drops features whose training variance is not above
// Threshold.
type VarianceThreshold struct {
	model.BaseEstimator

	Threshold float64

	// Variances holds the population variance of each input feature.
	Variances []float64

	// Support lists the indices of the kept features, in input order.
	Support []int

	NFeatures int
}

// NewVarianceThreshold creates a VarianceThreshold.
func NewVarianceThreshold(threshold float64) *VarianceThreshold {
	return &VarianceThreshold{Threshold: threshold}
}

// Fit computes per-feature variances and the kept feature set.
func (v *VarianceThreshold) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("VarianceThreshold.Fit", "empty data", errors.ErrEmptyData)
	}

	v.NFeatures = c
	v.Variances = make([]float64, c)
	v.Support = v.Support[:0]

	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		_, v.Variances[j] = stat.PopMeanVariance(col, nil)
		if v.Variances[j] > v.Threshold {
			v.Support = append(v.Support, j)
		}
	}

	if len(v.Support) == 0 {
		return errors.NewValueError("VarianceThreshold.Fit",
			fmt.Sprintf("no feature in X meets the variance threshold %.5f", v.Threshold))
	}

	v.SetFitted()
	return nil
}

// Transform keeps only the supported features.
func (v *VarianceThreshold) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !v.IsFitted() {
		return nil, errors.NewNotFittedError("VarianceThreshold", "Transform")
	}

	r, c := X.Dims()
	if c != v.NFeatures {
		return nil, errors.NewDimensionError("VarianceThreshold.Transform", v.NFeatures, c, 1)
	}

	out := mat.NewDense(r, len(v.Support), nil)
	for i := 0; i < r; i++ {
		for k, j := range v.Support {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out, nil
}

// FitTransform fits and transforms X.
func (v *VarianceThreshold) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := v.Fit(X); err != nil {
		return nil, err
	}
	return v.Transform(X)
}

func (v *VarianceThreshold) String() string {
	return fmt.Sprintf("VarianceThreshold(threshold=%g)", v.Threshold)
}
