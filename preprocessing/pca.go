package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// PCA projects centered data onto its principal axes, computed with a thin
// SVD. NComponents <= 0 keeps min(n_samples, n_features) components.
type PCA struct {
	model.BaseEstimator

	NComponents int

	Mean []float64

	// Components is n_features × n_components; column k is the k-th axis.
	Components *mat.Dense

	// ExplainedVariance is the variance along each kept axis (ddof=1).
	ExplainedVariance []float64

	NFeatures int
}

// NewPCA creates a PCA. Pass 0 to keep all components.
func NewPCA(nComponents int) *PCA {
	return &PCA{NComponents: nComponents}
}

// Fit computes the principal axes of X.
func (p *PCA) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "PCA.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("PCA.Fit", "empty data", errors.ErrEmptyData)
	}

	maxComponents := min(r, c)
	k := p.NComponents
	if k <= 0 || k > maxComponents {
		k = maxComponents
	}

	p.NFeatures = c
	p.Mean = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		var sum float64
		for _, v := range col {
			sum += v
		}
		p.Mean[j] = sum / float64(r)
	}

	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(i, j int, v float64) float64 {
		return v - p.Mean[j]
	}, X)

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return errors.NewModelError("PCA.Fit", "SVD failed to converge", errors.ErrSingularMatrix)
	}

	var v mat.Dense
	svd.VTo(&v)
	values := svd.Values(nil)

	p.Components = mat.DenseCopyOf(v.Slice(0, c, 0, k))
	p.ExplainedVariance = make([]float64, k)
	for i := 0; i < k; i++ {
		if r > 1 {
			p.ExplainedVariance[i] = values[i] * values[i] / float64(r-1)
		}
	}

	p.SetFitted()
	return nil
}

// Transform projects X onto the fitted components.
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("PCA", "Transform")
	}

	r, c := X.Dims()
	if c != p.NFeatures {
		return nil, errors.NewDimensionError("PCA.Transform", p.NFeatures, c, 1)
	}

	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(i, j int, v float64) float64 {
		return v - p.Mean[j]
	}, X)

	var out mat.Dense
	out.Mul(centered, p.Components)
	return &out, nil
}

// FitTransform fits and transforms X.
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

func (p *PCA) String() string {
	if p.NComponents <= 0 {
		return "PCA(n_components=None)"
	}
	return fmt.Sprintf("PCA(n_components=%d)", p.NComponents)
}
