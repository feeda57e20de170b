package pipeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/kernel"
	"github.com/YuminosukeSato/brainage/linear"
	"github.com/YuminosukeSato/brainage/preprocessing"
)

func data() (*mat.Dense, *mat.VecDense) {
	n := 30
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		f := float64(i)
		// column 2 is constant and must be dropped
		X.SetRow(i, []float64{f, 100 + 3*math.Sin(f), 7})
		y.SetVec(i, 2*f+0.5*math.Sin(f)+20)
	}
	return X, y
}

func TestPipelineFitPredict(t *testing.T) {
	X, y := data()
	p := New(linear.NewLinearRegression(),
		Step{"variancethreshold", preprocessing.NewVarianceThreshold(1e-5)},
		Step{"zscore", preprocessing.NewStandardScalerDefault()},
		Step{"pca", preprocessing.NewPCA(0)},
	)

	_, err := p.Predict(X)
	assert.Error(t, err, "predict before fit")

	require.NoError(t, p.Fit(X, y))
	Xt, err := p.Transform(X)
	require.NoError(t, err)
	_, c := Xt.Dims()
	assert.Equal(t, 2, c, "constant column removed")

	pred, err := p.Predict(X)
	require.NoError(t, err)
	for i := 0; i < y.Len(); i++ {
		assert.InDelta(t, y.AtVec(i), pred.At(i, 0), 1e-6)
	}
	assert.Contains(t, p.String(), "variancethreshold -> zscore -> pca")
}

func TestPipelineSetParams(t *testing.T) {
	kr := kernel.NewKernelRidge()
	p := New(kr, Step{"zscore", preprocessing.NewStandardScalerDefault()})
	require.NoError(t, p.SetParams(map[string]interface{}{"alpha": 0.5, "degree": 2}))
	assert.Equal(t, 0.5, kr.Alpha)
	assert.Equal(t, 2.0, kr.Kernel.Degree)
	assert.Equal(t, 0.5, p.GetParams()["alpha"])

	lr := New(linear.NewLinearRegression())
	assert.Error(t, lr.SetParams(map[string]interface{}{"alpha": 1.0}))
}
