package cv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// slopeModel predicts Slope * x0 + mean(y) - Slope * mean(x0).
type slopeModel struct {
	Slope  float64
	offset float64
	fitted bool
}

func (m *slopeModel) Fit(X, y mat.Matrix) error {
	n, _ := X.Dims()
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += X.At(i, 0)
		my += y.At(i, 0)
	}
	m.offset = my/float64(n) - m.Slope*mx/float64(n)
	m.fitted = true
	return nil
}

func (m *slopeModel) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.fitted {
		return nil, errors.NewNotFittedError("slopeModel", "Predict")
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, m.Slope*X.At(i, 0)+m.offset)
	}
	return out, nil
}

func (m *slopeModel) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "slope" {
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		m.Slope = v.(float64)
	}
	return nil
}

type panicModel struct{ slopeModel }

func (m *panicModel) Fit(X, y mat.Matrix) error {
	panic("index out of range")
}

// y = 2x + 1
func lineData(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.SetVec(i, 2*float64(i)+1)
	}
	return X, y
}

func TestCrossValidate(t *testing.T) {
	X, y := lineData(20)
	folds, err := NewKFold(4, false, 0).Split(20, nil)
	require.NoError(t, err)

	factory := func() model.Regressor { return &slopeModel{Slope: 2} }
	scores, err := CrossValidate(factory, X, y, folds,
		[]string{metrics.NegMeanAbsoluteError, metrics.NegMeanSquaredError, metrics.R2})
	require.NoError(t, err)

	for _, key := range []string{FitTimeKey, ScoreTimeKey, "test_neg_mean_absolute_error", "test_neg_mean_squared_error", "test_r2"} {
		assert.Len(t, scores[key], 4, key)
	}
	assert.InDelta(t, 0, scores.Mean(TestKey(metrics.NegMeanAbsoluteError)), 1e-9)
	assert.InDelta(t, 1, scores.Mean(TestKey(metrics.R2)), 1e-9)

	t.Run("unknown scorer", func(t *testing.T) {
		_, err := CrossValidate(factory, X, y, folds, []string{"accuracy"})
		assert.Error(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := CrossValidate(factory, X, mat.NewVecDense(3, nil), folds, []string{metrics.R2})
		assert.Error(t, err)
	})

	t.Run("panicking fit", func(t *testing.T) {
		panicking := func() model.Regressor { return &panicModel{} }
		_, err := CrossValidate(panicking, X, y, folds, []string{metrics.R2})
		var panicErr *errors.PanicError
		require.True(t, errors.As(err, &panicErr), "got %v", err)
		assert.Equal(t, "CrossValidate.Fit", panicErr.Operation)
		assert.Contains(t, err.Error(), "fold 0")
	})
}

func TestSelectRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	sub := SelectRows(X, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, sub.RawMatrix().Data)

	v := SelectVec(mat.NewVecDense(3, []float64{7, 8, 9}), []int{1})
	assert.Equal(t, 8.0, v.AtVec(0))
}

func TestParamGridCombinations(t *testing.T) {
	grid := ParamGrid{
		"degree": {1, 2},
		"alpha":  {0.1, 1.0, 10.0},
	}
	combos := grid.Combinations()
	require.Len(t, combos, 6)
	// keys sorted, last key fastest
	assert.Equal(t, map[string]interface{}{"alpha": 0.1, "degree": 1}, combos[0])
	assert.Equal(t, map[string]interface{}{"alpha": 0.1, "degree": 2}, combos[1])
	assert.Equal(t, map[string]interface{}{"alpha": 10.0, "degree": 2}, combos[5])
}

func TestGridSearchCV(t *testing.T) {
	X, y := lineData(30)
	factory := func() model.Regressor { return &slopeModel{} }
	gs := NewGridSearchCV(factory, ParamGrid{"slope": {0.5, 2.0, 3.0}}, NewKFold(5, false, 0))

	_, err := gs.Predict(X)
	assert.Error(t, err, "predict before fit")

	require.NoError(t, gs.Fit(X, y))
	assert.Equal(t, 2.0, gs.BestParams["slope"])
	assert.Equal(t, 1, gs.BestIndex)
	assert.Len(t, gs.Results, 3)
	assert.InDelta(t, 1, gs.BestScore, 1e-9)

	pred, err := gs.Predict(mat.NewDense(1, 1, []float64{100}))
	require.NoError(t, err)
	assert.InDelta(t, 201, pred.At(0, 0), 1e-9)

	t.Run("bad parameter", func(t *testing.T) {
		bad := NewGridSearchCV(factory, ParamGrid{"gamma": {1.0}}, NewKFold(5, false, 0))
		assert.Error(t, bad.Fit(X, y))
	})
}
