package linear

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

func TestLinearRegression_Basic(t *testing.T) {
	// y = 2x + 1
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if math.Abs(lr.Coef()[0]-2) > 1e-9 {
		t.Errorf("Expected coefficient 2.0, got %f", lr.Coef()[0])
	}
	if math.Abs(lr.Intercept-1) > 1e-9 {
		t.Errorf("Expected intercept 1.0, got %f", lr.Intercept)
	}

	pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	expected := []float64{11, 13}
	for i := range expected {
		if math.Abs(pred.At(i, 0)-expected[i]) > 1e-9 {
			t.Errorf("Expected prediction %f, got %f", expected[i], pred.At(i, 0))
		}
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Failed to score: %v", err)
	}
	if math.Abs(score-1) > 1e-9 {
		t.Errorf("Expected R² 1.0, got %f", score)
	}
}

func TestLinearRegression_MultipleFeatures(t *testing.T) {
	// y = 2*x1 + 3*x2 + 1
	X := mat.NewDense(5, 2, []float64{
		1, 1,
		2, 1,
		3, 2,
		4, 2,
		5, 3,
	})
	y := mat.NewVecDense(5, []float64{6, 8, 13, 15, 20})

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	coef := lr.Coef()
	if math.Abs(coef[0]-2) > 1e-9 || math.Abs(coef[1]-3) > 1e-9 {
		t.Errorf("Expected coefficients [2 3], got %v", coef)
	}
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()

	if _, err := lr.Predict(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected NotFittedError")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %T", err)
		}
	}

	if err := lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewVecDense(2, []float64{1, 2})); err == nil {
		t.Error("expected dimension error")
	}

	if err := lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewVecDense(3, []float64{1, 2, 3})); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if _, err := lr.Predict(mat.NewDense(1, 2, []float64{1, 2})); err == nil {
		t.Error("expected feature mismatch error")
	}
}

func sparseData(n int) (*mat.Dense, *mat.VecDense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		f := float64(i)
		x0, x1, x2 := math.Sin(f), math.Cos(1.7*f), math.Sin(0.3*f+1)
		X.SetRow(i, []float64{x0, x1, x2})
		y.SetVec(i, 3*x0-2*x1+5+0.01*math.Sin(13*f))
	}
	return X, y
}

func TestElasticNet_Lasso(t *testing.T) {
	X, y := sparseData(60)
	en := NewElasticNet(WithL1Ratio(1), WithRandomState(200))
	if err := en.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	coef := en.Coef()
	if coef[0] < 2.5 || coef[1] > -1.5 {
		t.Errorf("informative coefficients too small: %v", coef)
	}
	if math.Abs(coef[2]) > 0.3 {
		t.Errorf("noise coefficient not shrunk: %v", coef)
	}
	if en.LambdaBest < en.LambdaMax {
		t.Errorf("LambdaBest %g should not be below LambdaMax %g", en.LambdaBest, en.LambdaMax)
	}
	if len(en.LambdaPath) != 100 || en.LambdaPath[0] <= en.LambdaPath[99] {
		t.Errorf("expected a decreasing path of 100 lambdas")
	}

	pred, err := en.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	var sse, sst float64
	for i := 0; i < y.Len(); i++ {
		d := y.AtVec(i) - pred.At(i, 0)
		sse += d * d
		m := y.AtVec(i) - 5
		sst += m * m
	}
	if 1-sse/sst < 0.9 {
		t.Errorf("training R² too low: %f", 1-sse/sst)
	}
}

func TestElasticNet_RidgeShrinksLessSparsely(t *testing.T) {
	X, y := sparseData(60)
	ridge := NewElasticNet(WithL1Ratio(0), WithRandomState(200))
	if err := ridge.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	for j, c := range ridge.Coef() {
		if math.IsNaN(c) {
			t.Errorf("coefficient %d is NaN", j)
		}
	}
	if ridge.Coef()[0] <= 0 || ridge.Coef()[1] >= 0 {
		t.Errorf("unexpected signs: %v", ridge.Coef())
	}
}

func TestElasticNet_ConstantTarget(t *testing.T) {
	X, _ := sparseData(20)
	y := mat.NewVecDense(20, nil)
	for i := 0; i < 20; i++ {
		y.SetVec(i, 42)
	}
	en := NewElasticNet(WithL1Ratio(0.5), WithNLambda(5))
	if err := en.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	for _, c := range en.Coef() {
		if c != 0 {
			t.Errorf("expected zero coefficients, got %v", en.Coef())
		}
	}
	if math.Abs(en.Intercept-42) > 1e-9 {
		t.Errorf("expected intercept 42, got %f", en.Intercept)
	}
}

func TestElasticNet_Validation(t *testing.T) {
	X, y := sparseData(10)
	tests := []struct {
		name string
		opt  Option
	}{
		{"l1 ratio above one", WithL1Ratio(1.5)},
		{"negative l1 ratio", WithL1Ratio(-0.1)},
		{"no lambdas", WithNLambda(0)},
		{"one split", WithNSplits(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewElasticNet(tt.opt).Fit(X, y); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if _, err := NewElasticNet().Predict(X); err == nil {
		t.Error("expected NotFittedError")
	}
}
