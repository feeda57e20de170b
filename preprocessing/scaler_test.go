package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestStandardScalerFitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(scaler.Mean[0]-2.5) > 1e-12 {
		t.Errorf("Mean[0] = %v, want 2.5", scaler.Mean[0])
	}
	// population std of 1..4
	if math.Abs(scaler.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Scale[0] = %v", scaler.Scale[0])
	}
	// constant column keeps unit scale
	if scaler.Scale[1] != 1.0 {
		t.Errorf("Scale[1] = %v, want 1", scaler.Scale[1])
	}

	var sum float64
	for i := 0; i < 4; i++ {
		sum += out.At(i, 0)
		if out.At(i, 1) != 0 {
			t.Errorf("constant column should become 0, got %v", out.At(i, 1))
		}
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("standardized column should have zero mean, sum=%v", sum)
	}
}

func TestStandardScalerErrors(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if _, err := scaler.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected NotFittedError")
	}
	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	if _, err := scaler.Transform(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("expected DimensionError")
	}
}

func TestVarianceThreshold(t *testing.T) {
	X := mat.NewDense(3, 3, []float64{
		1, 5, 0.1,
		2, 5, 0.1,
		3, 5, 0.1000001,
	})

	vt := NewVarianceThreshold(1e-5)
	out, err := vt.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	if len(vt.Support) != 1 || vt.Support[0] != 0 {
		t.Fatalf("Support = %v, want [0]", vt.Support)
	}
	r, c := out.Dims()
	if r != 3 || c != 1 {
		t.Fatalf("dims = %d×%d, want 3×1", r, c)
	}
	if out.At(2, 0) != 3 {
		t.Errorf("out[2,0] = %v, want 3", out.At(2, 0))
	}
}

func TestVarianceThresholdNoFeatureLeft(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	if err := NewVarianceThreshold(1e-5).Fit(X); err == nil {
		t.Error("expected error when every feature is constant")
	}
}

func TestPCAKeepsAllComponentsByDefault(t *testing.T) {
	X := mat.NewDense(5, 3, []float64{
		2.5, 2.4, 1.0,
		0.5, 0.7, 2.0,
		2.2, 2.9, 1.5,
		1.9, 2.2, 0.5,
		3.1, 3.0, 1.2,
	})

	pca := NewPCA(0)
	out, err := pca.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	r, c := out.Dims()
	if r != 5 || c != 3 {
		t.Fatalf("dims = %d×%d, want 5×3", r, c)
	}
	for i := 1; i < len(pca.ExplainedVariance); i++ {
		if pca.ExplainedVariance[i] > pca.ExplainedVariance[i-1]+1e-12 {
			t.Errorf("explained variance not sorted: %v", pca.ExplainedVariance)
		}
	}

	// projected scores are centered
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += out.At(i, j)
		}
		if math.Abs(sum) > 1e-9 {
			t.Errorf("component %d not centered: %v", j, sum)
		}
	}

	// total variance is preserved by a full rotation
	var total, explained float64
	for j := 0; j < 3; j++ {
		col := mat.Col(nil, j, X)
		var mean float64
		for _, v := range col {
			mean += v
		}
		mean /= 5
		for _, v := range col {
			total += (v - mean) * (v - mean) / 4
		}
		explained += pca.ExplainedVariance[j]
	}
	if math.Abs(total-explained) > 1e-9 {
		t.Errorf("explained variance %v != total variance %v", explained, total)
	}
}

func TestPCAFewerSamplesThanFeatures(t *testing.T) {
	X := mat.NewDense(2, 4, []float64{
		1, 2, 3, 4,
		2, 1, 0, 5,
	})
	pca := NewPCA(0)
	out, err := pca.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}
	if _, c := out.Dims(); c != 2 {
		t.Errorf("expected 2 components, got %d", c)
	}
}
