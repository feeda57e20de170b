// Package kernel implements the kernel regressors of the model table:
// kernel ridge, Gaussian process and relevance vector regression.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// Kernel types.
const (
	Linear     = "linear"
	Polynomial = "poly"
	RBF        = "rbf"
)

// Kernel describes a positive semi-definite kernel function.
//
//	linear: <a, b>
//	poly:   (Gamma <a, b> + Coef0)^Degree
//	rbf:    exp(-||a - b||² / (2 LengthScale²))
//
// A zero Gamma means 1/n_features.
type Kernel struct {
	Type        string
	Gamma       float64
	Coef0       float64
	Degree      float64
	LengthScale float64
}

func (k Kernel) String() string {
	switch k.Type {
	case Polynomial:
		return fmt.Sprintf("poly(degree=%g, gamma=%g, coef0=%g)", k.Degree, k.Gamma, k.Coef0)
	case RBF:
		return fmt.Sprintf("RBF(length_scale=%.4g)", k.LengthScale)
	default:
		return k.Type
	}
}

func (k Kernel) validate() error {
	switch k.Type {
	case Linear:
	case Polynomial:
		if k.Degree < 0 {
			return errors.NewValidationError("degree", "must be non-negative", k.Degree)
		}
	case RBF:
		if k.LengthScale <= 0 {
			return errors.NewValidationError("length_scale", "must be positive", k.LengthScale)
		}
	default:
		return errors.NewValidationError("kernel", "unknown kernel", k.Type)
	}
	return nil
}

// Gram returns the kernel matrix K[i][j] = k(A_i, B_j).
func (k Kernel) Gram(A, B mat.Matrix) *mat.Dense {
	na, p := A.Dims()
	nb, _ := B.Dims()
	K := mat.NewDense(na, nb, nil)

	switch k.Type {
	case RBF:
		ls2 := 2 * k.LengthScale * k.LengthScale
		for i := 0; i < na; i++ {
			for j := 0; j < nb; j++ {
				d := 0.0
				for f := 0; f < p; f++ {
					diff := A.At(i, f) - B.At(j, f)
					d += diff * diff
				}
				K.Set(i, j, math.Exp(-d/ls2))
			}
		}
		return K
	}

	K.Mul(A, B.T())
	if k.Type == Polynomial {
		gamma := k.Gamma
		if gamma == 0 {
			gamma = 1 / float64(p)
		}
		K.Apply(func(_, _ int, v float64) float64 {
			return math.Pow(gamma*v+k.Coef0, k.Degree)
		}, K)
	}
	return K
}

// sqDists returns the squared Euclidean distances between the rows of A.
func sqDists(A mat.Matrix) *mat.Dense {
	n, p := A.Dims()
	D := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := 0.0
			for f := 0; f < p; f++ {
				diff := A.At(i, f) - A.At(j, f)
				d += diff * diff
			}
			D.Set(i, j, d)
			D.Set(j, i, d)
		}
	}
	return D
}

// toFloat accepts the numeric kinds a parameter grid may carry.
func toFloat(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	default:
		return 0, errors.NewValidationError(name, "must be numeric", v)
	}
}

func toDense(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}
