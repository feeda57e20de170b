package kernel

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// KernelRidge solves (K + Alpha I) c = y and predicts K(X, X_train) c.
// There is no intercept.
type KernelRidge struct {
	model.BaseEstimator

	Alpha  float64
	Kernel Kernel

	DualCoef *mat.VecDense
	XFit     *mat.Dense
}

// NewKernelRidge creates a polynomial kernel ridge with Alpha 1, degree 3
// and coef0 1.
func NewKernelRidge() *KernelRidge {
	return &KernelRidge{
		Alpha:  1,
		Kernel: Kernel{Type: Polynomial, Degree: 3, Coef0: 1},
	}
}

// SetParams sets alpha, degree, gamma, coef0 or kernel.
func (kr *KernelRidge) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		if name == "kernel" {
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(name, "must be a string", v)
			}
			kr.Kernel.Type = s
			continue
		}
		f, err := toFloat(name, v)
		if err != nil {
			return err
		}
		switch name {
		case "alpha":
			kr.Alpha = f
		case "degree":
			kr.Kernel.Degree = f
		case "gamma":
			kr.Kernel.Gamma = f
		case "coef0":
			kr.Kernel.Coef0 = f
		default:
			return errors.NewValidationError(name, "unknown parameter for KernelRidge", v)
		}
	}
	return nil
}

// GetParams returns the hyperparameters.
func (kr *KernelRidge) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":  kr.Alpha,
		"kernel": kr.Kernel.String(),
	}
}

// Fit computes the dual coefficients. A singular system (e.g. Alpha 0) is
// solved in the least-squares sense with a warning.
func (kr *KernelRidge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KernelRidge.Fit")

	if kr.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", kr.Alpha)
	}
	if err := kr.Kernel.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("KernelRidge.Fit", "empty data", errors.ErrEmptyData)
	}
	yv := metrics.ColumnVector(y)
	if yv.Len() != n {
		return errors.NewDimensionError("KernelRidge.Fit", n, yv.Len(), 0)
	}

	kr.XFit = mat.DenseCopyOf(X)
	K := kr.Kernel.Gram(kr.XFit, kr.XFit)
	for i := 0; i < n; i++ {
		K.Set(i, i, K.At(i, i)+kr.Alpha)
	}

	kr.DualCoef = mat.NewVecDense(n, nil)
	var chol mat.Cholesky
	if chol.Factorize(mat.NewSymDense(n, K.RawMatrix().Data)) {
		if err := chol.SolveVecTo(kr.DualCoef, yv); err == nil {
			kr.SetFitted()
			return nil
		}
	}

	errors.Warn(errors.NewConvergenceWarning("KernelRidge", 0,
		"singular kernel matrix, using least-squares solution"))
	var svd mat.SVD
	if !svd.Factorize(K, mat.SVDThin) {
		return errors.NewModelError("KernelRidge.Fit", "SVD failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return errors.NewModelError("KernelRidge.Fit", "zero kernel matrix", errors.ErrSingularMatrix)
	}
	var sol mat.Dense
	svd.SolveTo(&sol, yv, rank)
	for i := 0; i < n; i++ {
		kr.DualCoef.SetVec(i, sol.At(i, 0))
	}
	kr.SetFitted()
	return nil
}

// Predict returns K(X, X_train) · DualCoef.
func (kr *KernelRidge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !kr.IsFitted() {
		return nil, errors.NewNotFittedError("KernelRidge", "Predict")
	}
	r, c := X.Dims()
	if _, p := kr.XFit.Dims(); c != p {
		return nil, errors.NewDimensionError("KernelRidge.Predict", p, c, 1)
	}
	K := kr.Kernel.Gram(X, kr.XFit)
	out := mat.NewVecDense(r, nil)
	out.MulVec(K, kr.DualCoef)
	return mat.NewDense(r, 1, out.RawVector().Data), nil
}
