package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// RVR is a relevance vector machine for regression. The design matrix is
// the kernel between the training rows plus an optional bias column; basis
// functions whose precision exceeds ThresholdAlpha are pruned.
type RVR struct {
	model.BaseEstimator

	Kernel         Kernel
	NIter          int
	Tol            float64
	InitAlpha      float64
	ThresholdAlpha float64
	InitBeta       float64
	BiasUsed       bool

	NFeatures int
	Relevance *mat.Dense    // retained training rows, nil when only the bias is left
	Mean      *mat.VecDense // posterior weight mean, bias last when BiasUsed
	Alphas    []float64
	Beta      float64
	Bias      float64
	NIterRun  int
}

// NewRVR creates an RVR with the given kernel.
func NewRVR(k Kernel) *RVR {
	return &RVR{
		Kernel:         k,
		NIter:          3000,
		Tol:            1e-3,
		InitAlpha:      1e-6,
		ThresholdAlpha: 1e9,
		InitBeta:       1e-6,
		BiasUsed:       true,
	}
}

// GetParams returns the hyperparameters.
func (rv *RVR) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel":          rv.Kernel.String(),
		"n_iter":          rv.NIter,
		"tol":             rv.Tol,
		"threshold_alpha": rv.ThresholdAlpha,
	}
}

func (rv *RVR) design(X mat.Matrix, basis *mat.Dense, bias bool) *mat.Dense {
	if basis == nil {
		r, _ := X.Dims()
		ones := mat.NewDense(r, 1, nil)
		for i := 0; i < r; i++ {
			ones.Set(i, 0, 1)
		}
		return ones
	}
	K := rv.Kernel.Gram(X, basis)
	if !bias {
		return K
	}
	r, c := K.Dims()
	phi := mat.NewDense(r, c+1, nil)
	phi.Slice(0, r, 0, c).(*mat.Dense).Copy(K)
	for i := 0; i < r; i++ {
		phi.Set(i, c, 1)
	}
	return phi
}

// Fit runs the evidence re-estimation of the weight precisions and noise.
func (rv *RVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RVR.Fit")

	if err := rv.Kernel.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("RVR.Fit", "empty data", errors.ErrEmptyData)
	}
	yv := metrics.ColumnVector(y)
	if yv.Len() != n {
		return errors.NewDimensionError("RVR.Fit", n, yv.Len(), 0)
	}

	bias := rv.BiasUsed
	relevance := mat.DenseCopyOf(X)
	phi := rv.design(X, relevance, bias)
	_, m := phi.Dims()

	alpha := make([]float64, m)
	for i := range alpha {
		alpha[i] = rv.InitAlpha
	}
	alphaOld := append([]float64(nil), alpha...)
	beta := rv.InitBeta
	var mean *mat.VecDense

	iter := 0
	converged := false
	for ; iter < rv.NIter; iter++ {
		var sigma *mat.Dense
		sigma, mean, err = posterior(phi, yv, alpha, beta)
		if err != nil {
			return errors.Wrapf(err, "iteration %d", iter)
		}
		if err := errors.CheckMatrix("RVR.posterior", mean, iter); err != nil {
			return err
		}

		gamma := make([]float64, len(alpha))
		sumGamma := 0.0
		for i := range alpha {
			gamma[i] = 1 - alpha[i]*sigma.At(i, i)
			alpha[i] = gamma[i] / (mean.AtVec(i) * mean.AtVec(i))
			sumGamma += gamma[i]
		}
		var fit mat.VecDense
		fit.MulVec(phi, mean)
		fit.SubVec(yv, &fit)
		beta = (float64(n) - sumGamma) / mat.Dot(&fit, &fit)
		if err := errors.CheckScalar("RVR.beta", beta, iter); err != nil {
			return err
		}

		// prune
		keep := make([]bool, len(alpha))
		kept := false
		for i, a := range alpha {
			keep[i] = a < rv.ThresholdAlpha
			kept = kept || keep[i]
		}
		if !kept {
			keep[0] = true
			if bias {
				keep[len(keep)-1] = true
			}
		}
		if bias && !keep[len(keep)-1] {
			bias = false
		}
		relevance = keepRows(relevance, keep)
		phi = keepCols(phi, keep)
		alpha = keepFloats(alpha, keep)
		alphaOld = keepFloats(alphaOld, keep)
		mean = mat.NewVecDense(len(alpha), keepFloats(mean.RawVector().Data, keep))

		delta := 0.0
		for i := range alpha {
			delta = math.Max(delta, math.Abs(alpha[i]-alphaOld[i]))
		}
		if delta < rv.Tol && iter > 1 {
			converged = true
			break
		}
		alphaOld = append(alphaOld[:0], alpha...)
	}
	if !converged {
		errors.Warn(errors.NewConvergenceWarning("RVR", iter, ""))
	}

	rv.Relevance = relevance
	rv.Mean = mean
	rv.Alphas = alpha
	rv.Beta = beta
	rv.BiasUsed = bias
	rv.Bias = 0
	if bias {
		rv.Bias = mean.AtVec(mean.Len() - 1)
	}
	rv.NIterRun = iter

	rv.NFeatures = p
	nRel := 0
	if relevance != nil {
		nRel, _ = relevance.Dims()
	}
	log.GetLoggerWithName("kernel").Debug("RVR fitted",
		"relevance_vectors", nRel,
		log.IterationKey, iter,
	)
	rv.SetFitted()
	return nil
}

// posterior returns Σ = (diag(α) + β ΦᵀΦ)⁻¹ and μ = β Σ Φᵀ y.
func posterior(phi *mat.Dense, y *mat.VecDense, alpha []float64, beta float64) (*mat.Dense, *mat.VecDense, error) {
	_, m := phi.Dims()
	var A mat.Dense
	A.Mul(phi.T(), phi)
	A.Scale(beta, &A)
	for i := 0; i < m; i++ {
		A.Set(i, i, A.At(i, i)+alpha[i])
	}

	sigma := mat.NewDense(m, m, nil)
	var chol mat.Cholesky
	if chol.Factorize(mat.NewSymDense(m, A.RawMatrix().Data)) {
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err == nil {
			sigma.Copy(&inv)
		} else if err := sigma.Inverse(&A); err != nil {
			return nil, nil, errors.NewModelError("RVR.posterior", "singular precision matrix", errors.ErrSingularMatrix)
		}
	} else if err := sigma.Inverse(&A); err != nil {
		return nil, nil, errors.NewModelError("RVR.posterior", "singular precision matrix", errors.ErrSingularMatrix)
	}

	var pty mat.VecDense
	pty.MulVec(phi.T(), y)
	mean := mat.NewVecDense(m, nil)
	mean.MulVec(sigma, &pty)
	mean.ScaleVec(beta, mean)
	return sigma, mean, nil
}

func keepFloats(v []float64, keep []bool) []float64 {
	out := make([]float64, 0, len(v))
	for i, k := range keep {
		if k {
			out = append(out, v[i])
		}
	}
	return out
}

// keepRows keeps the rows of the basis; keep may carry a trailing bias flag.
// It returns nil when no row is kept.
func keepRows(X *mat.Dense, keep []bool) *mat.Dense {
	if X == nil {
		return nil
	}
	r, c := X.Dims()
	idx := make([]int, 0, r)
	for i := 0; i < r; i++ {
		if keep[i] {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil
	}
	out := mat.NewDense(len(idx), c, nil)
	for i, src := range idx {
		out.SetRow(i, X.RawRowView(src))
	}
	return out
}

func keepCols(X *mat.Dense, keep []bool) *mat.Dense {
	r, _ := X.Dims()
	idx := make([]int, 0, len(keep))
	for j, k := range keep {
		if k {
			idx = append(idx, j)
		}
	}
	out := mat.NewDense(r, len(idx), nil)
	for i := 0; i < r; i++ {
		for jj, j := range idx {
			out.Set(i, jj, X.At(i, j))
		}
	}
	return out
}

// Predict returns Φ(X, relevance) · μ.
func (rv *RVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rv.IsFitted() {
		return nil, errors.NewNotFittedError("RVR", "Predict")
	}
	r, c := X.Dims()
	if c != rv.NFeatures {
		return nil, errors.NewDimensionError("RVR.Predict", rv.NFeatures, c, 1)
	}
	phi := rv.design(X, rv.Relevance, rv.BiasUsed)
	out := mat.NewVecDense(r, nil)
	out.MulVec(phi, rv.Mean)
	return mat.NewDense(r, 1, out.RawVector().Data), nil
}
