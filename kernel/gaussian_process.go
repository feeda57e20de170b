package kernel

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// GaussianProcessRegressor is a GP with an RBF kernel whose length scale is
// fitted by maximising the log-marginal likelihood.
type GaussianProcessRegressor struct {
	model.BaseEstimator

	LengthScale       float64
	LengthScaleBounds [2]float64
	Alpha             float64 // added to the kernel diagonal
	NRestarts         int
	NormalizeY        bool
	RandomState       int

	FittedLengthScale float64
	LogMarginalLik    float64
	XFit              *mat.Dense
	AlphaVec          *mat.VecDense // K⁻¹ y
	YMean             float64
	YStd              float64
}

// NewGaussianProcessRegressor creates a GP with RBF(lengthScale) bounded to
// [lo, hi].
func NewGaussianProcessRegressor(lengthScale, lo, hi float64) *GaussianProcessRegressor {
	return &GaussianProcessRegressor{
		LengthScale:       lengthScale,
		LengthScaleBounds: [2]float64{lo, hi},
		Alpha:             1e-10,
		YStd:              1,
	}
}

// GetParams returns the hyperparameters.
func (gp *GaussianProcessRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"kernel":               Kernel{Type: RBF, LengthScale: gp.LengthScale}.String(),
		"length_scale_bounds":  fmt.Sprintf("(%g, %g)", gp.LengthScaleBounds[0], gp.LengthScaleBounds[1]),
		"alpha":                gp.Alpha,
		"n_restarts_optimizer": gp.NRestarts,
		"normalize_y":          gp.NormalizeY,
		"random_state":         gp.RandomState,
	}
}

// lml holds what one log-marginal-likelihood evaluation needs.
type lml struct {
	d2    *mat.Dense // squared distances
	y     *mat.VecDense
	alpha float64
	n     int
}

// eval returns the log-marginal likelihood at length scale exp(logL) and
// its derivative with respect to logL.
func (l *lml) eval(logL float64) (float64, float64, bool) {
	ls := math.Exp(logL)
	K := mat.NewSymDense(l.n, nil)
	for i := 0; i < l.n; i++ {
		for j := i; j < l.n; j++ {
			v := math.Exp(-l.d2.At(i, j) / (2 * ls * ls))
			if i == j {
				v += l.alpha
			}
			K.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if !chol.Factorize(K) {
		return math.Inf(-1), 0, false
	}
	a := mat.NewVecDense(l.n, nil)
	if err := chol.SolveVecTo(a, l.y); err != nil {
		return math.Inf(-1), 0, false
	}
	value := -0.5*mat.Dot(l.y, a) - 0.5*chol.LogDet() - 0.5*float64(l.n)*math.Log(2*math.Pi)

	var Kinv mat.SymDense
	if err := chol.InverseTo(&Kinv); err != nil {
		return value, 0, true
	}
	// dK/dlogL = K_rbf ∘ D² / l²
	grad := 0.0
	for i := 0; i < l.n; i++ {
		for j := 0; j < l.n; j++ {
			kij := K.At(i, j)
			if i == j {
				kij -= l.alpha
			}
			dk := kij * l.d2.At(i, j) / (ls * ls)
			grad += (a.AtVec(i)*a.AtVec(j) - Kinv.At(i, j)) * dk
		}
	}
	return value, 0.5 * grad, true
}

// optimize runs L-BFGS on -LML in log space from logL0, clamped to bounds.
func (gp *GaussianProcessRegressor) optimize(l *lml, logL0, lo, hi float64) (float64, float64, error) {
	clamp := func(x float64) float64 { return math.Min(math.Max(x, lo), hi) }
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v, _, ok := l.eval(clamp(x[0]))
			if !ok {
				return math.Inf(1)
			}
			return -v
		},
		Grad: func(grad, x []float64) {
			c := clamp(x[0])
			_, g, ok := l.eval(c)
			if !ok || c != x[0] {
				g = 0
			}
			grad[0] = -g
		},
	}
	result, err := optimize.Minimize(problem, []float64{logL0}, nil, &optimize.LBFGS{})
	return optimumOf(result, err, clamp)
}

// optimumOf extracts the clamped optimum and its LML. Minimize reports
// line-search and iteration-limit failures alongside the best location
// found; those are kept and surfaced as convergence warnings.
func optimumOf(result *optimize.Result, err error, clamp func(float64) float64) (float64, float64, error) {
	if result == nil {
		return 0, 0, err
	}
	if err != nil {
		errors.Warn(errors.NewConvergenceWarning("GaussianProcessRegressor", result.Stats.MajorIterations, err.Error()))
	}
	return clamp(result.X[0]), -result.F, nil
}

// Fit normalises y if requested and fits the length scale, restarting the
// optimiser from log-uniform draws within the bounds.
func (gp *GaussianProcessRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianProcessRegressor.Fit")

	lo, hi := gp.LengthScaleBounds[0], gp.LengthScaleBounds[1]
	if lo <= 0 || hi < lo {
		return errors.NewValidationError("length_scale_bounds", "must satisfy 0 < lo <= hi", gp.LengthScaleBounds)
	}
	if gp.LengthScale <= 0 {
		return errors.NewValidationError("length_scale", "must be positive", gp.LengthScale)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("GaussianProcessRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv := metrics.ColumnVector(y)
	if yv.Len() != n {
		return errors.NewDimensionError("GaussianProcessRegressor.Fit", n, yv.Len(), 0)
	}

	gp.YMean, gp.YStd = 0, 1
	if gp.NormalizeY {
		mean, variance := stat.PopMeanVariance(yv.RawVector().Data, nil)
		gp.YMean = mean
		if variance > 0 {
			gp.YStd = math.Sqrt(variance)
		}
	}
	yn := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yn.SetVec(i, (yv.AtVec(i)-gp.YMean)/gp.YStd)
	}

	gp.XFit = mat.DenseCopyOf(X)
	l := &lml{d2: sqDists(gp.XFit), y: yn, alpha: gp.Alpha, n: n}
	logLo, logHi := math.Log(lo), math.Log(hi)

	bestLogL, bestLML := math.NaN(), math.Inf(-1)
	try := func(start float64) {
		x, v, err := gp.optimize(l, start, logLo, logHi)
		if err != nil {
			errors.Warn(errors.NewConvergenceWarning("GaussianProcessRegressor", 0, err.Error()))
			return
		}
		if v > bestLML {
			bestLogL, bestLML = x, v
		}
	}

	try(math.Log(gp.LengthScale))
	r := rand.New(rand.NewPCG(uint64(gp.RandomState), uint64(gp.RandomState)))
	for i := 0; i < gp.NRestarts; i++ {
		try(logLo + r.Float64()*(logHi-logLo))
	}
	if math.IsNaN(bestLogL) {
		return errors.NewModelError("GaussianProcessRegressor.Fit", "no optimiser run succeeded", errors.ErrSingularMatrix)
	}

	if err := errors.CheckScalar("GaussianProcessRegressor.lml", bestLML, 0); err != nil {
		return err
	}
	gp.FittedLengthScale = math.Exp(bestLogL)
	gp.LogMarginalLik = bestLML

	K := Kernel{Type: RBF, LengthScale: gp.FittedLengthScale}.Gram(gp.XFit, gp.XFit)
	for i := 0; i < n; i++ {
		K.Set(i, i, K.At(i, i)+gp.Alpha)
	}
	var chol mat.Cholesky
	if !chol.Factorize(mat.NewSymDense(n, K.RawMatrix().Data)) {
		return errors.NewModelError("GaussianProcessRegressor.Fit", "kernel matrix not positive definite", errors.ErrSingularMatrix)
	}
	gp.AlphaVec = mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(gp.AlphaVec, yn); err != nil {
		return errors.NewModelError("GaussianProcessRegressor.Fit", "solve failed", err)
	}
	if err := errors.CheckMatrix("GaussianProcessRegressor.alpha", gp.AlphaVec, 0); err != nil {
		return err
	}

	log.GetLoggerWithName("kernel").Debug("GP fitted",
		"length_scale", gp.FittedLengthScale,
		"log_marginal_likelihood", gp.LogMarginalLik,
	)
	gp.SetFitted()
	return nil
}

// Predict returns the posterior mean.
func (gp *GaussianProcessRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gp.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianProcessRegressor", "Predict")
	}
	r, c := X.Dims()
	if _, p := gp.XFit.Dims(); c != p {
		return nil, errors.NewDimensionError("GaussianProcessRegressor.Predict", p, c, 1)
	}
	Ks := Kernel{Type: RBF, LengthScale: gp.FittedLengthScale}.Gram(X, gp.XFit)
	mean := mat.NewVecDense(r, nil)
	mean.MulVec(Ks, gp.AlphaVec)
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, mean.AtVec(i)*gp.YStd+gp.YMean)
	}
	return out, nil
}
