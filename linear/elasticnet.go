package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// ElasticNet は座標降下法による Elastic Net 回帰
//
// 目的関数:
//
//	1/(2n) ||y - Xw - b||² + λ (L1Ratio ||w||₁ + (1-L1Ratio)/2 ||w||²)
//
// λ は対数等間隔のパスで探索し、K-fold CV の R² で選ぶ。
// 予測には最良スコアから CutPoint 標準誤差以内で最大の λ (LambdaBest) を使う。
// L1Ratio=0 で ridge、1 で lasso になる。
type ElasticNet struct {
	model.BaseEstimator

	// ハイパーパラメータ
	L1Ratio        float64
	NLambda        int
	MinLambdaRatio float64
	NSplits        int
	CutPoint       float64
	Tol            float64
	MaxIter        int
	FitIntercept   bool
	RandomState    int

	// 学習結果
	Weights    *mat.VecDense
	Intercept  float64
	NFeatures  int
	LambdaPath []float64
	CVMean     []float64
	CVStdErr   []float64
	LambdaMax  float64 // 最良の平均スコアを持つ λ
	LambdaBest float64 // 予測に使う λ
}

// NewElasticNet creates an ElasticNet with glmnet-like defaults.
func NewElasticNet(opts ...Option) *ElasticNet {
	en := &ElasticNet{
		L1Ratio:      1,
		NLambda:      100,
		NSplits:      3,
		CutPoint:     1,
		Tol:          1e-7,
		MaxIter:      100000,
		FitIntercept: true,
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// GetParams returns the hyperparameters.
func (en *ElasticNet) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"l1_ratio":         en.L1Ratio,
		"n_lambda":         en.NLambda,
		"min_lambda_ratio": en.MinLambdaRatio,
		"n_splits":         en.NSplits,
		"cut_point":        en.CutPoint,
		"tol":              en.Tol,
		"max_iter":         en.MaxIter,
		"fit_intercept":    en.FitIntercept,
		"random_state":     en.RandomState,
	}
}

func (en *ElasticNet) validate() error {
	if en.L1Ratio < 0 || en.L1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in [0, 1]", en.L1Ratio)
	}
	if en.NLambda < 1 {
		return errors.NewValidationError("n_lambda", "must be positive", en.NLambda)
	}
	if en.NSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", en.NSplits)
	}
	if en.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", en.MaxIter)
	}
	return nil
}

// cdProblem は列優先で保持した中心化済みデータ
type cdProblem struct {
	n, p    int
	cols    [][]float64
	y       []float64
	xMean   []float64
	yMean   float64
	colNorm []float64 // (1/n) Σ x_ij²
}

func newCDProblem(X mat.Matrix, y mat.Vector, center bool) *cdProblem {
	n, p := X.Dims()
	pr := &cdProblem{
		n: n, p: p,
		cols:    make([][]float64, p),
		y:       make([]float64, n),
		xMean:   make([]float64, p),
		colNorm: make([]float64, p),
	}
	for i := 0; i < n; i++ {
		pr.y[i] = y.AtVec(i)
	}
	if center {
		pr.yMean = floats.Sum(pr.y) / float64(n)
		floats.AddConst(-pr.yMean, pr.y)
	}
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		mat.Col(col, j, X)
		if center {
			pr.xMean[j] = floats.Sum(col) / float64(n)
			floats.AddConst(-pr.xMean[j], col)
		}
		pr.cols[j] = col
		pr.colNorm[j] = floats.Dot(col, col) / float64(n)
	}
	return pr
}

// lambdaMax は全係数が 0 になる最小の λ
// ridge でも有限のパスになるよう L1Ratio は 1e-3 で下限を取る
func (pr *cdProblem) lambdaMax(l1Ratio float64) float64 {
	m := 0.0
	for j := 0; j < pr.p; j++ {
		m = math.Max(m, math.Abs(floats.Dot(pr.cols[j], pr.y))/float64(pr.n))
	}
	return m / math.Max(l1Ratio, 1e-3)
}

func softThreshold(z, gamma float64) float64 {
	switch {
	case z > gamma:
		return z - gamma
	case z < -gamma:
		return z + gamma
	default:
		return 0
	}
}

// path は λ の列に沿って warm start で係数を解き、各 λ の係数を返す
func (pr *cdProblem) path(lambdas []float64, l1Ratio, tol float64, maxIter int) [][]float64 {
	w := make([]float64, pr.p)
	r := append([]float64(nil), pr.y...)
	out := make([][]float64, len(lambdas))

	for k, lambda := range lambdas {
		l1 := lambda * l1Ratio
		l2 := lambda * (1 - l1Ratio)
		converged := false
		iter := 0
		for ; iter < maxIter; iter++ {
			maxDelta := 0.0
			for j := 0; j < pr.p; j++ {
				denom := pr.colNorm[j] + l2
				if denom == 0 {
					continue
				}
				old := w[j]
				rho := floats.Dot(pr.cols[j], r)/float64(pr.n) + pr.colNorm[j]*old
				w[j] = softThreshold(rho, l1) / denom
				if d := w[j] - old; d != 0 {
					floats.AddScaled(r, -d, pr.cols[j])
					maxDelta = math.Max(maxDelta, pr.colNorm[j]*d*d)
				}
			}
			if maxDelta < tol {
				converged = true
				break
			}
		}
		if !converged {
			errors.Warn(errors.NewConvergenceWarning("ElasticNet", iter,
				fmt.Sprintf("lambda=%.6g did not converge", lambda)))
		}
		out[k] = append([]float64(nil), w...)
	}
	return out
}

func (pr *cdProblem) intercept(w []float64) float64 {
	return pr.yMean - floats.Dot(pr.xMean, w)
}

func (en *ElasticNet) lambdaPath(lambdaMax float64, n, p int) []float64 {
	ratio := en.MinLambdaRatio
	if ratio <= 0 {
		ratio = 1e-4
		if n < p {
			ratio = 0.01
		}
	}
	if en.NLambda == 1 {
		return []float64{lambdaMax}
	}
	path := make([]float64, en.NLambda)
	floats.LogSpan(path, lambdaMax, lambdaMax*ratio)
	return path
}

func predictLinear(X mat.Matrix, w []float64, b float64) *mat.VecDense {
	n, _ := X.Dims()
	out := mat.NewVecDense(n, nil)
	wv := mat.NewVecDense(len(w), w)
	out.MulVec(X, wv)
	for i := 0; i < n; i++ {
		out.SetVec(i, out.AtVec(i)+b)
	}
	return out
}

// Fit はモデルを訓練データで学習させる
func (en *ElasticNet) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "ElasticNet.Fit")

	if err := en.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("ElasticNet.Fit", "empty data", errors.ErrEmptyData)
	}
	yv := metrics.ColumnVector(y)
	if yv.Len() != n {
		return errors.NewDimensionError("ElasticNet.Fit", n, yv.Len(), 0)
	}

	full := newCDProblem(X, yv, en.FitIntercept)
	lmax := full.lambdaMax(en.L1Ratio)
	if lmax == 0 {
		// y が定数: 係数は全て 0
		lmax = 1
	}
	en.LambdaPath = en.lambdaPath(lmax, n, p)

	// λ ごとの CV スコア
	folds, err := cv.NewKFold(en.NSplits, true, en.RandomState).Split(n, nil)
	if err != nil {
		return err
	}
	scores := make([][]float64, len(en.LambdaPath))
	for _, fold := range folds {
		Xtr, ytr := cv.SelectRows(X, fold.TrainIndices), cv.SelectVec(yv, fold.TrainIndices)
		Xte, yte := cv.SelectRows(X, fold.TestIndices), cv.SelectVec(yv, fold.TestIndices)
		pr := newCDProblem(Xtr, ytr, en.FitIntercept)
		ws := pr.path(en.LambdaPath, en.L1Ratio, en.Tol, en.MaxIter)
		for k, w := range ws {
			s, err := metrics.R2Score(yte, predictLinear(Xte, w, pr.intercept(w)))
			if err != nil {
				return err
			}
			scores[k] = append(scores[k], s)
		}
	}

	en.CVMean = make([]float64, len(scores))
	en.CVStdErr = make([]float64, len(scores))
	best := 0
	for k, s := range scores {
		mean := floats.Sum(s) / float64(len(s))
		sd := 0.0
		for _, v := range s {
			sd += (v - mean) * (v - mean)
		}
		en.CVMean[k] = mean
		en.CVStdErr[k] = math.Sqrt(sd/float64(len(s))) / math.Sqrt(float64(len(s)))
		if mean > en.CVMean[best] {
			best = k
		}
	}
	threshold := en.CVMean[best] - en.CutPoint*en.CVStdErr[best]
	chosen := best
	for k := 0; k <= best; k++ {
		if en.CVMean[k] >= threshold {
			chosen = k
			break
		}
	}
	en.LambdaMax = en.LambdaPath[best]
	en.LambdaBest = en.LambdaPath[chosen]

	ws := full.path(en.LambdaPath[:chosen+1], en.L1Ratio, en.Tol, en.MaxIter)
	w := ws[chosen]
	en.Weights = mat.NewVecDense(p, w)
	if err := errors.CheckMatrix("ElasticNet.weights", en.Weights, 0); err != nil {
		return err
	}
	en.Intercept = full.intercept(w)
	en.NFeatures = p

	log.GetLoggerWithName("linear").Debug("ElasticNet fitted",
		"lambda_best", en.LambdaBest,
		"lambda_max", en.LambdaMax,
		log.R2ScoreKey, en.CVMean[chosen],
	)
	en.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (en *ElasticNet) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !en.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNet", "Predict")
	}
	r, c := X.Dims()
	if c != en.NFeatures {
		return nil, errors.NewDimensionError("ElasticNet.Predict", en.NFeatures, c, 1)
	}
	pred := predictLinear(X, en.Weights.RawVector().Data, en.Intercept)
	return mat.NewDense(r, 1, pred.RawVector().Data), nil
}

// Coef は学習された係数を返す
func (en *ElasticNet) Coef() []float64 {
	if en.Weights == nil {
		return nil
	}
	return append([]float64(nil), en.Weights.RawVector().Data...)
}
