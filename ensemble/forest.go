package ensemble

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// RandomForestRegressor averages squared-error trees grown on bootstrap
// samples, each split considering a random subset of the features.
type RandomForestRegressor struct {
	model.BaseEstimator

	NEstimators    int
	MaxFeatures    float64 // fraction of the features per split
	MinSamplesLeaf int
	MaxDepth       int // 0 means unlimited
	Bootstrap      bool
	RandomState    int

	Trees     []Tree
	NFeatures int
}

// ForestOption configures a RandomForestRegressor
type ForestOption func(*RandomForestRegressor)

// WithNEstimators sets the number of trees
func WithNEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}

// WithMaxFeatures sets the fraction of features tried per split
func WithMaxFeatures(frac float64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxFeatures = frac }
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf
func WithMinSamplesLeaf(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesLeaf = n }
}

// WithForestMaxDepth limits tree depth
func WithForestMaxDepth(d int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = d }
}

// WithForestRandomState seeds bootstrapping and feature sampling
func WithForestRandomState(seed int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

// NewRandomForestRegressor creates a forest of 100 fully grown trees over
// all features.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:    100,
		MaxFeatures:    1,
		MinSamplesLeaf: 1,
		Bootstrap:      true,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.NEstimators,
		"max_features":     rf.MaxFeatures,
		"min_samples_leaf": rf.MinSamplesLeaf,
		"max_depth":        rf.MaxDepth,
		"bootstrap":        rf.Bootstrap,
		"random_state":     rf.RandomState,
	}
}

// Fit grows NEstimators trees sequentially from one seeded generator.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.NEstimators)
	}
	if rf.MaxFeatures <= 0 || rf.MaxFeatures > 1 {
		return errors.NewValidationError("max_features", "must be in (0, 1]", rf.MaxFeatures)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv := metrics.ColumnVector(y)
	if yv.Len() != n {
		return errors.NewDimensionError("RandomForestRegressor.Fit", n, yv.Len(), 0)
	}

	rows := rowsOf(X)
	// grad = -y, hess = 1: the gain is the SSE reduction and leaves hold means
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := 0; i < n; i++ {
		grad[i] = -yv.AtVec(i)
		hess[i] = 1
	}

	rng := rand.New(rand.NewPCG(uint64(rf.RandomState), uint64(rf.RandomState)))
	g := &grower{
		rows: rows,
		grad: grad,
		hess: hess,
		params: growParams{
			MaxDepth:       rf.MaxDepth,
			MinSamplesLeaf: rf.MinSamplesLeaf,
			MaxFeatures:    max(1, int(math.Floor(rf.MaxFeatures*float64(p)))),
			LearningRate:   1,
		},
		rng:   rng,
		nFeat: p,
	}

	rf.Trees = make([]Tree, rf.NEstimators)
	for t := range rf.Trees {
		sample := make([]int, n)
		for i := range sample {
			if rf.Bootstrap {
				sample[i] = rng.IntN(n)
			} else {
				sample[i] = i
			}
		}
		rf.Trees[t] = g.grow(sample)
	}
	rf.NFeatures = p

	leaves := 0
	for t := range rf.Trees {
		leaves += rf.Trees[t].NumLeaves()
	}
	log.GetLoggerWithName("ensemble").Debug("random forest fitted",
		"n_trees", len(rf.Trees),
		"n_leaves", leaves,
		log.FeaturesKey, p,
		log.SamplesKey, n,
	)
	rf.SetFitted()
	return nil
}

// Predict averages the tree predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeatures, c, 1)
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		sum := 0.0
		for t := range rf.Trees {
			sum += rf.Trees[t].Predict(row)
		}
		out.Set(i, 0, sum/float64(len(rf.Trees)))
	}
	return out, nil
}

// FeatureImportances returns the total gain per feature, normalised to sum
// to one.
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	imp := make([]float64, rf.NFeatures)
	total := 0.0
	for t := range rf.Trees {
		for _, n := range rf.Trees[t].Nodes {
			if !n.IsLeaf() {
				imp[n.SplitFeature] += n.Gain
				total += n.Gain
			}
		}
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}
