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

// GradientBoostingRegressor boosts depth-limited trees on the squared error
// with second-order leaf weights, L1 (RegAlpha) and L2 (RegLambda) leaf
// penalties. When EvalFraction is positive that share of the training rows
// is held out, scored with EvalMetric after every round, and training stops
// after EarlyStoppingRounds rounds without improvement. Prediction uses the
// trees up to the best round.
type GradientBoostingRegressor struct {
	model.BaseEstimator

	NEstimators         int
	MaxDepth            int
	LearningRate        float64
	RegLambda           float64
	RegAlpha            float64
	MinChildWeight      float64
	EarlyStoppingRounds int
	EvalFraction        float64
	EvalMetric          string
	RandomState         int

	BaseScore     float64
	Trees         []Tree
	BestIteration int
	EvalHistory   []float64
	NFeatures     int
}

// NewGradientBoostingRegressor creates a booster with 100 rounds, depth 6,
// eta 0.3 and lambda 1.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NEstimators:    100,
		MaxDepth:       6,
		LearningRate:   0.3,
		RegLambda:      1,
		MinChildWeight: 1,
		EvalMetric:     "mae",
	}
}

// SetParams sets max_depth, reg_alpha, reg_lambda, n_estimators or
// learning_rate.
func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for name, v := range params {
		var f float64
		switch x := v.(type) {
		case int:
			f = float64(x)
		case float64:
			f = x
		default:
			return errors.NewValidationError(name, "must be numeric", v)
		}
		switch name {
		case "max_depth":
			gb.MaxDepth = int(f)
		case "n_estimators":
			gb.NEstimators = int(f)
		case "reg_alpha":
			gb.RegAlpha = f
		case "reg_lambda":
			gb.RegLambda = f
		case "learning_rate":
			gb.LearningRate = f
		default:
			return errors.NewValidationError(name, "unknown parameter for GradientBoostingRegressor", v)
		}
	}
	return nil
}

// GetParams returns the hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":          gb.NEstimators,
		"max_depth":             gb.MaxDepth,
		"learning_rate":         gb.LearningRate,
		"reg_lambda":            gb.RegLambda,
		"reg_alpha":             gb.RegAlpha,
		"min_child_weight":      gb.MinChildWeight,
		"early_stopping_rounds": gb.EarlyStoppingRounds,
		"eval_set_percent":      gb.EvalFraction,
		"eval_metric":           gb.EvalMetric,
		"random_state":          gb.RandomState,
	}
}

func (gb *GradientBoostingRegressor) evalScore(yTrue, yPred *mat.VecDense) (float64, error) {
	switch gb.EvalMetric {
	case "mae":
		return metrics.MAE(yTrue, yPred)
	case "rmse":
		v, err := metrics.MSE(yTrue, yPred)
		return math.Sqrt(v), err
	default:
		return 0, errors.NewValidationError("eval_metric", "must be mae or rmse", gb.EvalMetric)
	}
}

// Fit boosts trees, optionally against a held-out evaluation split.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if gb.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", gb.NEstimators)
	}
	if gb.EvalFraction < 0 || gb.EvalFraction >= 1 {
		return errors.NewValidationError("eval_set_percent", "must be in [0, 1)", gb.EvalFraction)
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("GradientBoostingRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv := metrics.ColumnVector(y)
	if yv.Len() != n {
		return errors.NewDimensionError("GradientBoostingRegressor.Fit", n, yv.Len(), 0)
	}

	rows := rowsOf(X)
	rng := rand.New(rand.NewPCG(uint64(gb.RandomState), uint64(gb.RandomState)))
	perm := rng.Perm(n)
	nEval := int(math.Ceil(gb.EvalFraction * float64(n)))
	if nEval >= n {
		nEval = n - 1
	}
	evalIdx, trainIdx := perm[:nEval], perm[nEval:]

	gb.BaseScore = 0
	for _, i := range trainIdx {
		gb.BaseScore += yv.AtVec(i)
	}
	gb.BaseScore /= float64(len(trainIdx))

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = gb.BaseScore
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}
	g := &grower{
		rows: rows,
		grad: grad,
		hess: hess,
		params: growParams{
			MaxDepth:       gb.MaxDepth,
			MinSamplesLeaf: 1,
			MinChildWeight: gb.MinChildWeight,
			Lambda:         gb.RegLambda,
			Alpha:          gb.RegAlpha,
			LearningRate:   gb.LearningRate,
		},
		nFeat: p,
	}

	var es *EarlyStopping
	if nEval > 0 {
		es = NewEarlyStopping(gb.EarlyStoppingRounds, gb.EvalMetric)
	}
	yEval := mat.NewVecDense(max(nEval, 1), nil)
	for k, i := range evalIdx {
		yEval.SetVec(k, yv.AtVec(i))
	}
	pEval := mat.NewVecDense(max(nEval, 1), nil)

	gb.Trees = gb.Trees[:0]
	gb.EvalHistory = gb.EvalHistory[:0]
	gb.BestIteration = gb.NEstimators - 1
	for round := 0; round < gb.NEstimators; round++ {
		for _, i := range trainIdx {
			grad[i] = pred[i] - yv.AtVec(i)
		}
		tree := g.grow(trainIdx)
		gb.Trees = append(gb.Trees, tree)
		for i := 0; i < n; i++ {
			pred[i] += tree.Predict(rows[i])
		}

		if es == nil {
			continue
		}
		for k, i := range evalIdx {
			pEval.SetVec(k, pred[i])
		}
		score, err := gb.evalScore(yEval, pEval)
		if err != nil {
			return err
		}
		gb.EvalHistory = append(gb.EvalHistory, score)
		stop := es.Update(round, score)
		gb.BestIteration = es.BestIteration
		if stop {
			break
		}
	}
	if es != nil && !es.Enabled {
		gb.BestIteration = len(gb.Trees) - 1
	}
	gb.NFeatures = p

	leaves := 0
	for t := range gb.Trees {
		leaves += gb.Trees[t].NumLeaves()
	}
	log.GetLoggerWithName("ensemble").Debug("gradient boosting fitted",
		"rounds", len(gb.Trees),
		"n_leaves", leaves,
		"best_iteration", gb.BestIteration,
		log.HyperParamsKey, map[string]interface{}{"max_depth": gb.MaxDepth, "reg_alpha": gb.RegAlpha},
	)
	gb.SetFitted()
	return nil
}

// Predict sums the base score and the trees up to BestIteration.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != gb.NFeatures {
		return nil, errors.NewDimensionError("GradientBoostingRegressor.Predict", gb.NFeatures, c, 1)
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		v := gb.BaseScore
		for t := 0; t <= gb.BestIteration && t < len(gb.Trees); t++ {
			v += gb.Trees[t].Predict(row)
		}
		out.Set(i, 0, v)
	}
	return out, nil
}
