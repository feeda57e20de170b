package cv

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// ParamGrid maps a hyperparameter name to the values to try.
type ParamGrid map[string][]interface{}

// Combinations expands the grid into parameter sets. Keys are taken in
// sorted order with the last key varying fastest.
func (g ParamGrid) Combinations() []map[string]interface{} {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	combos := []map[string]interface{}{{}}
	for _, k := range keys {
		next := make([]map[string]interface{}, 0, len(combos)*len(g[k]))
		for _, c := range combos {
			for _, v := range g[k] {
				m := make(map[string]interface{}, len(c)+1)
				for ck, cv := range c {
					m[ck] = cv
				}
				m[k] = v
				next = append(next, m)
			}
		}
		combos = next
	}
	return combos
}

// GridResult is the cross-validated score of one parameter set.
type GridResult struct {
	Params    map[string]interface{}
	MeanScore float64
	StdScore  float64
}

// GridSearchCV searches ParamGrid exhaustively with the folds of CV and
// refits the best parameter set on the full data. It is itself a
// regressor; Predict delegates to BestEstimator.
type GridSearchCV struct {
	Factory model.Factory
	Grid    ParamGrid
	CV      Splitter
	Scoring string

	BestParams    map[string]interface{}
	BestScore     float64
	BestIndex     int
	BestEstimator model.Regressor
	Results       []GridResult
}

// NewGridSearchCV creates a grid search scored by R².
func NewGridSearchCV(factory model.Factory, grid ParamGrid, cv Splitter) *GridSearchCV {
	return &GridSearchCV{Factory: factory, Grid: grid, CV: cv, Scoring: metrics.R2}
}

func (gs *GridSearchCV) build(params map[string]interface{}) (model.Regressor, error) {
	est := gs.Factory()
	setter, ok := est.(model.ParameterSetter)
	if !ok {
		return nil, errors.NewValueError("GridSearchCV", fmt.Sprintf("%T does not accept parameters", est))
	}
	if err := setter.SetParams(params); err != nil {
		return nil, err
	}
	return est, nil
}

// Fit scores every parameter set and refits the best one on X, y. Ties go
// to the first set in grid order.
func (gs *GridSearchCV) Fit(X, y mat.Matrix) error {
	if gs.Factory == nil {
		return errors.NewValueError("GridSearchCV.Fit", "no estimator factory")
	}
	n, _ := X.Dims()
	yv := metrics.ColumnVector(y)
	folds, err := gs.CV.Split(n, nil)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("cv.grid")
	combos := gs.Grid.Combinations()
	gs.Results = make([]GridResult, 0, len(combos))
	gs.BestIndex = -1
	gs.BestScore = math.Inf(-1)

	for i, params := range combos {
		if _, err := gs.build(params); err != nil {
			return err
		}
		factory := func() model.Regressor {
			est, _ := gs.build(params) // validated above
			return est
		}
		scores, err := CrossValidate(factory, X, yv, folds, []string{gs.Scoring})
		if err != nil {
			return errors.Wrapf(err, "grid point %v", params)
		}
		vals := scores[TestKey(gs.Scoring)]
		mean := scores.Mean(TestKey(gs.Scoring))
		std := 0.0
		for _, v := range vals {
			std += (v - mean) * (v - mean)
		}
		std = math.Sqrt(std / float64(len(vals)))

		gs.Results = append(gs.Results, GridResult{Params: params, MeanScore: mean, StdScore: std})
		if mean > gs.BestScore {
			gs.BestScore, gs.BestIndex = mean, i
		}
		logger.Debug("grid point scored", log.HyperParamsKey, params, log.R2ScoreKey, mean)
	}
	if gs.BestIndex < 0 {
		return errors.NewValueError("GridSearchCV.Fit", "no parameter set produced a finite score")
	}

	gs.BestParams = combos[gs.BestIndex]
	best, err := gs.build(gs.BestParams)
	if err != nil {
		return err
	}
	if err := best.Fit(X, y); err != nil {
		return err
	}
	gs.BestEstimator = best
	logger.Info("grid search done", log.HyperParamsKey, gs.BestParams, log.R2ScoreKey, gs.BestScore)
	return nil
}

// Predict uses the refitted best estimator.
func (gs *GridSearchCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if gs.BestEstimator == nil {
		return nil, errors.NewNotFittedError("GridSearchCV", "Predict")
	}
	return gs.BestEstimator.Predict(X)
}
