// Package workflow drives model training and evaluation over nested
// cross-validation and collects out-of-fold predictions.
package workflow

import (
	"encoding/gob"
	"strings"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/ensemble"
	"github.com/YuminosukeSato/brainage/kernel"
	"github.com/YuminosukeSato/brainage/linear"
	"github.com/YuminosukeSato/brainage/pipeline"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/preprocessing"
)

// VarianceThreshold is the minimum feature variance kept by every workflow.
const VarianceThreshold = 1e-5

// ModelSpec is one entry of the model table.
type ModelSpec struct {
	ID    string
	Label string
	New   func(seed int) model.Regressor
	// Grid is searched with a GridSplits-fold KFold when non-nil.
	Grid       cv.ParamGrid
	GridSplits int
}

var modelTable = []ModelSpec{
	{
		ID: "lin_reg", Label: "LiR",
		New: func(int) model.Regressor { return linear.NewLinearRegression() },
	},
	{
		ID: "ridge", Label: "RR",
		New: func(seed int) model.Regressor {
			return linear.NewElasticNet(linear.WithL1Ratio(0), linear.WithRandomState(seed))
		},
	},
	{
		ID: "rf", Label: "RFR",
		New: func(seed int) model.Regressor {
			return ensemble.NewRandomForestRegressor(
				ensemble.WithNEstimators(500),
				ensemble.WithMaxFeatures(0.33),
				ensemble.WithMinSamplesLeaf(5),
				ensemble.WithForestRandomState(seed),
			)
		},
	},
	{
		ID: "rvr_lin", Label: "RVRlin",
		New: func(int) model.Regressor { return kernel.NewRVR(kernel.Kernel{Type: kernel.Linear}) },
	},
	{
		ID: "kernel_ridge", Label: "KRR",
		New: func(int) model.Regressor { return kernel.NewKernelRidge() },
		Grid: cv.ParamGrid{
			"alpha":  {0.0, 0.001, 0.01, 0.1, 0.5, 1.0, 10.0, 100.0, 1000.0},
			"degree": {1, 2},
		},
		GridSplits: 5,
	},
	{
		ID: "gauss", Label: "GPR",
		New: func(seed int) model.Regressor {
			gp := kernel.NewGaussianProcessRegressor(10, 1e-7, 1e8)
			gp.NRestarts = 100
			gp.NormalizeY = true
			gp.RandomState = seed
			return gp
		},
	},
	{
		ID: "lasso", Label: "LR",
		New: func(seed int) model.Regressor {
			return linear.NewElasticNet(linear.WithL1Ratio(1), linear.WithRandomState(seed))
		},
	},
	{
		ID: "elasticnet", Label: "ENR",
		New: func(seed int) model.Regressor {
			return linear.NewElasticNet(linear.WithL1Ratio(0.5), linear.WithRandomState(seed))
		},
	},
	{
		ID: "rvr_poly", Label: "RVRpoly",
		New: func(int) model.Regressor {
			return kernel.NewRVR(kernel.Kernel{Type: kernel.Polynomial, Degree: 1})
		},
	},
	{
		ID: "xgb", Label: "XGB",
		New: func(seed int) model.Regressor {
			gb := ensemble.NewGradientBoostingRegressor()
			gb.NEstimators = 100
			gb.EarlyStoppingRounds = 10
			gb.EvalFraction = 0.2
			gb.EvalMetric = "mae"
			gb.RandomState = seed
			return gb
		},
		Grid: cv.ParamGrid{
			"max_depth": {6, 8, 10, 12},
			"reg_alpha": {0.001, 0.01, 0.05, 0.1, 0.2},
		},
		GridSplits: 5,
	},
}

func init() {
	for _, v := range []interface{}{
		&linear.LinearRegression{},
		&linear.ElasticNet{},
		&ensemble.RandomForestRegressor{},
		&ensemble.GradientBoostingRegressor{},
		&kernel.KernelRidge{},
		&kernel.GaussianProcessRegressor{},
		&kernel.RVR{},
		&preprocessing.VarianceThreshold{},
		&preprocessing.StandardScaler{},
		&preprocessing.PCA{},
		&pipeline.Pipeline{},
		&cv.GridSearchCV{},
		&cv.KFold{},
	} {
		gob.Register(v)
	}
}

// Models returns the model table in order.
func Models() []ModelSpec {
	return append([]ModelSpec(nil), modelTable...)
}

// Lookup finds a model by identifier.
func Lookup(id string) (ModelSpec, error) {
	for _, m := range modelTable {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelSpec{}, errors.Wrapf(errors.ErrUnknownModel, "%q (known: %s)", id, strings.Join(ModelIDs(), ", "))
}

// ModelIDs returns the identifiers in table order.
func ModelIDs() []string {
	ids := make([]string, len(modelTable))
	for i, m := range modelTable {
		ids[i] = m.ID
	}
	return ids
}

// ParseModels splits a comma-separated model list and checks every entry.
func ParseModels(list string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(list, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, err := Lookup(id); err != nil {
			return nil, errors.NewValidationError("models", err.Error(), id)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.NewValidationError("models", "no model given", list)
	}
	return ids, nil
}

// NewWorkflow builds the pipeline for spec: variance threshold, z-score,
// optional PCA over all components, then the estimator. Models with a grid
// are wrapped in a grid search over the pipeline.
func NewWorkflow(spec ModelSpec, pca bool, seed int) model.Regressor {
	build := func() model.Regressor {
		steps := []pipeline.Step{
			{Name: "variancethreshold", Transformer: preprocessing.NewVarianceThreshold(VarianceThreshold)},
			{Name: "zscore", Transformer: preprocessing.NewStandardScalerDefault()},
		}
		if pca {
			steps = append(steps, pipeline.Step{Name: "pca", Transformer: preprocessing.NewPCA(0)})
		}
		return pipeline.New(spec.New(seed), steps...)
	}
	if spec.Grid == nil {
		return build()
	}
	return cv.NewGridSearchCV(build, spec.Grid, cv.NewKFold(spec.GridSplits, false, 0))
}

// Factory returns a model.Factory for spec.
func Factory(spec ModelSpec, pca bool, seed int) model.Factory {
	return func() model.Regressor { return NewWorkflow(spec, pca, seed) }
}
