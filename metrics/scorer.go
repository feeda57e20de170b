package metrics

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

// Scorer computes a greater-is-better score from true and predicted values.
type Scorer func(yTrue, yPred *mat.VecDense) (float64, error)

// Scorer names follow scikit-learn's scoring strings.
const (
	NegMeanAbsoluteError = "neg_mean_absolute_error"
	NegMeanSquaredError  = "neg_mean_squared_error"
	R2                   = "r2"
)

var scorers = map[string]Scorer{
	NegMeanAbsoluteError: func(yTrue, yPred *mat.VecDense) (float64, error) {
		v, err := MAE(yTrue, yPred)
		return -v, err
	},
	NegMeanSquaredError: func(yTrue, yPred *mat.VecDense) (float64, error) {
		v, err := MSE(yTrue, yPred)
		return -v, err
	},
	R2: R2Score,
}

// GetScorer looks up a scorer by name.
func GetScorer(name string) (Scorer, error) {
	s, ok := scorers[name]
	if !ok {
		return nil, errors.NewValidationError("scoring", "unknown scorer, known: "+strings.Join(ScorerNames(), ", "), name)
	}
	return s, nil
}

// ScorerNames returns the registered scorer names in sorted order.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for name := range scorers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
