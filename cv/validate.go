package cv

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// Keys of the Scores map besides the test_<scorer> entries.
const (
	FitTimeKey   = "fit_time"
	ScoreTimeKey = "score_time"
)

// TestKey returns the Scores key holding the per-fold values of a scorer.
func TestKey(scorer string) string {
	return "test_" + scorer
}

// Scores maps fit_time, score_time and test_<scorer> to one value per fold.
type Scores map[string][]float64

// Mean returns the mean of the values under key, or 0 when absent.
func (s Scores) Mean(key string) float64 {
	v := s[key]
	if len(v) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// SelectRows copies the rows at idx into a new matrix.
func SelectRows(X mat.Matrix, idx []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

// SelectVec copies the elements at idx into a new vector.
func SelectVec(y mat.Vector, idx []int) *mat.VecDense {
	out := mat.NewVecDense(len(idx), nil)
	for i, r := range idx {
		out.SetVec(i, y.AtVec(r))
	}
	return out
}

// CrossValidate fits a fresh estimator from factory on each fold's train
// rows and scores it on the test rows with every named scorer.
func CrossValidate(factory model.Factory, X mat.Matrix, y mat.Vector, folds []CVFold, scoring []string) (Scores, error) {
	n, _ := X.Dims()
	if y.Len() != n {
		return nil, errors.NewDimensionError("CrossValidate", n, y.Len(), 0)
	}
	scorers := make([]metrics.Scorer, len(scoring))
	for i, name := range scoring {
		s, err := metrics.GetScorer(name)
		if err != nil {
			return nil, err
		}
		scorers[i] = s
	}

	logger := log.GetLoggerWithName("cv")
	scores := make(Scores, len(scoring)+2)
	for f, fold := range folds {
		Xtr, ytr := SelectRows(X, fold.TrainIndices), SelectVec(y, fold.TrainIndices)
		Xte, yte := SelectRows(X, fold.TestIndices), SelectVec(y, fold.TestIndices)

		est := factory()
		start := time.Now()
		if err := errors.SafeExecute("CrossValidate.Fit", func() error { return est.Fit(Xtr, ytr) }); err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		scores[FitTimeKey] = append(scores[FitTimeKey], time.Since(start).Seconds())

		start = time.Now()
		pred, err := est.Predict(Xte)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		yPred := metrics.ColumnVector(pred)
		for i, s := range scorers {
			v, err := s(yte, yPred)
			if err != nil {
				return nil, errors.Wrapf(err, "fold %d: %s", f, scoring[i])
			}
			scores[TestKey(scoring[i])] = append(scores[TestKey(scoring[i])], v)
		}
		scores[ScoreTimeKey] = append(scores[ScoreTimeKey], time.Since(start).Seconds())

		logger.Debug("fold scored",
			log.FoldKey, f,
			log.TrainKey, len(fold.TrainIndices),
			log.TestKey, len(fold.TestIndices),
		)
	}
	return scores, nil
}
