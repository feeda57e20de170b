package workflow

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/brainage/core/model"
	"github.com/YuminosukeSato/brainage/cv"
	"github.com/YuminosukeSato/brainage/dataset"
	"github.com/YuminosukeSato/brainage/metrics"
	"github.com/YuminosukeSato/brainage/pipeline"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

// Scoring is the inner-CV scorer list.
var Scoring = []string{metrics.NegMeanAbsoluteError, metrics.NegMeanSquaredError, metrics.R2}

// AgeBins is the number of equal-width age bins stratifying the inner CV.
const AgeBins = 5

// TrainConfig configures one training run.
type TrainConfig struct {
	DemoPath   string
	DataPath   string
	Output     string // <site>/<name>
	Models     []string
	PCA        bool
	ResultsDir string
	Seed       int
	Splits     int
	Repeats    int
}

// Validate checks the configuration before any data is read.
func (c TrainConfig) Validate() error {
	parts := strings.Split(c.Output, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.NewValidationError("output", "must be <site>/<name>", c.Output)
	}
	if len(c.Models) == 0 {
		return errors.NewValidationError("models", "no model given", c.Models)
	}
	for _, id := range c.Models {
		if _, err := Lookup(id); err != nil {
			return errors.NewValidationError("models", err.Error(), id)
		}
	}
	if c.Splits < 2 {
		return errors.NewValidationError("splits", "must be at least 2", c.Splits)
	}
	if c.Repeats < 1 {
		return errors.NewValidationError("repeats", "must be at least 1", c.Repeats)
	}
	return nil
}

// OutputDir returns <ResultsDir>/<site>.
func (c TrainConfig) OutputDir() string {
	return filepath.Join(c.ResultsDir, strings.Split(c.Output, "/")[0])
}

// Stem returns the file name stem, the <name> part of Output.
func (c TrainConfig) Stem() string {
	return strings.Split(c.Output, "/")[1]
}

// RunMeta is written next to the artefacts of each model.
type RunMeta struct {
	RunID           string                 `json:"run_id"`
	Model           string                 `json:"model"`
	Label           string                 `json:"label"`
	DataPath        string                 `json:"data_path"`
	DemoPath        string                 `json:"demo_path"`
	PCA             bool                   `json:"pca"`
	Seed            int                    `json:"seed"`
	Splits          int                    `json:"splits"`
	Repeats         int                    `json:"repeats"`
	Samples         int                    `json:"samples"`
	Features        int                    `json:"features"`
	Params          map[string]interface{} `json:"params,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	DurationSeconds float64                `json:"duration_seconds"`
	Repeat          string                 `json:"last_repeat"`

	// gain share per estimator input column, for tree ensembles
	FeatureImportances []float64 `json:"feature_importances,omitempty"`
}

// Trainer runs the outer/inner cross-validation for a list of models.
type Trainer struct {
	cfg    TrainConfig
	runID  string
	logger log.Logger

	scores  ScoresFile
	results ResultsFile
	models  ModelsFile
}

// NewTrainer validates cfg and creates a Trainer with a fresh run id.
func NewTrainer(cfg TrainConfig) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &Trainer{
		cfg:    cfg,
		runID:  runID,
		logger: log.GetLoggerWithName("workflow.train").With(log.RunIDKey, runID),
	}, nil
}

// RunID identifies this run in logs and metadata.
func (t *Trainer) RunID() string {
	return t.runID
}

// Run reads the data, builds the outer folds and evaluates every model on
// every outer fold. Artefacts are rewritten after each model.
func (t *Trainer) Run(ctx context.Context) error {
	started := time.Now()
	if err := os.MkdirAll(t.cfg.OutputDir(), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", t.cfg.OutputDir())
	}

	table, err := dataset.ReadData(t.cfg.DataPath, t.cfg.DemoPath)
	if err != nil {
		return err
	}
	n := table.Len()
	t.logger.Info("training started",
		log.PathKey, t.cfg.OutputDir(),
		log.SamplesKey, n,
		log.FeaturesKey, len(table.FeatureNames),
		"models", t.cfg.Models,
		log.PCAKey, t.cfg.PCA,
		log.RandomSeedKey, t.cfg.Seed,
		log.NSplitsKey, t.cfg.Splits,
		log.NBinsKey, n/t.cfg.Splits,
	)

	outer, err := cv.StratifiedSplits(cv.Indices(n), t.cfg.Splits, false, 0)
	if err != nil {
		return err
	}
	keys := cv.RepeatKeys(len(outer))
	t.scores = make(ScoresFile, len(keys))
	t.results = make(ResultsFile, len(keys))
	t.models = make(ModelsFile, len(keys))
	for _, k := range keys {
		t.scores[k] = map[string]cv.Scores{}
		t.results[k] = map[string]Result{}
		t.models[k] = map[string]model.Regressor{}
	}

	for _, key := range keys {
		testIdx := outer[key]
		trainIdx := cv.Complement(n, testIdx)
		train, test := table.Subset(trainIdx), table.Subset(testIdx)
		t.logger.Info("outer fold", log.RepeatKey, key, log.TrainKey, train.Len(), log.TestKey, test.Len())

		ages := train.Ages().RawVector().Data
		codes, err := cv.Cut(ages, AgeBins)
		if err != nil {
			return err
		}

		for _, id := range t.cfg.Models {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "training cancelled")
			}
			if err := t.evaluate(key, id, train, test, testIdx, codes, started); err != nil {
				return errors.Wrapf(err, "%s %s", key, id)
			}
		}
	}

	t.logger.Info("training done", log.DurationSecondsKey, time.Since(started).Seconds())
	return nil
}

func (t *Trainer) evaluate(key, id string, train, test *dataset.FeatureTable, testIdx, codes []int, started time.Time) error {
	spec, err := Lookup(id)
	if err != nil {
		return err
	}
	logger := t.logger.With(log.ModelNameKey, id, log.RepeatKey, key)
	Xtr, ytr := train.X(), train.Ages()

	inner, err := cv.NewRepeatedStratifiedKFold(t.cfg.Splits, t.cfg.Repeats, t.cfg.Seed).Split(train.Len(), codes)
	if err != nil {
		return err
	}
	factory := Factory(spec, t.cfg.PCA, t.cfg.Seed)

	start := time.Now()
	scores, err := cv.CrossValidate(factory, Xtr, ytr, inner, Scoring)
	if err != nil {
		return err
	}
	logger.Info("inner cv done",
		log.MAEKey, -scores.Mean(cv.TestKey(metrics.NegMeanAbsoluteError)),
		log.R2ScoreKey, scores.Mean(cv.TestKey(metrics.R2)),
		log.DurationSecondsKey, time.Since(start).Seconds(),
	)

	final := factory()
	if err := errors.SafeExecute("final fit", func() error { return final.Fit(Xtr, ytr) }); err != nil {
		return err
	}
	if gs, ok := final.(*cv.GridSearchCV); ok {
		logger.Info("best parameters", log.HyperParamsKey, gs.BestParams)
		final = gs.BestEstimator
	}

	pred, err := final.Predict(test.X())
	if err != nil {
		return err
	}
	result, err := newResult(test, testIdx, pred)
	if err != nil {
		return err
	}
	logger.Info("outer fold evaluated", log.MAEKey, result.MAE, log.MSEKey, result.MSE, log.CorrKey, result.Corr)

	t.scores[key][id] = scores
	t.results[key][id] = result
	t.models[key][id] = final
	return t.persist(key, id, spec, final, train, started)
}

func newResult(test *dataset.FeatureTable, testIdx []int, pred mat.Matrix) (Result, error) {
	yTrue := test.Ages()
	yPred := metrics.ColumnVector(pred)
	n := yTrue.Len()
	r := Result{
		Predictions: make([]float64, n),
		True:        make([]float64, n),
		Delta:       make([]float64, n),
		TestIdx:     append([]int(nil), testIdx...),
		Subjects:    append([]dataset.Subject(nil), test.Subjects...),
	}
	for i := 0; i < n; i++ {
		r.Predictions[i] = yPred.AtVec(i)
		r.True[i] = yTrue.AtVec(i)
		r.Delta[i] = r.True[i] - r.Predictions[i]
	}
	if err := errors.CheckNumericalStability("predict", r.Predictions, 0); err != nil {
		return r, err
	}
	mae, err := metrics.MAE(yTrue, yPred)
	if err != nil {
		return r, err
	}
	mse, err := metrics.MSE(yTrue, yPred)
	if err != nil {
		return r, err
	}
	corr, err := metrics.PearsonCorr(yPred, yTrue)
	if err != nil {
		return r, err
	}
	r.MAE = metrics.Round(mae, 3)
	r.MSE = metrics.Round(mse, 3)
	r.Corr = metrics.Round(corr, 3)
	return r, nil
}

func (t *Trainer) persist(key, id string, spec ModelSpec, final model.Regressor, train *dataset.FeatureTable, started time.Time) error {
	dir, stem := t.cfg.OutputDir(), t.cfg.Stem()
	scores, results, models := ScoresFile{}, ResultsFile{}, ModelsFile{}
	for k := range t.results {
		if r, ok := t.results[k][id]; ok {
			scores[k] = map[string]cv.Scores{id: t.scores[k][id]}
			results[k] = map[string]Result{id: r}
			models[k] = map[string]model.Regressor{id: t.models[k][id]}
		}
	}
	for _, out := range []struct {
		v   interface{}
		ext string
	}{
		{results, ResultsExt},
		{scores, ScoresExt},
		{models, ModelsExt},
	} {
		path := ArtefactPath(dir, stem, id, out.ext)
		if err := model.SaveModel(out.v, path); err != nil {
			return err
		}
		t.logger.Debug("artefact written", log.PathKey, path)
	}

	meta := RunMeta{
		RunID:           t.runID,
		Model:           id,
		Label:           spec.Label,
		DataPath:        t.cfg.DataPath,
		DemoPath:        t.cfg.DemoPath,
		PCA:             t.cfg.PCA,
		Seed:            t.cfg.Seed,
		Splits:          t.cfg.Splits,
		Repeats:         t.cfg.Repeats,
		Samples:         train.Len(),
		Features:        len(train.FeatureNames),
		StartedAt:       started,
		DurationSeconds: time.Since(started).Seconds(),
		Repeat:          key,
	}
	if getter, ok := final.(model.ParameterGetter); ok {
		meta.Params = getter.GetParams()
	}
	if p, ok := final.(*pipeline.Pipeline); ok {
		if imp, ok := p.Estimator.(interface{ FeatureImportances() []float64 }); ok {
			meta.FeatureImportances = imp.FeatureImportances()
		}
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode run metadata")
	}
	path := ArtefactPath(dir, stem, id, MetaExt)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// Results returns what the last Run produced.
func (t *Trainer) Results() (ScoresFile, ResultsFile, ModelsFile) {
	return t.scores, t.results, t.models
}
