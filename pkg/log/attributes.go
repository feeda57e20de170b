// Standard attribute keys for pipeline log records. Keys are dotted so
// records can be filtered by prefix ("cv.", "metrics.").

package log

// Model and operation context.
const (
	// ModelNameKey is the model identifier from the model table, e.g. "rvr_lin".
	ModelNameKey = "model.name"

	// EstimatorKey is the Go estimator type, e.g. "KernelRidge".
	EstimatorKey = "model.estimator"

	// OperationKey is the operation being performed: fit, predict, transform, score.
	OperationKey = "ml.operation"

	// ComponentKey identifies the emitting package.
	ComponentKey = "ml.component"

	// PhaseKey is one of the Phase* values below.
	PhaseKey = "ml.phase"

	// RunIDKey identifies one training run.
	RunIDKey = "run.id"

	// WorkflowKey is the composite feature-set + model name.
	WorkflowKey = "workflow.name"

	// SiteKey is the dataset/site flag.
	SiteKey = "data.site"

	// PathKey is a file path read or written.
	PathKey = "io.path"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	TrainKey    = "data.train_samples"
	TestKey     = "data.test_samples"
)

// Cross-validation bookkeeping.
const (
	RepeatKey  = "cv.repeat"
	FoldKey    = "cv.fold"
	NSplitsKey = "cv.n_splits"
	NBinsKey   = "cv.n_bins"
)

// Metrics and timing.
const (
	DurationMsKey      = "perf.duration_ms"
	DurationSecondsKey = "perf.duration_seconds"
	MAEKey             = "metrics.mae"
	MSEKey             = "metrics.mse"
	R2ScoreKey         = "metrics.r2_score"
	CorrKey            = "metrics.corr"
	IterationKey       = "training.iteration"
)

// Hyperparameters and configuration.
const (
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	PCAKey         = "config.pca"
)

// Error context.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
)
