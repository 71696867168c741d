// Package log defines standard attribute keys for machine learning operations.
//
// Keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that log records from training and prediction runs can
// be filtered the same way.
package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of estimator.
	// Examples: "LinearRegression", "StandardScaler", "RandomForestRegressor"
	ModelNameKey = "model.name"

	// RegressorKey identifies the regressor family of a fitted pipeline.
	// Values: "linear", "random_forest"
	RegressorKey = "model.regressor"

	// RunIDKey is the identifier assigned to a training run and stored in the artifact.
	RunIDKey = "model.run_id"

	// OperationKey specifies the machine learning operation being performed.
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of model lifecycle.
	PhaseKey = "ml.phase"

	// StepKey names a pipeline step.
	StepKey = "ml.step"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// RawRowsKey is the number of rows read before outlier filtering.
	RawRowsKey = "data.raw_rows"

	// DroppedRowsKey is the number of rows rejected by the outlier filter.
	DroppedRowsKey = "data.dropped_rows"

	// PathKey is the file a component read from or wrote to.
	PathKey = "io.path"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MAEKey records the mean absolute error on the held-out split.
	MAEKey = "metrics.mae"

	// RMSEKey records the root mean squared error on the held-out split.
	RMSEKey = "metrics.rmse"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"
)

// Prediction and Output Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and Configuration
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// ConfigVersionKey tracks the artifact format or feature schema version.
	ConfigVersionKey = "config.version"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)
