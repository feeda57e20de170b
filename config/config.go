// Package config loads the brainage configuration from an optional YAML
// file and BRAINAGE_* environment variables using viper. Every key has a
// default, so a run without a config file uses the stock experiment setup.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/brainage/pkg/errors"
)

const (
	// EnvPrefix prefixes environment overrides, e.g. BRAINAGE_TRAIN_SEED.
	EnvPrefix = "BRAINAGE"

	configFileName = "brainage"
	configFileType = "yaml"
)

// Keys.
const (
	KeyLogLevel = "log_level"

	KeyTrainResultsDir = "train.results_dir"
	KeyTrainSeed       = "train.seed"
	KeyTrainSplits     = "train.splits"
	KeyTrainRepeats    = "train.repeats"

	KeyCorrectResultsDir = "correct.results_dir"

	KeyAggResultsFolder = "aggregate.results_folder"
	KeyAggPrefix        = "aggregate.prefix"
	KeyAggData          = "aggregate.data"
	KeyAggDataLabels    = "aggregate.data_labels"
	KeyAggModels        = "aggregate.models"
	KeyAggModelLabels   = "aggregate.model_labels"
	KeyAggSelected      = "aggregate.selected"
	KeyAggCVFile        = "aggregate.cv_file"
	KeyAggTestFile      = "aggregate.test_file"
	KeyAggCombinedFile  = "aggregate.combined_file"
	KeyAggSelectedFile  = "aggregate.selected_file"
	KeyAggSQLite        = "aggregate.sqlite"
	KeyAggPlot          = "aggregate.plot"
)

// Train holds the training driver defaults.
type Train struct {
	ResultsDir string `mapstructure:"results_dir"`
	Seed       int    `mapstructure:"seed"`
	Splits     int    `mapstructure:"splits"`
	Repeats    int    `mapstructure:"repeats"`
}

// Correct holds the bias-correction driver defaults.
type Correct struct {
	ResultsDir string `mapstructure:"results_dir"`
}

// Aggregate describes which result files the aggregator reads and how rows
// are relabelled.
type Aggregate struct {
	ResultsFolder string   `mapstructure:"results_folder"`
	Prefix        string   `mapstructure:"prefix"`
	Data          []string `mapstructure:"data"`
	DataLabels    []string `mapstructure:"data_labels"`
	Models        []string `mapstructure:"models"`
	ModelLabels   []string `mapstructure:"model_labels"`
	Selected      []string `mapstructure:"selected"`
	CVFile        string   `mapstructure:"cv_file"`
	TestFile      string   `mapstructure:"test_file"`
	CombinedFile  string   `mapstructure:"combined_file"`
	SelectedFile  string   `mapstructure:"selected_file"`
	SQLite        string   `mapstructure:"sqlite"`
	Plot          string   `mapstructure:"plot"`
}

// Config is the decoded configuration.
type Config struct {
	LogLevel  string    `mapstructure:"log_level"`
	Train     Train     `mapstructure:"train"`
	Correct   Correct   `mapstructure:"correct"`
	Aggregate Aggregate `mapstructure:"aggregate"`
}

// SetDefaults registers every key with its default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyLogLevel, "info")

	v.SetDefault(KeyTrainResultsDir, "../results")
	v.SetDefault(KeyTrainSeed, 200)
	v.SetDefault(KeyTrainSplits, 5)
	v.SetDefault(KeyTrainRepeats, 5)

	v.SetDefault(KeyCorrectResultsDir, "../results")

	v.SetDefault(KeyAggResultsFolder, "../results")
	v.SetDefault(KeyAggPrefix, "ixi_camcan_enki/ixi_camcan_enki_")
	v.SetDefault(KeyAggData, DefaultData)
	v.SetDefault(KeyAggDataLabels, DefaultDataLabels)
	v.SetDefault(KeyAggModels, DefaultModels)
	v.SetDefault(KeyAggModelLabels, DefaultModelLabels)
	v.SetDefault(KeyAggSelected, DefaultSelected)
	v.SetDefault(KeyAggCVFile, "cv_scores.csv")
	v.SetDefault(KeyAggTestFile, "test_scores.csv")
	v.SetDefault(KeyAggCombinedFile, "cv_test_scores.csv")
	v.SetDefault(KeyAggSelectedFile, "cv_test_scores_selected.csv")
	v.SetDefault(KeyAggSQLite, "")
	v.SetDefault(KeyAggPlot, "")
}

// New returns a viper instance with defaults and environment overrides.
// When path is empty, brainage.yaml is looked up in the working directory
// and a missing file is not an error. An explicit path must exist.
func New(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config %s", path)
		}
		return v, nil
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, errors.Wrap(err, "failed to read config")
	}
	return v, nil
}

// Decode unmarshals v and validates the result.
func Decode(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is New followed by Decode.
func Load(path string) (*Config, error) {
	v, err := New(path)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate checks that relabelling lists are aligned.
func (c *Config) Validate() error {
	a := c.Aggregate
	if len(a.Data) != len(a.DataLabels) {
		return errors.NewValidationError(KeyAggDataLabels, "must have one label per data entry", len(a.DataLabels))
	}
	if len(a.Models) != len(a.ModelLabels) {
		return errors.NewValidationError(KeyAggModelLabels, "must have one label per model", len(a.ModelLabels))
	}
	if c.Train.Splits < 2 {
		return errors.NewValidationError(KeyTrainSplits, "must be at least 2", c.Train.Splits)
	}
	if c.Train.Repeats < 1 {
		return errors.NewValidationError(KeyTrainRepeats, "must be at least 1", c.Train.Repeats)
	}
	return nil
}
