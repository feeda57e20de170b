package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/brainage/config"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/workflow"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run nested cross-validation for one site and feature set",
	Long: `Train loads a feature table and its demographics, builds stratified outer
folds and evaluates every requested model with an inner repeated stratified
cross-validation. Scores, results and fitted models are written to
<results-dir>/<site>/<name>.<model>.{scores,results,models}.`,
	Example: `  brainage train --demo-path ixi_demo.csv --data-path ixi_S4_R4.csv \
    --output ixi/ixi_S4_R4 --models rvr_lin,gauss --pca 0`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.String("demo-path", "", "demographics CSV")
	f.String("data-path", "", "feature table (CSV with f_ columns, or gob)")
	f.String("output", "", "output as <site>/<name>")
	f.String("models", "", "comma-separated model ids")
	f.Int("pca", 0, "1 to add PCA before the estimator")
	f.String("results-dir", "", "results directory (default from config)")
	f.Int("seed", 0, "random seed (default from config)")
	f.Int("splits", 0, "number of CV splits (default from config)")
	f.Int("repeats", 0, "inner CV repeats (default from config)")
	for _, name := range []string{"demo-path", "data-path", "output", "models"} {
		_ = trainCmd.MarkFlagRequired(name)
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"results-dir": config.KeyTrainResultsDir,
		"seed":        config.KeyTrainSeed,
		"splits":      config.KeyTrainSplits,
		"repeats":     config.KeyTrainRepeats,
	}); err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	modelList, _ := f.GetString("models")
	models, err := workflow.ParseModels(modelList)
	if err != nil {
		return err
	}
	pca, _ := f.GetInt("pca")
	if pca != 0 && pca != 1 {
		return errors.NewValidationError("pca", "must be 0 or 1", pca)
	}
	demo, _ := f.GetString("demo-path")
	data, _ := f.GetString("data-path")
	output, _ := f.GetString("output")

	trainer, err := workflow.NewTrainer(workflow.TrainConfig{
		DemoPath:   demo,
		DataPath:   data,
		Output:     output,
		Models:     models,
		PCA:        pca == 1,
		ResultsDir: cfg.Train.ResultsDir,
		Seed:       cfg.Train.Seed,
		Splits:     cfg.Train.Splits,
		Repeats:    cfg.Train.Repeats,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return trainer.Run(ctx)
}
