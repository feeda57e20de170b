package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/brainage/config"
	"github.com/YuminosukeSato/brainage/pkg/log"
	"github.com/YuminosukeSato/brainage/workflow"
)

var predictionsCmd = &cobra.Command{
	Use:   "predictions",
	Short: "Collect out-of-fold predictions of a site into one CSV",
	Long: `Predictions gathers every <results-dir>/<site>/*.results file into
<site>_all_models_pred.csv with one column per workflow, the input of the
correct command.`,
	RunE: runPredictions,
}

func init() {
	f := predictionsCmd.Flags()
	f.String("site", "", "site directory under the results directory")
	f.String("results-dir", "", "results directory (default from config)")
	_ = predictionsCmd.MarkFlagRequired("site")
}

func runPredictions(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"results-dir": config.KeyTrainResultsDir}); err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	site, _ := cmd.Flags().GetString("site")
	path, err := workflow.WritePredictions(cfg.Train.ResultsDir, site)
	if err != nil {
		return err
	}
	log.GetLoggerWithName("cmd").Info("predictions written", log.PathKey, path)
	return nil
}
