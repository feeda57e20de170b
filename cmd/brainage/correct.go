package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/brainage/biascorrect"
	"github.com/YuminosukeSato/brainage/config"
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Apply the linear age-bias correction to a site's predictions",
	Long: `Correct reads <results-dir>/<site>/<site>_all_models_pred.csv, fits predicted
on true age within five stratified folds and writes the inverted predictions
to <site>_all_models_pred_BC.csv next to it.`,
	RunE: runCorrect,
}

func init() {
	f := correctCmd.Flags()
	f.String("dataset-flag", "ixi", "site: "+strings.Join(biascorrect.Sites, ", "))
	f.String("results-dir", "", "results directory (default from config)")
	f.Bool("plot", false, "also write a true vs. corrected age PNG")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{"results-dir": config.KeyCorrectResultsDir}); err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	site, _ := cmd.Flags().GetString("dataset-flag")
	plot, _ := cmd.Flags().GetBool("plot")

	run := biascorrect.Config{ResultsDir: cfg.Correct.ResultsDir, Site: site}
	if plot {
		run.PlotPath = strings.TrimSuffix(biascorrect.OutputPath(run.ResultsDir, site), ".csv") + ".png"
	}
	_, err = biascorrect.Run(run)
	return err
}
