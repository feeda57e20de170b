package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/brainage/aggregate"
	"github.com/YuminosukeSato/brainage/config"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Summarise CV and test scores across feature sets and models",
	Long: `Aggregate reads <results-folder>/<prefix><data>.<model>.{scores,results} for
every configured feature set and model and writes cv_scores.csv,
test_scores.csv, cv_test_scores.csv and cv_test_scores_selected.csv under
<results-folder>/<prefix>.`,
	RunE: runAggregate,
}

func init() {
	f := aggregateCmd.Flags()
	f.String("results-folder", "", "results folder (default from config)")
	f.String("prefix", "", "experiment prefix, e.g. ixi_camcan_enki/ixi_camcan_enki_")
	f.String("sqlite", "", "also export the tables to this SQLite database")
	f.Bool("plot", false, "also write a CV vs. test MAE PNG")
}

func runAggregate(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, map[string]string{
		"results-folder": config.KeyAggResultsFolder,
		"prefix":         config.KeyAggPrefix,
		"sqlite":         config.KeyAggSQLite,
	}); err != nil {
		return err
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return err
	}
	if plot, _ := cmd.Flags().GetBool("plot"); plot && cfg.Aggregate.Plot == "" {
		cfg.Aggregate.Plot = filepath.Join(cfg.Aggregate.ResultsFolder, cfg.Aggregate.Prefix+"cv_test_mae.png")
	}
	a, err := aggregate.New(cfg.Aggregate)
	if err != nil {
		return err
	}
	_, err = a.Run()
	return err
}
