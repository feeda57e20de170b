package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/brainage/dataset"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Convert a CSV feature table to the gob form read by train",
	Long: `Features keeps the columns of a CSV feature table whose names start with
the feature prefix and writes them as a gob feature file. The gob form loads
faster than CSV and can be passed to train via --data-path.`,
	RunE: runFeatures,
}

func init() {
	f := featuresCmd.Flags()
	f.String("in", "", "CSV feature table")
	f.String("out", "", "gob feature file to write")
	_ = featuresCmd.MarkFlagRequired("in")
	_ = featuresCmd.MarkFlagRequired("out")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	in, _ := cmd.Flags().GetString("in")
	out, _ := cmd.Flags().GetString("out")
	ff, err := dataset.LoadFeatures(in)
	if err != nil {
		return err
	}
	if err := dataset.SaveFeatures(ff, out); err != nil {
		return err
	}
	log.GetLoggerWithName("cmd").Info("features written",
		log.PathKey, out,
		log.SamplesKey, len(ff.Rows),
		log.FeaturesKey, len(ff.Names),
	)
	return nil
}
