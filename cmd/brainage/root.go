package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/brainage/config"
	"github.com/YuminosukeSato/brainage/pkg/errors"
	"github.com/YuminosukeSato/brainage/pkg/log"
)

var (
	// configFile is set by the --config flag.
	configFile string

	// v holds defaults, the config file and BRAINAGE_* overrides.
	v *viper.Viper
)

var rootCmd = &cobra.Command{
	Use:   "brainage",
	Short: "Brain-age prediction pipeline",
	Long: `brainage trains regression models on neuroimaging features with nested
cross-validation, applies a linear age-bias correction to out-of-fold
predictions and summarises results across feature sets and models.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./brainage.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(correctCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(predictionsCmd)
	rootCmd.AddCommand(featuresCmd)
}

// initConfig loads the configuration and sets up logging.
func initConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	var err error
	v, err = config.New(configFile)
	if err != nil {
		return err
	}
	if err := bindFlags(cmd, map[string]string{"log-level": config.KeyLogLevel}); err != nil {
		return err
	}

	name := v.GetString(config.KeyLogLevel)
	level, ok := log.ParseLevel(name)
	if !ok {
		return errors.NewValidationError("log-level", "unknown level", name)
	}
	log.SetProvider(log.NewConsoleProvider(level))
	return nil
}

// bindFlags maps flags to config keys so that an explicitly set flag wins
// over the file and the environment.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			f = cmd.InheritedFlags().Lookup(flag)
		}
		if f == nil {
			return errors.Newf("unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "failed to bind --%s", flag)
		}
	}
	return nil
}
