package cmd

import (
	"github.com/spf13/cobra"

	commonconfig "github.com/cta-wave/wave/internal/common/config"
	"github.com/cta-wave/wave/internal/wave/configuration"
)

const (
	CustomConfigLocation string = "config"
	defaultConfigPath    string = "./config/wave"
)

func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "wave",
		SilenceUsage: true,
		Short:        "Coordinates conformance test sessions run by devices under test",
	}

	cmd.PersistentFlags().StringSlice(
		CustomConfigLocation,
		[]string{},
		"Fully qualified path to application configuration file (for multiple config files repeat this arg or separate paths with commas)")

	cmd.AddCommand(
		runCmd(),
		sessionsCmd(),
	)

	return cmd
}

func loadConfig(cmd *cobra.Command) (configuration.WaveConfiguration, error) {
	var config configuration.WaveConfiguration
	userSpecifiedConfigs, err := cmd.Flags().GetStringSlice(CustomConfigLocation)
	if err != nil {
		return config, err
	}
	if _, err := commonconfig.LoadConfig(&config, defaultConfigPath, userSpecifiedConfigs); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		commonconfig.LogValidationErrors(err)
		return config, err
	}
	return config, nil
}
