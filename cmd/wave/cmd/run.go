package cmd

import (
	"github.com/spf13/cobra"

	commonconfig "github.com/cta-wave/wave/internal/common/config"
	"github.com/cta-wave/wave/internal/wave"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Runs the session engine",
		PreRun: func(cmd *cobra.Command, _ []string) {
			commonconfig.BindCommandlineArguments(cmd.Flags())
		},
		RunE: runEngine,
	}
	cmd.Flags().Uint16("metricsPort", 9000, "Port serving /metrics and /health")
	return cmd
}

func runEngine(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return wave.Run(config)
}
