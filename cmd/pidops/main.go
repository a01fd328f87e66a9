package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/cmd/pidops/commands"
	"github.com/systmms/pidops/internal/config"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, commands.ErrConditionNotMet) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		}
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "pidops",
		Short: "Persistent identifier operations against an EZID registrar",
		Long: `pidops mints, creates, updates and deletes persistent identifiers
(ARKs, DOIs) through an EZID-compatible registrar and checks whether
repository entities already carry one.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "pidops.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewIdentifiersCommand(cfg),
		commands.NewCheckCommand(cfg),
		commands.NewCreateCommand(cfg),
		commands.NewUpdateCommand(cfg),
		commands.NewMintCommand(cfg),
		commands.NewDeleteCommand(cfg),
		commands.NewPruneCommand(cfg),
		commands.NewLoginCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd.Execute()
}
