package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions holds values shared by every command.
var globalOptions struct {
	Version   string
	GitCommit string
	cfg       Config
}

func rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "sabimarket",
		Short:   "SabiMarket backend",
		Long:    "SabiMarket is a multi-sided marketplace backend: wallet ledger, escrowed jobs and orders, verified property listings, and in-app negotiation.",
		Version: globalOptions.Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			cfg, err := loadConfig()
			if err != nil {
				log.Fatalf("Error loading configuration: %s", err.Error())
			}
			globalOptions.cfg = cfg

			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				log.Fatalf("Error parsing log level %q: %s", cfg.LogLevel, err.Error())
			}
			log.SetLevel(level)
			if cfg.Environment == "production" {
				log.SetFormatter(&log.JSONFormatter{})
			}

			log.Info("Version: ", globalOptions.Version)
			log.Info("GitCommit: ", globalOptions.GitCommit)
		},
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}
	return rootCmd
}

// SetupCLI sets up the CLI and returns the root command with the subcommands
// attached.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOptions.Version = version
	globalOptions.GitCommit = gitCommit
	rootCmd := rootCmd()

	rootCmd.AddCommand((&ServeCommand{}).Command())
	rootCmd.AddCommand((&SchedulerCommand{}).Command())
	rootCmd.AddCommand((&DatabaseCommand{}).Command())

	return rootCmd
}
