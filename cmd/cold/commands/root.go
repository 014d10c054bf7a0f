// Package commands implements the CLI commands of the cold storage service.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/services"
)

// Global flags.
var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cold",
	Short: "cold - two-tier storage management for open data records",
	Long: `cold moves the files of open data records between hot (disk) and cold
(tape) storage, keeps the record catalog in sync with the copies, and serves
the REST API through which users request records back online.

Use "cold [command] --help" for more information about a command.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "cold.yaml",
		"path to the service configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"enable debug logging")

	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(clearHotCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(processTransfersCmd)
	rootCmd.AddCommand(processRequestsCmd)
	rootCmd.AddCommand(processCycleCmd)
	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(serveCmd)
}

// loads the configuration, sets up logging, and registers the back-ends
func setup(cmd *cobra.Command, args []string) error {
	logLevel := new(slog.LevelVar)
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("couldn't read the configuration file %s: %w", cfgFile, err)
	}
	if err = config.Init(data); err != nil {
		return err
	}
	return services.RegisterBuiltinManagers()
}

// wires up the service components from the loaded configuration
func openServices() (*services.Services, error) {
	return services.New()
}
