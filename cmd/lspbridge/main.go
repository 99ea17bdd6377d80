package main

import (
	"fmt"
	"os"

	"github.com/russellhaering/lspbridge/pkg/autobridge"
	"github.com/russellhaering/lspbridge/pkg/config"
	"github.com/russellhaering/lspbridge/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	session *autobridge.Session
	cleanup func()
)

var (
	rootCmd = &cobra.Command{
		Use:   "lspbridge",
		Short: "Drive a language server from the command line",
		Long: `lspbridge starts the language server described by its configuration file,
opens files in an in-memory editor and runs editor features against them:
outlines, diagnostics, completion, navigation and formatting.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["session"] == "none" {
				return nil
			}

			cfg, err := config.LoadFrom(configPath)
			if err != nil {
				return err
			}

			_session, _cleanup, err := initializeSession(cfg, autobridge.RootDir(rootDir))
			if err != nil {
				return fmt.Errorf("failed to initialize session: %w", err)
			}
			session = &_session
			cleanup = _cleanup

			if err := session.Bridge.Activate(cmd.Context()); err != nil {
				return fmt.Errorf("failed to start %s: %w", cfg.Name, err)
			}
			return nil
		},
	}

	// Configuration flags
	configPath string
	rootDir    string
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root directory")

	// Add commands
	rootCmd.AddCommand(newOutlineCmd())
	rootCmd.AddCommand(newLintCmd())
	rootCmd.AddCommand(newCompleteCmd())
	rootCmd.AddCommand(newDefinitionCmd())
	rootCmd.AddCommand(newReferencesCmd())
	rootCmd.AddCommand(newFormatCmd())
	rootCmd.AddCommand(newSchemaCmd())

	// Initialize logger
	if err := log.Init(false); err != nil {
		// Can't use log.Error here since logger isn't initialized
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	err := rootCmd.Execute()

	// Stop the server and close the diagnostics database
	if cleanup != nil {
		cleanup()
	}

	if err != nil {
		log.Error("Failed to execute command", zap.Error(err))
		os.Exit(1)
	}
}
