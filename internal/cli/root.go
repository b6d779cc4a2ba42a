// Package cli provides the command-line interface for periscope.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvoronin/periscope/internal/client"
	"github.com/nvoronin/periscope/internal/config"
	"github.com/nvoronin/periscope/internal/pending"
	"github.com/nvoronin/periscope/internal/session"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, logger and API client
	cfg       config.Config
	logger    *slog.Logger
	closeLogs func() error
	apiClient *client.Client
	creds     *credentials
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "periscope",
	Short: "AI-powered conversational search",
	Long: `Periscope is an AI-powered conversational search client.

Ask questions in one of several search modes (web, academic, youtube,
analysis, ...) and get streamed, tool-augmented answers. Conversations
are stored server-side and can be resumed, renamed and deleted.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogs = config.SetupLogger(cfg.LogFile, level)

		if err := os.MkdirAll(cfg.SessionDir, 0o700); err != nil {
			return fmt.Errorf("create session dir: %w", err)
		}

		apiClient = client.New(cfg.ServerURL)
		creds, err = loadCredentials(credentialsPath())
		if err != nil {
			return fmt.Errorf("read credentials: %w", err)
		}
		if creds != nil {
			apiClient.SetToken(creds.Token)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogs != nil {
			if err := closeLogs(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// newController wires a session controller over the API client with a
// file-backed staging slot, so a message survives a crash between being
// typed and being persisted.
func newController() *session.Controller {
	store := pending.NewFileStore(filepath.Join(cfg.SessionDir, "pending.json"))
	return session.New(apiClient, apiClient, store, session.DefaultRetryPolicy(), logger)
}

// requireLogin fails fast when no token is stored.
func requireLogin() error {
	if creds == nil || creds.Token == "" {
		return fmt.Errorf("not logged in: run 'periscope login' first")
	}
	return nil
}

func credentialsPath() string {
	return filepath.Join(cfg.SessionDir, "credentials.json")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(modesCmd)
}
