// Package cli provides the command-line interface for chatkit.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tutorlink/chatkit/internal/api"
	"github.com/tutorlink/chatkit/internal/config"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and API client
	cfg       config.Config
	logger    *slog.Logger
	closeLogs func() error
	apiClient *api.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chatkit",
	Short: "Realtime chat client for the tutoring platform",
	Long: `Chatkit is the realtime chat client for the tutoring platform: direct
conversations with contacts, presence, unread tracking, and live session-room
chat, from the terminal.

Authentication uses a platform token; set CHATKIT_TOKEN and CHATKIT_USER_ID
(or put them in ~/.config/chatkit/config.yaml).`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Nothing to set up for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogs = config.SetupLogger(cfg.LogFile, level)

		if cfg.Token == "" || cfg.UserID == "" {
			return fmt.Errorf("not authenticated: set CHATKIT_TOKEN and CHATKIT_USER_ID")
		}

		apiClient = api.New(cfg.APIURL, cfg.Token)
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

// tuiLogger builds a file-only logger for the TUI commands: stderr output
// would tear the alternate screen while a program is running.
func tuiLogger() (*slog.Logger, func() error) {
	level := cfg.LogLevel
	if verbose {
		level = slog.LevelDebug
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return config.SetupLoggerWithWriters(io.Discard, io.Discard, level), func() error { return nil }
	}
	return config.SetupLoggerWithWriters(io.Discard, file, level), file.Close
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(contactsCmd)
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionCmd)
}
