package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facelabel/internal/config"
	"github.com/teslashibe/go-facelabel/internal/log"
)

// Version is the application version.
const Version = "0.1.0"

var (
	configPath string
	logLevel   string
	logFormat  string

	// settings is the merged configuration, filled in by PersistentPreRunE.
	settings config.File
)

var rootCmd = &cobra.Command{
	Use:           "facelabel",
	Short:         "Real-time face gender and age captioning",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		f, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			f.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			f.Log.Format = logFormat
		}
		settings = f

		log.Init(f.Log.Level, f.Log.Format)
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (default: json when GO_ENV=production)")
}
