// Package cli implements the devqa command line.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/devqa/devqa.go/pkg/config"
	"github.com/devqa/devqa.go/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config  string
	Format  string // "json" | "text"
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "devqa",
		Short:         "DevQA client engine",
		Long:          "Run the DevQA UI bridge and inspect the question store from the terminal.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewFeedCommand(opts))
	cmd.AddCommand(NewLevelCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))

	return cmd
}

func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the console logger commands write diagnostics with.
func (o *RootOptions) newLogger(w io.Writer, level string) (logger.Logger, error) {
	if o.Verbose {
		level = "debug"
	}
	data, err := logger.NewBuild().FromBuffer(w).Level(level).Console(true).Make()
	if err != nil {
		return nil, err
	}
	return logger.FromZerolog(data.Logger), nil
}
