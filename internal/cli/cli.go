// Package cli implements the synthset command-line interface.
//
// # Commands
//
//   - generate: compose every prepared object onto random frames of a data folder
//   - compose: compose a single object onto a single background
//   - scale: inspect the category scale table
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const appName = "synthset"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// version is set at build time with -ldflags "-X .../internal/cli.version=v1.2.3"
var version = "dev"

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// out receives command results, logs go to the logger
	out io.Writer
}

// New creates a new CLI instance writing logs to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		out:    w,
	}
}

// SetOutput redirects command results to w.
func (c *CLI) SetOutput(w io.Writer) {
	c.out = w
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "synthset composes cut-out objects onto video frames",
		Long: `synthset builds synthetic object detection datasets by compositing
augmented, cut-out foreground objects onto real background frames and writing
YOLO labels for the visible part of each object.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.composeCommand())
	root.AddCommand(c.scaleCommand())

	return root
}
