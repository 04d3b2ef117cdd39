// Package cli provides the command-line interface for enginectl
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ivyci/enginectl/pkg/config"
	"github.com/ivyci/enginectl/pkg/logger"
	"github.com/ivyci/enginectl/pkg/state"
)

// CLI wires the commands to their configuration and output streams
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	settings *config.Config
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer
	// captureLogs sends log output to errorOut instead of stdout
	captureLogs bool
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		output:   os.Stdout,
		errorOut: os.Stderr,
	}

	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.captureLogs = true
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	return c.rootCmd.ExecuteContext(ctx)
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "enginectl",
		Short: "Start, stop and deploy to a local engine",
		Long: `enginectl controls a locally installed engine process and deploys packaged
artifacts into its drop directory.

Artifacts are dropped into {deploy dir}/{application}/ and enginectl waits for
the engine to acknowledge them with a .deployed marker file.`,

		PersistentPreRunE: c.initializeConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("enginectl v{{.Version}}\n")

	c.rootCmd.AddCommand(c.newDeployCmd())
	c.rootCmd.AddCommand(c.newEngineCmd())
	c.rootCmd.AddCommand(c.newOptionsCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newHistoryCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", "", "config file (default: enginectl.yaml in the engine directory or the working directory)")
	flags.StringVarP(&c.config.EngineDir, "engine-dir", "e", "", "engine installation directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", "", "log level (debug, info, warn, error)")
	flags.StringVar(&c.config.StateDir, "state-dir", "", "directory for engine records (default: user cache dir)")
}

// initializeConfig loads enginectl.yaml and ENGINECTL_* variables, then
// applies the global flags on top
func (c *CLI) initializeConfig(cmd *cobra.Command, args []string) error {
	manager := config.NewManager()
	v := manager.NewViper(c.config.ConfigFile, c.config.EngineDir)
	if c.config.EngineDir != "" {
		v.Set("engine.dir", c.config.EngineDir)
	}
	if c.config.Verbosity != "" {
		v.Set("log_level", c.config.Verbosity)
	}

	settings, used, err := manager.Load(v)
	if err != nil {
		return err
	}
	c.settings = settings

	level := strings.ToLower(settings.LogLevel)
	if c.captureLogs {
		c.logger = logger.CreateLoggerWithOutput(level, c.errorOut)
	} else {
		c.logger = logger.CreateLogger(settings.LogFile, level)
	}
	if used != "" {
		c.logger.Debug("Using config file", logger.WithField("file", used))
	}
	return nil
}

func (c *CLI) runtime(cmd *cobra.Command, operation string) *RuntimeConfig {
	return NewRuntimeConfig(c.config, cmd.Context(), operation)
}

func (c *CLI) stateManager() *state.Manager {
	dir := c.config.StateDir
	if dir == "" {
		dir = state.DefaultStateDir()
	}
	return state.NewManager(dir, c.logger)
}

// Helper methods for console output

func (c *CLI) printSuccess(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.GreenString("✓"), message)
}

func (c *CLI) printError(message string) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.RedString("✗"), message)
}

func (c *CLI) printInfo(message string) {
	fmt.Fprintf(c.output, "%s %s\n", color.CyanString("•"), message)
}

func (c *CLI) printWarning(message string) {
	fmt.Fprintf(c.errorOut, "%s %s\n", color.YellowString("!"), message)
}
