// Package cmd provides the CLI commands for reposcout.
package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/config"
	scouterrors "github.com/Aman-CERP/reposcout/internal/errors"
	"github.com/Aman-CERP/reposcout/internal/logging"
	"github.com/Aman-CERP/reposcout/pkg/version"
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "reposcout/skip-config"

// state is the per-invocation state shared by subcommands.
type state struct {
	debug      bool
	projectDir string

	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

// NewRootCmd creates the root command for the reposcout CLI.
func NewRootCmd() *cobra.Command {
	rt := &state{}

	cmd := &cobra.Command{
		Use:   "reposcout",
		Short: "Read-only GitLab repository discovery for AI assistants",
		Long: `reposcout lets AI coding assistants discover and read repositories on a
GitLab instance over the Model Context Protocol.

It ranks repositories by keyword matches in their metadata and in their
documentation (README, AGENTS, CLAUDE, CHANGELOG and entry files), caches
both on disk, and never issues anything but GET requests.

Run 'reposcout serve' from your assistant's MCP configuration.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("reposcout version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&rt.debug, "debug", false, "Enable debug logging (also to stderr)")
	cmd.PersistentFlags().StringVar(&rt.projectDir, "project-dir", ".", "Directory searched for .reposcout.yaml")

	cmd.PersistentPreRunE = rt.setup
	cmd.PersistentPostRunE = rt.teardown

	cmd.AddCommand(newServeCmd(rt))
	cmd.AddCommand(newSearchCmd(rt))
	cmd.AddCommand(newIndexCmd(rt))
	cmd.AddCommand(newReposCmd(rt))
	cmd.AddCommand(newRepoCmd(rt))
	cmd.AddCommand(newLsCmd(rt))
	cmd.AddCommand(newCatCmd(rt))
	cmd.AddCommand(newCacheCmd(rt))
	cmd.AddCommand(newStatsCmd(rt))
	cmd.AddCommand(newDoctorCmd(rt))
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd(rt))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration and starts logging. The serve command never
// logs to stderr or stdout because stdout carries JSON-RPC.
func (rt *state) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfigAnnotation] == "true" {
		return nil
	}

	cfg, err := config.Load(rt.projectDir)
	if err != nil {
		return err
	}
	rt.cfg = cfg

	var logCfg logging.Config
	if cmd.Name() == "serve" {
		logCfg = logging.ServeConfig(cfg.Server.LogLevel)
	} else {
		logCfg = logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		logCfg.WriteToStderr = rt.debug
	}
	if rt.debug {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	rt.logger = logger
	rt.cleanup = cleanup
	slog.SetDefault(logger)

	logger.Debug("configuration loaded",
		slog.String("command", cmd.CommandPath()),
		slog.String("gitlab", cfg.GitLab.BaseURL),
		slog.String("cache_dir", cfg.Cache.Dir),
		slog.Bool("token", cfg.GitLab.Token != ""))
	return nil
}

func (rt *state) teardown(_ *cobra.Command, _ []string) error {
	if rt.cleanup != nil {
		rt.cleanup()
		rt.cleanup = nil
	}
	return nil
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		slog.Error("command failed", slog.Any("error", scouterrors.FormatForLog(err)))
		reportError(root.ErrOrStderr(), err)
	}
	return err
}

func reportError(w io.Writer, err error) {
	if _, ok := scouterrors.As(err); ok {
		_, _ = fmt.Fprint(w, scouterrors.FormatForCLI(err))
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %s\n", err)
}
