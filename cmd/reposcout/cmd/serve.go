package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/async"
	"github.com/Aman-CERP/reposcout/internal/mcp"
)

func newServeCmd(rt *state) *cobra.Command {
	var prewarm bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the Model Context Protocol server on stdin/stdout.

Stdout carries JSON-RPC only; logs go to ~/.reposcout/logs/server.log.
Set GITLAB_PRIVATE_TOKEN in the environment (or a .env file) before
starting the server.

Example MCP configuration:
  {"command": "reposcout", "args": ["serve"],
   "env": {"GITLAB_PRIVATE_TOKEN": "glpat-..."}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("prewarm") {
				rt.cfg.Server.Prewarm = prewarm
			}
			return runServe(cmd.Context(), rt)
		},
	}

	cmd.Flags().BoolVar(&prewarm, "prewarm", false, "Index all documentation in the background at startup")

	return cmd
}

func runServe(ctx context.Context, rt *state) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger := rt.cfg, rt.logger

	st, err := newStack(cfg, logger, stackOptions{telemetry: true})
	if err != nil {
		logger.Error("failed to initialize", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}()

	srv, err := mcp.NewServer(st.tools, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if cfg.Server.Prewarm {
		pw := async.NewPrewarmer(cfg.Cache.Dir, st.engine, st.indexer, logger)
		srv.SetPrewarmProgress(pw.Progress())
		pw.Start(ctx)
		defer pw.Stop()
	}

	err = srv.Serve(ctx, cfg.Server.Transport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
