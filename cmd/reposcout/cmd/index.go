package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/model"
	"github.com/Aman-CERP/reposcout/internal/profiling"
	"github.com/Aman-CERP/reposcout/internal/ui"
)

type indexOptions struct {
	force   bool
	limit   int
	workers int
	noTUI   bool
	noColor bool
	profile profiling.Options
}

func newIndexCmd(rt *state) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index repository documentation into the local cache",
		Long: `Fetch the repository list and index the documentation of every
repository (README, AGENTS, CLAUDE, CHANGELOG and entry files) into the
documentation cache so that searches rank by content immediately.

Repositories already indexed within the documentation TTL are reused
unless --force is given.

Examples:
  reposcout index
  reposcout index --force --workers 8
  reposcout index --limit 50 --no-tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("workers") {
				rt.cfg.Indexer.Workers = opts.workers
				if err := rt.cfg.Validate(); err != nil {
					return err
				}
			}
			return runIndex(cmd, rt, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-fetch the repository list and all documentation")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Index at most this many repositories (0 = all)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent repositories (default from config)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain text progress output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")
	cmd.Flags().StringVar(&opts.profile.CPU, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.Flags().StringVar(&opts.profile.Heap, "memprofile", "", "Write a heap profile to this file")
	cmd.Flags().StringVar(&opts.profile.Trace, "trace", "", "Write an execution trace to this file")
	for _, name := range []string{"cpuprofile", "memprofile", "trace"} {
		_ = cmd.Flags().MarkHidden(name)
	}

	return cmd
}

func runIndex(cmd *cobra.Command, rt *state, opts indexOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.profile.Enabled() {
		prof, err := profiling.Start(opts.profile)
		if err != nil {
			return err
		}
		defer func() {
			if err := prof.Stop(); err != nil {
				rt.logger.Warn("profiling", slog.String("error", err.Error()))
			}
		}()
	}

	cfg, logger := rt.cfg, rt.logger
	st, err := newStack(cfg, logger, stackOptions{progressEvery: 1})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithSource(cfg.GitLab.BaseURL)))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	start := time.Now()
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageListing, Message: "fetching repository list"})

	repos, err := listForIndex(ctx, st, opts.force)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}
	if opts.limit > 0 && len(repos) > opts.limit {
		repos = repos[:opts.limit]
	}
	total := len(repos)
	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageListing,
		Current: total,
		Total:   total,
		Message: fmt.Sprintf("%d repositories", total),
	})

	progress := func(current, total int) {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Current: current, Total: total})
	}
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Total: total})

	index := st.indexer.IndexRepositories
	if opts.force {
		index = st.indexer.RefreshRepositories
	}
	stats := index(ctx, repos, progress)

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSaving, Message: "documentation cache written"})

	if stats.Errors > 0 {
		renderer.AddError(ui.ErrorEvent{
			Err:    fmt.Errorf("%d repositories failed, run 'reposcout logs --level error' for details", stats.Errors),
			IsWarn: true,
		})
	}

	renderer.Complete(ui.CompletionStats{
		Repositories: total,
		Indexed:      stats.Indexed,
		Skipped:      stats.Skipped,
		Errors:       stats.Errors,
		Files:        stats.TotalFiles,
		Duration:     time.Since(start),
	})

	logger.Info("index_complete",
		slog.Int("repositories", total),
		slog.Int("indexed", stats.Indexed),
		slog.Int("errors", stats.Errors))

	if ctx.Err() != nil {
		return fmt.Errorf("indexing interrupted: %w", ctx.Err())
	}
	return nil
}

// listForIndex returns the repository list, bypassing the cache when forced.
func listForIndex(ctx context.Context, st *stack, force bool) ([]model.Repository, error) {
	if !force {
		return st.engine.Repositories(ctx)
	}
	repos, err := st.client.AllRepositories(ctx)
	if err != nil {
		return nil, err
	}
	if len(repos) > 0 {
		if err := st.cache.SetRepositories(repos); err != nil {
			return nil, err
		}
	}
	return repos, nil
}
