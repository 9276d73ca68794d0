package cmd

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/async"
	"github.com/Aman-CERP/reposcout/internal/cache"
	"github.com/Aman-CERP/reposcout/internal/output"
	"github.com/Aman-CERP/reposcout/internal/ui"
)

func newCacheCmd(rt *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local cache",
	}

	cmd.AddCommand(newCacheStatsCmd(rt))
	cmd.AddCommand(newCacheClearCmd(rt))

	return cmd
}

func newCacheStatsCmd(rt *state) *cobra.Command {
	var jsonOutput, noColor bool

	cmd := &cobra.Command{
		Use:     "stats",
		Aliases: []string{"status"},
		Short:   "Show repository and documentation cache statistics",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newStack(rt.cfg, rt.logger, stackOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			info := collectStatus(st, rt.cfg.GitLab.BaseURL)
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

func collectStatus(st *stack, source string) ui.StatusInfo {
	stats := st.tools.CacheStats()
	docs := st.tools.DocumentationStats()
	dir := st.cache.Dir()

	info := ui.StatusInfo{
		Source:        source,
		CacheDir:      dir,
		ReposCached:   stats.ReposCached,
		ReposIndexed:  docs.RepositoriesIndexed,
		DocFiles:      docs.TotalFiles,
		DocTypes:      docs.DocTypes,
		Errors:        stats.Errors,
		RepoCacheSize: fileSize(filepath.Join(dir, cache.RepoCacheFile)),
		DocCacheSize:  fileSize(filepath.Join(dir, cache.DocCacheFile)),
		CacheValid:    docs.CacheValid,
	}
	if stats.LastUpdated != nil {
		sec, frac := math.Modf(*stats.LastUpdated)
		info.LastUpdated = time.Unix(int64(sec), int64(frac*1e9))
	}
	if async.HasIncompleteLock(dir) {
		info.Prewarm = "incomplete"
	}
	return info
}

func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func newCacheClearCmd(rt *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the repository and documentation caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newStack(rt.cfg, rt.logger, stackOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res := st.tools.ClearCache()
			out := output.New(cmd.OutOrStdout())
			if !res.Succeeded() {
				out.Error(res.Error)
				return errors.New(res.Error)
			}
			out.Success(res.Message)
			return nil
		},
	}

	return cmd
}
