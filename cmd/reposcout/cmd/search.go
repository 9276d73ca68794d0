package cmd

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/output"
	"github.com/Aman-CERP/reposcout/internal/search"
)

type searchOptions struct {
	topK       int
	noWarm     bool
	jsonOutput bool
}

func newSearchCmd(rt *state) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank repositories by keyword relevance",
		Long: `Search repositories by name, path and description, then rerank the
best candidates by keyword matches in their documentation.

Examples:
  reposcout search "payment gateway"
  reposcout search auth service -k 5
  reposcout search "terraform modules" --no-warm --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, rt, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Maximum number of results (default from config)")
	cmd.Flags().BoolVar(&opts.noWarm, "no-warm", false, "Do not fetch documentation for uncached candidates")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the raw tool response as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, rt *state, query string, opts searchOptions) error {
	cfg := rt.cfg
	st, err := newStack(cfg, rt.logger, stackOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	topK := cfg.Search.DefaultTopK
	if opts.topK > 0 {
		topK = search.ClampTopK(opts.topK, cfg.Search.MaxTopK)
	}
	warm := cfg.Search.WarmCache && !opts.noWarm

	rt.logger.Info("search_started",
		slog.String("query", query), slog.Int("top_k", topK), slog.Bool("warm", warm))

	resp := st.tools.SearchRepos(cmd.Context(), query, topK, warm)
	out := output.New(cmd.OutOrStdout())
	if opts.jsonOutput {
		if err := out.JSON(resp); err != nil {
			return err
		}
	}
	if !resp.Succeeded() {
		return errors.New(resp.Error)
	}
	if !opts.jsonOutput {
		out.Text(output.FormatSearch(resp))
	}

	rt.logger.Info("search_complete",
		slog.Int("results", resp.Count), slog.Int("matched", resp.TotalMatched))
	return nil
}
