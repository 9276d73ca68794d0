package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/output"
	"github.com/Aman-CERP/reposcout/internal/telemetry"
)

type statsOptions struct {
	days       int
	limit      int
	jsonOutput bool
}

func newStatsCmd(rt *state) *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tool usage statistics",
		Long: `Show how the MCP tools were used: calls per tool, the most frequent
query terms, queries that matched nothing, and the latency distribution.

Statistics are recorded by 'reposcout serve' when telemetry is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, rt, opts)
		},
	}

	cmd.Flags().IntVar(&opts.days, "days", 7, "Number of days to include")
	cmd.Flags().IntVar(&opts.limit, "limit", 10, "Maximum terms and zero-result queries shown")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStats(cmd *cobra.Command, rt *state, opts statsOptions) error {
	out := output.New(cmd.OutOrStdout())
	path := rt.cfg.TelemetryPath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		out.Status("📊", "No usage statistics recorded yet.")
		out.Status("", "Run 'reposcout serve' with telemetry enabled to collect them.")
		return nil
	}

	store, err := telemetry.OpenStore(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	report, err := store.Recent(time.Now(), opts.days, opts.limit)
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		return out.JSON(report)
	}
	out.Text(output.FormatTelemetryReport(report))
	return nil
}
