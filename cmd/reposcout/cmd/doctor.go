package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/gitlab"
	"github.com/Aman-CERP/reposcout/internal/preflight"
)

func newDoctorCmd(rt *state) *cobra.Command {
	var offline, verbose, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that reposcout can reach GitLab and write its cache",
		Long: `Run environment checks: cache directory permissions and free space,
the open file limit, the access token, and an authenticated read against
the GitLab API.

Exits non-zero when a required check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := rt.cfg

			clientOpts := gitlab.OptionsFromConfig(cfg.GitLab)
			clientOpts.Logger = rt.logger
			client := gitlab.New(clientOpts)
			defer client.Close()

			checker := preflight.New(
				preflight.WithOffline(offline),
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithProber(client),
			)
			results := checker.RunAll(cmd.Context(), preflight.Target{
				CacheDir: cfg.Cache.Dir,
				BaseURL:  cfg.GitLab.BaseURL,
				TokenSet: cfg.GitLab.Token != "",
			})

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{
					"status": checker.SummaryStatus(results),
					"checks": results,
				}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("system check failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the GitLab connectivity check")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show check details")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
