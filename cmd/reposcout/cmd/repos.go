package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/reposcout/internal/output"
	"github.com/Aman-CERP/reposcout/internal/tools"
)

// emit writes a tool result as JSON or as text and turns a failed result
// into a command error.
func emit(cmd *cobra.Command, jsonOutput bool, res interface{ Succeeded() bool }, errMsg string, text func() string) error {
	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		if err := out.JSON(res); err != nil {
			return err
		}
	}
	if !res.Succeeded() {
		return errors.New(errMsg)
	}
	if !jsonOutput {
		out.Text(text())
	}
	return nil
}

func newReposCmd(rt *state) *cobra.Command {
	var refresh, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List all accessible repositories",
		Long: `List every repository the token can see. The list is served from
the repository cache while it is fresh; --refresh always asks GitLab.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := newStack(rt.cfg, rt.logger, stackOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res := st.tools.ListRepos(cmd.Context(), !refresh)
			return emit(cmd, jsonOutput, res, res.Error, func() string { return output.FormatRepoList(res) })
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the repository cache")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw tool response as JSON")

	return cmd
}

func newRepoCmd(rt *state) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "repo <project>",
		Short: "Show details of one repository",
		Long: `Show details of one repository, addressed by its full path
(group/subgroup/name).

Example:
  reposcout repo platform/backend/auth-service`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStack(rt.cfg, rt.logger, stackOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res := st.tools.GetRepoInfo(cmd.Context(), args[0])
			return emit(cmd, jsonOutput, res, res.Error, func() string { return output.FormatRepoInfo(res) })
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw tool response as JSON")

	return cmd
}

func newLsCmd(rt *state) *cobra.Command {
	var ref string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls <project> [path]",
		Short: "List a directory of a repository",
		Long: `List the files and directories at a path of a repository.

Examples:
  reposcout ls platform/backend/auth-service
  reposcout ls platform/backend/auth-service docs --ref main`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := tools.DefaultPath
			if len(args) == 2 {
				path = args[1]
			}

			st, err := newStack(rt.cfg, rt.logger, stackOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res := st.tools.ListDirectory(cmd.Context(), args[0], path, ref)
			return emit(cmd, jsonOutput, res, res.Error, func() string { return output.FormatDirectory(res) })
		},
	}

	cmd.Flags().StringVar(&ref, "ref", tools.DefaultRef, "Branch, tag or commit")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw tool response as JSON")

	return cmd
}

func newCatCmd(rt *state) *cobra.Command {
	var ref string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "cat <project> <file>",
		Short: "Print a file of a repository",
		Long: `Print the contents of a file. Files larger than the configured
limit are truncated.

Example:
  reposcout cat platform/backend/auth-service README.md`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStack(rt.cfg, rt.logger, stackOptions{})
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			res := st.tools.ReadFile(cmd.Context(), args[0], args[1], ref)
			return emit(cmd, jsonOutput, res, res.Error, func() string {
				if strings.HasSuffix(res.Content, "\n") {
					return res.Content
				}
				return res.Content + "\n"
			})
		},
	}

	cmd.Flags().StringVar(&ref, "ref", tools.DefaultRef, "Branch, tag or commit")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the raw tool response as JSON")

	return cmd
}
