package cli

import (
	"fmt"

	"github.com/andywolf/groupcomments/internal/config"
	"github.com/spf13/cobra"
)

var issueCmd = &cobra.Command{
	Use:   "issue KEY",
	Short: "Print the group-restricted comments of one issue",
	Long: `Fetch a single issue and print its comments restricted to --group,
in the same format as a project scan. --project is not needed.

Example:
  groupcomments issue ABC-123 --url https://jira.example.com --username alice --group developers`,
	Args: cobra.ExactArgs(1),
	RunE: scanSingleIssue,
}

func init() {
	rootCmd.AddCommand(issueCmd)
}

func scanSingleIssue(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForIssue(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, closeProvider, err := resolveProvider(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	_, err = runIssue(cmd.Context(), cfg, provider, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
	return err
}
