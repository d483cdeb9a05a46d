package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andywolf/groupcomments/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultConfigName = ".groupcomments.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Create a .groupcomments.yaml file in the current directory with the
connection settings and defaults filled in. The password is never written.

Example:
  groupcomments init
  groupcomments init --url https://jira.example.com --username alice --project ABC`,
	Args: cobra.NoArgs,
	RunE: initProject,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "Overwrite existing config")
}

type starterConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username"`
	Group        string `yaml:"group"`
	Project      string `yaml:"project"`
	PageSize     int    `yaml:"page_size"`
	Timeout      string `yaml:"timeout"`
	SearchMethod string `yaml:"search_method"`
	Format       string `yaml:"format"`
	Credential   struct {
		Source string `yaml:"source"`
		Secret string `yaml:"secret,omitempty"`
	} `yaml:"credential"`
}

func newStarterConfig(cfg *config.Config) starterConfig {
	var sc starterConfig
	sc.URL = cfg.URL
	sc.Username = cfg.Username
	sc.Group = cfg.Group
	sc.Project = cfg.Project
	sc.PageSize = cfg.PageSize
	sc.Timeout = cfg.Timeout
	sc.SearchMethod = cfg.SearchMethod
	sc.Format = cfg.Format
	sc.Credential.Source = cfg.Credential.Source
	sc.Credential.Secret = cfg.Credential.Secret

	if sc.URL == "" {
		sc.URL = "https://jira.example.com"
	}
	return sc
}

func initProject(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	configPath := filepath.Join(".", defaultConfigName)
	if err := writeStarterConfig(configPath, cfg, force); err != nil {
		return err
	}

	printNextSteps(cmd.OutOrStdout(), configPath)
	return nil
}

func writeStarterConfig(configPath string, cfg *config.Config, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	data, err := yaml.Marshal(newStarterConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# groupcomments configuration
# Every key can also be set with a flag or a GROUPCOMMENTS_* environment variable.

`

	if err := os.WriteFile(configPath, append([]byte(header), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func printNextSteps(w io.Writer, configPath string) {
	fmt.Fprintf(w, "Created %s\n\n", configPath)
	fmt.Fprintln(w, "Next steps:")
	fmt.Fprintln(w, "  1. Set url, username, group and project")
	fmt.Fprintln(w, "  2. Optionally run 'groupcomments credential set' and use credential.source: keyring")
	fmt.Fprintln(w, "  3. Run 'groupcomments' to list the restricted comments")
}
