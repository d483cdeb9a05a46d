package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/andywolf/groupcomments/internal/config"
	"github.com/andywolf/groupcomments/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "groupcomments",
	Short: "List JIRA comments restricted to a group",
	Long: `groupcomments searches every issue of a JIRA project and prints the
comments whose visibility is restricted to the given group.

The password is read from the configured credential source (an interactive
prompt by default, or one line of stdin when it is not a terminal).

Example:
  groupcomments --url https://jira.example.com --username alice \
    --group developers --project ABC`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         scanProject,
}

// Execute runs the root command with ctx, which is cancelled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version.Short()
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .groupcomments.yaml)")
	flags.String("url", "", "JIRA base URL (e.g. https://jira.example.com)")
	flags.String("username", "", "JIRA username")
	flags.String("group", "", "group name the comments must be restricted to")
	flags.String("project", "", "JIRA project key")
	flags.Int("page-size", 1000, "issues requested per search page")
	flags.String("timeout", "30s", "per-request timeout")
	flags.String("search-method", config.SearchGet, "search request method (get, post)")
	flags.String("format", "text", "output format (text, json)")
	flags.String("log-format", "text", "log format on stderr (text, json)")
	flags.Bool("verbose", false, "enable verbose output")
	flags.String("credential-source", config.SourcePrompt, "password source (prompt, keyring, secretmanager)")
	flags.String("secret", "", "Secret Manager secret holding the password")
	flags.String("credentials-file", "", "GCP service account key file for Secret Manager")

	bindings := map[string]string{
		"url":                         "url",
		"username":                    "username",
		"group":                       "group",
		"project":                     "project",
		"page_size":                   "page-size",
		"timeout":                     "timeout",
		"search_method":               "search-method",
		"format":                      "format",
		"log_format":                  "log-format",
		"verbose":                     "verbose",
		"credential.source":           "credential-source",
		"credential.secret":           "secret",
		"credential.credentials_file": "credentials-file",
	}
	for key, flag := range bindings {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error getting working directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".groupcomments")
	}

	viper.SetEnvPrefix("GROUPCOMMENTS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		os.Exit(1)
	}
}

func scanProject(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateForScan(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	provider, closeProvider, err := resolveProvider(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	_, err = runScan(cmd.Context(), cfg, provider, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return err
}
