package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/andywolf/groupcomments/internal/cloud/gcp"
	"github.com/andywolf/groupcomments/internal/config"
	"github.com/andywolf/groupcomments/internal/credential"
	"github.com/andywolf/groupcomments/internal/logging"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

// Replaced in tests.
var (
	openKeyring = credential.OpenKeyring

	newPrompt = func(cfg *config.Config) credential.Provider {
		return credential.NewPrompt(fmt.Sprintf("JIRA password for %s at %s", cfg.Username, cfg.URL))
	}

	newSecretFetcher = func(ctx context.Context, credentialsFile string) (gcp.SecretFetcher, error) {
		var opts []option.ClientOption
		if credentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		}
		client, err := gcp.NewSecretManagerClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
)

// resolveProvider returns the password source selected by
// credential.source. The returned func releases it and is never nil.
func resolveProvider(ctx context.Context, cfg *config.Config) (credential.Provider, func(), error) {
	noop := func() {}

	switch cfg.Credential.Source {
	case "", config.SourcePrompt:
		return newPrompt(cfg), noop, nil

	case config.SourceKeyring:
		ring, err := openKeyring()
		if err != nil {
			return nil, noop, err
		}
		stored := credential.NewKeyring(ring, cfg.URL, cfg.Username)
		return credential.Fallback(stored, newPrompt(cfg)), noop, nil

	case config.SourceSecretManager:
		fetcher, err := newSecretFetcher(ctx, cfg.Credential.CredentialsFile)
		if err != nil {
			return nil, noop, err
		}
		sm := credential.NewSecretManager(fetcher, cfg.Credential.Secret)
		return sm, func() { _ = sm.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown credential source %q", cfg.Credential.Source)
	}
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the password stored in the OS keyring",
	Long: `Store or remove the JIRA password for --url and --username in the OS
keyring. Runs with credential.source set to keyring read it from there.`,
}

var credentialSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Prompt for the password and store it",
	Long: `Prompt for the password of --username on --url and store it in the OS keyring.

Example:
  groupcomments credential set --url https://jira.example.com --username alice --verify`,
	Args: cobra.NoArgs,
	RunE: setCredential,
}

var credentialDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the stored password",
	Args:  cobra.NoArgs,
	RunE:  deleteCredential,
}

func init() {
	credentialSetCmd.Flags().Bool("verify", false, "check the password against JIRA before storing it")
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}

func loadAccountConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setCredential(cmd *cobra.Command, args []string) error {
	cfg, err := loadAccountConfig()
	if err != nil {
		return err
	}
	verify, _ := cmd.Flags().GetBool("verify")

	ring, err := openKeyring()
	if err != nil {
		return err
	}

	return storeCredential(cmd, cfg, ring, newPrompt(cfg), verify)
}

func storeCredential(cmd *cobra.Command, cfg *config.Config, ring keyring.Keyring, prompt credential.Provider, verify bool) error {
	ctx := cmd.Context()

	password, err := prompt.Password(ctx)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	if verify {
		sess, err := openSession(ctx, cfg, credential.Static(password), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		me, err := sess.client.Myself(ctx)
		if err != nil {
			return fmt.Errorf("verifying credentials: %w", err)
		}
		sess.logger.Info("credentials verified", logging.Fields{
			"name":         me.Name,
			"display_name": me.DisplayName,
		})
	}

	if err := credential.NewKeyring(ring, cfg.URL, cfg.Username).Store(password); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Stored password for %s\n", credential.KeyringKey(cfg.URL, cfg.Username))
	return nil
}

func deleteCredential(cmd *cobra.Command, args []string) error {
	cfg, err := loadAccountConfig()
	if err != nil {
		return err
	}

	ring, err := openKeyring()
	if err != nil {
		return err
	}

	return removeCredential(cmd, cfg, ring)
}

func removeCredential(cmd *cobra.Command, cfg *config.Config, ring keyring.Keyring) error {
	key := credential.KeyringKey(cfg.URL, cfg.Username)
	err := credential.NewKeyring(ring, cfg.URL, cfg.Username).Delete()
	if errors.Is(err, credential.ErrNotFound) {
		fmt.Fprintf(cmd.ErrOrStderr(), "No password stored for %s\n", key)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Deleted password for %s\n", key)
	return nil
}
