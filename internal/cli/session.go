package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/andywolf/groupcomments/internal/config"
	"github.com/andywolf/groupcomments/internal/credential"
	"github.com/andywolf/groupcomments/internal/jira"
	"github.com/andywolf/groupcomments/internal/logging"
	"github.com/andywolf/groupcomments/internal/scan"
	"github.com/andywolf/groupcomments/internal/security"
)

// session is an authenticated client plus the logger its failures go to.
type session struct {
	client *jira.Client
	logger *logging.Logger
}

// openSession reads the password once and builds the client. The password
// is registered with the log sanitizer before any request is made.
func openSession(ctx context.Context, cfg *config.Config, provider credential.Provider, stderr io.Writer) (*session, error) {
	sanitizer := security.NewLogSanitizer()
	logger := logging.New(
		logging.WithWriter(stderr),
		logging.WithFormat(logging.Format(cfg.LogFormat)),
		logging.WithVerbose(cfg.Verbose),
		logging.WithSanitizer(sanitizer),
	)

	password, err := provider.Password(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading password for %s: %w", cfg.Username, err)
	}
	sanitizer.AddSecret(password)

	client, err := jira.NewClient(
		jira.Config{BaseURL: cfg.URL, Username: cfg.Username, Password: password},
		jira.WithTimeout(cfg.TimeoutDuration()),
		jira.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &session{client: client, logger: logger}, nil
}

func (s *session) searcher(method string) scan.Searcher {
	if method == config.SearchPost {
		return scan.SearchFunc(s.client.SearchPost)
	}
	return scan.SearchFunc(s.client.Search)
}

func statsFields(stats scan.Stats) logging.Fields {
	return logging.Fields{
		"pages":    stats.Pages,
		"issues":   stats.Issues,
		"comments": stats.Comments,
		"matches":  stats.Matches,
	}
}

// runScan searches the configured project and writes every matching
// comment to stdout. Logs go to stderr.
func runScan(ctx context.Context, cfg *config.Config, provider credential.Provider, stdout, stderr io.Writer) (scan.Stats, error) {
	if err := cfg.ValidateForScan(); err != nil {
		return scan.Stats{}, fmt.Errorf("invalid configuration: %w", err)
	}

	sess, err := openSession(ctx, cfg, provider, stderr)
	if err != nil {
		return scan.Stats{}, err
	}

	out := bufio.NewWriter(stdout)
	emitter, err := scan.NewWriter(cfg.Format, out)
	if err != nil {
		return scan.Stats{}, err
	}

	scanner, err := scan.New(sess.searcher(cfg.SearchMethod), emitter, scan.Options{
		Project:  cfg.Project,
		Group:    cfg.Group,
		PageSize: cfg.PageSize,
	}, sess.logger)
	if err != nil {
		return scan.Stats{}, err
	}

	sess.logger.Info("scanning project", logging.Fields{
		"project": cfg.Project,
		"group":   cfg.Group,
		"jql":     scanner.JQL(),
	})

	stats, runErr := scanner.Run(ctx)
	if err := out.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("writing output: %w", err)
	}
	if runErr != nil {
		fields := statsFields(stats)
		fields["error"] = runErr
		sess.logger.Error("scan failed", fields)
		return stats, runErr
	}

	sess.logger.Info("scan complete", statsFields(stats))
	return stats, nil
}

// runIssue applies the group filter to a single issue.
func runIssue(ctx context.Context, cfg *config.Config, provider credential.Provider, key string, stdout, stderr io.Writer) (scan.Stats, error) {
	if err := cfg.ValidateForIssue(); err != nil {
		return scan.Stats{}, fmt.Errorf("invalid configuration: %w", err)
	}

	sess, err := openSession(ctx, cfg, provider, stderr)
	if err != nil {
		return scan.Stats{}, err
	}

	out := bufio.NewWriter(stdout)
	emitter, err := scan.NewWriter(cfg.Format, out)
	if err != nil {
		return scan.Stats{}, err
	}

	scanner, err := scan.New(sess.searcher(cfg.SearchMethod), emitter, scan.Options{Group: cfg.Group}, sess.logger)
	if err != nil {
		return scan.Stats{}, err
	}

	stats, runErr := scanner.ScanIssue(ctx, sess.client, key)
	if err := out.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("writing output: %w", err)
	}
	if runErr != nil {
		return stats, runErr
	}

	sess.logger.Debug("issue scanned", statsFields(stats))
	return stats, nil
}
