// Package credential supplies the JIRA account password. The core client
// and driver only see the Provider interface, so tests use fixed values
// while the CLI wires in a prompt, the OS keyring or GCP Secret Manager.
package credential

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores that hold no password for the account.
var ErrNotFound = errors.New("credential not found")

// Provider returns the password for the configured account.
type Provider interface {
	Password(ctx context.Context) (string, error)
}

// Static is a fixed password.
type Static string

// Password returns s.
func (s Static) Password(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("empty password")
	}
	return string(s), nil
}

// Fallback returns a Provider that asks secondary when primary reports
// ErrNotFound. Other errors from primary are returned as is.
func Fallback(primary, secondary Provider) Provider {
	return &fallback{primary: primary, secondary: secondary}
}

type fallback struct {
	primary   Provider
	secondary Provider
}

func (f *fallback) Password(ctx context.Context) (string, error) {
	pw, err := f.primary.Password(ctx)
	if errors.Is(err, ErrNotFound) {
		return f.secondary.Password(ctx)
	}
	return pw, err
}
