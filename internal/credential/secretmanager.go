package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/andywolf/groupcomments/internal/cloud/gcp"
)

// SecretManager reads the password from a GCP Secret Manager secret.
type SecretManager struct {
	fetcher gcp.SecretFetcher
	path    string
}

// NewSecretManager reads secretPath through fetcher.
func NewSecretManager(fetcher gcp.SecretFetcher, secretPath string) *SecretManager {
	return &SecretManager{fetcher: fetcher, path: secretPath}
}

// Password fetches the secret on every call.
func (s *SecretManager) Password(ctx context.Context) (string, error) {
	pw, err := s.fetcher.FetchSecret(ctx, s.path)
	if err != nil {
		return "", fmt.Errorf("reading password from secret %s: %w", s.path, err)
	}
	if pw == "" {
		return "", errors.New("secret " + s.path + " is empty")
	}
	return pw, nil
}

// Close releases the underlying client.
func (s *SecretManager) Close() error {
	return s.fetcher.Close()
}
