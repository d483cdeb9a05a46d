package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "groupcomments"

// OpenKeyring returns the OS keyring used to store account passwords.
func OpenKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/groupcomments/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("groupcomments-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringKey is the item key for an account on an instance.
func KeyringKey(baseURL, username string) string {
	return strings.TrimRight(baseURL, "/") + "#" + username
}

// Keyring reads and writes one account's password in a keyring.
type Keyring struct {
	ring keyring.Keyring
	key  string
}

// NewKeyring binds ring to the account username on baseURL.
func NewKeyring(ring keyring.Keyring, baseURL, username string) *Keyring {
	return &Keyring{ring: ring, key: KeyringKey(baseURL, username)}
}

// Password returns the stored password, or ErrNotFound.
func (k *Keyring) Password(ctx context.Context) (string, error) {
	item, err := k.ring.Get(k.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("keyring item %q: %w", k.key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", k.key, err)
	}
	return string(item.Data), nil
}

// Store saves password for the account.
func (k *Keyring) Store(password string) error {
	if password == "" {
		return errors.New("refusing to store an empty password")
	}
	err := k.ring.Set(keyring.Item{
		Key:         k.key,
		Data:        []byte(password),
		Label:       serviceName + " " + k.key,
		Description: "JIRA password",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", k.key, err)
	}
	return nil
}

// Delete removes the stored password. ErrNotFound is returned when the
// backend reports the entry missing; some backends treat that as success.
func (k *Keyring) Delete() error {
	err := k.ring.Remove(k.key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("keyring item %q: %w", k.key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", k.key, err)
	}
	return nil
}
