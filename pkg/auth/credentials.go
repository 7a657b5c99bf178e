// Package auth stores API credentials outside the crawl store. Tokens are
// kept in the system keychain when available, an encrypted file otherwise,
// with environment variables as a read-only last resort. The crawl engine
// only ever sees the bearer token as an opaque string.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Account holds the API credentials for one token label. Label is an
// operator-chosen name ("default", "research", ...), not the crawled
// account.
type Account struct {
	Label        string    `json:"label"`
	BearerToken  string    `json:"bearer_token"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore stores and retrieves credentials by label.
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(label string) (*Account, error)
	List() ([]*Account, error)
	Delete(label string) error
	Exists(label string) bool
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Manager tries a chain of credential stores in order: keychain, encrypted
// file, environment.
type Manager struct {
	stores []CredentialStore
}

// NewManager builds the store chain. The keychain link is skipped when the
// platform has none; the encrypted file store always works.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("locating config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("creating encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves the account using the first store that accepts it.
func (m *Manager) Store(account *Account) error {
	if account.Label == "" {
		return errors.New("label is required")
	}
	if account.BearerToken == "" {
		return errors.New("bearer token is required")
	}

	account.LastModified = time.Now()

	var lastErr error
	for _, s := range m.stores {
		if err := s.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("storing credentials: %w", lastErr)
}

// Retrieve returns the account from the first store that has it.
func (m *Manager) Retrieve(label string) (*Account, error) {
	for _, s := range m.stores {
		if account, err := s.Retrieve(label); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, label)
}

// RetrieveDefault returns the environment token if one is set, otherwise the
// first stored account.
func (m *Manager) RetrieveDefault() (*Account, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if account, err := envStore.Retrieve(""); err == nil {
			return account, nil
		}
	}

	accounts, err := m.List()
	if err == nil && len(accounts) > 0 {
		return accounts[0], nil
	}
	return nil, ErrCredentialsNotFound
}

// List merges accounts across all stores, most recently modified wins.
func (m *Manager) List() ([]*Account, error) {
	byLabel := make(map[string]*Account)
	for _, s := range m.stores {
		accounts, err := s.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			if existing, ok := byLabel[account.Label]; !ok || account.LastModified.After(existing.LastModified) {
				byLabel[account.Label] = account
			}
		}
	}

	var result []*Account
	for _, account := range byLabel {
		result = append(result, account)
	}
	return result, nil
}

// Delete removes the label from every store that has it.
func (m *Manager) Delete(label string) error {
	var deleted bool
	var lastErr error
	for _, s := range m.stores {
		if err := s.Delete(label); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	if !deleted {
		if lastErr != nil {
			return fmt.Errorf("deleting credentials: %w", lastErr)
		}
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, label)
	}
	return nil
}

// MaskToken renders a token safe for display: first and last four
// characters only. The full token is never written to logs or output.
func MaskToken(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func configDir() (string, error) {
	var dir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "followcrawl")
	case "windows":
		dir = filepath.Join(os.Getenv("APPDATA"), "followcrawl")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "followcrawl")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".config", "followcrawl")
		}
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}
