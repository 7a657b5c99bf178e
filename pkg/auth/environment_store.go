package auth

import (
	"os"
	"time"
)

// EnvironmentStore reads the bearer token from FOLLOWCRAWL_BEARER_TOKEN.
// Read-only: CI and containers set the token this way.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(label string) (*Account, error) {
	token := os.Getenv("FOLLOWCRAWL_BEARER_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}

	if label == "" {
		label = "default"
	}
	return &Account{
		Label:        label,
		BearerToken:  token,
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(label string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(label string) bool {
	return os.Getenv("FOLLOWCRAWL_BEARER_TOKEN") != ""
}
