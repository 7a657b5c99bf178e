package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
)

// EncryptedFileStore keeps credentials in an AES-GCM encrypted file. The key
// is derived from a passphrase (env var or a generated file next to the
// store) via PBKDF2.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// envelope is the on-disk layout. The encrypted payload is a JSON map of
// label to Account.
type envelope struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore creates a store backed by the given file path.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating directory: %w", err)
		}
	}

	s := &EncryptedFileStore{path: path}
	passphrase, err := s.loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("loading passphrase: %w", err)
	}
	s.passphrase = passphrase
	return s, nil
}

func (s *EncryptedFileStore) Store(account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if account == nil || account.Label == "" {
		return ErrInvalidCredentials
	}

	accounts, _, err := s.load()
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if accounts == nil {
		accounts = make(map[string]Account)
	}

	accounts[account.Label] = *account
	return s.save(accounts)
}

func (s *EncryptedFileStore) Retrieve(label string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if label == "" {
		return nil, ErrInvalidCredentials
	}

	accounts, _, err := s.load()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}

	account, ok := accounts[label]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (s *EncryptedFileStore) List() ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts, _, err := s.load()
	if err != nil {
		if os.IsNotExist(err) {
			return []*Account{}, nil
		}
		return nil, err
	}

	var result []*Account
	for _, account := range accounts {
		a := account
		result = append(result, &a)
	}
	return result, nil
}

func (s *EncryptedFileStore) Delete(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if label == "" {
		return ErrInvalidCredentials
	}

	accounts, _, err := s.load()
	if err != nil {
		if os.IsNotExist(err) {
			return ErrCredentialsNotFound
		}
		return err
	}
	if _, ok := accounts[label]; !ok {
		return ErrCredentialsNotFound
	}

	delete(accounts, label)
	if len(accounts) == 0 {
		return os.Remove(s.path)
	}
	return s.save(accounts)
}

func (s *EncryptedFileStore) Exists(label string) bool {
	account, err := s.Retrieve(label)
	return err == nil && account != nil
}

func (s *EncryptedFileStore) load() (map[string]Account, string, error) {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", err
	}

	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, "", fmt.Errorf("parsing credential file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, "", fmt.Errorf("decoding salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return nil, "", fmt.Errorf("decoding payload: %w", err)
	}

	key := pbkdf2.Key([]byte(s.passphrase), salt, iterations, keySize, sha256.New)
	plaintext, err := decrypt(ciphertext, key)
	if err != nil {
		return nil, "", fmt.Errorf("decrypting credential file: %w", err)
	}

	var accounts map[string]Account
	if err := json.Unmarshal(plaintext, &accounts); err != nil {
		return nil, "", fmt.Errorf("parsing accounts: %w", err)
	}
	return accounts, env.Salt, nil
}

func (s *EncryptedFileStore) save(accounts map[string]Account) error {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	key := pbkdf2.Key([]byte(s.passphrase), salt, iterations, keySize, sha256.New)

	plaintext, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("marshalling accounts: %w", err)
	}
	ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("encrypting accounts: %w", err)
	}

	content, err := json.MarshalIndent(envelope{
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(ciphertext),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling credential file: %w", err)
	}

	// Write-then-rename so a crash never leaves a half-written file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// loadPassphrase prefers FOLLOWCRAWL_PASSPHRASE, then a generated
// passphrase file beside the credential store.
func (s *EncryptedFileStore) loadPassphrase() (string, error) {
	if pass := os.Getenv("FOLLOWCRAWL_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	passphraseFile := filepath.Join(filepath.Dir(s.path), ".passphrase")
	if content, err := os.ReadFile(passphraseFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generating passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(passphraseFile, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("saving passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
