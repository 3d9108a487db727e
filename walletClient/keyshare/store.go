// Package keyshare persists signer handles at rest. Each handle is sealed
// with AES-256-GCM under a PBKDF2-SHA256 key derived from the node password
// and written to its own file, named after the account it belongs to.
package keyshare

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"

	"github.com/pushchain/push-wallet-signer/walletClient/descriptor"
)

var (
	ErrHandleNotFound   = errors.New("signer handle not found")
	ErrInvalidAccountID = errors.New("invalid account ID")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrUnknownFormat    = errors.New("unknown keyshare file format")
)

const (
	keysharesDirName = "keyshares"
	filePerms        = 0o600
	dirPerms         = 0o700
	fileSuffix       = ".share"

	formatV1         = byte(1)
	saltLength       = 32
	nonceLength      = 12
	keyLength        = 32
	pbkdf2Iterations = 100000
)

// Store keeps one sealed handle per account.
type Store struct {
	dir      string
	password string
	logger   zerolog.Logger

	mu sync.Mutex
}

// NewStore creates the keyshares directory under homeDir if needed.
func NewStore(homeDir, password string, logger zerolog.Logger) (*Store, error) {
	if homeDir == "" {
		return nil, errors.New("home directory cannot be empty")
	}
	if password == "" {
		return nil, errors.New("keyshare password cannot be empty")
	}

	dir := filepath.Join(homeDir, keysharesDirName)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return nil, fmt.Errorf("failed to create keyshares directory: %w", err)
	}

	return &Store{
		dir:      dir,
		password: password,
		logger:   logger.With().Str("component", "keyshare_store").Logger(),
	}, nil
}

// Store seals handle and writes it for accountID, replacing any previous
// handle. The write goes through a temp file so a crash never leaves a
// half-written share.
func (s *Store) Store(handle descriptor.Handle, accountID string) error {
	path, err := s.pathFor(accountID)
	if err != nil {
		return err
	}
	if handle == "" {
		return errors.New("signer handle cannot be empty")
	}

	sealed, err := s.seal([]byte(handle))
	if err != nil {
		return fmt.Errorf("failed to encrypt signer handle: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, filePerms); err != nil {
		return fmt.Errorf("failed to write keyshare file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit keyshare file: %w", err)
	}

	s.logger.Info().Str("account", normalizeAccountID(accountID)).Msg("signer handle stored")
	return nil
}

// Get returns the handle stored for accountID.
func (s *Store) Get(accountID string) (descriptor.Handle, error) {
	path, err := s.pathFor(accountID)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	sealed, err := os.ReadFile(path)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrHandleNotFound
		}
		return "", fmt.Errorf("failed to read keyshare file: %w", err)
	}

	plain, err := s.open(sealed)
	if err != nil {
		return "", err
	}
	return descriptor.ParseHandle(plain)
}

// Exists reports whether a handle is stored for accountID.
func (s *Store) Exists(accountID string) (bool, error) {
	path, err := s.pathFor(accountID)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check keyshare file: %w", err)
	}
	return true, nil
}

// List returns the stored account IDs in sorted order.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyshares directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, fileSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the handle for accountID. Deleting a missing handle
// returns ErrHandleNotFound.
func (s *Store) Delete(accountID string) error {
	path, err := s.pathFor(accountID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrHandleNotFound
		}
		return fmt.Errorf("failed to delete keyshare file: %w", err)
	}
	s.logger.Info().Str("account", normalizeAccountID(accountID)).Msg("signer handle deleted")
	return nil
}

// Account IDs are addresses; case is not significant.
func normalizeAccountID(accountID string) string {
	return strings.ToLower(strings.TrimSpace(accountID))
}

func (s *Store) pathFor(accountID string) (string, error) {
	id := normalizeAccountID(accountID)
	if id == "" {
		return "", ErrInvalidAccountID
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: account ID contains invalid characters", ErrInvalidAccountID)
	}
	return filepath.Join(s.dir, id+fileSuffix), nil
}

// seal returns version(1) || salt(32) || nonce(12) || ciphertext || tag(16).
func (s *Store) seal(plain []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceLength)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, 1+saltLength+nonceLength+len(plain)+gcm.Overhead())
	out = append(out, formatV1)
	out = append(out, salt...)
	return gcm.Seal(append(out, nonce...), nonce, plain, []byte{formatV1}), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 || sealed[0] != formatV1 {
		return nil, ErrUnknownFormat
	}
	body := sealed[1:]
	if len(body) < saltLength+nonceLength {
		return nil, ErrDecryptionFailed
	}
	salt, nonce, ciphertext := body[:saltLength], body[saltLength:saltLength+nonceLength], body[saltLength+nonceLength:]

	gcm, err := s.aead(salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, []byte{formatV1})
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

func (s *Store) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.password), salt, pbkdf2Iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
