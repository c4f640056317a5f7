package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// argon2id parameters for deriving the sealing key from the passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	saltLength   = 16
)

// FileStore keeps the tokens in a 0600 JSON file. When a passphrase is given the
// file holds a sealed envelope instead of plain JSON.
type FileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

var _ Store = (*FileStore)(nil)

// sealedFile is the on-disk envelope of a sealed token file.
type sealedFile struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Data    []byte `json:"data"`
}

func NewFileStore(path, passphrase string) *FileStore {
	return &FileStore{path: path, passphrase: passphrase}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Tokens{}, nil
		}
		return Tokens{}, fmt.Errorf("read token file: %w", err)
	}

	if s.passphrase != "" {
		if data, err = s.open(data); err != nil {
			return Tokens{}, err
		}
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("%w: %v", shoperrors.ErrStoreCorrupt, err)
	}
	return tokens, nil
}

func (s *FileStore) Save(_ context.Context, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	if s.passphrase != "" {
		if data, err = s.seal(data); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	return s.writeAtomic(data)
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// writeAtomic writes to a temp file, fsyncs it and renames it over the target.
func (s *FileStore) writeAtomic(data []byte) error {
	tmpPath := s.path + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp to token file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := chacha20poly1305.NewX(s.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return json.Marshal(sealedFile{
		Version: 1,
		Salt:    salt,
		Nonce:   nonce,
		Data:    aead.Seal(nil, nonce, plaintext, []byte(KeyAccessToken)),
	})
}

func (s *FileStore) open(data []byte) ([]byte, error) {
	var env sealedFile
	if err := json.Unmarshal(data, &env); err != nil || env.Version != 1 {
		return nil, shoperrors.ErrStoreCorrupt
	}

	aead, err := chacha20poly1305.NewX(s.deriveKey(env.Salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, shoperrors.ErrStoreCorrupt
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Data, []byte(KeyAccessToken))
	if err != nil {
		return nil, shoperrors.ErrStoreSealed
	}
	return plaintext, nil
}

func (s *FileStore) deriveKey(salt []byte) []byte {
	return argon2.IDKey([]byte(s.passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
