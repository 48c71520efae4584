package credentials

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	masterKeySize = 32
	keyInfo       = "authflow credential store v1"
)

type fileRecord struct {
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	SavedAt time.Time `json:"saved_at"`
}

// FileStore writes the token pair to a single file sealed with
// XChaCha20-Poly1305. The master key lives in a separate 0600 file and is
// created on first use; the sealing key is derived from it with HKDF.
type FileStore struct {
	mu      sync.Mutex
	path    string
	keyPath string
	aead    cipher.AEAD
	nowTime func() time.Time
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path, keyPath string) (*FileStore, error) {
	if path == "" {
		return nil, errors.Wrap(autherrors.ErrMissingConfig, "[NewFileStore] store path is required")
	}
	if keyPath == "" {
		keyPath = path + ".key"
	}
	master, err := loadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(keyInfo)), key); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] failed to derive key")
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] failed to create cipher")
	}
	return &FileStore{path: path, keyPath: keyPath, aead: aead, nowTime: time.Now}, nil
}

func (s *FileStore) Save(_ context.Context, access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plain, err := json.Marshal(fileRecord{Access: access, Refresh: refresh, SavedAt: s.nowTime().UTC()})
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] failed to encode tokens")
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "[FileStore.Save] failed to generate nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, plain, []byte(s.path))
	if err := writeFileAtomic(s.path, sealed); err != nil {
		return errors.Wrap(err, "[FileStore.Save] failed to write store")
	}
	return nil
}

func (s *FileStore) LoadAccess(context.Context) (string, error) {
	rec, err := s.read()
	if err != nil {
		return "", err
	}
	if rec.Access == "" {
		return "", ErrNoToken
	}
	return rec.Access, nil
}

func (s *FileStore) LoadRefresh(context.Context) (string, error) {
	rec, err := s.read()
	if err != nil {
		return "", err
	}
	if rec.Refresh == "" {
		return "", ErrNoToken
	}
	return rec.Refresh, nil
}

func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "[FileStore.Clear] failed to remove store")
	}
	return nil
}

func (s *FileStore) read() (fileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return fileRecord{}, ErrNoToken
	}
	if err != nil {
		return fileRecord{}, errors.Wrap(err, "[FileStore.read] failed to read store")
	}
	ns := s.aead.NonceSize()
	if len(data) < ns {
		return fileRecord{}, errors.Wrap(autherrors.ErrStoreCorrupt, "[FileStore.read] store truncated")
	}
	plain, err := s.aead.Open(nil, data[:ns], data[ns:], []byte(s.path))
	if err != nil {
		return fileRecord{}, errors.Wrap(autherrors.ErrStoreCorrupt, "[FileStore.read] failed to open store")
	}
	var rec fileRecord
	if err := json.Unmarshal(plain, &rec); err != nil {
		return fileRecord{}, errors.Wrap(autherrors.ErrStoreCorrupt, "[FileStore.read] failed to decode store")
	}
	return rec, nil
}

func loadOrCreateKey(keyPath string) ([]byte, error) {
	key, err := os.ReadFile(keyPath)
	if err == nil {
		if len(key) != masterKeySize {
			return nil, errors.Wrapf(autherrors.ErrStoreCorrupt, "[loadOrCreateKey] key file %s has wrong size", keyPath)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "[loadOrCreateKey] failed to read key file")
	}
	key = make([]byte, masterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Wrap(err, "[loadOrCreateKey] failed to generate key")
	}
	if err := writeFileAtomic(keyPath, key); err != nil {
		return nil, errors.Wrap(err, "[loadOrCreateKey] failed to write key file")
	}
	return key, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
