package credentials

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltSize  = 16
	nonceSize = 24
)

// ErrCorruptFile is returned when the credential file exists but cannot be decoded.
var ErrCorruptFile = errors.New("credential file is corrupt")

// FileStorage keeps all keys in one JSON object on disk. The file is
// rewritten atomically (temp file + rename) with 0600 permissions. When a
// passphrase is set the JSON is encrypted with NaCl secretbox under an
// argon2id key. The sealed layout is salt | nonce | box.
type FileStorage struct {
	mu         sync.Mutex
	path       string
	passphrase []byte

	// last derived key and the salt it was derived with
	salt []byte
	key  *[32]byte
}

var _ Storage = (*FileStorage)(nil)

type FileOption func(*FileStorage)

// WithPassphrase seals the file with a key derived from passphrase. An empty passphrase leaves the file plain.
func WithPassphrase(passphrase string) FileOption {
	return func(f *FileStorage) {
		if passphrase == "" {
			return
		}
		f.passphrase = []byte(passphrase)
	}
}

// NewFileStorage returns a storage rooted at path. The file and its parent
// directory are created lazily on the first write.
func NewFileStorage(path string, opts ...FileOption) *FileStorage {
	f := &FileStorage{path: path}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (f *FileStorage) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if errors.Is(err, ErrCorruptFile) {
		// Overwrite unreadable content rather than failing every future write.
		values = map[string]string{}
	} else if err != nil {
		return err
	}
	values[key] = value
	return f.write(values)
}

func (f *FileStorage) Remove(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if errors.Is(err, ErrCorruptFile) {
		values = map[string]string{}
	} else if err != nil {
		return err
	}
	for _, key := range keys {
		delete(values, key)
	}
	if len(values) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("[FileStorage Remove] %w", err)
		}
		return nil
	}
	return f.write(values)
}

func (f *FileStorage) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileStorage read] %w", err)
	}
	if f.passphrase != nil {
		if data, err = f.open(data); err != nil {
			return nil, err
		}
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptFile, err)
	}
	return values, nil
}

func (f *FileStorage) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	if f.passphrase != nil {
		if data, err = f.seal(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("[FileStorage write] %w", err)
	}
	return nil
}

// deriveKey returns the key for salt, reusing the cached one when the salt is unchanged.
func (f *FileStorage) deriveKey(salt []byte) *[32]byte {
	if f.key != nil && bytes.Equal(f.salt, salt) {
		return f.key
	}
	var key [32]byte
	copy(key[:], argon2.IDKey(f.passphrase, salt, 1, 64*1024, 4, 32))
	f.salt = append([]byte(nil), salt...)
	f.key = &key
	return f.key
}

func (f *FileStorage) seal(plain []byte) ([]byte, error) {
	salt := f.salt
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("[FileStorage seal] %w", err)
		}
	}
	key := f.deriveKey(salt)

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("[FileStorage seal] %w", err)
	}
	out := append(append([]byte(nil), salt...), nonce[:]...)
	return secretbox.Seal(out, plain, &nonce, key), nil
}

func (f *FileStorage) open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return nil, ErrCorruptFile
	}
	key := f.deriveKey(sealed[:saltSize])
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])
	plain, ok := secretbox.Open(nil, sealed[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return nil, ErrCorruptFile
	}
	return plain, nil
}
