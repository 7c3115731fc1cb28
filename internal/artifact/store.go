package artifact

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

// MaxNameLength bounds the file name stem, extension excluded.
const MaxNameLength = 100

// Extension is appended to every screenshot file name.
const Extension = ".png"

// hashSuffixLength is the number of hex characters kept from the key hash
// when a name has to be truncated.
const hashSuffixLength = 8

var (
	// ErrEmptyArtifact is returned when Save is given no data.
	ErrEmptyArtifact = errors.New("artifact is empty")

	// ErrInvalidName is returned when a file name would escape the store directory.
	ErrInvalidName = errors.New("invalid artifact name")
)

// FileName turns a normalized URL into a file name that is safe on every
// filesystem: each byte that is not an ASCII letter or digit becomes '_'.
// Stems longer than MaxNameLength are cut and end with a short hash of the
// full key, so two long URLs sharing a prefix do not overwrite each other.
func FileName(key string) string {
	var sb strings.Builder
	sb.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('_')
	}

	stem := sb.String()
	if stem == "" {
		stem = "_"
	}
	if len(stem) > MaxNameLength {
		sum := sha3.Sum256([]byte(key))
		suffix := hex.EncodeToString(sum[:])[:hashSuffixLength]
		stem = stem[:MaxNameLength-hashSuffixLength-1] + "_" + suffix
	}
	return stem + Extension
}

// Store writes artifacts into one directory.
// The directory is created on the first Save.
type Store struct {
	dir string

	mu      sync.Mutex
	created bool
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory artifacts are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under name and returns the resulting path.
// An existing file with the same name is replaced.
func (s *Store) Save(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyArtifact
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	if err := s.ensureDir(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// ensureDir creates the store directory once.
func (s *Store) ensureDir() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.created {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	s.created = true
	return nil
}
