package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/printbridge/backend/pkg/config"
)

// Store persists uploaded documents on local disk, one directory per user.
type Store struct {
	root string
}

// SaveResult describes a file written to disk.
type SaveResult struct {
	StoredName  string
	SizeBytes   int64
	ContentHash string
}

func New(cfg config.StorageConfig) (*Store, error) {
	if cfg.UploadRoot == "" {
		return nil, fmt.Errorf("upload root is required")
	}
	if err := os.MkdirAll(cfg.UploadRoot, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload root: %w", err)
	}
	return &Store{root: cfg.UploadRoot}, nil
}

// Save streams the reader to disk under the user's directory, hashing as it writes.
// The stored name is timestamped and randomized so original names never collide.
func (s *Store) Save(userID uuid.UUID, originalName string, r io.Reader) (*SaveResult, error) {
	dir := s.userDir(userID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating user directory: %w", err)
	}

	storedName := buildStoredName(originalName)
	path := filepath.Join(dir, storedName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hasher), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	return &SaveResult{
		StoredName:  storedName,
		SizeBytes:   size,
		ContentHash: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open returns a reader over a stored file.
func (s *Store) Open(userID uuid.UUID, storedName string) (io.ReadSeekCloser, error) {
	path, err := s.safePath(userID, storedName)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes a stored file. A missing file is not an error so that
// metadata cleanup always succeeds.
func (s *Store) Delete(userID uuid.UUID, storedName string) error {
	path, err := s.safePath(userID, storedName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file: %w", err)
	}
	return nil
}

// DeleteUserDir removes a user's entire upload directory.
func (s *Store) DeleteUserDir(userID uuid.UUID) error {
	if err := os.RemoveAll(s.userDir(userID)); err != nil {
		return fmt.Errorf("removing user directory: %w", err)
	}
	return nil
}

func (s *Store) userDir(userID uuid.UUID) string {
	return filepath.Join(s.root, userID.String())
}

func (s *Store) safePath(userID uuid.UUID, storedName string) (string, error) {
	if storedName == "" || storedName != filepath.Base(storedName) {
		return "", fmt.Errorf("invalid stored name %q", storedName)
	}
	return filepath.Join(s.userDir(userID), storedName), nil
}

func buildStoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	stamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("%s_%s%s", stamp, uuid.NewString(), ext)
}
