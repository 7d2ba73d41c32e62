package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps the token in a single file readable only by its owner
type FileStore struct {
	dir  string
	path string
}

// NewFileStore creates a file-backed store rooted at dir
func NewFileStore(dir, key string) (*FileStore, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	return &FileStore{
		dir:  dir,
		path: filepath.Join(dir, key),
	}, nil
}

// Path returns the token file location
func (s *FileStore) Path() string {
	return s.path
}

// Backend implements Store.Backend
func (s *FileStore) Backend() string {
	return BackendFile
}

// Load implements Store.Load
func (s *FileStore) Load(ctx context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Save implements Store.Save. The token is written to a temporary file and
// renamed into place so readers never observe a partial write.
func (s *FileStore) Save(ctx context.Context, token string) error {
	tmp, err := os.CreateTemp(s.dir, ".token-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set token file mode: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to move token file into place: %w", err)
	}
	return nil
}

// Delete implements Store.Delete
func (s *FileStore) Delete(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

// Close implements Store.Close
func (s *FileStore) Close() error {
	return nil
}

// ChangeKind describes an external change to the token file
type ChangeKind int

const (
	// TokenWritten means the token file was created or replaced
	TokenWritten ChangeKind = iota
	// TokenRemoved means the token file was deleted
	TokenRemoved
)

func (k ChangeKind) String() string {
	if k == TokenRemoved {
		return "removed"
	}
	return "written"
}

// Watch calls fn whenever the token file is written or removed, typically by
// another process sharing the same directory. It blocks until ctx is done.
func (s *FileStore) Watch(ctx context.Context, fn func(ChangeKind)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: the file itself is replaced on every save.
	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				fn(TokenWritten)
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				fn(TokenRemoved)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func defaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "backoffice")
	}
	return filepath.Join(os.TempDir(), "backoffice")
}
