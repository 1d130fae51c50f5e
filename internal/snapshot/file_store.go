package snapshot

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileStore keeps exports as <dir>/<chatID>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create snapshot directory %s", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file used for chatID.
func (s *FileStore) Path(chatID int64) string {
	return filepath.Join(s.dir, fileName(chatID))
}

// Save writes data through a temporary file so a crash never leaves a torn export.
func (s *FileStore) Save(_ context.Context, chatID int64, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, fileName(chatID)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary snapshot")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close snapshot")
	}
	if err := os.Rename(tmp.Name(), s.Path(chatID)); err != nil {
		return errors.Wrap(err, "failed to move snapshot into place")
	}
	return nil
}

// Load reads the export of chatID.
func (s *FileStore) Load(_ context.Context, chatID int64) (*Export, error) {
	data, err := os.ReadFile(s.Path(chatID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot of chat %d", chatID)
	}
	return decode(data)
}
