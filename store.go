package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
)

// BackupSuffix is appended to the ledger path for the compressed snapshot of
// the previous file content.
const BackupSuffix = ".bak.br"

type fileStore struct {
	path   string
	backup bool
}

func (s fileStore) read() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileNotFound, s.path, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileRead, s.path, err)
	}
	return data, nil
}

// write replaces the file through a temporary file in the same directory so
// a crash never leaves a truncated ledger behind.
func (s fileStore) write(data []byte) error {
	mode := fs.FileMode(0o644)
	if fi, err := os.Stat(s.path); err == nil {
		mode = fi.Mode().Perm()
		if s.backup {
			if err := s.snapshot(); err != nil {
				return fmt.Errorf("%w: backup: %w", ErrFileWrite, err)
			}
		}
	}
	if err := writeFileAtomic(s.path, data, mode); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileWrite, s.path, err)
	}
	return nil
}

func (s fileStore) snapshot() error {
	current, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	bw := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := bw.Write(current); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}
	return writeFileAtomic(s.path+BackupSuffix, buf.Bytes(), 0o600)
}

func (s fileStore) readBackup() ([]byte, error) {
	f, err := os.Open(s.path + BackupSuffix)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s%s: %w", ErrFileNotFound, s.path, BackupSuffix, err)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s: %w", ErrFileRead, s.path, BackupSuffix, err)
	}
	defer f.Close()
	data, err := io.ReadAll(brotli.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %s%s: %w", ErrFileRead, s.path, BackupSuffix, err)
	}
	return data, nil
}

func writeFileAtomic(path string, data []byte, mode fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
