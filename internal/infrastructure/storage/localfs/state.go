package localfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// StateFile stores the CLI's current address between invocations so the
// durable reference survives a restart.
type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// Load returns the stored address, or "" when nothing was stored yet.
func (f *StateFile) Load() (string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read state file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

func (f *StateFile) Save(address string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return writeFileAtomic(f.path, strings.NewReader(address+"\n"))
}
