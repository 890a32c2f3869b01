package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harrisonrobin/flowdesk/pkg/model"
)

// SessionFile is the name of the persisted session under the config dir.
const SessionFile = "session.json"

// Snapshot is what survives a restart: the bearer token and the user it belongs to.
type Snapshot struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Storage persists a session snapshot.
type Storage interface {
	// Load returns an empty snapshot when nothing was saved.
	Load() (Snapshot, error)
	Save(Snapshot) error
	Clear() error
}

// FileStorage keeps the snapshot in a JSON file readable only by its owner.
type FileStorage struct {
	Path string
}

// NewFileStorage stores the session in dir/session.json.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{Path: filepath.Join(dir, SessionFile)}
}

func (f *FileStorage) Load() (Snapshot, error) {
	var snap Snapshot
	file, err := os.Open(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return snap, err
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode session from file %s: %w", f.Path, err)
	}
	return snap, nil
}

func (f *FileStorage) Save(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		return fmt.Errorf("could not create session directory: %w", err)
	}
	file, err := os.OpenFile(f.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to save session to %s: %w", f.Path, err)
	}
	defer file.Close()
	return json.NewEncoder(file).Encode(snap)
}

func (f *FileStorage) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// MemoryStorage keeps the snapshot in memory.
type MemoryStorage struct {
	mu   sync.Mutex
	snap Snapshot
}

func (m *MemoryStorage) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, nil
}

func (m *MemoryStorage) Save(snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = Snapshot{}
	return nil
}
