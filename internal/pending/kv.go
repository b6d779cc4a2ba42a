package pending

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// MemoryKV is an in-memory storage medium, used in tests and anywhere the
// staging slot should not outlive the process.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemoryKV creates an empty in-memory medium.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// NewMemoryStore is a convenience constructor for tests.
func NewMemoryStore() *Store {
	return NewStore(NewMemoryKV())
}

// FileKV stores keys as a single JSON object in one file. It plays the
// role browser session storage plays for a web client: the slot survives
// process restarts within a session but is cheap to wipe.
type FileKV struct {
	mu   sync.Mutex
	path string
}

// NewFileKV creates a file-backed medium at path. The parent directory is
// created on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: path}
}

// NewFileStore creates a pending-message store backed by a session file.
func NewFileStore(path string) *Store {
	return NewStore(NewFileKV(path))
}

func (f *FileKV) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		// A corrupt session file is equivalent to an empty one.
		return map[string]string{}, nil
	}
	return data, nil
}

func (f *FileKV) save(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(f.path, raw, 0o600)
}

func (f *FileKV) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	data[key] = value
	return f.save(data)
}

func (f *FileKV) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return f.save(data)
}
