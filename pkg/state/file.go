package state

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-gocardless/pkg/json"
)

// FileStore keeps every stream's state in one JSON document. Writes go to
// a temporary file that is renamed over the original.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file need not exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "state path is required for the file backend")
	}
	return &FileStore{path: path}, nil
}

func (f *FileStore) Load(_ context.Context, stream string) (core.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return nil, err
	}
	return all[stream], nil
}

func (f *FileStore) Save(_ context.Context, stream string, state core.State) error {
	if err := validateStream(stream); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return err
	}
	all[stream] = state.Copy()
	return f.write(all)
}

func (f *FileStore) Delete(_ context.Context, stream string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := all[stream]; !ok {
		return nil
	}
	delete(all, stream)
	return f.write(all)
}

func (f *FileStore) Close() error { return nil }

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) read() (map[string]core.State, error) {
	all := make(map[string]core.State)

	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return all, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open state file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat state file")
	}
	if info.Size() == 0 {
		return all, nil
	}
	if err := jsonpool.Decode(file, &all); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeState, "corrupt state file "+f.path)
	}
	return all, nil
}

func (f *FileStore) write(all map[string]core.State) error {
	b, err := jsonpool.MarshalIndent(all, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeState, "failed to encode state")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary state file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to sync state file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close state file")
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace state file")
	}
	return nil
}
