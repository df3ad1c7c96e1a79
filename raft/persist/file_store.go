// Package persist offers an optional, file-backed snapshot of a node's
// (term, voted-for) pair. It is not wired into core.Machine by default -
// the spec's non-goals exclude durable persistence of term/vote across
// restarts - but is provided as an opt-in convenience for an embedder that
// wants one, scaled down from the teacher's WAL persistence idiom
// (CreateLogStorage/RestoreLogStorage) to the two fields this core
// actually owns.
package persist

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"
)

// state is the gob-encoded record written to disk.
type state struct {
	Term     uint64
	VotedFor *string
}

// FileStore gob-encodes a state to a single file, writing through a
// temp-file-plus-rename so a reader never observes a partial write - the
// same atomic-replace idiom the teacher's WAL filename/encoder pair uses
// for segment rotation, here scaled to one small file instead of a log.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore backed by path. The file need not
// already exist; Load reports (0, nil, nil) until the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save persists term and votedFor, replacing any prior contents.
func (f *FileStore) Save(term uint64, votedFor *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state{Term: term, VotedFor: votedFor}); err != nil {
		return fmt.Errorf("persist: encode: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("persist: rename %s: %w", f.path, err)
	}
	return nil
}

// Load reads back the last Save. A file that has never been written
// reports the zero value and a nil error.
func (f *FileStore) Load() (term uint64, votedFor *string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("persist: read %s: %w", f.path, err)
	}

	var s state
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return 0, nil, fmt.Errorf("persist: decode %s: %w", f.path, err)
	}
	return s.Term, s.VotedFor, nil
}
