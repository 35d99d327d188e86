package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a Store persisted as a single JSON snapshot file.
// Every mutation rewrites the snapshot through a temp file and rename,
// so each Put/Clear commits atomically even if the process dies mid-write.
//
// The whole bucket is held in memory between commits. That is an accepted
// trade-off: buckets here hold either one key record or a bounded corpus
// of documents, and the store above already accepts O(n) scans.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries []Entry
	index   map[string]int // key -> position in entries
}

// OpenFile opens (or creates) a file-backed bucket at path.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		index: make(map[string]int),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, path, err)
		}
	}
	for i, e := range s.entries {
		s.index[e.Key] = i
	}

	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return cloneBytes(s.entries[i].Value), nil
}

func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.snapshotEntry(key)
	s.setLocked(key, value)
	if err := s.persistLocked(); err != nil {
		// Roll back the in-memory state so a failed commit is invisible.
		if existed {
			s.setLocked(key, prev)
		} else {
			s.dropLocked(key)
		}
		return err
	}
	return nil
}

func (s *FileStore) PutIfAbsent(_ context.Context, key string, value []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[key]; ok {
		return cloneBytes(s.entries[i].Value), nil
	}

	s.setLocked(key, value)
	if err := s.persistLocked(); err != nil {
		s.dropLocked(key)
		return nil, err
	}
	return cloneBytes(value), nil
}

func (s *FileStore) GetAll(_ context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Key: e.Key, Value: cloneBytes(e.Value)}
	}
	return out, nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevEntries, prevIndex := s.entries, s.index
	s.entries = nil
	s.index = make(map[string]int)
	if err := s.persistLocked(); err != nil {
		s.entries, s.index = prevEntries, prevIndex
		return err
	}
	return nil
}

// setLocked inserts or overwrites a key. Overwrites keep the original
// insertion position.
func (s *FileStore) setLocked(key string, value []byte) {
	if i, ok := s.index[key]; ok {
		s.entries[i].Value = cloneBytes(value)
		return
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, Entry{Key: key, Value: cloneBytes(value)})
}

func (s *FileStore) dropLocked(key string) {
	i, ok := s.index[key]
	if !ok {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, key)
	for j := i; j < len(s.entries); j++ {
		s.index[s.entries[j].Key] = j
	}
}

func (s *FileStore) snapshotEntry(key string) ([]byte, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return cloneBytes(s.entries[i].Value), true
}

// persistLocked writes the snapshot via temp file + rename.
func (s *FileStore) persistLocked() error {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, s.path, err)
	}

	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
