package state

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps line states in a single JSON file, rewritten on every
// change.
type FileStore struct {
	mu    sync.Mutex
	path  string
	lines map[string]LineState
}

// NewFileStore loads existing state from path. A missing or unreadable file
// starts empty rather than failing; stale calibrations are not worth
// refusing to boot over.
func NewFileStore(path string) *FileStore {
	s := &FileStore{
		path:  path,
		lines: make(map[string]LineState),
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).Warn("failed to read state file")
		}
		return s
	}
	if err := json.Unmarshal(b, &s.lines); err != nil {
		logrus.WithError(err).Warn("failed to unmarshal state file")
		s.lines = make(map[string]LineState)
	}
	return s
}

func (s *FileStore) Get(line string) (LineState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.lines[line]
	return st, ok
}

func (s *FileStore) Put(line string, st LineState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[line] = st
	s.persistLocked()
}

func (s *FileStore) persistLocked() {
	if s.path == "" {
		return
	}
	b, err := json.MarshalIndent(s.lines, "", "  ")
	if err != nil {
		logrus.WithError(err).Error("marshal state")
		return
	}
	if err := os.WriteFile(s.path, b, 0644); err != nil {
		logrus.WithError(err).Error("write state")
	}
}
