package crawler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	perr "github.com/ppiankov/wikiedits/internal/errors"
	"github.com/ppiankov/wikiedits/internal/model"
)

// fileSink appends JSON lines to one file. Appends are serialized by its own mutex.
type fileSink struct {
	mu   sync.Mutex
	path string
}

// Append writes one record as a single line
func (s *fileSink) Append(rec model.RevisionRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode revision")
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "open %s", s.path)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return perr.Wrapf(err, perr.ErrorCodeIO, "append to %s", s.path)
	}
	if err := f.Close(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeIO, "close %s", s.path)
	}
	return nil
}

// sinks hands out one fileSink per path
type sinks struct {
	mu    sync.Mutex
	files map[string]*fileSink
}

func newSinks() *sinks {
	return &sinks{files: make(map[string]*fileSink)}
}

func (s *sinks) get(path string) (*fileSink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fs, ok := s.files[path]; ok {
		return fs, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeIO, "create %s", filepath.Dir(path))
	}
	fs := &fileSink{path: path}
	s.files[path] = fs
	return fs, nil
}
