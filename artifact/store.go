// Package artifact manages the per-run temporary directory holding one
// serialized contact map per scanned chunk.
package artifact

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/guigolab/bammatrix/contact"
	log "github.com/sirupsen/logrus"
)

const (
	dirPrefix = "_tmp_"
	extension = ".gob"
)

// ErrMissing is returned by Read when no artifact was written for a key.
var ErrMissing = errors.New("artifact missing")

// ArtifactIOError reports a failure to write or read a temporary artifact.
type ArtifactIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ArtifactIOError) Error() string {
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ArtifactIOError) Unwrap() error {
	return e.Err
}

// Store is the temporary directory of a single run. Each key owns exactly one
// file, so concurrent writers never collide.
type Store struct {
	RunID string
	Dir   string
}

// NewStore creates a run directory with a random name under tmpdir.
func NewStore(tmpdir string) (*Store, error) {
	if tmpdir == "" {
		tmpdir = os.TempDir()
	}
	id := strings.Replace(uuid.New().String(), "-", "", -1)
	dir := filepath.Join(tmpdir, dirPrefix+id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &ArtifactIOError{"mkdir", dir, err}
	}
	log.WithFields(log.Fields{
		"run": id,
		"dir": dir,
	}).Debug("Created run directory")
	return &Store{id, dir}, nil
}

// WithStore runs fn with a fresh Store and removes the run directory whatever
// fn returns or panics with.
func WithStore(tmpdir string, fn func(*Store) error) (err error) {
	s, err := NewStore(tmpdir)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// Path returns the artifact file path for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, strings.Replace(key, string(filepath.Separator), "_", -1)+extension)
}

// Exists reports whether an artifact was written for key.
func (s *Store) Exists(key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Write serializes c under key. The file only appears once fully written.
func (s *Store) Write(key string, c contact.Counts) error {
	path := s.Path(key)
	part := path + ".part"
	f, err := os.Create(part)
	if err != nil {
		return &ArtifactIOError{"create", part, err}
	}
	if err := gob.NewEncoder(f).Encode(c.Triples()); err != nil {
		f.Close()
		os.Remove(part)
		return &ArtifactIOError{"encode", part, err}
	}
	if err := f.Close(); err != nil {
		os.Remove(part)
		return &ArtifactIOError{"close", part, err}
	}
	if err := os.Rename(part, path); err != nil {
		return &ArtifactIOError{"rename", path, err}
	}
	return nil
}

// Read returns the cells stored under key, sorted by row then column.
func (s *Store) Read(key string) ([]contact.Triple, error) {
	path := s.Path(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissing
		}
		return nil, &ArtifactIOError{"open", path, err}
	}
	defer f.Close()
	var ts []contact.Triple
	if err := gob.NewDecoder(f).Decode(&ts); err != nil {
		return nil, &ArtifactIOError{"decode", path, err}
	}
	return ts, nil
}

// Close removes the run directory and everything in it.
func (s *Store) Close() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return &ArtifactIOError{"remove", s.Dir, err}
	}
	log.WithField("run", s.RunID).Debug("Removed run directory")
	return nil
}
