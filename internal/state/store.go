package state

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when no record exists for an issue.
var ErrNotFound = errors.New("record not found")

// Store keeps one Record file per issue under Dir.
type Store struct {
	Dir string
	// LockTimeout bounds how long a read or write waits for the record lock.
	LockTimeout time.Duration
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir, LockTimeout: DefaultLockTimeout}
}

// Path returns the record file for an issue.
func (s *Store) Path(owner, repo string, number int) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s__%s__%d.md", owner, repo, number))
}

// Get reads the record for an issue.
func (s *Store) Get(owner, repo string, number int) (*Record, error) {
	path := s.Path(owner, repo, number)
	var rec *Record
	err := withReadLock(path, s.LockTimeout, func() error {
		var err error
		rec, err = readRecord(path)
		return err
	})
	return rec, err
}

// Update loads the record for an issue (or starts a new one), applies fn,
// and writes the result back under an exclusive lock.
func (s *Store) Update(owner, repo string, number int, fn func(*Record) error) (*Record, error) {
	path := s.Path(owner, repo, number)
	var rec *Record
	err := withLock(path, s.LockTimeout, func() error {
		r, err := readRecord(path)
		if errors.Is(err, ErrNotFound) {
			r = &Record{Owner: owner, Repo: repo, Number: number, Status: StatusWorking}
		} else if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		r.Updated = time.Now().UTC().Truncate(time.Second)
		data, err := r.marshal()
		if err != nil {
			return err
		}
		if err := atomicWriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing record %s: %w", path, err)
		}
		rec = r
		return nil
	})
	return rec, err
}

// List returns every record in the store, most recently updated first.
// Unreadable files are skipped with a warning.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading state directory: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		rec, err := readRecord(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable issue record", "file", e.Name(), "error", err)
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Updated.After(records[j].Updated)
	})
	return records, nil
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading record %s: %w", path, err)
	}
	rec, err := unmarshalRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// atomicWriteFile writes data to a temp file then renames it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
