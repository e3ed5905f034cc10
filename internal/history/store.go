// Package history keeps a journal of compression and decompression runs in a
// BuntDB file, together with the retention policy that prunes it.
package history

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/buntdb"
)

// ErrNotFound is returned when no entry has the requested ID.
var ErrNotFound = errors.New("history: entry not found")

const (
	keyPrefix = "run:"
	timeIndex = "run_time"
)

// Entry describes one finished run.
type Entry struct {
	ID          string        `json:"id"`
	Mode        string        `json:"mode"`
	Codec       string        `json:"codec"`
	Level       string        `json:"level,omitempty"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Status      string        `json:"status"`
	Message     string        `json:"message,omitempty"`
	Blocks      int64         `json:"blocks"`
	SourceBytes int64         `json:"sourceBytes"`
	OutputBytes int64         `json:"outputBytes"`
	Digest      string        `json:"digest,omitempty"`
	Published   string        `json:"published,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	Started     int64         `json:"started"` // Unix milliseconds, indexed
	Elapsed     time.Duration `json:"elapsed"`
}

// Succeeded reports whether the run finished successfully.
func (e Entry) Succeeded() bool {
	return e.Status == "success"
}

// Ratio returns output bytes per source byte, or 0 for an empty source.
func (e Entry) Ratio() float64 {
	if e.SourceBytes == 0 {
		return 0
	}
	return float64(e.OutputBytes) / float64(e.SourceBytes)
}

// Store is a run journal backed by BuntDB.
type Store struct {
	db    *buntdb.DB
	path  string
	mutex sync.RWMutex
}

// Open opens or creates the journal at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	if err := db.CreateIndex(timeIndex, keyPrefix+"*", buntdb.IndexJSON("started")); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history index")
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the location of the journal.
func (s *Store) Path() string {
	return s.path
}

// Close closes the journal.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.db.Close()
}

// Record adds or replaces an entry.
func (s *Store) Record(e Entry) error {
	if e.ID == "" {
		return errors.New("history: entry has no id")
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	e.Started = e.StartedAt.UnixMilli()

	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal history entry")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	err = s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(keyPrefix+e.ID, string(data), nil)
		return err
	})
	return errors.Wrapf(err, "record run %s", e.ID)
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (Entry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var e Entry
	err := s.db.View(func(tx *buntdb.Tx) error {
		data, err := tx.Get(keyPrefix + id)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(data), &e)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return Entry{}, errors.Wrapf(ErrNotFound, "%s", id)
	}
	if err != nil {
		return Entry{}, errors.Wrapf(err, "get run %s", id)
	}
	return e, nil
}

// List returns every entry, newest first.
func (s *Store) List() ([]Entry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var entries []Entry
	var decodeErr error
	err := s.db.View(func(tx *buntdb.Tx) error {
		return tx.Descend(timeIndex, func(key, value string) bool {
			var e Entry
			if err := json.Unmarshal([]byte(value), &e); err != nil {
				decodeErr = errors.Wrapf(err, "decode %s", key)
				return false
			}
			entries = append(entries, e)
			return true
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return entries, nil
}

// Delete removes an entry. Deleting a missing entry returns ErrNotFound.
func (s *Store) Delete(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(keyPrefix + id)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}
	return errors.Wrapf(err, "delete run %s", id)
}

// Prune deletes the entries the policy does not keep and returns their IDs.
func (s *Store) Prune(policy Policy, now time.Time) ([]string, error) {
	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	expired := ApplyPolicy(entries, policy, now)
	if len(expired) == 0 {
		return nil, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	err = s.db.Update(func(tx *buntdb.Tx) error {
		for _, id := range expired {
			if _, err := tx.Delete(keyPrefix + id); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "prune history")
	}
	return expired, nil
}
