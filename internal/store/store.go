// Package store persists each composite tracker's fused state so a restart
// picks up where the previous run left off. Position history is deliberately
// not persisted; speed derivation starts fresh.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnordin/composite-hass/internal/tracker"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const trackersBucket = "trackers"

// Store is a bbolt-backed state archive, keyed by tracker ID.
type Store struct {
	db     *bolt.DB
	logger *logrus.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, logger *logrus.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(trackersBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create state bucket: %w", err)
	}
	logger.WithField("path", path).Debug("State store opened")
	return &Store{db: db, logger: logger}, nil
}

// Save persists the state for one tracker.
func (s *Store) Save(id string, st tracker.State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state for %s: %w", id, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(trackersBucket)).Put([]byte(id), payload)
	})
	if err != nil {
		return fmt.Errorf("failed to save state for %s: %w", id, err)
	}
	return nil
}

// Load returns the persisted state for a tracker, or nil when none exists.
func (s *Store) Load(id string) (*tracker.State, error) {
	var payload []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(trackersBucket)).Get([]byte(id)); v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load state for %s: %w", id, err)
	}
	if payload == nil {
		return nil, nil
	}
	var st tracker.State
	if err := json.Unmarshal(payload, &st); err != nil {
		// A corrupt record is not worth failing startup over.
		s.logger.WithError(err).WithField("tracker", id).Warn("Discarding unreadable persisted state")
		return nil, nil
	}
	return &st, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
