// Package storage provides the durable side of the prediction service
// on BoltDB: the trained model artifact (classifier + scaler persisted
// as one unit) and the stream of ingested population snapshots.
//
// The artifact is written as a single JSON value inside one write
// transaction, so a reader can never observe a classifier paired with
// a mismatched scaler.
package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"ecopredict/internal/ml"
)

const (
	modelsBucket    = "models"    // Bucket for trained model artifacts
	snapshotsBucket = "snapshots" // Bucket for ingested population snapshots

	collapseModelKey = "collapse"
)

// Store is the BoltDB-backed persistence layer. It satisfies
// ml.ModelStore and additionally keeps the snapshot history used to
// seed forecasts and training runs.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath and ensures the
// buckets exist.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "ecopredict.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotsBucket)); err != nil {
			return fmt.Errorf("create snapshots bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveModel persists the (classifier, scaler) artifact, overwriting any
// prior one. The single Put inside one transaction is what makes the
// dual-artifact update atomic.
func (s *Store) SaveModel(art *ml.Artifact) error {
	data, err := json.Marshal(art)
	if err != nil {
		return fmt.Errorf("marshal model artifact: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).Put([]byte(collapseModelKey), data)
	})
}

// LoadModel returns the persisted artifact, or (nil, nil) when none has
// been saved yet.
func (s *Store) LoadModel() (*ml.Artifact, error) {
	var art *ml.Artifact

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(modelsBucket)).Get([]byte(collapseModelKey))
		if data == nil {
			return nil
		}
		art = &ml.Artifact{}
		if err := json.Unmarshal(data, art); err != nil {
			return fmt.Errorf("unmarshal model artifact: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return art, nil
}
