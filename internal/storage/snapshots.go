package storage

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"ecopredict/internal/ecosystem"
)

// AppendSnapshot stores one ingested snapshot. Keys come from the
// bucket sequence so arrival order is preserved even when the simulator
// restarts its step counter.
func (s *Store) AppendSnapshot(snap ecosystem.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(snapshotsBucket))

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("snapshot sequence: %w", err)
		}

		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("marshal snapshot: %w", err)
		}

		return b.Put([]byte(fmt.Sprintf("%020d", seq)), data)
	})
}

// RecentSnapshots returns up to limit of the most recently ingested
// snapshots, oldest first.
func (s *Store) RecentSnapshots(limit int) ([]ecosystem.Snapshot, error) {
	if limit <= 0 {
		return nil, nil
	}

	var snaps []ecosystem.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(snapshotsBucket)).Cursor()

		// Walk backwards from the newest key, then reverse.
		for k, v := c.Last(); k != nil && len(snaps) < limit; k, v = c.Prev() {
			var snap ecosystem.Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				continue // Skip malformed records
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(snaps)-1; i < j; i, j = i+1, j-1 {
		snaps[i], snaps[j] = snaps[j], snaps[i]
	}
	return snaps, nil
}

// SnapshotCount reports how many snapshots have been ingested.
func (s *Store) SnapshotCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(snapshotsBucket)).Stats().KeyN
		return nil
	})
	return count, err
}
