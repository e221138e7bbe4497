package artifact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfacon/thermosync/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var bucketRuns = []byte("runs")

// HistoryStore keeps finished run summaries in a BoltDB file. It is an
// append-only diagnostic record; the coordinator never reads it.
type HistoryStore struct {
	db *bolt.DB
}

// NewHistoryStore opens (or creates) the history database.
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create runs bucket: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// Close closes the database
func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Record appends the run summary keyed by start time and run ID so keys
// sort chronologically.
func (s *HistoryStore) Record(summary types.RunSummary) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		data, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		key := summary.StartedAt.UTC().Format(time.RFC3339Nano) + "/" + summary.RunID
		return b.Put([]byte(key), data)
	})
}

// Recent returns up to n summaries, most recent first. Used only by the
// CLI history command.
func (s *HistoryStore) Recent(n int) ([]types.RunSummary, error) {
	var summaries []types.RunSummary
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil && len(summaries) < n; k, v = c.Prev() {
			var summary types.RunSummary
			if err := json.Unmarshal(v, &summary); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
