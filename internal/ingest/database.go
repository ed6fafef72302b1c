package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const consumptionsBucket = "consumptions"

// ErrRecordNotFound is returned when a record id is unknown
var ErrRecordNotFound = errors.New("record not found")

// BoltDB implements Recorder and RecordLister using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(consumptionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveConsumption saves a record to the database
func (b *BoltDB) SaveConsumption(_ context.Context, record *ConsumptionRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(consumptionsBucket))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling consumption record: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// GetConsumption retrieves a record by ID
func (b *BoltDB) GetConsumption(_ context.Context, id string) (*ConsumptionRecord, error) {
	var record *ConsumptionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(consumptionsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return json.Unmarshal(data, &record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListConsumptions returns all records, newest billing date first
func (b *BoltDB) ListConsumptions(_ context.Context) ([]*ConsumptionRecord, error) {
	records := make([]*ConsumptionRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(consumptionsBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var record ConsumptionRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling consumption record: %w", err)
			}
			records = append(records, &record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].BillingDate.After(records[j].BillingDate)
	})
	return records, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
