package token

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/bill-ingest/internal/billing"
)

const bucketName = "tokens"

// BoltStore keeps tokens in a bbolt file so issued tokens survive a restart.
// bbolt runs one read-write transaction at a time, which makes the
// check-and-set in Reserve atomic within the process that holds the file.
type BoltStore struct {
	db   *bbolt.DB
	opts options
}

// NewBoltStore opens (or creates) the token database at path
func NewBoltStore(path string, opts ...Option) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db, opts: buildOptions(opts)}, nil
}

func getToken(b *bbolt.Bucket, id string) (*QRToken, error) {
	data := b.Get([]byte(id))
	if data == nil {
		return nil, nil
	}
	var tok QRToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("unmarshaling token %s: %w", id, err)
	}
	return &tok, nil
}

func putToken(b *bbolt.Bucket, tok *QRToken) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshaling token: %w", err)
	}
	return b.Put([]byte(tok.ID), data)
}

// Issue creates a new valid token
func (s *BoltStore) Issue(_ context.Context, documentType billing.DocumentType) (*QRToken, error) {
	tok := &QRToken{
		ID:           s.opts.ids.Generate(),
		DocumentType: documentType,
		CreatedAt:    s.opts.clock.Now(),
		State:        StateValid,
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return putToken(tx.Bucket([]byte(bucketName)), tok)
	})
	if err != nil {
		return nil, fmt.Errorf("saving token: %w", err)
	}
	return tok, nil
}

// Validate reports whether id can be used
func (s *BoltStore) Validate(_ context.Context, id string) (Validation, error) {
	var v Validation
	err := s.db.View(func(tx *bbolt.Tx) error {
		tok, err := getToken(tx.Bucket([]byte(bucketName)), id)
		if err != nil {
			return err
		}
		v = validate(tok, s.opts.clock.Now(), s.opts.ttl)
		return nil
	})
	if err != nil {
		return Validation{}, err
	}
	return v, nil
}

// Reserve moves id from valid to reserved inside one write transaction
func (s *BoltStore) Reserve(_ context.Context, id string) (Reservation, error) {
	var r Reservation
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		tok, err := getToken(b, id)
		if err != nil {
			return err
		}
		now := s.opts.clock.Now()
		v := validate(tok, now, s.opts.ttl)
		if !v.Valid {
			r = Reservation{DocumentType: v.DocumentType, Reason: v.Reason}
			return nil
		}
		tok.State = StateReserved
		tok.UsedAt = &now
		if err := putToken(b, tok); err != nil {
			return err
		}
		r = Reservation{OK: true, DocumentType: tok.DocumentType}
		return nil
	})
	if err != nil {
		return Reservation{}, fmt.Errorf("reserving token: %w", err)
	}
	return r, nil
}

// Release moves a reserved id back to valid
func (s *BoltStore) Release(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		tok, err := getToken(b, id)
		if err != nil || tok == nil {
			return err
		}
		if tok.Expired(s.opts.clock.Now(), s.opts.ttl) {
			return b.Delete([]byte(id))
		}
		tok.State = StateValid
		tok.UsedAt = nil
		return putToken(b, tok)
	})
	if err != nil {
		return fmt.Errorf("releasing token: %w", err)
	}
	return nil
}

// Consume deletes id
func (s *BoltStore) Consume(_ context.Context, id string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("consuming token: %w", err)
	}
	return nil
}

// Sweep deletes expired tokens
func (s *BoltStore) Sweep(_ context.Context) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		now := s.opts.clock.Now()

		// Collect first: deleting while iterating with ForEach is not allowed
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var tok QRToken
			if err := json.Unmarshal(v, &tok); err != nil {
				// Unreadable entries can never be reserved, drop them too
				expired = append(expired, append([]byte(nil), k...))
				return nil
			}
			if tok.Expired(now, s.opts.ttl) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(expired)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweeping tokens: %w", err)
	}
	return removed, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// TTL returns the lifetime of issued tokens
func (s *BoltStore) TTL() time.Duration {
	return s.opts.ttl
}
