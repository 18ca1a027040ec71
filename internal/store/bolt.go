package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

const receiptsBucket = "validated_receipts"

// Record is one persisted pipeline result, keyed by the content hash of the
// source image. Re-processing the same image overwrites the record.
type Record struct {
	Hash       string                  `json:"hash"`
	SourceFile string                  `json:"source_file,omitempty"`
	Receipt    entity.ValidatedReceipt `json:"receipt"`
	StoredAt   time.Time               `json:"stored_at"`
}

// ReceiptStore is the persistence boundary for pipeline results.
type ReceiptStore interface {
	Save(rec Record) error
	Get(hash string) (Record, error)
	List() ([]Record, error)
	Delete(hash string) error
	Close() error
}

// BoltStore implements ReceiptStore on a single-file bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening receipt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(receiptsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Save(rec Record) error {
	if rec.Hash == "" {
		return common.NewAppError("INVALID_INPUT", "record has no content hash", common.ErrInvalidInput)
	}
	if rec.StoredAt.IsZero() {
		rec.StoredAt = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return tx.Bucket([]byte(receiptsBucket)).Put([]byte(rec.Hash), data)
	})
}

func (s *BoltStore) Get(hash string) (Record, error) {
	var rec Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptsBucket)).Get([]byte(hash))
		if data == nil {
			return common.NewAppError("NOT_FOUND", "no record for hash "+hash, common.ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

func (s *BoltStore) List() ([]Record, error) {
	records := make([]Record, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *BoltStore) Delete(hash string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptsBucket)).Delete([]byte(hash))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
