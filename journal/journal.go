package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// This is the transfer journal, an append-only log of finished transfers
// kept outside the metadata database. Operators use it for accounting after
// transfer rows have been cleaned up.

// a record storing all information relevant to a finished transfer
type Record struct {
	// identifier of the transfer row
	TransferID uint   `json:"transfer_id"`
	RecordUUID string `json:"record_uuid"`
	FileID     string `json:"file_id"`
	Action     string `json:"action"`
	// destination URI of the copy
	NewFilename string `json:"new_filename"`
	// back-end registry name
	Method string `json:"method"`
	// final status ("DONE" or "FAILED") and the failure reason, if any
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	// size of the copied file in bytes
	Size      int64     `json:"size"`
	Submitted time.Time `json:"submitted"`
	Finished  time.Time `json:"finished"`
}

// This type is the journal itself, backed by a bolt database. The poller is
// the only writer, so access needs no further coordination.
type Journal struct {
	db *bolt.DB
}

const transfersBucket = "transfers"

// opens (creating if necessary) the journal at the given path
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, &CantOpenError{Message: err.Error()}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(transfersBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, &CantOpenError{Message: err.Error()}
	}
	return &Journal{db: db}, nil
}

// saves and closes the journal
func (j *Journal) Close() error {
	return j.db.Close()
}

// records a finished transfer, indexed by its finish time
func (j *Journal) Append(record Record) error {
	switch record.Status {
	case "DONE", "FAILED":
		// pass-through (see below)
	default:
		return &InvalidRecordError{
			TransferID: record.TransferID,
			Message:    fmt.Sprintf("Invalid status: %s", record.Status),
		}
	}

	key := fmt.Sprintf("%s/%d",
		record.Finished.UTC().Format(time.RFC3339Nano), record.TransferID)
	data, err := json.Marshal(&record)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(transfersBucket)).Put([]byte(key), data)
	})
}

// retrieves the records of transfers finished within the time range with
// the given (inclusive) bounds
func (j *Journal) Records(start, stop time.Time) ([]Record, error) {
	records := make([]Record, 0)
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(transfersBucket)).Cursor()

		startKey := []byte(start.UTC().Format(time.RFC3339Nano))
		// the stop bound is inclusive and keys carry a transfer id suffix
		stopKey := []byte(stop.UTC().Format(time.RFC3339Nano) + "\xff")

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, stopKey) <= 0; k, v = c.Next() {
			var record Record
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	return records, err
}
