package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/transfer"
)

// This type is the metadata store for transfers, requests, locations, and
// the reference record store. It is the serialization point for the
// "at most one unfinished transfer per (file, action)" invariant.
type Store struct {
	db *gorm.DB
}

// opens the configured database (sqlite or postgres), migrating the schema
func Open() (*Store, error) {
	var dialector gorm.Dialector
	switch config.Database.Type {
	case "", "sqlite":
		dialector = sqlite.Open(config.Database.Path)
	case "postgres":
		dialector = postgres.Open(config.Database.DSN())
	default:
		return nil, fmt.Errorf("Unknown database type: %s", config.Database.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&Transfer{}, &Request{}, &Location{}, &RecordMetadata{})
	if err != nil {
		return nil, err
	}

	// the partial unique index backing the single-unfinished-transfer
	// invariant (gorm tags can't express partial indexes)
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ux_cold_transfers_unfinished
		ON cold_transfers_metadata (file_id, action) WHERE finished IS NULL`).Error
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

//-----------
// Transfers
//-----------

// Persists a new transfer row with submitted = last_check = now and no
// finish time. The duplicate check and the insert run in one transaction so
// that two racing submissions cannot both slip past the check.
func (s *Store) CreateTransfer(entry *Transfer) error {
	now := time.Now().UTC()
	entry.Submitted = now
	entry.LastCheck = now
	entry.Finished = nil
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&Transfer{}).
			Where("file_id = ? AND action = ? AND finished IS NULL",
				entry.FileID, entry.Action).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return &AlreadyScheduledError{FileID: entry.FileID, Action: entry.Action}
		}
		return tx.Create(entry).Error
	})
}

// reports whether an unfinished transfer exists for the (file, action) pair
func (s *Store) IsScheduled(fileID string, action transfer.Action) (bool, error) {
	var count int64
	err := s.db.Model(&Transfer{}).
		Where("file_id = ? AND action = ? AND finished IS NULL", fileID, string(action)).
		Count(&count).Error
	return count > 0, err
}

// Returns the unfinished transfers whose last check is not after the given
// time, oldest check first. The ordering keeps polling fair when the poller
// is rate-limited.
func (s *Store) OngoingTransfers(now time.Time) ([]Transfer, error) {
	var transfers []Transfer
	err := s.db.
		Where("finished IS NULL AND last_check <= ?", now).
		Order("last_check asc").
		Find(&transfers).Error
	return transfers, err
}

// saves an updated transfer row
func (s *Store) SaveTransfer(t *Transfer) error {
	return s.db.Save(t).Error
}

// counts the unfinished transfers for an action
func (s *Store) CountActiveTransfers(action transfer.Action) (int64, error) {
	var count int64
	err := s.db.Model(&Transfer{}).
		Where("action = ? AND finished IS NULL", string(action)).
		Count(&count).Error
	return count, err
}

// implements catalog.Activity
func (s *Store) CountPendingStageTransfers(recordID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.Model(&Transfer{}).
		Where("record_uuid = ? AND action = ? AND finished IS NULL",
			recordID.String(), string(transfer.ActionStage)).
		Count(&count).Error
	return count, err
}

//----------
// Requests
//----------

// persists a new request in "submitted"
func (s *Store) CreateRequest(req *Request) error {
	req.Status = RequestSubmitted
	if req.Subscribers == nil {
		req.Subscribers = StringList{}
	}
	return s.db.Create(req).Error
}

// fetches a request by its identifier
func (s *Store) GetRequest(id uint) (*Request, error) {
	var req Request
	err := s.db.First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &RequestNotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// returns the requests in a state for an action, oldest first
func (s *Store) RequestsByStatus(status string, action transfer.Action) ([]Request, error) {
	var requests []Request
	err := s.db.
		Where("status = ? AND action = ?", status, string(action)).
		Order("created_at asc").
		Find(&requests).Error
	return requests, err
}

// marks a request as started, recording the issued transfer numbers
func (s *Store) MarkRequestStarted(req *Request, numFiles int, size int64) error {
	now := time.Now().UTC()
	req.StartedAt = &now
	req.Status = RequestStarted
	req.NumFiles = numFiles
	req.Size = size
	return s.db.Save(req).Error
}

// Marks a request as completed. Notification is the caller's concern: a
// failure to notify must not roll back completion.
func (s *Store) MarkRequestCompleted(req *Request) error {
	now := time.Now().UTC()
	req.Status = RequestCompleted
	req.CompletedAt = &now
	return s.db.Save(req).Error
}

// saves an updated request row
func (s *Store) SaveRequest(req *Request) error {
	return s.db.Save(req).Error
}

// Appends an email to the subscribers of a request if it is not there yet,
// reporting whether the list changed.
func (s *Store) Subscribe(requestID uint, email string) (bool, error) {
	req, err := s.GetRequest(requestID)
	if err != nil {
		return false, err
	}
	for _, subscriber := range req.Subscribers {
		if subscriber == email {
			return false, nil
		}
	}
	req.Subscribers = append(req.Subscribers, email)
	return true, s.db.Save(req).Error
}

// implements catalog.Activity
func (s *Store) CountPendingStageRequests(recordID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.Model(&Request{}).
		Where("record_id = ? AND status = ? AND action = ?",
			recordID.String(), RequestSubmitted, string(transfer.ActionStage)).
		Count(&count).Error
	return count, err
}

//-----------
// Locations
//-----------

// adds a location mapping a hot prefix to its cold peer
func (s *Store) AddLocation(loc *Location) error {
	return s.db.Create(loc).Error
}

// returns all locations
func (s *Store) Locations() ([]Location, error) {
	var locations []Location
	err := s.db.Order("id asc").Find(&locations).Error
	return locations, err
}
