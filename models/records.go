package models

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cernopendata/coldstore/catalog"
)

// The reference record store: record JSON documents persisted next to the
// cold storage metadata. Production deployments embed the subsystem in a
// portal with its own record store; this one satisfies catalog.RecordStore
// for standalone and test use.

func (s *Store) GetRecord(id uuid.UUID) (*catalog.Record, error) {
	var row RecordMetadata
	err := s.db.First(&row, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &RecordNotFoundError{ID: id.String()}
	}
	if err != nil {
		return nil, err
	}
	var record catalog.Record
	if err = json.Unmarshal(row.JSON, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) Commit(record *catalog.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	row := RecordMetadata{
		ID:    record.ID.String(),
		RecID: record.RecID,
		JSON:  data,
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rec_id", "json", "updated_at"}),
	}).Create(&row).Error
}

// resolves a persistent identifier to the internal record identifier
func (s *Store) Resolve(recid string) (uuid.UUID, error) {
	var row RecordMetadata
	err := s.db.Select("id").First(&row, "rec_id = ?", recid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.UUID{}, &RecordNotFoundError{ID: recid}
	}
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.Parse(row.ID)
}

// removes a record and all its file indices from the reference store
func (s *Store) DeleteRecord(id uuid.UUID) error {
	return s.db.Delete(&RecordMetadata{}, "id = ?", id.String()).Error
}
