package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// request lifecycle states
const (
	RequestSubmitted = "submitted"
	RequestStarted   = "started"
	RequestCompleted = "completed"
)

// a JSON-encoded list of email addresses stored in a text column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	data, err := json.Marshal(l)
	return string(data), err
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = StringList{}
		return nil
	}
	switch data := value.(type) {
	case []byte:
		return json.Unmarshal(data, l)
	case string:
		return json.Unmarshal([]byte(data), l)
	}
	return fmt.Errorf("Can't scan a subscriber list from %T", value)
}

// This type is a persisted copy operation between the storage tiers. At
// most one unfinished row may exist per (file_id, action); a partial unique
// index enforces it.
type Transfer struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RecordUUID string `gorm:"column:record_uuid;size:36;not null;index"`
	FileID     string `gorm:"column:file_id;size:36;not null"`
	Action     string `gorm:"size:50;not null"`
	// display key of the file, kept for operators
	Key string `gorm:"size:255"`
	// destination URI of the copy
	NewFilename string `gorm:"size:255;not null"`
	// registry name of the back-end that carries the copy
	Method string `gorm:"size:50;not null"`
	// opaque job identifier returned by the back-end at submission
	MethodID  string    `gorm:"column:method_id;size:255"`
	Submitted time.Time `gorm:"not null"`
	LastCheck time.Time `gorm:"column:last_check;not null;index"`
	Finished  *time.Time
	Status    string `gorm:"size:50;index"`
	Reason    string `gorm:"type:text"`
	Size      int64
}

func (Transfer) TableName() string { return "cold_transfers_metadata" }

// This type is a user-initiated request to move a whole record between the
// tiers. The hot/cold file counts and sizes are snapshots taken at
// submission time, kept for statistics.
type Request struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	RecordID string `gorm:"column:record_id;size:36;not null;index"`
	Action   string `gorm:"size:50;not null;index:idx_cold_requests_action_status"`
	Status   string `gorm:"size:50;not null;default:submitted;index:idx_cold_requests_action_status"`

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time `gorm:"index"`

	// counts and sizes of the transfers issued for this request
	NumFiles int
	Size     int64

	// snapshot of the record at submission time
	NumHotFiles    int
	NumColdFiles   int
	NumRecordFiles int
	RecordSize     int64

	Subscribers StringList `gorm:"type:text"`
	// optional single-file scope
	File string `gorm:"size:255"`
}

func (Request) TableName() string { return "cold_requests_metadata" }

// This type maps a hot storage prefix to its cold peer and names the
// back-end that carries copies between them.
type Location struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	HotPath      string `gorm:"column:hot_path;size:255;not null"`
	ColdPath     string `gorm:"column:cold_path;size:255;not null"`
	ManagerClass string `gorm:"column:manager_class;size:50;not null"`
}

func (Location) TableName() string { return "cold_location" }

// This type is the reference record store: the record JSON document keyed
// by its internal identifier and its persistent identifier.
type RecordMetadata struct {
	ID    string `gorm:"primaryKey;size:36"`
	RecID string `gorm:"column:rec_id;size:255;uniqueIndex"`
	JSON  []byte `gorm:"column:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RecordMetadata) TableName() string { return "records_metadata" }
