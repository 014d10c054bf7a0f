// This package contains testing utilities for the cold storage subsystem.
package coldtest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/transfer"
)

// Enables DEBUG log messages for the structured log (slog).
func EnableDebugLogging() {
	logLevel := new(slog.LevelVar)
	logLevel.Set(slog.LevelDebug)
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(h))
}

// Returns YAML configuration data pointing the database at a sqlite file
// under the given directory, with the given per-action transfer thresholds.
// Feed the result to config.Init.
func ConfigYAML(dir string, staging, archiving int) []byte {
	return []byte(fmt.Sprintf(`
service:
  name: cold-storage-test
  port: 8080
  max_connections: 10
database:
  type: sqlite
  path: %s/cold.db
thresholds:
  staging: %d
  archiving: %d
`, dir, staging, archiving))
}

//------------------------
// Back-end Test Fixtures
//------------------------

type jobInfo struct {
	Time        time.Time // submission time
	Action      transfer.Action
	Source      string
	Destination string
}

// This type implements a transfer.Manager test fixture. Submitted jobs
// succeed once TransferDuration has elapsed, unless their destination
// appears in FailWith, in which case they fail with that reason. Stat
// answers from the Existing map.
type Backend struct {
	sync.Mutex
	TransferDuration time.Duration
	// destination URI -> failure reason
	FailWith map[string]string
	// URI -> file info served by Stat ("" entries are possible)
	Existing map[string]*transfer.FileInfo
	Jobs     map[string]jobInfo
}

// Registers a back-end test fixture under the given name, assigning it a
// duration to simulate transfers in a manner appropriate to the tests of
// interest. The returned fixture is the instance the registry hands out, so
// tests can inspect and script it.
func RegisterBackend(name string, transferDuration time.Duration) (*Backend, error) {
	backend := &Backend{
		TransferDuration: transferDuration,
		FailWith:         make(map[string]string),
		Existing:         make(map[string]*transfer.FileInfo),
		Jobs:             make(map[string]jobInfo),
	}
	err := transfer.RegisterProvider(name, func() (transfer.Manager, error) {
		return backend, nil
	})
	if err != nil {
		return nil, err
	}
	return backend, nil
}

func (b *Backend) submit(action transfer.Action, source, destination string) (string, error) {
	b.Lock()
	defer b.Unlock()
	id := uuid.New().String()
	b.Jobs[id] = jobInfo{
		Time:        time.Now(),
		Action:      action,
		Source:      source,
		Destination: destination,
	}
	return id, nil
}

func (b *Backend) Archive(source, destination string) (string, error) {
	return b.submit(transfer.ActionArchive, source, destination)
}

func (b *Backend) Stage(source, destination string) (string, error) {
	return b.submit(transfer.ActionStage, source, destination)
}

func (b *Backend) TransferStatus(id string) (string, string, error) {
	b.Lock()
	defer b.Unlock()
	info, found := b.Jobs[id]
	if !found {
		// mirrors a production back-end that lost the job
		return "", fmt.Sprintf("Unknown job: %s", id), nil
	}
	if time.Since(info.Time) < b.TransferDuration {
		return "SUBMITTED", "", nil
	}
	if reason, found := b.FailWith[info.Destination]; found {
		return transfer.StatusFailed, reason, nil
	}
	return transfer.StatusDone, "", nil
}

func (b *Backend) Stat(uri string) (*transfer.FileInfo, error) {
	b.Lock()
	defer b.Unlock()
	return b.Existing[uri], nil
}

// Marks a job as finished immediately, so tests need not sleep.
func (b *Backend) FinishJob(id string) {
	b.Lock()
	defer b.Unlock()
	if info, found := b.Jobs[id]; found {
		info.Time = info.Time.Add(-b.TransferDuration)
		b.Jobs[id] = info
	}
}

// Marks every submitted job as finished immediately.
func (b *Backend) FinishAllJobs() {
	b.Lock()
	defer b.Unlock()
	for id, info := range b.Jobs {
		info.Time = info.Time.Add(-b.TransferDuration)
		b.Jobs[id] = info
	}
}

//----------------------------
// Record Store Test Fixtures
//----------------------------

// This type implements a catalog.RecordStore test fixture keeping the
// records in memory. Records are stored as JSON so that, like with the real
// store, mutations only become visible through Commit.
type RecordStore struct {
	documents map[uuid.UUID][]byte
	recids    map[string]uuid.UUID
}

func NewRecordStore() *RecordStore {
	return &RecordStore{
		documents: make(map[uuid.UUID][]byte),
		recids:    make(map[string]uuid.UUID),
	}
}

// adds a record to the fixture, assigning it a fresh identifier if needed
func (s *RecordStore) Add(record *catalog.Record) *catalog.Record {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.Commit(record)
	return record
}

func (s *RecordStore) GetRecord(id uuid.UUID) (*catalog.Record, error) {
	document, found := s.documents[id]
	if !found {
		return nil, fmt.Errorf("No record with the id %s", id)
	}
	var record catalog.Record
	if err := json.Unmarshal(document, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RecordStore) Commit(record *catalog.Record) error {
	document, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.documents[record.ID] = document
	s.recids[record.RecID] = record.ID
	return nil
}

func (s *RecordStore) Resolve(recid string) (uuid.UUID, error) {
	id, found := s.recids[recid]
	if !found {
		return uuid.Nil, fmt.Errorf("No record with the recid %s", recid)
	}
	return id, nil
}

//------------------------
// Indexer Test Fixtures
//------------------------

// This type implements a catalog.Indexer test fixture recording the records
// it was handed. The first FailTimes calls fail.
type Indexer struct {
	Indexed   []uuid.UUID
	FailTimes int
	calls     int
}

func (i *Indexer) Index(record *catalog.Record) error {
	i.calls++
	if i.calls <= i.FailTimes {
		return fmt.Errorf("The search index is unreachable")
	}
	i.Indexed = append(i.Indexed, record.ID)
	return nil
}

//------------------------
// Activity Test Fixtures
//------------------------

// This type implements a catalog.Activity test fixture with fixed counts.
type Activity struct {
	PendingRequests  int64
	PendingTransfers int64
}

func (a *Activity) CountPendingStageRequests(recordID uuid.UUID) (int64, error) {
	return a.PendingRequests, nil
}

func (a *Activity) CountPendingStageTransfers(recordID uuid.UUID) (int64, error) {
	return a.PendingTransfers, nil
}

//------------------------
// Mailer Test Fixtures
//------------------------

// a notification captured by the mailer fixture
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// This type implements a mailer.Mailer test fixture capturing the
// notifications instead of sending them.
type Mailer struct {
	Outbox []Message
}

func (m *Mailer) Send(subject, body string, recipients []string) error {
	m.Outbox = append(m.Outbox, Message{
		Subject:    subject,
		Body:       body,
		Recipients: recipients,
	})
	return nil
}
