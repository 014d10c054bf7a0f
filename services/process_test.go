package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/coldtest"
	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/journal"
	"github.com/cernopendata/coldstore/manager"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/storage"
	"github.com/cernopendata/coldstore/transfer"
)

const (
	hotPrefix  = "root://eos.example.org//eos/opendata"
	coldPrefix = "root://castor.example.org//castor/opendata"
)

type fixture struct {
	services *Services
	records  *coldtest.RecordStore
	backend  *coldtest.Backend
	mail     *coldtest.Mailer
}

func setup(t *testing.T, staging, archiving int) *fixture {
	dir := t.TempDir()
	assert.Nil(t, config.Init(coldtest.ConfigYAML(dir, staging, archiving)))
	store, err := models.Open()
	assert.Nil(t, err)

	transfer.ResetRegistry()
	backend, err := coldtest.RegisterBackend("mock", time.Hour)
	assert.Nil(t, err)
	assert.Nil(t, store.AddLocation(&models.Location{
		HotPath:      hotPrefix,
		ColdPath:     coldPrefix,
		ManagerClass: "mock",
	}))

	jnl, err := journal.Open(filepath.Join(dir, "journal.db"))
	assert.Nil(t, err)
	t.Cleanup(func() { jnl.Close() })

	records := coldtest.NewRecordStore()
	cat := catalog.New(records, &coldtest.Indexer{}, store)
	stor := storage.New(store)
	mail := &coldtest.Mailer{}
	return &fixture{
		services: &Services{
			Store:   store,
			Catalog: cat,
			Storage: stor,
			Manager: manager.New(cat, stor, store),
			Mail:    mail,
			Journal: jnl,
		},
		records: records,
		backend: backend,
		mail:    mail,
	}
}

// adds a record whose files sit on cold storage only
func (f *fixture) addColdRecord(keys ...string) *catalog.Record {
	record := &catalog.Record{RecID: "1234"}
	for _, key := range keys {
		file := catalog.File{
			FileID:   uuid.New().String(),
			Key:      key,
			URI:      hotPrefix + "/" + key,
			Size:     100,
			Checksum: "adler32:cafebabe",
		}
		file.SetTag(catalog.TagURICold, coldPrefix+"/"+key)
		file.SetTag(catalog.TagHotDeleted, "2026-01-01T00:00:00Z")
		record.Files = append(record.Files, file)
	}
	return f.records.Add(record)
}

func (f *fixture) addHotRecord(keys ...string) *catalog.Record {
	record := &catalog.Record{RecID: "1234"}
	for _, key := range keys {
		record.Files = append(record.Files, catalog.File{
			FileID:   uuid.New().String(),
			Key:      key,
			URI:      hotPrefix + "/" + key,
			Size:     100,
			Checksum: "adler32:cafebabe",
		})
	}
	return f.records.Add(record)
}

func TestProcessTransfersSettlesFinishedOnes(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 5, 5)
	record := f.addHotRecord("a")

	_, created, err := f.services.Manager.DoOperation(transfer.ActionArchive, record.ID,
		manager.Options{})
	assert.Nil(err)
	assert.Len(created, 1)

	// still in flight
	summary, err := f.services.ProcessTransfers()
	assert.Nil(err)
	assert.Equal(1, summary[TransferOngoing])

	f.backend.FinishAllJobs()
	summary, err = f.services.ProcessTransfers()
	assert.Nil(err)
	assert.Equal(1, summary[TransferDone])

	// the row is closed, the catalog knows the cold copy, and the outcome
	// is journaled
	ongoing, err := f.services.Store.OngoingTransfers(time.Now().UTC())
	assert.Nil(err)
	assert.Empty(ongoing)
	stored, _ := f.records.GetRecord(record.ID)
	uri, found := stored.Files[0].Tag(catalog.TagURICold)
	assert.True(found)
	assert.Equal(coldPrefix+"/a", uri)
	entries, err := f.services.Journal.Records(
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	assert.Nil(err)
	assert.Len(entries, 1)
	assert.Equal(transfer.StatusDone, entries[0].Status)
}

func TestProcessTransfersRecordsFailures(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 5, 5)
	record := f.addHotRecord("a")
	f.backend.FailWith[coldPrefix+"/a"] = "tape library on fire"

	_, created, err := f.services.Manager.DoOperation(transfer.ActionArchive, record.ID,
		manager.Options{})
	assert.Nil(err)
	assert.Len(created, 1)
	f.backend.FinishAllJobs()

	summary, err := f.services.ProcessTransfers()
	assert.Nil(err)
	assert.Equal(1, summary[TransferFailed])

	entries, _ := f.services.Journal.Records(
		time.Now().UTC().Add(-time.Minute), time.Now().UTC().Add(time.Minute))
	assert.Len(entries, 1)
	assert.Equal(transfer.StatusFailed, entries[0].Status)
	assert.Equal("tape library on fire", entries[0].Reason)

	// the catalog never learned about a copy
	stored, _ := f.records.GetRecord(record.ID)
	_, found := stored.Files[0].Tag(catalog.TagURICold)
	assert.False(found)
}

func TestStageRequestLifecycle(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 2, 2)
	record := f.addColdRecord("a", "b", "c")

	req := &models.Request{
		RecordID:    record.ID.String(),
		Action:      string(transfer.ActionStage),
		Subscribers: models.StringList{"someone@cern.ch"},
	}
	assert.Nil(f.services.Store.CreateRequest(req))

	// the first pass can only issue transfers up to the staging threshold
	summary, err := f.services.ProcessRequests()
	assert.Nil(err)
	assert.Equal(2, summary[RequestIssued])
	assert.Equal(1, summary[RequestWaiting])
	fetched, _ := f.services.Store.GetRequest(req.ID)
	assert.Equal(models.RequestSubmitted, fetched.Status)
	assert.Equal(2, fetched.NumFiles)
	// the first issue marks the start of the work even before the status
	// moves on
	assert.NotNil(fetched.StartedAt)

	// nothing more fits while the queue is full
	summary, err = f.services.ProcessRequests()
	assert.Nil(err)
	assert.Zero(summary[RequestIssued])

	// once the transfers finish, the remainder is issued and the request
	// starts
	f.backend.FinishAllJobs()
	_, err = f.services.ProcessTransfers()
	assert.Nil(err)
	summary, err = f.services.ProcessRequests()
	assert.Nil(err)
	assert.Equal(1, summary[RequestIssued])
	assert.Equal(1, summary[RequestStarted])
	fetched, _ = f.services.Store.GetRequest(req.ID)
	assert.Equal(models.RequestStarted, fetched.Status)
	assert.Equal(3, fetched.NumFiles)
	assert.Equal(int64(300), fetched.Size)

	// the last file comes online, the request completes, the subscribers
	// are notified
	f.backend.FinishAllJobs()
	_, err = f.services.ProcessTransfers()
	assert.Nil(err)
	summary, err = f.services.ProcessRequests()
	assert.Nil(err)
	assert.Equal(1, summary[RequestCompleted])
	fetched, _ = f.services.Store.GetRequest(req.ID)
	assert.Equal(models.RequestCompleted, fetched.Status)
	assert.NotNil(fetched.CompletedAt)
	assert.Len(f.mail.Outbox, 1)
	assert.Equal([]string{"someone@cern.ch"}, f.mail.Outbox[0].Recipients)

	// and the record is fully online again
	stored, _ := f.records.GetRecord(record.ID)
	for i := range stored.Files {
		assert.Equal(catalog.FileOnline, stored.Files[i].Availability())
	}
}

func TestUnconfiguredThresholdLeavesTheQueueAlone(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 2, 0)
	record := f.addHotRecord("a")

	req := &models.Request{
		RecordID: record.ID.String(),
		Action:   string(transfer.ActionArchive),
	}
	assert.Nil(f.services.Store.CreateRequest(req))

	summary, err := f.services.ProcessRequests()
	assert.Nil(err)
	assert.Zero(summary[RequestIssued])
	fetched, _ := f.services.Store.GetRequest(req.ID)
	assert.Equal(models.RequestSubmitted, fetched.Status)
}

func TestProcessCycle(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 5, 5)
	record := f.addColdRecord("a")

	req := &models.Request{
		RecordID: record.ID.String(),
		Action:   string(transfer.ActionStage),
	}
	assert.Nil(f.services.Store.CreateRequest(req))

	// with an instant back-end a single cycle carries the request from
	// submitted to completed
	f.backend.TransferDuration = 0
	assert.Nil(f.services.ProcessCycle())

	fetched, _ := f.services.Store.GetRequest(req.ID)
	assert.Equal(models.RequestCompleted, fetched.Status)
}

func TestRequestWithFileScope(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 5, 5)
	record := f.addColdRecord("a", "b")

	req := &models.Request{
		RecordID: record.ID.String(),
		Action:   string(transfer.ActionStage),
		File:     "a",
	}
	assert.Nil(f.services.Store.CreateRequest(req))

	summary, err := f.services.ProcessRequests()
	assert.Nil(err)
	assert.Equal(1, summary[RequestIssued])
	assert.Equal(1, summary[RequestStarted])

	// only the requested file comes back; the request completes although
	// the other file stays on demand
	f.backend.FinishAllJobs()
	_, err = f.services.ProcessTransfers()
	assert.Nil(err)
	summary, err = f.services.ProcessRequests()
	assert.Nil(err)
	assert.Equal(1, summary[RequestCompleted])

	stored, _ := f.records.GetRecord(record.ID)
	assert.Equal(catalog.FileOnline, stored.FindFile(record.Files[0].FileID).Availability())
	assert.Equal(catalog.FileOnDemand, stored.FindFile(record.Files[1].FileID).Availability())
}
