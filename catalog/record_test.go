package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// a fixed activity report for availability tests
type stubActivity struct {
	requests  int64
	transfers int64
}

func (a *stubActivity) CountPendingStageRequests(recordID uuid.UUID) (int64, error) {
	return a.requests, nil
}

func (a *stubActivity) CountPendingStageTransfers(recordID uuid.UUID) (int64, error) {
	return a.transfers, nil
}

func onlineFile(key string) File {
	return File{
		FileID:   uuid.New().String(),
		Key:      key,
		URI:      "root://eos.example.org//eos/opendata/" + key,
		Size:     100,
		Checksum: "adler32:cafebabe",
	}
}

func onDemandFile(key string) File {
	file := onlineFile(key)
	file.SetTag(TagURICold, "root://castor.example.org//castor/opendata/"+key)
	file.SetTag(TagHotDeleted, "2026-01-01T00:00:00Z")
	return file
}

func TestFileAvailability(t *testing.T) {
	assert := assert.New(t)

	file := onlineFile("f1")
	assert.Equal(FileOnline, file.Availability())

	// a cold copy alone does not take the file offline
	file.SetTag(TagURICold, "root://castor.example.org//f1")
	assert.Equal(FileOnline, file.Availability())

	file.SetTag(TagHotDeleted, "2026-01-01T00:00:00Z")
	assert.Equal(FileOnDemand, file.Availability())

	file.DeleteTag(TagHotDeleted)
	assert.Equal(FileOnline, file.Availability())
}

func TestRecordAvailability(t *testing.T) {
	assert := assert.New(t)

	record := &Record{
		ID:    uuid.New(),
		RecID: "1234",
		Files: []File{onlineFile("a"), onlineFile("b")},
	}
	assert.Nil(CheckAvailability(record, nil))
	assert.Equal(RecordOnline, record.Availability)
	assert.Equal(2, record.AvailabilityDetails[FileOnline])

	record.Files = []File{onDemandFile("a"), onDemandFile("b")}
	assert.Nil(CheckAvailability(record, nil))
	assert.Equal(RecordOnDemand, record.Availability)

	record.Files = []File{onlineFile("a"), onDemandFile("b")}
	assert.Nil(CheckAvailability(record, nil))
	assert.Equal(RecordPartial, record.Availability)
	assert.Equal(1, record.AvailabilityDetails[FileOnline])
	assert.Equal(1, record.AvailabilityDetails[FileOnDemand])
}

func TestRecordWithoutFilesIsOnline(t *testing.T) {
	record := &Record{ID: uuid.New(), RecID: "1234"}
	assert.Nil(t, CheckAvailability(record, nil))
	assert.Equal(t, RecordOnline, record.Availability)
}

func TestRequestedOverridesAvailability(t *testing.T) {
	assert := assert.New(t)

	record := &Record{
		ID:    uuid.New(),
		RecID: "1234",
		Files: []File{onDemandFile("a")},
	}
	assert.Nil(CheckAvailability(record, &stubActivity{requests: 1}))
	assert.Equal(RecordRequested, record.Availability)

	assert.Nil(CheckAvailability(record, &stubActivity{transfers: 2}))
	assert.Equal(RecordRequested, record.Availability)

	// the override lifts once nothing is pending
	assert.Nil(CheckAvailability(record, &stubActivity{}))
	assert.Equal(RecordOnDemand, record.Availability)
}

func TestIndexAvailabilityCountsTowardsTheRecord(t *testing.T) {
	assert := assert.New(t)

	index := FileIndex{
		Key:    "index.json",
		Bucket: uuid.New(),
		Files:  []File{onlineFile("i0"), onDemandFile("i1")},
	}
	index.Flush()
	assert.Equal(2, index.NumberFiles)
	assert.Equal(int64(200), index.Size)
	assert.Equal(1, index.Availability[FileOnline])
	assert.Equal(1, index.Availability[FileOnDemand])

	record := &Record{
		ID:          uuid.New(),
		RecID:       "1234",
		Files:       []File{onlineFile("a")},
		FileIndices: []FileIndex{index},
	}
	assert.Nil(CheckAvailability(record, nil))
	assert.Equal(RecordPartial, record.Availability)
	assert.Equal(2, record.AvailabilityDetails[FileOnline])
	assert.Equal(1, record.AvailabilityDetails[FileOnDemand])
}

func TestFindFileSearchesIndices(t *testing.T) {
	assert := assert.New(t)

	direct := onlineFile("a")
	indexed := onlineFile("i0")
	record := &Record{
		ID:    uuid.New(),
		Files: []File{direct},
		FileIndices: []FileIndex{
			{Key: "index.json", Files: []File{indexed}},
		},
	}

	assert.Equal("a", record.FindFile(direct.FileID).Key)
	assert.Equal("i0", record.FindFile(indexed.FileID).Key)
	assert.Nil(record.FindFile("no-such-file"))
}
