package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testJournal(t *testing.T) *Journal {
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	assert.Nil(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndFetch(t *testing.T) {
	assert := assert.New(t)
	j := testJournal(t)

	now := time.Now().UTC()
	err := j.Append(Record{
		TransferID:  1,
		RecordUUID:  "0d0c6a0f-9c40-4c4b-8b34-9d7a0cf2f1cc",
		FileID:      "f-1",
		Action:      "archive",
		NewFilename: "root://castor.example.org//f",
		Method:      "fts",
		Status:      "DONE",
		Size:        1053,
		Submitted:   now.Add(-time.Hour),
		Finished:    now,
	})
	assert.Nil(err)

	records, err := j.Records(now.Add(-time.Minute), now.Add(time.Minute))
	assert.Nil(err)
	assert.Len(records, 1)
	assert.Equal(uint(1), records[0].TransferID)
	assert.Equal("archive", records[0].Action)
	assert.Equal(int64(1053), records[0].Size)
}

func TestRangeExcludesOutside(t *testing.T) {
	assert := assert.New(t)
	j := testJournal(t)

	now := time.Now().UTC()
	for i, finished := range []time.Time{now.Add(-2 * time.Hour), now, now.Add(2 * time.Hour)} {
		err := j.Append(Record{
			TransferID: uint(i + 1),
			Action:     "stage",
			Status:     "FAILED",
			Reason:     "tape library on fire",
			Finished:   finished,
		})
		assert.Nil(err)
	}

	records, err := j.Records(now.Add(-time.Hour), now.Add(time.Hour))
	assert.Nil(err)
	assert.Len(records, 1)
	assert.Equal(uint(2), records[0].TransferID)
}

func TestInvalidStatusRejected(t *testing.T) {
	assert := assert.New(t)
	j := testJournal(t)

	err := j.Append(Record{TransferID: 7, Status: "SUBMITTED", Finished: time.Now()})
	assert.NotNil(err)
}
