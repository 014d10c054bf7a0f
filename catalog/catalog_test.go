package catalog_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/coldtest"
	"github.com/cernopendata/coldstore/transfer"
)

func testFile(key string) catalog.File {
	return catalog.File{
		FileID:   uuid.New().String(),
		Key:      key,
		URI:      "root://eos.example.org//eos/opendata/" + key,
		Size:     100,
		Checksum: "adler32:cafebabe",
	}
}

func testRecord(store *coldtest.RecordStore, keys ...string) *catalog.Record {
	record := &catalog.Record{RecID: "1234"}
	for _, key := range keys {
		record.Files = append(record.Files, testFile(key))
	}
	return store.Add(record)
}

func TestGetFilesFromRecordLimits(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})
	record := testRecord(store, "a", "b", "c", "d")

	files := cat.GetFilesFromRecord(record, 0)
	assert.Len(files, 4)

	// a positive limit keeps the first files
	files = cat.GetFilesFromRecord(record, 2)
	assert.Len(files, 2)
	assert.Equal("a", files[0].Key)
	assert.Equal("b", files[1].Key)

	// a negative limit leaves the last files untouched
	files = cat.GetFilesFromRecord(record, -1)
	assert.Len(files, 3)
	assert.Equal("c", files[2].Key)

	// dropping everything there is yields nothing
	assert.Nil(cat.GetFilesFromRecord(record, -4))
	assert.Nil(cat.GetFilesFromRecord(record, -10))

	// a limit beyond the file count is no limit
	assert.Len(cat.GetFilesFromRecord(record, 100), 4)
}

func TestGetFilesFromRecordFlattensIndices(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})

	record := testRecord(store, "a")
	record.FileIndices = []catalog.FileIndex{
		{Key: "index.json", Files: []catalog.File{testFile("i0"), testFile("i1")}},
	}

	files := cat.GetFilesFromRecord(record, 0)
	assert.Len(files, 3)
	assert.Equal("a", files[0].Key)
	assert.Equal("i0", files[1].Key)
	assert.Equal("i1", files[2].Key)
}

func TestClearHotTagsAndReindexes(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	indexer := &coldtest.Indexer{}
	cat := catalog.New(store, indexer, &coldtest.Activity{})
	record := testRecord(store, "a")
	fileID := record.Files[0].FileID

	assert.True(cat.ClearHot(record, fileID))
	cat.ReindexEntries()

	// the tag is committed and the availability recomputed
	stored, err := store.GetRecord(record.ID)
	assert.Nil(err)
	_, found := stored.FindFile(fileID).Tag(catalog.TagHotDeleted)
	assert.True(found)
	assert.Equal(catalog.RecordOnDemand, stored.Availability)
	assert.Equal([]uuid.UUID{record.ID}, indexer.Indexed)

	// clearing twice is harmless
	assert.True(cat.ClearHot(stored, fileID))
}

func TestClearHotUnknownFile(t *testing.T) {
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})
	record := testRecord(store, "a")

	assert.False(t, cat.ClearHot(record, "no-such-file"))
}

func TestAddCopy(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})
	record := testRecord(store, "a")
	fileID := record.Files[0].FileID
	coldURI := "root://castor.example.org//castor/opendata/a"

	// an archive records the cold URI
	assert.True(cat.AddCopy(record.ID, fileID, transfer.ActionArchive, coldURI))
	stored, _ := store.GetRecord(record.ID)
	uri, found := stored.FindFile(fileID).Tag(catalog.TagURICold)
	assert.True(found)
	assert.Equal(coldURI, uri)

	// a stage brings a cleared file back online
	assert.True(cat.ClearHot(stored, fileID))
	assert.True(cat.AddCopy(record.ID, fileID, transfer.ActionStage,
		"root://eos.example.org//eos/opendata/a"))
	stored, _ = store.GetRecord(record.ID)
	assert.Equal(catalog.FileOnline, stored.FindFile(fileID).Availability())
}

func TestReindexRetriesOnce(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	indexer := &coldtest.Indexer{FailTimes: 1}
	cat := catalog.New(store, indexer, &coldtest.Activity{})
	record := testRecord(store, "a")

	assert.True(cat.ClearHot(record, record.Files[0].FileID))
	cat.ReindexEntries()

	// the first call failed, the retry went through
	assert.Equal([]uuid.UUID{record.ID}, indexer.Indexed)
}

func TestReindexDeduplicates(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	indexer := &coldtest.Indexer{}
	cat := catalog.New(store, indexer, &coldtest.Activity{})
	record := testRecord(store, "a", "b")

	assert.True(cat.ClearHot(record, record.Files[0].FileID))
	assert.True(cat.ClearHot(record, record.Files[1].FileID))
	cat.ReindexEntries()

	assert.Len(indexer.Indexed, 1)
}

func TestAttachFileIndex(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})
	record := testRecord(store)

	contents := []byte(`[
		{"uri": "root://eos.example.org//eos/opendata/i0", "size": 10, "checksum": "adler32:01020304"},
		{"uri": "root://eos.example.org//eos/opendata/i1", "size": 20, "checksum": "adler32:05060708"}
	]`)
	index, err := cat.AttachFileIndex(record, "index.json", "raw AOD files", contents)
	assert.Nil(err)
	assert.Equal(2, index.NumberFiles)
	assert.Equal(int64(30), index.Size)
	assert.Equal("index.json_0", index.Files[0].Key)
	assert.NotEmpty(index.Files[0].FileID)
	assert.NotEqual(uuid.Nil, index.Bucket)

	stored, _ := store.GetRecord(record.ID)
	assert.Len(stored.FileIndices, 1)
}

func TestAttachFileIndexRejectsGarbage(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})
	record := testRecord(store)

	_, err := cat.AttachFileIndex(record, "index.json", "", []byte("not json"))
	assert.NotNil(err)

	_, err = cat.AttachFileIndex(record, "index.json", "", []byte(`[{"size": 10}]`))
	assert.NotNil(err)
}

func TestDeleteFileIndices(t *testing.T) {
	assert := assert.New(t)
	store := coldtest.NewRecordStore()
	cat := catalog.New(store, &coldtest.Indexer{}, &coldtest.Activity{})
	record := testRecord(store, "a")
	_, err := cat.AttachFileIndex(record, "index.json", "",
		[]byte(`[{"uri": "root://eos.example.org//i0", "size": 10}]`))
	assert.Nil(err)

	assert.Nil(cat.DeleteFileIndices(record))
	stored, _ := store.GetRecord(record.ID)
	assert.Empty(stored.FileIndices)
}
