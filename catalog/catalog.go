package catalog

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/cernopendata/coldstore/transfer"
)

// This interface is the record metadata store, an external collaborator of
// the cold storage subsystem.
type RecordStore interface {
	GetRecord(id uuid.UUID) (*Record, error)
	Commit(record *Record) error
	// resolves a persistent identifier to the internal record identifier
	Resolve(recid string) (uuid.UUID, error)
}

// This interface is the search indexer, an external collaborator.
type Indexer interface {
	Index(record *Record) error
}

// This type is the read/write façade over a record's file list and file
// indices. Mutations enqueue the record for re-indexing; the queue is owned
// by this instance and drained explicitly by the worker that holds it.
type Catalog struct {
	store    RecordStore
	indexer  Indexer
	activity Activity

	reindexQueue []uuid.UUID
}

// creates a catalog over the given collaborators
func New(store RecordStore, indexer Indexer, activity Activity) *Catalog {
	return &Catalog{
		store:    store,
		indexer:  indexer,
		activity: activity,
	}
}

// fetches a record from the record store, returning nil on any error (logged)
func (c *Catalog) GetRecord(id uuid.UUID) *Record {
	record, err := c.store.GetRecord(id)
	if err != nil {
		slog.Error(fmt.Sprintf("Couldn't find a record with the id '%s': %s", id, err))
		return nil
	}
	return record
}

// resolves a persistent identifier to the internal record identifier
func (c *Catalog) Resolve(recid string) (uuid.UUID, error) {
	return c.store.Resolve(recid)
}

// Returns the files of a record: the direct files followed by the flattened
// union of all file indices. A positive limit keeps only the first limit
// files; a negative limit drops the last |limit| files.
func (c *Catalog) GetFilesFromRecord(record *Record, limit int) []*File {
	if record == nil {
		return nil
	}
	files := make([]*File, 0, len(record.Files))
	for i := range record.Files {
		files = append(files, &record.Files[i])
	}
	for i := range record.FileIndices {
		for j := range record.FileIndices[i].Files {
			files = append(files, &record.FileIndices[i].Files[j])
		}
	}
	if limit > 0 && limit < len(files) {
		files = files[:limit]
	} else if limit < 0 {
		if -limit >= len(files) {
			return nil
		}
		files = files[:len(files)+limit]
	}
	return files
}

// Tags the hot copy of a file as deleted and schedules the record for
// re-indexing. Tagging an already-tagged file is downgraded to a warning.
func (c *Catalog) ClearHot(record *Record, fileID string) bool {
	return c.updateFileAndReindex(record.ID, record, fileID, func(file *File) {
		if _, found := file.Tag(TagHotDeleted); found {
			slog.Warn(fmt.Sprintf("The file %s is already tagged as hot_deleted", fileID))
			return
		}
		file.SetTag(TagHotDeleted, time.Now().UTC().Format(time.RFC3339))
	})
}

// Attaches a new copy to a file: for an archive the cold URI is recorded,
// for a stage the hot-deleted marker is dropped. Schedules re-indexing.
func (c *Catalog) AddCopy(recordID uuid.UUID, fileID string, action transfer.Action, newURI string) bool {
	return c.updateFileAndReindex(recordID, nil, fileID, func(file *File) {
		switch action {
		case transfer.ActionArchive:
			file.SetTag(TagURICold, newURI)
		case transfer.ActionStage:
			file.DeleteTag(TagHotDeleted)
		}
	})
}

// applies an update function to a file of a record and enqueues the record
// for re-indexing; the record may be passed in to avoid a reload
func (c *Catalog) updateFileAndReindex(recordID uuid.UUID, record *Record,
	fileID string, update func(*File)) bool {

	if record == nil {
		record = c.GetRecord(recordID)
		if record == nil {
			return false
		}
	}
	file := record.FindFile(fileID)
	if file == nil {
		slog.Error(fmt.Sprintf("Can't find the file %s in the record %s", fileID, recordID))
		return false
	}
	update(file)
	if err := c.store.Commit(record); err != nil {
		slog.Error(fmt.Sprintf("Couldn't commit the record %s: %s", recordID, err))
		return false
	}
	c.scheduleReindex(recordID)
	return true
}

// enqueues a record for re-indexing; at most once per drain cycle
func (c *Catalog) scheduleReindex(recordID uuid.UUID) {
	if !slices.Contains(c.reindexQueue, recordID) {
		slog.Debug(fmt.Sprintf("Record %s will be reindexed", recordID))
		c.reindexQueue = append(c.reindexQueue, recordID)
	}
}

// Drains the re-index queue in FIFO order: each record is reloaded, its
// file indices and availability are recomputed from the current tags, the
// record is committed, and the external indexer is called. An indexer
// failure is retried once; a second failure is logged and the drain moves
// on to the next record.
func (c *Catalog) ReindexEntries() {
	for len(c.reindexQueue) > 0 {
		recordID := c.reindexQueue[0]
		c.reindexQueue = c.reindexQueue[1:]

		record := c.GetRecord(recordID)
		if record == nil {
			continue
		}
		for i := range record.FileIndices {
			record.FileIndices[i].Flush()
		}
		if err := CheckAvailability(record, c.activity); err != nil {
			slog.Error(fmt.Sprintf("Couldn't compute the availability of %s: %s", recordID, err))
			continue
		}
		if err := c.store.Commit(record); err != nil {
			slog.Error(fmt.Sprintf("Couldn't commit the record %s: %s", recordID, err))
			continue
		}
		if err := c.indexer.Index(record); err != nil {
			slog.Warn(fmt.Sprintf("Error during the reindex of %s: %s", recordID, err))
			if err = c.indexer.Index(record); err != nil {
				slog.Error(fmt.Sprintf("Reindexing %s a second time did not help: %s", recordID, err))
			}
		}
	}
}
