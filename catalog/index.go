package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// an entry of an uploaded index.json manifest
type indexEntry struct {
	URI      string `json:"uri"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Materializes a file index from the contents of an index.json upload: a
// JSON array of {uri, size, checksum} objects. Every entry becomes a file
// row in a fresh bucket; the record is committed and scheduled for
// re-indexing.
func (c *Catalog) AttachFileIndex(record *Record, name, description string,
	contents []byte) (*FileIndex, error) {

	var entries []indexEntry
	if err := json.Unmarshal(contents, &entries); err != nil {
		return nil, &InvalidIndexError{Name: name, Message: err.Error()}
	}
	slog.Info(fmt.Sprintf("The file index %s contains %d entries", name, len(entries)))

	index := FileIndex{
		Key:         name,
		Description: description,
		Bucket:      uuid.New(),
		Files:       make([]File, len(entries)),
	}
	for i, entry := range entries {
		if entry.URI == "" {
			return nil, &InvalidIndexError{
				Name:    name,
				Message: fmt.Sprintf("entry %d has no uri", i),
			}
		}
		index.Files[i] = File{
			FileID:   uuid.New().String(),
			Key:      fmt.Sprintf("%s_%d", name, i),
			URI:      entry.URI,
			Size:     entry.Size,
			Checksum: entry.Checksum,
		}
	}
	index.Flush()

	record.FileIndices = append(record.FileIndices, index)
	if err := c.store.Commit(record); err != nil {
		return nil, err
	}
	c.scheduleReindex(record.ID)
	return &record.FileIndices[len(record.FileIndices)-1], nil
}

// Deletes all file indices of a record wholesale; used when the parent
// record is deleted.
func (c *Catalog) DeleteFileIndices(record *Record) error {
	record.FileIndices = nil
	if err := c.store.Commit(record); err != nil {
		return err
	}
	c.scheduleReindex(record.ID)
	return nil
}
