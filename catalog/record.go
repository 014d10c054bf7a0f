package catalog

import (
	"github.com/google/uuid"
)

// availabilities of a single file
const (
	FileOnline   = "online"
	FileOnDemand = "on demand"
)

// availabilities of a record
const (
	RecordOnline    = "online"
	RecordOnDemand  = "on demand"
	RecordPartial   = "partial"
	RecordRequested = "requested"
)

// tags attached to a file; their vocabulary is part of the wire format:
//   - uri_cold: a cold copy exists at that URI
//   - hot_deleted: the hot copy was removed at that timestamp
const (
	TagURICold    = "uri_cold"
	TagHotDeleted = "hot_deleted"
)

// This type represents a file attached to a record, either directly or
// through a file index.
type File struct {
	// content-addressed identifier
	FileID string `json:"file_id"`
	// display key
	Key string `json:"key"`
	// URI of the hot copy
	URI  string `json:"uri"`
	Size int64  `json:"size"`
	// checksum in the form "adler32:<hex>"
	Checksum string            `json:"checksum"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// returns the value of the named tag and whether it is present
func (f *File) Tag(name string) (string, bool) {
	value, found := f.Tags[name]
	return value, found
}

// attaches a tag to the file, overwriting any previous value
func (f *File) SetTag(name, value string) {
	if f.Tags == nil {
		f.Tags = make(map[string]string)
	}
	f.Tags[name] = value
}

// removes a tag from the file (removing an absent tag is fine)
func (f *File) DeleteTag(name string) {
	delete(f.Tags, name)
}

// a file is online unless its hot copy has been deleted
func (f *File) Availability() string {
	if _, found := f.Tags[TagHotDeleted]; found {
		return FileOnDemand
	}
	return FileOnline
}

// This type represents a bulk manifest attached to a record: a container of
// many file rows materialized from an index.json upload.
type FileIndex struct {
	// name of the index file
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	// opaque container identifier
	Bucket       uuid.UUID      `json:"bucket"`
	NumberFiles  int            `json:"number_files"`
	Size         int64          `json:"size"`
	Files        []File         `json:"files"`
	Availability map[string]int `json:"availability"`
}

// recomputes the derived fields of the index from its file rows
func (fi *FileIndex) Flush() {
	fi.NumberFiles = len(fi.Files)
	fi.Size = 0
	fi.Availability = make(map[string]int)
	for i := range fi.Files {
		fi.Size += fi.Files[i].Size
		fi.Availability[fi.Files[i].Availability()]++
	}
}

// This type holds the slice of a record that the cold storage subsystem
// reads and writes. The record itself is owned by the external record store.
type Record struct {
	// internal record identifier
	ID uuid.UUID `json:"id"`
	// persistent identifier known to users
	RecID string `json:"recid"`
	// files attached directly to the record
	Files []File `json:"_files,omitempty"`
	// bulk manifests attached to the record
	FileIndices []FileIndex `json:"_file_indices,omitempty"`
	// derived availability summary
	Availability        string         `json:"availability,omitempty"`
	AvailabilityDetails map[string]int `json:"_availability_details,omitempty"`
}

// locates a file in the record by its identifier, searching the direct
// files first and then every file index
func (r *Record) FindFile(fileID string) *File {
	for i := range r.Files {
		if r.Files[i].FileID == fileID {
			return &r.Files[i]
		}
	}
	for i := range r.FileIndices {
		for j := range r.FileIndices[i].Files {
			if r.FileIndices[i].Files[j].FileID == fileID {
				return &r.FileIndices[i].Files[j]
			}
		}
	}
	return nil
}

// This interface reports outstanding stage activity for a record; the
// metadata store implements it. It keeps the availability calculation free
// of a dependency on the database layer.
type Activity interface {
	// number of requests in "submitted" with action "stage" for the record
	CountPendingStageRequests(recordID uuid.UUID) (int64, error)
	// number of unfinished transfers with action "stage" for the record
	CountPendingStageTransfers(recordID uuid.UUID) (int64, error)
}

// Recomputes the availability summary of a record from its files, its file
// indices, and any outstanding stage activity, storing the result on the
// record. The record is:
//   - online if no file contributes to the histogram,
//   - the single histogram key if there is exactly one,
//   - partial otherwise,
//
// and "requested" overrides everything while stage requests or transfers
// are pending.
func CheckAvailability(record *Record, activity Activity) error {
	details := make(map[string]int)
	for i := range record.FileIndices {
		index := &record.FileIndices[i]
		if index.Availability == nil {
			index.Flush()
		}
		for avl, count := range index.Availability {
			details[avl] += count
		}
	}
	for i := range record.Files {
		details[record.Files[i].Availability()]++
	}

	record.AvailabilityDetails = details
	switch len(details) {
	case 0:
		record.Availability = RecordOnline
	case 1:
		for avl := range details {
			record.Availability = avl
		}
	default:
		record.Availability = RecordPartial
	}

	if activity != nil {
		requests, err := activity.CountPendingStageRequests(record.ID)
		if err != nil {
			return err
		}
		transfers, err := activity.CountPendingStageTransfers(record.ID)
		if err != nil {
			return err
		}
		if requests > 0 || transfers > 0 {
			record.Availability = RecordRequested
		}
	}
	return nil
}
