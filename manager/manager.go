package manager

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/storage"
	"github.com/cernopendata/coldstore/transfer"
)

// per-file outcomes of an operation
const (
	ResultDone         = "done"         // already in the target tier
	ResultScheduled    = "scheduled"    // an unfinished transfer already exists
	ResultCreated      = "created"      // a new transfer was dispatched
	ResultRegistered   = "registered"   // existing destination copy attached
	ResultToRegister   = "to_register"  // destination exists, --register not given
	ResultInconsistent = "inconsistent" // destination exists with different content
	ResultError        = "error"        // the file could not be handled
	ResultDry          = "dry"          // dry run, nothing issued
	ResultCleared      = "cleared"      // hot copy removed
	ResultSkipped      = "skipped"      // not eligible for clearing
)

// counts of per-file outcomes for one operation
type Summary map[string]int

// options of a record operation
type Options struct {
	// positive: cap on the number of transfers to issue; negative: leave
	// the last |Limit| files untouched; zero: no limit
	Limit int
	// attach existing destination copies instead of reporting to_register
	Register bool
	// skip the destination existence check
	Force bool
	// evaluate without issuing transfers or touching files
	Dry bool
	// restrict the operation to the file with this key
	File string
}

// This type decides, file by file, what a record operation needs: nothing,
// waiting, registration, or a dispatched transfer.
type Manager struct {
	catalog *catalog.Catalog
	storage *storage.Storage
	store   *models.Store
}

func New(cat *catalog.Catalog, stor *storage.Storage, store *models.Store) *Manager {
	return &Manager{catalog: cat, storage: stor, store: store}
}

// reports whether a file already is in the given tier: "cold" means a cold
// copy exists, "hot" means the hot copy has not been deleted
func isQoS(file *catalog.File, qos string) bool {
	if qos == "cold" {
		_, found := file.Tag(catalog.TagURICold)
		return found
	}
	_, found := file.Tag(catalog.TagHotDeleted)
	return !found
}

// Performs an operation on a record, returning the per-file outcome counts
// and the transfers that were created.
func (m *Manager) DoOperation(action transfer.Action, recordID uuid.UUID,
	opts Options) (Summary, []*models.Transfer, error) {

	switch action {
	case transfer.ActionArchive, transfer.ActionStage:
		return m.moveRecord(action, recordID, opts)
	case transfer.ActionClearHot:
		summary, err := m.ClearHot(recordID, opts.Limit, opts.Dry)
		return summary, nil, err
	}
	return nil, nil, fmt.Errorf("The cold manager does not understand the operation '%s'", action)
}

// moves the files of a record towards the tier implied by the action
func (m *Manager) moveRecord(action transfer.Action, recordID uuid.UUID,
	opts Options) (Summary, []*models.Transfer, error) {

	record := m.catalog.GetRecord(recordID)
	if record == nil {
		return nil, nil, &models.RecordNotFoundError{ID: recordID.String()}
	}

	// a negative limit trims the tail of the file list; a positive one only
	// caps the transfers issued, so files needing no transfer don't burn it
	listLimit := opts.Limit
	if listLimit > 0 {
		listLimit = 0
	}

	summary := make(Summary)
	var created []*models.Transfer
	for _, file := range m.catalog.GetFilesFromRecord(record, listLimit) {
		if opts.File != "" && file.Key != opts.File {
			continue
		}
		result, entry := m.moveFile(action, record, file, opts)
		summary[result]++
		if entry != nil {
			created = append(created, entry)
		}
		if opts.Limit > 0 && len(created) >= opts.Limit {
			break
		}
	}
	if summary[ResultRegistered] > 0 {
		m.catalog.ReindexEntries()
	}
	slog.Info(fmt.Sprintf("%d transfers have been issued for the record %s",
		len(created), recordID))
	return summary, created, nil
}

// Evaluates one file, in order: already in the target tier, already
// scheduled, destination resolution, register-only fast path, dry run, and
// finally dispatch. Returns the outcome and the created transfer, if any.
func (m *Manager) moveFile(action transfer.Action, record *catalog.Record,
	file *catalog.File, opts Options) (string, *models.Transfer) {

	targetQoS := "cold"
	if action == transfer.ActionStage {
		targetQoS = "hot"
	}
	if isQoS(file, targetQoS) {
		slog.Debug(fmt.Sprintf("The file %s is already %s", file.Key, targetQoS))
		return ResultDone, nil
	}

	scheduled, err := m.store.IsScheduled(file.FileID, action)
	if err != nil {
		slog.Error(fmt.Sprintf("Couldn't check the schedule for %s: %s", file.Key, err))
		return ResultError, nil
	}
	if scheduled {
		slog.Debug(fmt.Sprintf("The file %s is already scheduled", file.Key))
		return ResultScheduled, nil
	}

	source := file.URI
	if action == transfer.ActionStage {
		var found bool
		if source, found = file.Tag(catalog.TagURICold); !found {
			slog.Error(fmt.Sprintf("The file %s has no cold copy to stage", file.Key))
			return ResultError, nil
		}
	}
	destination, backend, _, err := m.storage.FindURL(action, source)
	if err != nil || destination == "" {
		slog.Error(fmt.Sprintf("Can't find the %s destination of %s", action, source))
		return ResultError, nil
	}

	if !opts.Force {
		info, err := backend.Stat(destination)
		if err != nil {
			// the destination can't be checked right now; dispatching anyway
			// would risk an overwrite, checking again next cycle is cheap
			slog.Warn(fmt.Sprintf("Couldn't check the destination %s: %s", destination, err))
			return ResultError, nil
		}
		if info != nil {
			if !opts.Register {
				slog.Info(fmt.Sprintf("The file %s already exists at the destination. "+
					"Should it be registered (hint: --register)?", file.Key))
				return ResultToRegister, nil
			}
			if file.Size == info.Size &&
				file.Checksum == fmt.Sprintf("adler32:%s", info.Checksum) {
				slog.Info(fmt.Sprintf("The destination copy of %s matches. Registering it", file.Key))
				m.catalog.AddCopy(record.ID, file.FileID, action, destination)
				return ResultRegistered, nil
			}
			slog.Error(fmt.Sprintf("The size or the checksum of %s differs from the "+
				"destination copy", file.Key))
			return ResultInconsistent, nil
		}
	}

	if opts.Dry {
		slog.Info(fmt.Sprintf("Dry run: not issuing a transfer for %s", file.Key))
		return ResultDry, nil
	}

	var entry *models.Transfer
	if action == transfer.ActionArchive {
		entry = m.storage.Archive(file)
	} else {
		entry = m.storage.Stage(file)
	}
	if entry == nil {
		return ResultError, nil
	}
	entry.RecordUUID = record.ID.String()
	entry.FileID = file.FileID
	entry.Key = file.Key
	if err = m.store.CreateTransfer(entry); err != nil {
		var dup *models.AlreadyScheduledError
		if errors.As(err, &dup) {
			return ResultScheduled, nil
		}
		slog.Error(fmt.Sprintf("Couldn't persist the transfer for %s: %s", file.Key, err))
		return ResultError, nil
	}
	return ResultCreated, entry
}

// Removes the hot copies of a record's files that also have a cold copy.
// A dry run only reports what would be cleared; neither the file nor the
// catalog tags are touched.
func (m *Manager) ClearHot(recordID uuid.UUID, limit int, dry bool) (Summary, error) {
	record := m.catalog.GetRecord(recordID)
	if record == nil {
		return nil, &models.RecordNotFoundError{ID: recordID.String()}
	}

	listLimit := limit
	if listLimit > 0 {
		listLimit = 0
	}

	summary := make(Summary)
	for _, file := range m.catalog.GetFilesFromRecord(record, listLimit) {
		if limit > 0 && summary[ResultCleared]+summary[ResultDry] >= limit {
			break
		}
		if !isQoS(file, "cold") {
			slog.Info(fmt.Sprintf("Not removing the hot copy of %s: the cold copy "+
				"does not exist", file.Key))
			summary[ResultSkipped]++
			continue
		}
		if !isQoS(file, "hot") {
			slog.Debug(fmt.Sprintf("The file %s has no hot copy. Ignoring it", file.Key))
			summary[ResultSkipped]++
			continue
		}
		if dry {
			summary[ResultDry]++
			continue
		}
		m.storage.ClearHot(file.URI)
		m.catalog.ClearHot(record, file.FileID)
		summary[ResultCleared]++
	}
	m.catalog.ReindexEntries()
	return summary, nil
}
