package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cernopendata/coldstore/journal"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/transfer"
)

// outcomes of one polling pass over the ongoing transfers
const (
	TransferDone    = "done"
	TransferFailed  = "failed"
	TransferOngoing = "ongoing"
	TransferError   = "error"
)

// Polls the back-ends for every unfinished transfer and settles the ones
// that reached a final state: the new copy is attached to (or the deletion
// marker removed from) the catalog, the row is closed, and the outcome is
// journaled. Transfers whose back-end cannot be reached stay ongoing and are
// polled again next cycle. Returns the outcome counts of the pass.
func (s *Services) ProcessTransfers() (map[string]int, error) {
	// transfers created while the pass runs get a later last_check and are
	// picked up next cycle
	transfers, err := s.Store.OngoingTransfers(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Checking %d ongoing transfers", len(transfers)))

	summary := make(map[string]int)
	for i := range transfers {
		summary[s.processTransfer(&transfers[i])]++
	}
	s.Catalog.ReindexEntries()
	return summary, nil
}

// polls a single transfer and persists whatever was learned about it
func (s *Services) processTransfer(entry *models.Transfer) string {
	entry.LastCheck = time.Now().UTC()

	outcome := TransferError
	backend, err := transfer.NewManager(entry.Method)
	if err != nil {
		slog.Error(fmt.Sprintf("The transfer %d uses the unknown back-end '%s': %s",
			entry.ID, entry.Method, err))
	} else {
		state, reason, err := backend.TransferStatus(entry.MethodID)
		switch {
		case err != nil:
			// transport problem: the job state is unknown, poll again later
			slog.Warn(fmt.Sprintf("Couldn't poll the transfer %d: %s", entry.ID, err))
			outcome = TransferOngoing
		case state == transfer.StatusDone:
			s.finishTransfer(entry, transfer.StatusDone, "")
			recordUUID, err := uuid.Parse(entry.RecordUUID)
			if err == nil {
				s.Catalog.AddCopy(recordUUID, entry.FileID,
					transfer.Action(entry.Action), entry.NewFilename)
			} else {
				slog.Error(fmt.Sprintf("The transfer %d carries a malformed record "+
					"id '%s'", entry.ID, entry.RecordUUID))
			}
			outcome = TransferDone
		case state == transfer.StatusFailed || state == "":
			// the back-end reported a failure or no longer knows the job
			s.finishTransfer(entry, transfer.StatusFailed, reason)
			slog.Warn(fmt.Sprintf("The transfer %d of %s failed: %s",
				entry.ID, entry.Key, reason))
			outcome = TransferFailed
		default:
			slog.Debug(fmt.Sprintf("The transfer %d is still %s", entry.ID, state))
			entry.Status = state
			outcome = TransferOngoing
		}
	}

	if err := s.Store.SaveTransfer(entry); err != nil {
		slog.Error(fmt.Sprintf("Couldn't save the transfer %d: %s", entry.ID, err))
		return TransferError
	}
	return outcome
}

// closes a transfer row and appends its final state to the journal
func (s *Services) finishTransfer(entry *models.Transfer, status, reason string) {
	now := time.Now().UTC()
	entry.Finished = &now
	entry.Status = status
	entry.Reason = reason

	if s.Journal == nil {
		return
	}
	err := s.Journal.Append(journal.Record{
		TransferID:  entry.ID,
		RecordUUID:  entry.RecordUUID,
		FileID:      entry.FileID,
		Action:      entry.Action,
		NewFilename: entry.NewFilename,
		Method:      entry.Method,
		Status:      status,
		Reason:      reason,
		Size:        entry.Size,
		Submitted:   entry.Submitted,
		Finished:    now,
	})
	if err != nil {
		slog.Error(fmt.Sprintf("Couldn't journal the transfer %d: %s", entry.ID, err))
	}
}
