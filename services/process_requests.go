package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/mailer"
	"github.com/cernopendata/coldstore/manager"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/transfer"
)

// outcomes of one pass over the requests
const (
	RequestIssued    = "issued"
	RequestStarted   = "started"
	RequestWaiting   = "waiting"
	RequestCompleted = "completed"
	RequestError     = "error"
)

// the actions a request may carry, in the order they are driven
var requestActions = []transfer.Action{transfer.ActionStage, transfer.ActionArchive}

// Drives the request queues: submitted requests are turned into transfers as
// long as the per-action thresholds leave room, and started requests whose
// record reached the target tier are completed (notifying the subscribers).
// An action without a configured threshold is left alone. Returns the
// outcome counts of the pass.
func (s *Services) ProcessRequests() (map[string]int, error) {
	summary := make(map[string]int)
	for _, action := range requestActions {
		if err := s.startSubmittedRequests(action, summary); err != nil {
			return summary, err
		}
		if err := s.completeStartedRequests(action, summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// Issues transfers for the submitted requests of an action, oldest first,
// until the threshold budget of the action is exhausted. A request whose
// files were all evaluated moves to "started"; one cut short by the budget
// stays submitted and resumes next pass.
func (s *Services) startSubmittedRequests(action transfer.Action, summary map[string]int) error {
	threshold := config.ActiveTransfersThreshold(string(action))
	if threshold == 0 {
		slog.Debug(fmt.Sprintf("No %s threshold is configured. Leaving the queue alone", action))
		return nil
	}
	active, err := s.Store.CountActiveTransfers(action)
	if err != nil {
		return err
	}
	budget := threshold - int(active)
	if budget <= 0 {
		slog.Info(fmt.Sprintf("The %s queue is full (%d active transfers)", action, active))
		return nil
	}

	requests, err := s.Store.RequestsByStatus(models.RequestSubmitted, action)
	if err != nil {
		return err
	}
	for i := range requests {
		if budget <= 0 {
			break
		}
		req := &requests[i]
		recordID, err := uuid.Parse(req.RecordID)
		if err != nil {
			slog.Error(fmt.Sprintf("The request %d carries a malformed record id '%s'",
				req.ID, req.RecordID))
			summary[RequestError]++
			continue
		}

		_, created, err := s.Manager.DoOperation(action, recordID, manager.Options{
			Limit:    budget,
			Register: true,
			File:     req.File,
		})
		if err != nil {
			slog.Error(fmt.Sprintf("Couldn't drive the request %d: %s", req.ID, err))
			summary[RequestError]++
			continue
		}

		req.NumFiles += len(created)
		for _, entry := range created {
			req.Size += entry.Size
		}
		summary[RequestIssued] += len(created)

		if len(created) >= budget {
			// the budget ran out mid-record; the rest resumes next pass,
			// but the issue still counts as the start of the work
			now := time.Now().UTC()
			req.StartedAt = &now
			if err = s.Store.SaveRequest(req); err != nil {
				return err
			}
			summary[RequestWaiting]++
		} else {
			if err = s.Store.MarkRequestStarted(req, req.NumFiles, req.Size); err != nil {
				return err
			}
			summary[RequestStarted]++
		}
		budget -= len(created)
	}
	return nil
}

// Completes the started requests of an action whose record reached the
// target tier, notifying the subscribers. Notification is best-effort.
func (s *Services) completeStartedRequests(action transfer.Action, summary map[string]int) error {
	requests, err := s.Store.RequestsByStatus(models.RequestStarted, action)
	if err != nil {
		return err
	}
	for i := range requests {
		req := &requests[i]
		recordID, err := uuid.Parse(req.RecordID)
		if err != nil {
			summary[RequestError]++
			continue
		}
		fulfilled, err := s.requestFulfilled(req, action, recordID)
		if err != nil {
			slog.Error(fmt.Sprintf("Couldn't check the request %d: %s", req.ID, err))
			summary[RequestError]++
			continue
		}
		if !fulfilled {
			summary[RequestWaiting]++
			continue
		}

		if err = s.Store.MarkRequestCompleted(req); err != nil {
			return err
		}
		slog.Info(fmt.Sprintf("The request %d (%s of the record %s) is completed",
			req.ID, action, req.RecordID))
		summary[RequestCompleted]++

		if len(req.Subscribers) > 0 {
			subject, body := mailer.CompletionMessage(req.ID)
			if err = s.Mail.Send(subject, body, req.Subscribers); err != nil {
				slog.Error(fmt.Sprintf("Couldn't notify the subscribers of the "+
					"request %d: %s", req.ID, err))
			}
		}
	}
	return nil
}

// reports whether the record (or the single file) of a request reached the
// tier its action asks for
func (s *Services) requestFulfilled(req *models.Request, action transfer.Action,
	recordID uuid.UUID) (bool, error) {

	record := s.Catalog.GetRecord(recordID)
	if record == nil {
		return false, &models.RecordNotFoundError{ID: recordID.String()}
	}
	for _, file := range s.Catalog.GetFilesFromRecord(record, 0) {
		if req.File != "" && file.Key != req.File {
			continue
		}
		switch action {
		case transfer.ActionStage:
			if file.Availability() != catalog.FileOnline {
				return false, nil
			}
		case transfer.ActionArchive:
			if _, found := file.Tag(catalog.TagURICold); !found {
				return false, nil
			}
		}
	}
	return true, nil
}
