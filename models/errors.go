package models

import (
	"fmt"
)

// indicates that an unfinished transfer already exists for a (file, action)
type AlreadyScheduledError struct {
	FileID string
	Action string
}

func (e AlreadyScheduledError) Error() string {
	return fmt.Sprintf("An unfinished %s transfer already exists for the file %s",
		e.Action, e.FileID)
}

// indicates that a request does not exist
type RequestNotFoundError struct {
	ID uint
}

func (e RequestNotFoundError) Error() string {
	return fmt.Sprintf("The request %d does not exist", e.ID)
}

// indicates that a record (or persistent identifier) does not exist
type RecordNotFoundError struct {
	ID string
}

func (e RecordNotFoundError) Error() string {
	return fmt.Sprintf("The record '%s' does not exist", e.ID)
}
