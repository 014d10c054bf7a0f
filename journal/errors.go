package journal

import (
	"fmt"
)

// indicates that the journal database could not be opened
type CantOpenError struct {
	Message string
}

func (e CantOpenError) Error() string {
	return fmt.Sprintf("The transfer journal could not be opened: %s", e.Message)
}

// indicates that a journal record is malformed
type InvalidRecordError struct {
	TransferID uint
	Message    string
}

func (e InvalidRecordError) Error() string {
	return fmt.Sprintf("Invalid journal record for transfer %d: %s",
		e.TransferID, e.Message)
}
