package transfer

import (
	"fmt"
)

// indicates that a back-end provider name is already taken
type AlreadyRegisteredError struct {
	Name string
}

func (e AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("A transfer back-end named '%s' is already registered", e.Name)
}

// indicates that no back-end provider is registered under a name
type NotRegisteredError struct {
	Name string
}

func (e NotRegisteredError) Error() string {
	return fmt.Sprintf("No transfer back-end is registered under the name '%s'", e.Name)
}

// indicates that a back-end refused a copy submission
type SubmissionError struct {
	Source, Destination string
	Message             string
}

func (e SubmissionError) Error() string {
	return fmt.Sprintf("The copy %s -> %s was not accepted: %s",
		e.Source, e.Destination, e.Message)
}
