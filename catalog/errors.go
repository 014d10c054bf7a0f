package catalog

import (
	"fmt"
)

// indicates that an uploaded index.json could not be materialized
type InvalidIndexError struct {
	Name    string
	Message string
}

func (e InvalidIndexError) Error() string {
	return fmt.Sprintf("The file index '%s' is invalid: %s", e.Name, e.Message)
}
