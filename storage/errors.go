package storage

import (
	"fmt"
)

// indicates that a URI scheme cannot be verified
type UnsupportedSchemeError struct {
	Scheme string
}

func (e UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("Unsupported URI scheme: %s", e.Scheme)
}

// indicates that no configured location covers a URI
type UnknownLocationError struct {
	URI string
}

func (e UnknownLocationError) Error() string {
	return fmt.Sprintf("No location covers the URI %s", e.URI)
}
