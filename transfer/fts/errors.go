package fts

// indicates that no FTS endpoint is present in the configuration
type NotConfiguredError struct{}

func (e NotConfiguredError) Error() string {
	return "No FTS endpoint was configured (fts.endpoint)"
}
