package transfer

// This package defines the contract that every transfer back-end implements,
// and a registry that resolves a back-end from the stable short name stored
// in a transfer row (e.g. "cp", "fts").

// This type identifies the direction of a copy between the storage tiers.
type Action string

const (
	// copy hot -> cold
	ActionArchive Action = "archive"
	// copy cold -> hot
	ActionStage Action = "stage"
	// remove the hot copy of an archived file
	ActionClearHot Action = "clear_hot"
)

// back-end states with a well-known meaning; anything else is an in-flight
// state native to the back-end, surfaced verbatim for diagnostics
const (
	StatusDone   = "DONE"
	StatusFailed = "FAILED"
)

// size and checksum of a file at a destination, as reported by a back-end
type FileInfo struct {
	Size int64
	// hex adler32 digest, without the "adler32:" prefix
	Checksum string
}

// This type represents an asynchronous copy engine between the storage
// tiers. Submissions return immediately with an opaque identifier that can
// be polled later, possibly by a different process.
type Manager interface {
	// asynchronously copies a hot file to cold storage, returning an opaque
	// job identifier ("" with an error on submission failure)
	Archive(source, destination string) (string, error)
	// asynchronously copies a cold file back to hot storage
	Stage(source, destination string) (string, error)
	// retrieves the state of a previously submitted job; the reason is
	// populated only on failure, and a non-nil error indicates a transport
	// problem (the job state remains unknown)
	TransferStatus(id string) (state, reason string, err error)
	// stats the file at the given URI, returning nil (and no error) if the
	// file does not exist
	Stat(uri string) (*FileInfo, error)
}
