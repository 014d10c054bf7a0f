package config

// parameters for the FTS wide-area transfer back-end
type ftsConfig struct {
	// base URL of the FTS REST endpoint (e.g. https://fts3.example.org:8446)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// seconds a staged copy is pinned on disk before eviction
	BringOnline int `json:"bring_online" yaml:"bring_online"`
	// seconds FTS waits for the tape system to confirm an archived copy
	ArchiveTimeout int `json:"archive_timeout" yaml:"archive_timeout"`
}
