package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/transfer"
)

// This type routes copies between the storage tiers: it maps a URI to its
// peer on the other tier through the configured locations and dispatches
// the copy to the back-end bound to the matching location.
type Storage struct {
	store *models.Store
}

// creates a storage router over the location table
func New(store *models.Store) *Storage {
	return &Storage{store: store}
}

// some back-ends only speak https, so xrootd URIs are normalized uniformly
func normalizeProtocol(uri string) string {
	return strings.Replace(uri, "root://", "https://", 1)
}

// Picks the location whose hot path (for archive) or cold path (for stage)
// is the longest prefix of the URI, and returns the peer URI (the prefix
// rewritten to the other tier) together with the bound back-end and its
// registry name. Returns empty values if no location matches.
func (s *Storage) FindURL(action transfer.Action, uri string) (string, transfer.Manager, string, error) {
	locations, err := s.store.Locations()
	if err != nil {
		return "", nil, "", err
	}

	var best *models.Location
	for i := range locations {
		prefix := locations[i].HotPath
		if action == transfer.ActionStage {
			prefix = locations[i].ColdPath
		}
		if !strings.HasPrefix(uri, prefix) {
			continue
		}
		bestLen := -1
		if best != nil {
			bestLen = len(best.HotPath)
			if action == transfer.ActionStage {
				bestLen = len(best.ColdPath)
			}
		}
		if len(prefix) > bestLen {
			best = &locations[i]
		}
	}
	if best == nil {
		return "", nil, "", nil
	}

	prefix, target := best.HotPath, best.ColdPath
	if action == transfer.ActionStage {
		prefix, target = best.ColdPath, best.HotPath
	}
	manager, err := transfer.NewManager(best.ManagerClass)
	if err != nil {
		return "", nil, "", err
	}
	return target + strings.TrimPrefix(uri, prefix), manager, best.ManagerClass, nil
}

// Submits a hot -> cold copy for a file, returning the transfer row to
// persist (without record bookkeeping) or nil if the submission failed.
func (s *Storage) Archive(file *catalog.File) *models.Transfer {
	filename := file.URI
	destination, manager, method, err := s.FindURL(transfer.ActionArchive, filename)
	if err != nil || destination == "" {
		slog.Error(fmt.Sprintf("Can't find the cold destination of %s", filename))
		return nil
	}
	id, err := manager.Archive(normalizeProtocol(filename), destination)
	if err != nil {
		slog.Error(fmt.Sprintf("Error submitting the archive of %s: %s", filename, err))
		return nil
	}
	return &models.Transfer{
		Action:      string(transfer.ActionArchive),
		NewFilename: destination,
		Method:      method,
		MethodID:    id,
		Size:        file.Size,
	}
}

// Submits a cold -> hot copy for a file; the source is the file's cold URI.
func (s *Storage) Stage(file *catalog.File) *models.Transfer {
	filename, found := file.Tag(catalog.TagURICold)
	if !found {
		slog.Error(fmt.Sprintf("The file %s has no cold copy to stage", file.Key))
		return nil
	}
	// the location table holds the cold prefix as registered (root://), so
	// the lookup uses the raw URI; only the back-end gets the https form
	destination, manager, method, err := s.FindURL(transfer.ActionStage, filename)
	if err != nil || destination == "" {
		slog.Error(fmt.Sprintf("Can't find the hot destination of %s", filename))
		return nil
	}
	id, err := manager.Stage(normalizeProtocol(filename), destination)
	if err != nil {
		slog.Error(fmt.Sprintf("Error submitting the stage of %s: %s", filename, err))
		return nil
	}
	return &models.Transfer{
		Action:      string(transfer.ActionStage),
		NewFilename: destination,
		Method:      method,
		MethodID:    id,
		Size:        file.Size,
	}
}

var uriHostPrefix = regexp.MustCompile(`^((root)|(file))://[^/]*/`)

// Deletes the local hot copy of a file. A missing file logs a warning and
// returns false, so a repeated clear is harmless.
func (s *Storage) ClearHot(uri string) bool {
	path := uriHostPrefix.ReplaceAllString(uri, "/")
	err := os.Remove(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn(fmt.Sprintf("The hot copy %s (from %s) is already gone", path, uri))
		} else {
			slog.Error(fmt.Sprintf("Error deleting the file %s (from %s): %s", path, uri, err))
		}
		return false
	}
	return true
}

// Checks that a file exists at the URI with the given size and checksum
// (format "adler32:<hex>"). The reason is empty on success.
func (s *Storage) VerifyFile(uri string, size int64, checksum string) (bool, string, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return false, "", err
	}

	var manager transfer.Manager
	switch parsed.Scheme {
	case "root", "https":
		// the location owning the URI knows which back-end can stat it
		for _, action := range []transfer.Action{transfer.ActionArchive, transfer.ActionStage} {
			_, candidate, _, err := s.FindURL(action, uri)
			if err == nil && candidate != nil {
				manager = candidate
				break
			}
		}
		if manager == nil {
			return false, "", &UnknownLocationError{URI: uri}
		}
		uri = normalizeProtocol(uri)
	case "", "file":
		manager, err = transfer.NewManager("cp")
		if err != nil {
			return false, "", err
		}
	default:
		return false, "", &UnsupportedSchemeError{Scheme: parsed.Scheme}
	}

	info, err := manager.Stat(uri)
	if err != nil {
		return false, "", err
	}
	if info == nil {
		return false, "File does not exist", nil
	}
	if info.Size != size {
		return false, "different size", nil
	}
	if checksum != fmt.Sprintf("adler32:%s", info.Checksum) {
		return false, "different checksum", nil
	}
	return true, "", nil
}
