package cp

import (
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cernopendata/coldstore/transfer"
)

// This type implements a transfer back-end that copies files around on a
// local filesystem. The copy happens synchronously under the hood, so the
// job it reports is already DONE when the submission returns. It serves
// disk-backed locations and testing.
type Manager struct {
	pid int

	mutex  sync.Mutex
	lastId int
}

// creates a new local copy back-end
func New() (transfer.Manager, error) {
	return &Manager{pid: os.Getpid()}, nil
}

// strips any file://host/ prefix, producing a local filesystem path
func localPath(uri string) string {
	if rest, found := strings.CutPrefix(uri, "file://"); found {
		if slash := strings.Index(rest, "/"); slash >= 0 {
			return rest[slash:]
		}
		return "/" + rest
	}
	return uri
}

func (m *Manager) copyFile(source, destination string) (string, error) {
	src := localPath(source)
	dst := localPath(destination)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     err.Error(),
		}
	}

	in, err := os.Open(src)
	if err != nil {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     err.Error(),
		}
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     err.Error(),
		}
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     err.Error(),
		}
	}

	m.mutex.Lock()
	m.lastId++
	id := fmt.Sprintf("%d_%d", m.pid, m.lastId)
	m.mutex.Unlock()
	return id, nil
}

// copies a hot file to its cold destination
func (m *Manager) Archive(source, destination string) (string, error) {
	return m.copyFile(source, destination)
}

// brings a cold file back to its hot destination
func (m *Manager) Stage(source, destination string) (string, error) {
	return m.copyFile(source, destination)
}

// the copy is synchronous, so any job we handed out is already finished
func (m *Manager) TransferStatus(id string) (string, string, error) {
	return transfer.StatusDone, "", nil
}

// stats a local file, computing its adler32 checksum
func (m *Manager) Stat(uri string) (*transfer.FileInfo, error) {
	path := localPath(uri)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	hash := adler32.New()
	if _, err = io.Copy(hash, file); err != nil {
		return nil, err
	}
	return &transfer.FileInfo{
		Size:     info.Size(),
		Checksum: fmt.Sprintf("%08x", hash.Sum32()),
	}, nil
}
