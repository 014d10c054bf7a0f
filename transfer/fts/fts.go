package fts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/transfer"
)

// This file implements a back-end for the File Transfer Service (FTS3),
// using its REST API described at https://fts3-docs.web.cern.ch/fts3-docs/.
// Jobs are submitted to the external scheduler and polled later; only the
// FINISHED state is translated to DONE, every other state is surfaced
// verbatim.

// this type captures the parts of an FTS job status response we care about
type jobStatus struct {
	JobId    string `json:"job_id"`
	JobState string `json:"job_state"`
	Reason   string `json:"reason"`
}

// this type satisfies the transfer.Manager interface for FTS
type Manager struct {
	// base URL of the FTS REST endpoint (obtained from config)
	Endpoint string
	// HTTP client with retries
	Client *retryablehttp.Client
}

// creates a new FTS back-end using the configured REST endpoint
func New() (transfer.Manager, error) {
	if config.FTS.Endpoint == "" {
		return nil, &NotConfiguredError{}
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = nil
	return &Manager{
		Endpoint: strings.TrimSuffix(config.FTS.Endpoint, "/"),
		Client:   client,
	}, nil
}

// the skeleton of an FTS job: one file with one source and one destination
func basicJob(source, destination string) map[string]any {
	return map[string]any{
		"files": []map[string]any{
			{
				"sources":      []string{source},
				"destinations": []string{destination},
			},
		},
	}
}

// submits a job to FTS, returning its identifier
func (m *Manager) submit(source, destination string, job map[string]any) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequest(http.MethodPost, m.Endpoint+"/jobs", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     err.Error(),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     fmt.Sprintf("FTS returned %d: %s", resp.StatusCode, string(data)),
		}
	}

	var status jobStatus
	if err = json.Unmarshal(data, &status); err != nil {
		return "", err
	}
	if status.JobId == "" {
		return "", &transfer.SubmissionError{
			Source:      source,
			Destination: destination,
			Message:     "FTS did not return a job id",
		}
	}
	slog.Debug(fmt.Sprintf("FTS accepted the job %s", status.JobId))
	return status.JobId, nil
}

// submits a hot -> cold copy; the archive_timeout parameter tells FTS to
// wait for the tape system to confirm the archived copy
func (m *Manager) Archive(source, destination string) (string, error) {
	job := basicJob(source, destination)
	job["params"] = map[string]any{
		"archive_timeout":   config.FTS.ArchiveTimeout,
		"copy_pin_lifetime": -1,
	}
	return m.submit(source, destination, job)
}

// submits a cold -> hot copy; bring_online pins the staged replica on disk
func (m *Manager) Stage(source, destination string) (string, error) {
	job := basicJob(source, destination)
	job["params"] = map[string]any{
		"bring_online":      config.FTS.BringOnline,
		"copy_pin_lifetime": 64000,
	}
	return m.submit(source, destination, job)
}

// polls the state of a job; transport problems are reported as errors so
// the transfer stays ongoing and is polled again next cycle
func (m *Manager) TransferStatus(id string) (string, string, error) {
	resp, err := m.Client.Get(m.Endpoint + "/jobs/" + id)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode == http.StatusNotFound {
		// FTS no longer knows the job: not retriable
		return "", fmt.Sprintf("FTS does not know the job %s", id), nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("FTS returned %d: %s", resp.StatusCode, string(data))
	}

	var status jobStatus
	if err = json.Unmarshal(data, &status); err != nil {
		return "", "", err
	}
	if status.JobState == "" {
		return "", "", fmt.Errorf("The FTS response for job %s has no job_state", id)
	}
	if status.JobState == "FINISHED" {
		return transfer.StatusDone, "", nil
	}
	if status.JobState == "FAILED" {
		return transfer.StatusFailed, status.Reason, nil
	}
	return status.JobState, status.Reason, nil
}

// stats a remote file over HTTPS, asking the storage for an adler32 digest
// (WLCG storages implement Want-Digest on HEAD requests)
func (m *Manager) Stat(uri string) (*transfer.FileInfo, error) {
	req, err := retryablehttp.NewRequest(http.MethodHead, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Want-Digest", "adler32")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("The storage returned %d for %s", resp.StatusCode, uri)
	}

	info := transfer.FileInfo{}
	if length := resp.Header.Get("Content-Length"); length != "" {
		info.Size, err = strconv.ParseInt(length, 10, 64)
		if err != nil {
			return nil, err
		}
	}
	// Digest: adler32=<hex>
	for _, token := range strings.Split(resp.Header.Get("Digest"), ",") {
		token = strings.TrimSpace(token)
		if digest, found := strings.CutPrefix(token, "adler32="); found {
			info.Checksum = digest
		}
	}
	return &info, nil
}
