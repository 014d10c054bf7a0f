package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cernopendata/coldstore/models"
)

func testServer(t *testing.T, f *fixture) *httptest.Server {
	service, err := NewColdStorageService(f.services)
	assert.Nil(t, err)
	server := httptest.NewServer(service.(*restService).Router)
	t.Cleanup(server.Close)
	return server
}

func getJSON(t *testing.T, url string, out any) int {
	resp, err := http.Get(url)
	assert.Nil(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		assert.Nil(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, out any) int {
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	assert.Nil(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		assert.Nil(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestRootEndpoint(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 2, 2)
	server := testServer(t, f)

	var info ServiceInfoResponse
	code := getJSON(t, server.URL+"/", &info)
	assert.Equal(http.StatusOK, code)
	assert.Equal("cold-storage-test", info.Name)
	assert.Equal("/docs", info.Documentation)
}

func TestCreateRequestEndpoint(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 2, 2)
	server := testServer(t, f)
	record := f.addColdRecord("a", "b")

	var created RequestResponse
	code := postJSON(t, server.URL+"/api/v1/requests",
		`{"record": "1234", "action": "stage", "subscribers": ["someone@cern.ch"]}`,
		&created)
	assert.Equal(http.StatusCreated, code)
	assert.Equal(record.ID.String(), created.Record)
	assert.Equal("stage", created.Action)
	assert.Equal(models.RequestSubmitted, created.Status)

	// the record distribution was snapshotted at submission time
	assert.Equal(2, created.NumRecordFiles)
	assert.Equal(2, created.NumColdFiles)
	assert.Equal(0, created.NumHotFiles)
	assert.Equal(int64(200), created.RecordSize)

	// unknown records and actions are refused
	code = postJSON(t, server.URL+"/api/v1/requests",
		`{"record": "9999", "action": "stage"}`, nil)
	assert.Equal(http.StatusNotFound, code)
	code = postJSON(t, server.URL+"/api/v1/requests",
		`{"record": "1234", "action": "shred"}`, nil)
	assert.Equal(http.StatusUnprocessableEntity, code)
}

func TestRequestQueryEndpoints(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 2, 2)
	server := testServer(t, f)
	f.addColdRecord("a")

	var created RequestResponse
	code := postJSON(t, server.URL+"/api/v1/requests",
		`{"record": "1234", "action": "stage"}`, &created)
	assert.Equal(http.StatusCreated, code)

	var single RequestResponse
	code = getJSON(t, fmt.Sprintf("%s/api/v1/requests/%d", server.URL, created.Id), &single)
	assert.Equal(http.StatusOK, code)
	assert.Equal(created.Id, single.Id)

	code = getJSON(t, server.URL+"/api/v1/requests/999", nil)
	assert.Equal(http.StatusNotFound, code)

	var list struct {
		Requests []RequestResponse `json:"requests"`
		Total    int64             `json:"total"`
	}
	code = getJSON(t, server.URL+"/api/v1/requests?status=submitted&action=stage", &list)
	assert.Equal(http.StatusOK, code)
	assert.Equal(int64(1), list.Total)
	assert.Len(list.Requests, 1)

	code = getJSON(t, server.URL+"/api/v1/requests?status=completed", &list)
	assert.Equal(http.StatusOK, code)
	assert.Equal(int64(0), list.Total)

	var summary struct {
		Summary []models.RequestSummary `json:"summary"`
	}
	code = getJSON(t, server.URL+"/api/v1/requests/summary", &summary)
	assert.Equal(http.StatusOK, code)
	assert.Len(summary.Summary, 1)
	assert.Equal("submitted", summary.Summary[0].Status)
}

func TestSubscribeEndpoint(t *testing.T) {
	assert := assert.New(t)
	f := setup(t, 2, 2)
	server := testServer(t, f)
	f.addColdRecord("a")

	var created RequestResponse
	postJSON(t, server.URL+"/api/v1/requests",
		`{"record": "1234", "action": "stage"}`, &created)

	url := fmt.Sprintf("%s/api/v1/requests/%d/subscribe", server.URL, created.Id)
	var result struct {
		Subscribed bool `json:"subscribed"`
	}
	code := postJSON(t, url, `{"email": "someone@cern.ch"}`, &result)
	assert.Equal(http.StatusOK, code)
	assert.True(result.Subscribed)

	// subscribing twice reports that nothing changed
	code = postJSON(t, url, `{"email": "someone@cern.ch"}`, &result)
	assert.Equal(http.StatusOK, code)
	assert.False(result.Subscribed)

	code = postJSON(t, server.URL+"/api/v1/requests/999/subscribe",
		`{"email": "someone@cern.ch"}`, nil)
	assert.Equal(http.StatusNotFound, code)
}
