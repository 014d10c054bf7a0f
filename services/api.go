package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humamux"
	"github.com/gorilla/mux"
	"golang.org/x/net/netutil"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/transfer"
)

// Version numbers
var majorVersion = 1
var minorVersion = 0
var patchVersion = 0

// Version string
var version = fmt.Sprintf("%d.%d.%d", majorVersion, minorVersion, patchVersion)

// this type encodes a JSON object for responding to root queries
type ServiceInfoResponse struct {
	Name          string `json:"name" example:"cold-storage" doc:"The name of the service API"`
	Version       string `json:"version" example:"1.0.0" doc:"The version string (major.minor.patch)"`
	Uptime        int    `json:"uptime" example:"345600" doc:"The time the service has been up (seconds)"`
	Documentation string `json:"documentation" example:"/docs" doc:"The OpenAPI documentation endpoint"`
}

// a single request, as reported by the API
type RequestResponse struct {
	Id        uint       `json:"id" doc:"the identifier of the request"`
	Record    string     `json:"record" doc:"the internal identifier of the record"`
	Action    string     `json:"action" example:"stage" doc:"the requested action"`
	Status    string     `json:"status" example:"submitted" doc:"the lifecycle state of the request"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	// time at which all the transfers of the request finished
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// number and total size of the transfers issued for the request
	NumFiles int   `json:"num_files"`
	Size     int64 `json:"size"`
	// snapshot of the record taken at submission time
	NumHotFiles    int   `json:"num_hot_files"`
	NumColdFiles   int   `json:"num_cold_files"`
	NumRecordFiles int   `json:"num_record_files"`
	RecordSize     int64 `json:"record_size"`
	// single-file scope, if any
	File string `json:"file,omitempty"`
}

func requestResponse(req *models.Request) RequestResponse {
	return RequestResponse{
		Id:             req.ID,
		Record:         req.RecordID,
		Action:         req.Action,
		Status:         req.Status,
		CreatedAt:      req.CreatedAt,
		StartedAt:      req.StartedAt,
		CompletedAt:    req.CompletedAt,
		NumFiles:       req.NumFiles,
		Size:           req.Size,
		NumHotFiles:    req.NumHotFiles,
		NumColdFiles:   req.NumColdFiles,
		NumRecordFiles: req.NumRecordFiles,
		RecordSize:     req.RecordSize,
		File:           req.File,
	}
}

// This type implements the cold storage REST service.
type restService struct {
	// name of the service
	Name string
	// service version identifier
	Version string
	// time which the service was started
	StartTime time.Time
	// port on which the service currently runs
	Port int
	// router for REST endpoints
	Router *mux.Router
	// API wrapper
	API huma.API
	// HTTP server.
	Server *http.Server

	services *Services
}

type ServiceInfoOutput struct {
	Body ServiceInfoResponse `doc:"information about the service itself"`
}

// handler method for root
func (service *restService) getRoot(ctx context.Context,
	input *struct{}) (*ServiceInfoOutput, error) {

	slog.Info("Querying root endpoint...")
	return &ServiceInfoOutput{
		Body: ServiceInfoResponse{
			Name:          service.Name,
			Version:       service.Version,
			Uptime:        int(service.uptime()),
			Documentation: "/docs",
		},
	}, nil
}

type RequestListOutput struct {
	Body struct {
		Requests []RequestResponse `json:"requests" doc:"the requests matching the query"`
		Total    int64             `json:"total" doc:"the number of matching requests before pagination"`
	}
}

// handler method for searching the requests
func (service *restService) getRequests(ctx context.Context,
	input *struct {
		Status  string `query:"status" example:"submitted" doc:"(Optional) Keep only requests in this state"`
		Action  string `query:"action" example:"stage" doc:"(Optional) Keep only requests with this action"`
		Record  string `query:"record" doc:"(Optional) Keep only requests for this record"`
		Sort    string `query:"sort" example:"created_at" doc:"(Optional) Sort field"`
		Desc    bool   `query:"desc" doc:"Sort in descending order"`
		Page    int    `query:"page" example:"1" doc:"Page of the results (1-based)"`
		PerPage int    `query:"per_page" example:"50" doc:"Number of results per page"`
	}) (*RequestListOutput, error) {

	search := models.RequestSearch{
		Record:  input.Record,
		Sort:    input.Sort,
		Desc:    input.Desc,
		Page:    input.Page,
		PerPage: input.PerPage,
	}
	if input.Status != "" {
		search.Status = []string{input.Status}
	}
	if input.Action != "" {
		search.Action = []string{input.Action}
	}
	requests, total, err := service.services.Store.SearchRequests(search)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}

	output := &RequestListOutput{}
	output.Body.Requests = make([]RequestResponse, 0, len(requests))
	output.Body.Total = total
	for i := range requests {
		output.Body.Requests = append(output.Body.Requests, requestResponse(&requests[i]))
	}
	return output, nil
}

type RequestSummaryOutput struct {
	Body struct {
		Summary []models.RequestSummary `json:"summary" doc:"per (status, action) counts and sizes"`
	}
}

// handler method for the per-state request statistics
func (service *restService) getRequestSummary(ctx context.Context,
	input *struct {
		Record string `query:"record" doc:"(Optional) Keep only requests for this record"`
	}) (*RequestSummaryOutput, error) {

	summary, err := service.services.Store.SummarizeRequests(models.RequestSearch{
		Record: input.Record,
	})
	if err != nil {
		return nil, huma.Error422UnprocessableEntity(err.Error())
	}
	output := &RequestSummaryOutput{}
	output.Body.Summary = summary
	return output, nil
}

type RequestOutput struct {
	Body RequestResponse `doc:"the request with the given identifier"`
}

// handler method for fetching a single request
func (service *restService) getRequest(ctx context.Context,
	input *struct {
		Id uint `path:"id" example:"17" doc:"the identifier of the request"`
	}) (*RequestOutput, error) {

	req, err := service.services.Store.GetRequest(input.Id)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &RequestOutput{Body: requestResponse(req)}, nil
}

// the body of a POST creating a request
type CreateRequestBody struct {
	// persistent identifier of the record, as users know it
	Record string `json:"record" example:"1234" doc:"the persistent identifier of the record"`
	Action string `json:"action" example:"stage" doc:"the action to perform (stage or archive)"`
	// optional single-file scope
	File string `json:"file,omitempty" doc:"(Optional) Restrict the request to the file with this key"`
	// emails notified when the request completes
	Subscribers []string `json:"subscribers,omitempty" doc:"(Optional) Emails notified on completion"`
}

type CreateRequestOutput struct {
	Body   RequestResponse `doc:"the newly created request"`
	Status int
}

// Handler method for creating a request. The persistent identifier is
// resolved and the current hot/cold distribution of the record is
// snapshotted onto the request for later statistics.
func (service *restService) createRequest(ctx context.Context,
	input *struct {
		Body        CreateRequestBody `doc:"The body of a POST request for a record operation"`
		ContentType string            `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*CreateRequestOutput, error) {

	action := transfer.Action(input.Body.Action)
	if action != transfer.ActionStage && action != transfer.ActionArchive {
		return nil, huma.Error422UnprocessableEntity(
			fmt.Sprintf("Invalid action: %s", input.Body.Action))
	}

	recordID, err := service.services.Catalog.Resolve(input.Body.Record)
	if err != nil {
		return nil, huma.Error404NotFound(
			fmt.Sprintf("The record %s does not exist", input.Body.Record))
	}
	record := service.services.Catalog.GetRecord(recordID)
	if record == nil {
		return nil, huma.Error404NotFound(
			fmt.Sprintf("The record %s does not exist", input.Body.Record))
	}

	req := &models.Request{
		RecordID:    recordID.String(),
		Action:      string(action),
		File:        input.Body.File,
		Subscribers: input.Body.Subscribers,
	}
	snapshotRecord(req, service.services.Catalog, record)
	if err = service.services.Store.CreateRequest(req); err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("Created the request %d: %s of the record %s",
		req.ID, action, input.Body.Record))
	return &CreateRequestOutput{
		Body:   requestResponse(req),
		Status: http.StatusCreated,
	}, nil
}

// copies the hot/cold file distribution of a record onto a new request
func snapshotRecord(req *models.Request, cat *catalog.Catalog, record *catalog.Record) {
	for _, file := range cat.GetFilesFromRecord(record, 0) {
		req.NumRecordFiles++
		req.RecordSize += file.Size
		if file.Availability() == catalog.FileOnline {
			req.NumHotFiles++
		}
		if _, found := file.Tag(catalog.TagURICold); found {
			req.NumColdFiles++
		}
	}
}

type SubscribeOutput struct {
	Body struct {
		Subscribed bool `json:"subscribed" doc:"whether the email was added (false if it was there already)"`
	}
}

// handler method for subscribing an email to the completion of a request
func (service *restService) subscribe(ctx context.Context,
	input *struct {
		Id   uint `path:"id" example:"17" doc:"the identifier of the request"`
		Body struct {
			Email string `json:"email" example:"someone@cern.ch" doc:"the email to notify on completion"`
		}
		ContentType string `header:"Content-Type" doc:"Content-Type header (must be application/json)"`
	}) (*SubscribeOutput, error) {

	if input.Body.Email == "" {
		return nil, huma.Error422UnprocessableEntity("No email was given")
	}
	subscribed, err := service.services.Store.Subscribe(input.Id, input.Body.Email)
	if err != nil {
		var notFound *models.RequestNotFoundError
		if errors.As(err, &notFound) {
			return nil, huma.Error404NotFound(err.Error())
		}
		return nil, err
	}
	output := &SubscribeOutput{}
	output.Body.Subscribed = subscribed
	return output, nil
}

// returns the uptime for the service in seconds
func (service *restService) uptime() float64 {
	return time.Since(service.StartTime).Seconds()
}

// This interface is the REST face of the cold storage service.
type ColdStorageService interface {
	// Starts the service on the selected port, returning an error that indicates
	// success or failure.
	Start(port int) error
	// Gracefully shuts down the service without interrupting active connections.
	Shutdown(ctx context.Context) error
	// Closes down the service, freeing all resources.
	Close()
}

// constructs the cold storage REST service over the given components
func NewColdStorageService(services *Services) (ColdStorageService, error) {
	service := new(restService)
	service.Name = config.Service.Name
	service.Version = version
	service.Port = -1
	service.services = services

	// set up routing (the summary route must come before the {id} route)
	service.Router = mux.NewRouter()
	api := humamux.New(service.Router, huma.DefaultConfig(service.Name, service.Version))
	huma.Get(api, "/", service.getRoot)

	// API v1
	huma.Get(api, "/api/v1/requests", service.getRequests)
	huma.Post(api, "/api/v1/requests", service.createRequest)
	huma.Get(api, "/api/v1/requests/summary", service.getRequestSummary)
	huma.Get(api, "/api/v1/requests/{id}", service.getRequest)
	huma.Post(api, "/api/v1/requests/{id}/subscribe", service.subscribe)

	return service, nil
}

// starts the cold storage REST service
func (service *restService) Start(port int) error {
	slog.Info(fmt.Sprintf("Starting %s service on port %d...", service.Name, port))
	slog.Info(fmt.Sprintf("(Accepting up to %d connections)", config.Service.MaxConnections))

	service.StartTime = time.Now()

	// create a listener that limits the number of incoming connections
	service.Port = port
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(port))
	if err != nil {
		return err
	}
	defer listener.Close()
	listener = netutil.LimitListener(listener, config.Service.MaxConnections)

	// start the server
	service.Server = &http.Server{
		Handler: service.Router}
	err = service.Server.Serve(listener)

	// we don't report the server closing as an error
	if err != http.ErrServerClosed {
		return err
	}
	return nil
}

// gracefully shuts down the service without interrupting active connections
func (service *restService) Shutdown(ctx context.Context) error {
	if service.Server != nil {
		return service.Server.Shutdown(ctx)
	}
	return nil
}

// closes down the service abruptly, freeing all resources
func (service *restService) Close() {
	if service.Server != nil {
		service.Server.Close()
	}
}
