package services

import (
	"fmt"
	"log/slog"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/journal"
	"github.com/cernopendata/coldstore/mailer"
	"github.com/cernopendata/coldstore/manager"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/storage"
	"github.com/cernopendata/coldstore/transfer"
	"github.com/cernopendata/coldstore/transfer/cp"
	"github.com/cernopendata/coldstore/transfer/fts"
)

// This type bundles the collaborating components of the cold storage
// subsystem. The workers, the REST API, and the CLI all operate through it.
type Services struct {
	Store   *models.Store
	Catalog *catalog.Catalog
	Storage *storage.Storage
	Manager *manager.Manager
	Mail    mailer.Mailer
	Journal *journal.Journal
}

// Wires up the components from the global configuration. Call config.Init
// and RegisterBuiltinManagers first.
func New() (*Services, error) {
	store, err := models.Open()
	if err != nil {
		return nil, err
	}

	cat := catalog.New(store, &logIndexer{}, store)
	stor := storage.New(store)

	var jnl *journal.Journal
	if config.Journal.Path != "" {
		jnl, err = journal.Open(config.Journal.Path)
		if err != nil {
			return nil, err
		}
	}

	return &Services{
		Store:   store,
		Catalog: cat,
		Storage: stor,
		Manager: manager.New(cat, stor, store),
		Mail:    mailer.New(),
		Journal: jnl,
	}, nil
}

// Runs one full background cycle: the requests are driven before and after
// the transfer poll, so a transfer that finishes during the poll can
// complete its request within the same cycle.
func (s *Services) ProcessCycle() error {
	if _, err := s.ProcessRequests(); err != nil {
		return err
	}
	if _, err := s.ProcessTransfers(); err != nil {
		return err
	}
	_, err := s.ProcessRequests()
	return err
}

// frees the resources held by the services
func (s *Services) Close() {
	if s.Journal != nil {
		s.Journal.Close()
	}
}

// Registers the built-in transfer back-ends under their registry names. The
// names are persisted in transfer rows and in locations, so they must remain
// stable across releases.
func RegisterBuiltinManagers() error {
	if err := transfer.RegisterProvider("cp", cp.New); err != nil {
		return err
	}
	return transfer.RegisterProvider("fts", fts.New)
}

// The search indexer sits outside this subsystem; the metadata store remains
// the source of truth, so a deployment without one only loses freshness of
// the search results.
type logIndexer struct{}

func (i *logIndexer) Index(record *catalog.Record) error {
	slog.Debug(fmt.Sprintf("The record %s (availability: %s) is ready for the "+
		"search index", record.ID, record.Availability))
	return nil
}
