package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cernopendata/coldstore/config"
	"github.com/cernopendata/coldstore/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cold storage REST service",
	Long: `Start the cold storage REST service on the configured port. The
service exposes the request API under /api/v1 and its OpenAPI documentation
under /docs. SIGINT and SIGTERM shut it down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	svcs, err := openServices()
	if err != nil {
		return err
	}
	defer svcs.Close()

	service, err := services.NewColdStorageService(svcs)
	if err != nil {
		return err
	}

	// intercept the SIGINT and SIGTERM signals for a graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := service.Shutdown(ctx); err != nil {
			service.Close()
		}
	}()

	return service.Start(config.Service.Port)
}
