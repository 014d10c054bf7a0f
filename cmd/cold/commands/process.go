package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var processTransfersCmd = &cobra.Command{
	Use:   "process-transfers",
	Short: "Poll the back-ends for the ongoing transfers and settle the finished ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		summary, err := svcs.ProcessTransfers()
		if err != nil {
			return err
		}
		printSummary(os.Stdout, summary)
		return nil
	},
}

var processRequestsCmd = &cobra.Command{
	Use:   "process-requests",
	Short: "Drive the request queues within the configured transfer thresholds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		summary, err := svcs.ProcessRequests()
		if err != nil {
			return err
		}
		printSummary(os.Stdout, summary)
		return nil
	},
}

var processCycleCmd = &cobra.Command{
	Use:   "process-cycle",
	Short: "Run one full background cycle (requests, transfers, requests)",
	Long: `Run one full background cycle: the request queues are driven, the
ongoing transfers are polled, and the request queues are driven again so
that transfers finished during the poll complete their requests within the
same cycle. This is the command to put in the service's crontab.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		if err := svcs.ProcessCycle(); err != nil {
			return err
		}
		fmt.Println("cycle completed")
		return nil
	},
}
