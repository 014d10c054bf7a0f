package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/models"
	"github.com/cernopendata/coldstore/transfer"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Inspect and create record requests",
}

// flags of "request list"
var (
	requestStatus  string
	requestAction  string
	requestRecord  string
	requestSort    string
	requestDesc    bool
	requestPage    int
	requestPerPage int
)

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the requests matching the given filters",
	Long: `List the requests matching the given filters.

Examples:
  # The requests still waiting to be driven
  cold request list --status submitted

  # The most recent stage requests
  cold request list --action stage --sort created_at --desc`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		search := models.RequestSearch{
			Record:  requestRecord,
			Sort:    requestSort,
			Desc:    requestDesc,
			Page:    requestPage,
			PerPage: requestPerPage,
		}
		if requestStatus != "" {
			search.Status = []string{requestStatus}
		}
		if requestAction != "" {
			search.Action = []string{requestAction}
		}
		requests, total, err := svcs.Store.SearchRequests(search)
		if err != nil {
			return err
		}
		if len(requests) == 0 {
			fmt.Println("No requests found.")
			return nil
		}
		rows := make([][]string, 0, len(requests))
		for i := range requests {
			req := &requests[i]
			rows = append(rows, []string{
				fmt.Sprintf("%d", req.ID),
				req.RecordID,
				req.Action,
				req.Status,
				req.CreatedAt.Format(time.RFC3339),
				fmt.Sprintf("%d", req.NumFiles),
				humanSize(req.Size),
			})
		}
		printTable(os.Stdout,
			[]string{"ID", "RECORD", "ACTION", "STATUS", "CREATED", "FILES", "SIZE"}, rows)
		fmt.Printf("%d of %d requests\n", len(requests), total)
		return nil
	},
}

var requestSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show per-state request statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		summary, err := svcs.Store.SummarizeRequests(models.RequestSearch{
			Record: requestRecord,
		})
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(summary))
		for _, entry := range summary {
			rows = append(rows, []string{
				entry.Status,
				entry.Action,
				fmt.Sprintf("%d", entry.Count),
				fmt.Sprintf("%d", entry.Files),
				humanSize(entry.Size),
			})
		}
		printTable(os.Stdout, []string{"STATUS", "ACTION", "REQUESTS", "FILES", "SIZE"}, rows)
		return nil
	},
}

// flags of "request create"
var (
	requestFile        string
	requestSubscribers []string
)

var requestCreateCmd = &cobra.Command{
	Use:   "create RECORD ACTION",
	Short: "Submit a request to stage or archive a record",
	Long: `Submit a request to stage or archive a record. The request is picked
up by the next processing cycle, within the configured transfer thresholds.

Examples:
  # Ask for a record to be brought back online
  cold request create 1234 stage --subscribe someone@cern.ch`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := transfer.Action(args[1])
		if action != transfer.ActionStage && action != transfer.ActionArchive {
			return fmt.Errorf("invalid action: %s", args[1])
		}

		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		recordID, err := resolveRecord(svcs, args[0])
		if err != nil {
			return err
		}
		record := svcs.Catalog.GetRecord(recordID)
		if record == nil {
			return fmt.Errorf("the record %s could not be loaded", args[0])
		}

		req := &models.Request{
			RecordID:    recordID.String(),
			Action:      string(action),
			File:        requestFile,
			Subscribers: requestSubscribers,
		}
		for _, file := range svcs.Catalog.GetFilesFromRecord(record, 0) {
			req.NumRecordFiles++
			req.RecordSize += file.Size
			if file.Availability() == catalog.FileOnline {
				req.NumHotFiles++
			}
			if _, found := file.Tag(catalog.TagURICold); found {
				req.NumColdFiles++
			}
		}
		if err = svcs.Store.CreateRequest(req); err != nil {
			return err
		}
		fmt.Printf("request %d created\n", req.ID)
		return nil
	},
}

func init() {
	requestListCmd.Flags().StringVar(&requestStatus, "status", "",
		"keep only requests in this state")
	requestListCmd.Flags().StringVar(&requestAction, "action", "",
		"keep only requests with this action")
	requestListCmd.Flags().StringVar(&requestRecord, "record", "",
		"keep only requests for this record")
	requestListCmd.Flags().StringVar(&requestSort, "sort", "",
		"sort field (id, created_at, started_at, completed_at, status, action)")
	requestListCmd.Flags().BoolVar(&requestDesc, "desc", false,
		"sort in descending order")
	requestListCmd.Flags().IntVar(&requestPage, "page", 1, "page of the results")
	requestListCmd.Flags().IntVar(&requestPerPage, "per-page", 50,
		"number of results per page")

	requestSummaryCmd.Flags().StringVar(&requestRecord, "record", "",
		"keep only requests for this record")

	requestCreateCmd.Flags().StringVar(&requestFile, "file", "",
		"restrict the request to the file with this key")
	requestCreateCmd.Flags().StringSliceVar(&requestSubscribers, "subscribe", nil,
		"email to notify when the request completes (repeatable)")

	requestCmd.AddCommand(requestListCmd)
	requestCmd.AddCommand(requestSummaryCmd)
	requestCmd.AddCommand(requestCreateCmd)
}
