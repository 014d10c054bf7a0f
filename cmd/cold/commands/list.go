package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cernopendata/coldstore/catalog"
	"github.com/cernopendata/coldstore/services"
)

var listVerify bool

var listCmd = &cobra.Command{
	Use:   "list RECORD...",
	Short: "List the files of the given records and where their copies live",
	Long: `List the files of the given records and where their copies live.

With --verify every existing copy is checked against the catalog: the file
must exist on the storage and match the recorded size and checksum. The
command exits non-zero if any copy fails the check.

Examples:
  # Show the files of a record
  cold list 1234

  # Check every copy of a record against the catalog
  cold list --verify 1234`,
	Args: cobra.MinimumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listVerify, "verify", false,
		"check every copy against the catalog")
}

func runList(cmd *cobra.Command, args []string) error {
	svcs, err := openServices()
	if err != nil {
		return err
	}
	defer svcs.Close()

	var failures int
	for _, arg := range args {
		recordID, err := resolveRecord(svcs, arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s\n", err)
			failures++
			continue
		}
		record := svcs.Catalog.GetRecord(recordID)
		if record == nil {
			fmt.Fprintf(os.Stderr, "the record %s could not be loaded\n", arg)
			failures++
			continue
		}

		headers := []string{"KEY", "SIZE", "AVAILABILITY", "COLD COPY"}
		if listVerify {
			headers = append(headers, "HOT CHECK", "COLD CHECK")
		}
		summary := make(map[string]int)
		var rows [][]string
		var totalSize int64
		for _, file := range svcs.Catalog.GetFilesFromRecord(record, 0) {
			totalSize += file.Size
			summary[file.Availability()]++

			coldCopy := "no"
			coldURI, hasCold := file.Tag(catalog.TagURICold)
			if hasCold {
				coldCopy = "yes"
			}
			row := []string{file.Key, humanSize(file.Size), file.Availability(), coldCopy}

			if listVerify {
				hotCheck := "-"
				if file.Availability() == catalog.FileOnline {
					hotCheck = verifyCopy(svcs, file, file.URI, &failures)
				}
				coldCheck := "-"
				if hasCold {
					coldCheck = verifyCopy(svcs, file, coldURI, &failures)
				}
				row = append(row, hotCheck, coldCheck)
			}
			rows = append(rows, row)
		}

		fmt.Printf("Record %s (%s): %d files, %s\n",
			record.RecID, record.Availability, len(rows), humanSize(totalSize))
		printTable(os.Stdout, headers, rows)
		printSummary(os.Stdout, summary)
	}
	if failures > 0 {
		return fmt.Errorf("%d failures", failures)
	}
	return nil
}

// checks one copy of a file against the catalog, bumping the failure count
// when the copy is missing or differs
func verifyCopy(svcs *services.Services, file *catalog.File, uri string, failures *int) string {
	ok, reason, err := svcs.Storage.VerifyFile(uri, file.Size, file.Checksum)
	if err != nil {
		*failures++
		return fmt.Sprintf("error: %s", err)
	}
	if !ok {
		*failures++
		return reason
	}
	return "ok"
}
