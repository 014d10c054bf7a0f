package commands

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/cernopendata/coldstore/services"
)

// resolves a command line argument to a record identifier: either an
// internal UUID or the persistent identifier users know
func resolveRecord(svcs *services.Services, arg string) (uuid.UUID, error) {
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	id, err := svcs.Catalog.Resolve(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("the record %s does not exist", arg)
	}
	return id, nil
}

// renders rows as a borderless table, the way operators expect CLI output
func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}

// prints the outcome counts of an operation in a stable order
func printSummary(w io.Writer, summary map[string]int) {
	outcomes := make([]string, 0, len(summary))
	for outcome := range summary {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Fprintf(w, "%s: %d\n", outcome, summary[outcome])
	}
}

// formats a byte count for humans
func humanSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
