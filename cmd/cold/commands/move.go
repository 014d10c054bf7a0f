package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cernopendata/coldstore/manager"
	"github.com/cernopendata/coldstore/transfer"
)

// flags shared by the record operations
var (
	moveLimit    int
	moveRegister bool
	moveForce    bool
	moveDry      bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive RECORD...",
	Short: "Copy the files of the given records to cold storage",
	Long: `Copy the files of the given records to cold storage.

Records may be given by their persistent identifier or by their internal
UUID. Files that already have a cold copy, or whose copy is already on its
way, are left alone.

Examples:
  # Archive a record
  cold archive 1234

  # Archive the first 10 files of a record
  cold archive --limit 10 1234

  # Archive everything but the last 2 files
  cold archive --limit -2 1234

  # Attach copies that already sit on cold storage
  cold archive --register 1234`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(transfer.ActionArchive, args)
	},
}

var stageCmd = &cobra.Command{
	Use:   "stage RECORD...",
	Short: "Copy the files of the given records back to hot storage",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(transfer.ActionStage, args)
	},
}

var clearHotCmd = &cobra.Command{
	Use:   "clear-hot RECORD...",
	Short: "Remove the hot copies of files that are safely on cold storage",
	Long: `Remove the hot copies of files that are safely on cold storage.

Files without a cold copy are never touched. A dry run reports what would be
cleared without removing anything.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMove(transfer.ActionClearHot, args)
	},
}

func init() {
	for _, cmd := range []*cobra.Command{archiveCmd, stageCmd, clearHotCmd} {
		cmd.Flags().IntVar(&moveLimit, "limit", 0,
			"positive: handle at most this many files; negative: leave the last files untouched")
		cmd.Flags().BoolVar(&moveDry, "dry", false,
			"only report what would be done")
		cmd.Flags().BoolVar(&moveForce, "force", false,
			"skip the destination existence check")
	}
	for _, cmd := range []*cobra.Command{archiveCmd, stageCmd} {
		cmd.Flags().BoolVar(&moveRegister, "register", false,
			"attach copies that already exist at the destination")
	}
}

// runs a record operation over every given record
func runMove(action transfer.Action, args []string) error {
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
		summary, _, err := svcs.Manager.DoOperation(action, recordID, manager.Options{
			Limit:    moveLimit,
			Register: moveRegister,
			Force:    moveForce,
			Dry:      moveDry,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s of %s failed: %s\n", action, arg, err)
			failures++
			continue
		}
		fmt.Printf("%s %s:\n", action, arg)
		printSummary(os.Stdout, summary)
		failures += summary[manager.ResultError] + summary[manager.ResultInconsistent]
	}
	if failures > 0 {
		return fmt.Errorf("%d failures", failures)
	}
	return nil
}
