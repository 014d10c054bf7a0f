package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cernopendata/coldstore/models"
)

var locationCmd = &cobra.Command{
	Use:   "location",
	Short: "Manage the mappings between hot and cold storage prefixes",
}

var (
	locationHotPath      string
	locationColdPath     string
	locationManagerClass string
)

var locationAddCmd = &cobra.Command{
	Use:   "add --hot-path PREFIX --cold-path PREFIX --manager-class NAME",
	Short: "Map a hot storage prefix to its cold peer",
	Long: `Map a hot storage prefix to its cold peer, naming the back-end that
carries the copies between them ("cp" or "fts"). The three values may also
be given as positional arguments, in that order.

Examples:
  cold location add --hot-path root://eos.example.org//eos/opendata \
    --cold-path root://castor.example.org//castor/opendata \
    --manager-class fts`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		hot, cold, class := locationHotPath, locationColdPath, locationManagerClass
		if len(args) == 3 {
			hot, cold, class = args[0], args[1], args[2]
		}
		if hot == "" || cold == "" || class == "" {
			return fmt.Errorf("a location needs --hot-path, --cold-path and --manager-class")
		}

		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		location := &models.Location{
			HotPath:      hot,
			ColdPath:     cold,
			ManagerClass: class,
		}
		if err = svcs.Store.AddLocation(location); err != nil {
			return err
		}
		fmt.Printf("location %d added\n", location.ID)
		return nil
	},
}

var locationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svcs, err := openServices()
		if err != nil {
			return err
		}
		defer svcs.Close()

		locations, err := svcs.Store.Locations()
		if err != nil {
			return err
		}
		if len(locations) == 0 {
			fmt.Println("No locations are configured.")
			return nil
		}
		rows := make([][]string, 0, len(locations))
		for _, location := range locations {
			rows = append(rows, []string{
				fmt.Sprintf("%d", location.ID),
				location.HotPath,
				location.ColdPath,
				location.ManagerClass,
			})
		}
		printTable(os.Stdout, []string{"ID", "HOT PREFIX", "COLD PREFIX", "MANAGER"}, rows)
		return nil
	},
}

func init() {
	locationAddCmd.Flags().StringVar(&locationHotPath, "hot-path", "",
		"prefix of the hot copies")
	locationAddCmd.Flags().StringVar(&locationColdPath, "cold-path", "",
		"prefix of the cold copies")
	locationAddCmd.Flags().StringVar(&locationManagerClass, "manager-class", "",
		`back-end carrying the copies ("cp" or "fts")`)
	locationCmd.AddCommand(locationAddCmd)
	locationCmd.AddCommand(locationListCmd)
}
