package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/internal/daemon"
	"github.com/oakbridge/oakbridge/internal/util"
)

// NewDevicesCommand creates the devices command
func NewDevicesCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List discovered capture devices",
		Long:  `List the capture devices seen by the server's most recent discovery scan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dm := daemon.NewManager()

			var result struct {
				Devices []map[string]interface{} `json:"devices"`
				Count   int                      `json:"count"`
				Scanned string                   `json:"scanned_at"`
			}
			if err := dm.CallAPI(http.MethodGet, "/api/devices", nil, &result); err != nil {
				return err
			}

			if outputFormat == "json" {
				out, _ := json.MarshalIndent(result, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			if result.Count == 0 {
				fmt.Println("No devices found")
				return nil
			}

			columns := []util.Column{
				{Title: "ID", Field: "id"},
				{Title: "NAME", Field: "name"},
				{Title: "LINK", Field: "speed"},
			}
			util.PrintTable(columns, result.Devices)

			if result.Scanned != "" {
				fmt.Printf("\nlast scan: %s\n", result.Scanned)
			}
			return nil
		},
		Example: `  # List devices
  oakbridge devices

  # Machine-readable output
  oakbridge devices -o json`,
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text|json)")

	return cmd
}
