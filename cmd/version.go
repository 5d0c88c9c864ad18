package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/config"
	"github.com/oakbridge/oakbridge/internal/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print client and server version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Get()
			fmt.Printf("Client:\n")
			fmt.Printf("  Version:    %s\n", info.Version)
			fmt.Printf("  Go version: %s\n", info.GoVersion)
			fmt.Printf("  Git commit: %s\n", info.CommitID)
			fmt.Printf("  Built:      %s\n", info.BuildTime)
			fmt.Printf("  OS/Arch:    %s\n", info.Platform)

			// Best effort: show the running server's version too.
			client := &http.Client{Timeout: time.Second}
			url := fmt.Sprintf("http://localhost:%d/api/server/info", config.GetServerPort())
			resp, err := client.Get(url)
			if err != nil {
				return nil
			}
			defer resp.Body.Close()

			var serverInfo struct {
				Version string `json:"version"`
				BuildID string `json:"build_id"`
				Uptime  string `json:"uptime"`
			}
			if json.NewDecoder(resp.Body).Decode(&serverInfo) == nil {
				fmt.Printf("\nServer:\n")
				fmt.Printf("  Version:    %s\n", serverInfo.Version)
				fmt.Printf("  Build ID:   %s\n", serverInfo.BuildID)
				fmt.Printf("  Uptime:     %s\n", serverInfo.Uptime)
			}
			return nil
		},
	}
}
