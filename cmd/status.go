package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/config"
)

type statusResponse struct {
	Running    bool   `json:"running"`
	Port       int    `json:"port"`
	Uptime     string `json:"uptime"`
	State      string `json:"state"`
	StateSince string `json:"state_since"`
	Reason     string `json:"reason"`
	Format     string `json:"format"`
	Version    string `json:"version"`
	BuildID    string `json:"build_id"`
	Device     *struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Speed    string `json:"speed"`
		Encoding string `json:"encoding"`
		Epoch    uint64 `json:"epoch"`
	} `json:"device"`
}

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	var (
		open         bool
		outputFormat string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the bridge connection state",
		Long:  `Show the server's connection state, the bound device and the stream format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			port := config.GetServerPort()

			if open {
				return browser.OpenURL(fmt.Sprintf("http://localhost:%d", port))
			}

			client := &http.Client{Timeout: 2 * time.Second}
			resp, err := client.Get(fmt.Sprintf("http://localhost:%d/api/status", port))
			if err != nil {
				fmt.Println(color.RedString("●") + " server is not running")
				fmt.Println("  Use 'oakbridge server start' to start it")
				return nil
			}
			defer resp.Body.Close()

			var status statusResponse
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("unexpected response from server: %v", err)
			}

			if outputFormat == "json" {
				out, _ := json.MarshalIndent(status, "", "  ")
				fmt.Println(string(out))
				return nil
			}

			fmt.Printf("%s state: %s\n", stateGlyph(status.State), stateColored(status.State))
			if status.Reason != "" {
				fmt.Printf("  reason:  %s\n", status.Reason)
			}
			if status.Device != nil {
				fmt.Printf("  device:  %s (%s, %s, %s)\n",
					status.Device.Name, status.Device.ID, status.Device.Speed, status.Device.Encoding)
			}
			fmt.Printf("  format:  %s\n", status.Format)
			fmt.Printf("  uptime:  %s\n", status.Uptime)
			fmt.Printf("  server:  http://localhost:%d (version %s)\n", status.Port, status.Version)
			return nil
		},
		Example: `  # Show connection state
  oakbridge status

  # Open the status page in the browser
  oakbridge status --open

  # Machine-readable output
  oakbridge status --output json`,
	}

	cmd.Flags().BoolVar(&open, "open", false, "Open the status page in the default browser")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text|json)")

	return cmd
}

func stateGlyph(state string) string {
	switch state {
	case "streaming":
		return color.GreenString("●")
	case "degraded":
		return color.YellowString("●")
	case "connecting":
		return color.CyanString("●")
	default:
		return color.RedString("●")
	}
}

func stateColored(state string) string {
	switch state {
	case "streaming":
		return color.GreenString(state)
	case "degraded":
		return color.YellowString(state)
	case "connecting":
		return color.CyanString(state)
	default:
		return color.RedString(state)
	}
}
