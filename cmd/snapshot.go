package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/config"
	"github.com/oakbridge/oakbridge/internal/daemon"
)

// NewSnapshotCommand creates the snapshot command
func NewSnapshotCommand() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save the currently presented frame as JPEG",
		Long: `Fetch the frame the virtual webcam is currently showing and write it
to a file. Before any device has ever streamed this is the placeholder frame.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dm := daemon.NewManager()
			if err := dm.EnsureServerRunning(); err != nil {
				return errors.Wrap(err, "failed to start server")
			}

			client := &http.Client{Timeout: 10 * time.Second}
			url := fmt.Sprintf("http://localhost:%d/api/snapshot", config.GetServerPort())
			resp, err := client.Get(url)
			if err != nil {
				return errors.Wrap(err, "snapshot request failed")
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return errors.Errorf("snapshot failed (status %d): %s", resp.StatusCode, string(body))
			}

			if outputFile == "" {
				outputFile = fmt.Sprintf("oakbridge-%s.jpg", time.Now().Format("20060102-150405"))
			}

			fd, err := os.Create(outputFile)
			if err != nil {
				return errors.Wrapf(err, "failed to create %s", outputFile)
			}
			defer fd.Close()

			n, err := io.Copy(fd, resp.Body)
			if err != nil {
				return errors.Wrap(err, "failed to write snapshot")
			}

			if resp.Header.Get("X-Snapshot-Placeholder") == "true" {
				fmt.Println("note: no device has streamed yet, this is the placeholder frame")
			}
			fmt.Printf("wrote %s (%d bytes)\n", outputFile, n)
			return nil
		},
		Example: `  # Save with a timestamped name
  oakbridge snapshot

  # Save to a specific file
  oakbridge snapshot -o frame.jpg`,
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default oakbridge-<timestamp>.jpg)")

	return cmd
}
