package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/internal/util"
	"github.com/oakbridge/oakbridge/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "oakbridge",
	Short: "OAK camera to virtual webcam bridge",
	Long: `oakbridge streams an OAK depth camera into a virtual webcam sink.
It runs as a local daemon that discovers the camera, relays frames with a
drop-rather-than-buffer policy, survives unplugs, and exposes a control
API for focus, exposure and white balance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flag("version").Changed {
			info := version.Get()
			fmt.Printf("oakbridge version %s, build %s\n", info.Version, info.CommitID)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	cobra.OnInitialize(func() {
		util.InitLogger(util.IsVerbose())
	})

	rootCmd.AddCommand(NewServerCmd())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewDevicesCommand())
	rootCmd.AddCommand(NewControlCommand())
	rootCmd.AddCommand(NewSnapshotCommand())
	rootCmd.AddCommand(NewVersionCommand())
}
