package cmd

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/internal/daemon"
)

// NewControlCommand creates the control command with subcommands
func NewControlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "control",
		Short: "Send camera control commands",
		Long: `Send control commands to the connected camera. Commands are queued
on the server and applied between frames in submission order.`,
	}

	cmd.AddCommand(newControlFocusCmd())
	cmd.AddCommand(newControlExposureCmd())
	cmd.AddCommand(newControlWhiteBalanceCmd())
	cmd.AddCommand(newControlAutofocusCmd())
	cmd.AddCommand(newControlAutoFocusCmd())
	cmd.AddCommand(newControlAutoExposureCmd())
	cmd.AddCommand(newControlLinkSpeedCmd())

	return cmd
}

func newControlFocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "focus <position>",
		Short: "Set manual lens focus (0-255)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("focus position must be a number, got %q", args[0])
			}
			return submitControl("/api/control/focus", map[string]interface{}{
				"position": position,
			})
		},
		Example: `  oakbridge control focus 128`,
	}
}

func newControlExposureCmd() *cobra.Command {
	var iso int

	cmd := &cobra.Command{
		Use:   "exposure <time_us>",
		Short: "Set manual exposure time in microseconds (1-33000)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeUs, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("exposure time must be a number, got %q", args[0])
			}
			return submitControl("/api/control/exposure", map[string]interface{}{
				"time_us": timeUs,
				"iso":     iso,
			})
		},
		Example: `  oakbridge control exposure 20000
  oakbridge control exposure 20000 --iso 800`,
	}

	cmd.Flags().IntVar(&iso, "iso", 400, "Sensor sensitivity (100-1600)")
	return cmd
}

func newControlWhiteBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "white-balance <kelvin>",
		Short: "Set manual white balance in Kelvin (1000-12000)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kelvin, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("white balance must be a number, got %q", args[0])
			}
			return submitControl("/api/control/white-balance", map[string]interface{}{
				"kelvin": kelvin,
			})
		},
		Example: `  oakbridge control white-balance 6500`,
	}
}

func newControlAutofocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "autofocus",
		Short: "Trigger a one-shot autofocus sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return submitControl("/api/control/autofocus", nil)
		},
		Example: `  oakbridge control autofocus`,
	}
}

func newControlAutoFocusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-focus on|off",
		Short: "Enable or disable continuous autofocus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return submitControl("/api/control/auto-focus", map[string]interface{}{
				"enabled": enabled,
			})
		},
		Example: `  oakbridge control auto-focus on`,
	}
}

func newControlAutoExposureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auto-exposure on|off",
		Short: "Enable or disable auto exposure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return submitControl("/api/control/auto-exposure", map[string]interface{}{
				"enabled": enabled,
			})
		},
		Example: `  oakbridge control auto-exposure off`,
	}
}

func newControlLinkSpeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link-speed",
		Short: "Re-read the negotiated link speed from the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := submitControl("/api/control/link-speed", nil); err != nil {
				return err
			}
			fmt.Println("run 'oakbridge status' to see the refreshed link speed")
			return nil
		},
		Example: `  oakbridge control link-speed`,
	}
}

// submitControl posts one control request and reports the queued command.
func submitControl(endpoint string, body map[string]interface{}) error {
	dm := daemon.NewManager()

	var result struct {
		Queued  bool   `json:"queued"`
		Command string `json:"command"`
	}
	if err := dm.CallAPI(http.MethodPost, endpoint, body, &result); err != nil {
		return err
	}

	fmt.Printf("queued: %s\n", result.Command)
	return nil
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, errors.Errorf("expected on or off, got %q", s)
	}
}
