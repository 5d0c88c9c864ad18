package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oakbridge/oakbridge/config"
	"github.com/oakbridge/oakbridge/internal/bridge"
	"github.com/oakbridge/oakbridge/internal/daemon"
	"github.com/oakbridge/oakbridge/internal/server"
	"github.com/oakbridge/oakbridge/internal/util"
)

// NewServerCmd creates the server command with subcommands
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage the oakbridge server",
		Long:  `Manage the oakbridge server daemon that bridges the camera to the virtual webcam.`,
	}

	cmd.AddCommand(newServerStartCmd())
	cmd.AddCommand(newServerStopCmd())
	cmd.AddCommand(newServerStatusCmd())
	cmd.AddCommand(newServerRestartCmd())

	return cmd
}

// newServerStartCmd creates the 'server start' subcommand
func newServerStartCmd() *cobra.Command {
	var (
		port                   int
		foreground             bool
		internalDaemon         bool
		daemonStartLogFilename string
	)

	cmd := &cobra.Command{
		Use:           "start",
		Short:         "Start the server",
		Long:          `Start the oakbridge server if it's not already running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runServerInForeground(port)
			}
			if internalDaemon {
				return runServerInBackground(port, daemonStartLogFilename)
			}
			// Default: run in daemon mode
			return runServerInDaemon(port)
		},
		Example: `  # Start server in background
  oakbridge server start

  # Start server in foreground (see logs)
  oakbridge server start --foreground
  oakbridge server start -f

  # Start server on specific port
  oakbridge server start -p 28680`,
	}

	flags := cmd.Flags()
	flags.IntVarP(&port, "port", "p", config.GetServerPort(), "Server port")
	flags.BoolVarP(&foreground, "foreground", "f", false, "Run server in foreground (show logs)")

	// Flag --internal-daemon is hidden in help message for internal use.
	flags.BoolVarP(&internalDaemon, "internal-daemon", "", false, "")
	flags.Lookup("internal-daemon").Hidden = true
	flags.StringVarP(&daemonStartLogFilename, "daemon-start-log-filename", "", "", "")
	flags.Lookup("daemon-start-log-filename").Hidden = true

	return cmd
}

// newServerStopCmd creates the 'server stop' subcommand
func newServerStopCmd() *cobra.Command {
	var (
		port  int
		force bool
	)

	cmd := &cobra.Command{
		Use:           "stop",
		Short:         "Stop the server",
		Long:          `Stop the oakbridge server if it's running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopServer(port, force)
		},
		Example: `  # Stop the server
  oakbridge server stop

  # Stop server running on specified port
  oakbridge server stop -p 28680`,
	}

	flags := cmd.Flags()
	flags.IntVarP(&port, "port", "p", config.GetServerPort(), "Server port")
	flags.BoolVarP(&force, "force", "f", false, "Force stop all server processes")

	return cmd
}

// newServerStatusCmd creates the 'server status' subcommand
func newServerStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check server status",
		Long:  `Check if the oakbridge server is running and display its status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dm := daemon.NewManager()
			port := config.GetServerPort()

			if !dm.IsServerRunning() {
				fmt.Println("❌ Server is not running")
				fmt.Println("   Use 'oakbridge server start' to start the server")
				return nil
			}

			fmt.Println("✅ Server is running")
			fmt.Printf("   Status page: http://localhost:%d\n", port)
			fmt.Printf("   API endpoint: http://localhost:%d/api/status\n", port)

			// Try to get more info from API
			client := &http.Client{Timeout: 2 * time.Second}
			if resp, err := client.Get(fmt.Sprintf("http://localhost:%d/api/status", port)); err == nil {
				defer resp.Body.Close()
				var status map[string]interface{}
				if json.NewDecoder(resp.Body).Decode(&status) == nil {
					if state, ok := status["state"].(string); ok {
						fmt.Printf("   Connection state: %s\n", state)
					}
					if device, ok := status["device"].(map[string]interface{}); ok {
						fmt.Printf("   Device: %v (%v, %v)\n", device["name"], device["speed"], device["encoding"])
					}
				}
			}

			return nil
		},
	}

	return cmd
}

// newServerRestartCmd creates the 'server restart' subcommand
func newServerRestartCmd() *cobra.Command {
	var (
		port       int
		foreground bool
	)

	cmd := &cobra.Command{
		Use:           "restart",
		Short:         "Restart the server",
		Long:          `Stop and then start the oakbridge server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := stopServer(port, true); err != nil {
				return err
			}
			if foreground {
				return runServerInForeground(port)
			}
			return runServerInDaemon(port)
		},
		Example: `  # Restart the server
  oakbridge server restart

  # Restart in foreground mode
  oakbridge server restart -f`,
	}

	flags := cmd.Flags()
	flags.IntVarP(&port, "port", "p", config.GetServerPort(), "Server port")
	flags.BoolVarP(&foreground, "foreground", "f", false, "Run server in foreground after restart (show logs)")

	return cmd
}

// Helper functions

// runServerInDaemon spawns the daemon process and waits for it to come up.
func runServerInDaemon(port int) error {
	if err := checkServerStatus(port); err != nil {
		if err == ServerMismatchedError {
			return errors.Wrapf(err, "port %d is already been used", port)
		}
	} else {
		fmt.Printf("server has been already started on port %d\n", port)
		return nil
	}

	executable, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "failed to get executable")
	}

	runId := uuid.New()
	daemonStartLogFilename := filepath.Join(os.TempDir(), "oakbridge-server-"+runId.String())
	defer os.RemoveAll(daemonStartLogFilename)

	cmd := exec.Command(executable, "server", "start", "--port", strconv.Itoa(port), "--internal-daemon", "--daemon-start-log-filename", daemonStartLogFilename)
	daemon.SetProcGrp(cmd)
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "failed to start server daemon")
	}

	for i := 0; i < 3; i++ {
		time.Sleep(time.Second)
		if err := checkServerStatus(port); err != nil {
			startLog, err := os.ReadFile(daemonStartLogFilename)
			if err != nil {
				continue
			}
			return errors.Errorf("fail to start server on port %d: %s", port, string(startLog))
		}
	}

	fmt.Printf("server has been started on port %d\n", port)
	return nil
}

// runServerInBackground is the daemon side of runServerInDaemon: logs go
// to the server log file, startup errors to the handshake file the parent
// is watching.
func runServerInBackground(port int, startLogFilename string) error {
	fail := func(err error) error {
		if startLogFilename != "" {
			os.WriteFile(startLogFilename, []byte(err.Error()), 0600)
		}
		return err
	}

	if err := os.MkdirAll(config.GetHome(), 0755); err != nil {
		return fail(errors.Wrap(err, "failed to create oakbridge home"))
	}

	logFile := config.GetLogFile()
	logFd, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fail(errors.Wrapf(err, "failed to create log file: %s", logFile))
	}
	defer logFd.Close()

	logrus.SetOutput(logFd)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	util.InitLoggerTo(logFd, util.IsVerbose())

	br, err := bridge.NewDefault()
	if err != nil {
		return fail(errors.Wrap(err, "failed to assemble bridge"))
	}

	srv := server.New(port, br)
	if err := srv.Start(); err != nil && err != http.ErrServerClosed {
		return fail(errors.Wrap(err, "failed to start server"))
	}
	return nil
}

func checkServerStatus(port int) error {
	url := fmt.Sprintf("http://localhost:%d/api/health", port)
	resp, err := http.Get(url)
	if err != nil {
		return ServerPortUnavailableError
	}
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	if err := decoder.Decode(&body); err != nil {
		return ServerMismatchedError
	}
	if body.Service != "oakbridge-server" {
		return ServerMismatchedError
	}
	return nil
}

func stopServer(port int, force bool) error {
	if err := checkServerStatus(port); err != nil && !force {
		if err == ServerPortUnavailableError {
			return errors.Errorf("server is not running")
		}
		if err == ServerMismatchedError {
			return errors.Wrapf(err, "port %d is already been used by other process", port)
		}
	}

	url := fmt.Sprintf("http://localhost:%d/api/server/shutdown", port)
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		if force {
			return nil
		}
		return ServerPortUnavailableError
	}
	defer resp.Body.Close()
	io.ReadAll(resp.Body)
	time.Sleep(1 * time.Second)
	return nil
}

func runServerInForeground(port int) error {
	if err := checkServerStatus(port); err != nil {
		if err == ServerMismatchedError {
			return errors.Wrapf(err, "port %d is already been used", port)
		}
	} else {
		fmt.Printf("server has been already started on port %d\n", port)
		return nil
	}

	br, err := bridge.NewDefault()
	if err != nil {
		return errors.Wrap(err, "failed to assemble bridge")
	}

	srv := server.New(port, br)
	errChan := make(chan error)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	for i := 0; i < 3; i++ {
		time.Sleep(time.Second)
		if err := checkServerStatus(port); err != nil {
			select {
			case startErr := <-errChan:
				return errors.Wrapf(startErr, "fail to start server on port %d", port)
			default:
				continue
			}
		}
	}

	// ANSI color codes
	const (
		ColorReset = "\033[0m"
		ColorGreen = "\033[32m"
		ColorBlue  = "\033[34m"
		ColorCyan  = "\033[36m"
	)

	fmt.Printf("%s📷 oakbridge server%s %s➜ %shttp://localhost:%d%s\n", ColorGreen, ColorReset, ColorCyan, ColorBlue, port, ColorReset)
	fmt.Printf("%sPress Ctrl+C to stop...%s\n", ColorCyan, ColorReset)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logrus.Info("Shutting down server...")
	if err := srv.Stop(); err != nil {
		logrus.Errorf("Error stopping server: %v", err)
	}

	return nil
}

var ServerPortUnavailableError = &serverPortUnavailableError{}

type serverPortUnavailableError struct{}

func (e *serverPortUnavailableError) Error() string {
	return "server port unavailable"
}

var ServerMismatchedError = &serverMismatchedError{}

type serverMismatchedError struct{}

func (e *serverMismatchedError) Error() string {
	return "server mismatched"
}
