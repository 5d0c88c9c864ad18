package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	// Set default values
	v.SetDefault("server.port", 28680)

	// Set default oakbridge home directory
	v.SetDefault("oakbridge.home", filepath.Join(xdg.Home, ".oakbridge"))

	// Output stream geometry; the sink surface is fixed to this for the process lifetime
	v.SetDefault("stream.width", 1920)
	v.SetDefault("stream.height", 1080)
	v.SetDefault("stream.fps", 30)

	// Frame path tuning
	v.SetDefault("pipeline.pool_size", 4)
	v.SetDefault("pipeline.pull_timeout", "100ms")
	v.SetDefault("pipeline.acquire_wait", "50ms")
	v.SetDefault("pipeline.degraded_threshold", 5)
	v.SetDefault("pipeline.control_capacity", 16)

	// Device discovery and bandwidth
	v.SetDefault("discovery.poll_interval", "1s")
	v.SetDefault("bandwidth.headroom", 0.75)

	// Emulated device (the only in-tree provider; a hardware link plugs in here)
	v.SetDefault("device.emulated", true)
	v.SetDefault("device.link_speed", "usb3")

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("server.port", "OAKBRIDGE_PORT")
	v.BindEnv("oakbridge.home", "OAKBRIDGE_HOME")
	v.BindEnv("stream.width", "OAKBRIDGE_STREAM_WIDTH")
	v.BindEnv("stream.height", "OAKBRIDGE_STREAM_HEIGHT")
	v.BindEnv("stream.fps", "OAKBRIDGE_STREAM_FPS")
	v.BindEnv("pipeline.pool_size", "OAKBRIDGE_POOL_SIZE")
	v.BindEnv("pipeline.pull_timeout", "OAKBRIDGE_PULL_TIMEOUT")
	v.BindEnv("pipeline.acquire_wait", "OAKBRIDGE_ACQUIRE_WAIT")
	v.BindEnv("pipeline.degraded_threshold", "OAKBRIDGE_DEGRADED_THRESHOLD")
	v.BindEnv("pipeline.control_capacity", "OAKBRIDGE_CONTROL_CAPACITY")
	v.BindEnv("discovery.poll_interval", "OAKBRIDGE_POLL_INTERVAL")
	v.BindEnv("bandwidth.headroom", "OAKBRIDGE_BANDWIDTH_HEADROOM")
	v.BindEnv("device.emulated", "OAKBRIDGE_DEVICE_EMULATED")
	v.BindEnv("device.link_speed", "OAKBRIDGE_DEVICE_LINK_SPEED")

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Look for config in the following paths
	configPaths := []string{
		".",
		"$HOME/.oakbridge",
		"/etc/oakbridge",
	}

	for _, path := range configPaths {
		expandedPath := os.ExpandEnv(path)
		v.AddConfigPath(expandedPath)
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			panic(fmt.Sprintf("Fatal error reading config file: %s", err))
		}
		// Config file not found; ignore error and use defaults
	}
}

// GetServerPort returns the local control API port
func GetServerPort() int {
	return v.GetInt("server.port")
}

// GetHome returns the oakbridge home directory
func GetHome() string {
	return v.GetString("oakbridge.home")
}

// GetLogFile returns the daemon log file path
func GetLogFile() string {
	return filepath.Join(GetHome(), "server.log")
}

// GetPIDFile returns the daemon PID file path
func GetPIDFile() string {
	return filepath.Join(GetHome(), "server.pid")
}

// GetStreamWidth returns the output frame width in pixels
func GetStreamWidth() int {
	return v.GetInt("stream.width")
}

// GetStreamHeight returns the output frame height in pixels
func GetStreamHeight() int {
	return v.GetInt("stream.height")
}

// GetStreamFPS returns the output frame rate
func GetStreamFPS() int {
	return v.GetInt("stream.fps")
}

// GetPoolSize returns the number of frame buffers allocated at startup
func GetPoolSize() int {
	return v.GetInt("pipeline.pool_size")
}

// GetPullTimeout returns the per-frame device pull timeout
func GetPullTimeout() time.Duration {
	return v.GetDuration("pipeline.pull_timeout")
}

// GetAcquireWait returns the bounded wait for a free frame buffer
func GetAcquireWait() time.Duration {
	return v.GetDuration("pipeline.acquire_wait")
}

// GetDegradedThreshold returns the consecutive pull-timeout streak that marks
// the stream degraded
func GetDegradedThreshold() int {
	return v.GetInt("pipeline.degraded_threshold")
}

// GetControlCapacity returns the bound of the control command channel
func GetControlCapacity() int {
	return v.GetInt("pipeline.control_capacity")
}

// GetPollInterval returns the device discovery poll interval
func GetPollInterval() time.Duration {
	return v.GetDuration("discovery.poll_interval")
}

// GetBandwidthHeadroom returns the fraction of a link class's nominal
// throughput treated as sustainable
func GetBandwidthHeadroom() float64 {
	return v.GetFloat64("bandwidth.headroom")
}

// IsDeviceEmulated returns whether the emulated capture device is in use
func IsDeviceEmulated() bool {
	return v.GetBool("device.emulated")
}

// GetEmulatedLinkSpeed returns the link class the emulated device reports
func GetEmulatedLinkSpeed() string {
	return v.GetString("device.link_speed")
}
