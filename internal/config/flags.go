package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging and frame dumps")
	flagSerial    = flag.String("serial", "", "adb device serial")
	flagTelemetry = flag.String("telemetry", "", "Serve status on this address")
	flagDataDir   = flag.String("data", "", "Additional data directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Debug.DumpFrames = true
	}
	if *flagSerial != "" {
		cfg.Device.Serial = *flagSerial
	}
	if *flagTelemetry != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Addr = *flagTelemetry
	}
	if *flagDataDir != "" {
		cfg.Data.Dirs = append(cfg.Data.Dirs, *flagDataDir)
	}
}
