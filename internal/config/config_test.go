package config

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Faultbox/rucoy-nav/internal/locate"
	"github.com/Faultbox/rucoy-nav/internal/nav"
	"github.com/Faultbox/rucoy-nav/internal/viewport"
	"github.com/Faultbox/rucoy-nav/pkg/math"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Data.ReferenceMap != "world_map.png" {
		t.Errorf("expected reference map world_map.png, got %s", cfg.Data.ReferenceMap)
	}
	if cfg.Data.Margin != 5 {
		t.Errorf("expected margin 5, got %d", cfg.Data.Margin)
	}
	if cfg.Minimap.Ratio != 0.2 {
		t.Errorf("expected ratio 0.2, got %f", cfg.Minimap.Ratio)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Telemetry.Enabled {
		t.Error("expected telemetry to be disabled by default")
	}
}

func TestDefaultConversions(t *testing.T) {
	cfg := Default()

	if got, want := cfg.NavConfig(), nav.DefaultConfig(); got != want {
		t.Errorf("NavConfig() = %+v, want %+v", got, want)
	}
	if got, want := cfg.Geometry(), viewport.DefaultGeometry(); got != want {
		t.Errorf("Geometry() = %+v, want %+v", got, want)
	}
	if got, want := cfg.LevelsConfig(), locate.IdentityLevels(); got != want {
		t.Errorf("LevelsConfig() = %+v, want %+v", got, want)
	}

	opts := cfg.LocalizerOptions()
	if opts.Region != image.Rect(0, 0, 1600, 900) {
		t.Errorf("minimap region = %v", opts.Region)
	}
	if opts.Settle != 300*time.Millisecond {
		t.Errorf("settle = %v, want 300ms", opts.Settle)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
data:
  dirs: ["assets", "/srv/maps"]
  reference_map: "rucoy.png"
  margin: 3

device:
  serial: "emulator-5554"
  capture_interval: 50ms

minimap:
  region: {x: 10, y: 20, width: 800, height: 450}
  matcher: ncc
  marker: center

levels:
  input_min: 0.1
  input_max: 0.9
  output_min: 0
  output_max: 1

viewport:
  scale_x: 4
  scale_y: 4

navigation:
  max_moves_without_fix: 3
  motion_end_timeout: 4s

pathfinding:
  max_click: 60

telemetry:
  enabled: true
  addr: ":9000"

logging:
  level: "debug"
  log_file: "nav.log"

zones:
  - {id: 1, name: "Camp", color: "#112233", spawn: {x: 5, y: 6}}
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Data.Dirs) != 2 || cfg.Data.Dirs[1] != "/srv/maps" {
		t.Errorf("data dirs = %v", cfg.Data.Dirs)
	}
	if cfg.Data.Margin != 3 {
		t.Errorf("expected margin 3, got %d", cfg.Data.Margin)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Data.Cache != "world_map.wlk" {
		t.Errorf("expected default cache, got %s", cfg.Data.Cache)
	}
	if cfg.Device.Serial != "emulator-5554" {
		t.Errorf("expected serial emulator-5554, got %s", cfg.Device.Serial)
	}
	if cfg.Device.CaptureInterval != 50*time.Millisecond {
		t.Errorf("expected capture interval 50ms, got %v", cfg.Device.CaptureInterval)
	}
	if got := cfg.Minimap.Region.Rect(); got != image.Rect(10, 20, 810, 470) {
		t.Errorf("minimap region = %v", got)
	}
	if got := cfg.LevelsConfig(); got.InMin != 0.1 || got.InMax != 0.9 {
		t.Errorf("levels = %+v", got)
	}

	nc := cfg.NavConfig()
	if nc.MaxMovesWithoutFix != 3 {
		t.Errorf("expected max moves 3, got %d", nc.MaxMovesWithoutFix)
	}
	if nc.MotionEndTimeout != 4*time.Second {
		t.Errorf("expected motion end timeout 4s, got %v", nc.MotionEndTimeout)
	}
	if nc.Planner.MaxClick != 60 {
		t.Errorf("expected max click 60, got %.0f", nc.Planner.MaxClick)
	}
	if g := cfg.Geometry(); g.ScaleX != 4 || g.MarginX != 120 {
		t.Errorf("geometry = %+v", g)
	}

	p, err := cfg.Palette()
	if err != nil {
		t.Fatalf("Palette() error = %v", err)
	}
	z, err := p.ByName("camp")
	if err != nil {
		t.Fatalf("ByName() error = %v", err)
	}
	if z.Spawn != math.Pt(5, 6) || z.Color.R != 0x11 {
		t.Errorf("zone = %+v", z)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"syntax", "data:\n  margin: not a number\n  invalid syntax here\n"},
		{"unknown key", "graphics:\n  width: 800\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}
			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid YAML, got nil")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no reference map", func(c *Config) { c.Data.ReferenceMap = "" }},
		{"negative margin", func(c *Config) { c.Data.Margin = -1 }},
		{"empty minimap", func(c *Config) { c.Minimap.Region = RectConfig{} }},
		{"ratio", func(c *Config) { c.Minimap.Ratio = 1.5 }},
		{"matcher", func(c *Config) { c.Minimap.Matcher = "sift" }},
		{"marker", func(c *Config) { c.Minimap.Marker = "red" }},
		{"levels input", func(c *Config) { c.Levels.InputMin = 0.9; c.Levels.InputMax = 0.1 }},
		{"levels output", func(c *Config) { c.Levels.OutputMax = 2 }},
		{"scale", func(c *Config) { c.Viewport.ScaleX = 0 }},
		{"navigation", func(c *Config) { c.Navigation.MaxSteps = 0 }},
		{"spacing", func(c *Config) { c.Pathfinding.MinSpacing = 500 }},
		{"zone color", func(c *Config) { c.Zones = []ZoneConfig{{ID: 1, Name: "x", Color: "blue"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("data:\n  margin: 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
				if !cfg.Debug.DumpFrames {
					t.Error("expected frame dumps with debug flag")
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "serial flag",
			setup: func() { *flagSerial = "127.0.0.1:5555" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Device.Serial != "127.0.0.1:5555" {
					t.Errorf("expected serial 127.0.0.1:5555, got %s", cfg.Device.Serial)
				}
			},
			teardown: func() { *flagSerial = "" },
		},
		{
			name:  "telemetry flag",
			setup: func() { *flagTelemetry = ":7000" },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Telemetry.Enabled || cfg.Telemetry.Addr != ":7000" {
					t.Errorf("telemetry = %+v", cfg.Telemetry)
				}
			},
			teardown: func() { *flagTelemetry = "" },
		},
		{
			name:  "data flag",
			setup: func() { *flagDataDir = "/mnt/maps" },
			verify: func(t *testing.T, cfg *Config) {
				dirs := cfg.Data.Dirs
				if dirs[len(dirs)-1] != "/mnt/maps" {
					t.Errorf("expected /mnt/maps last in %v", dirs)
				}
			},
			teardown: func() { *flagDataDir = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
device:
  serial: "from-file"
  adb: "/opt/adb"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagSerial = "from-flag"
	defer func() {
		*flagConfig = ""
		*flagSerial = ""
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Device.Serial != "from-flag" {
		t.Errorf("expected serial from flag, got %s", cfg.Device.Serial)
	}
	if cfg.Device.ADB != "/opt/adb" {
		t.Errorf("expected adb from file, got %s", cfg.Device.ADB)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Device.Serial = "saved"
	cfg.Navigation.MotionEndTimeout = 7 * time.Second
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got.Device.Serial != "saved" {
		t.Errorf("serial = %s, want saved", got.Device.Serial)
	}
	if got.Navigation.MotionEndTimeout != 7*time.Second {
		t.Errorf("motion end timeout = %v, want 7s", got.Navigation.MotionEndTimeout)
	}
}
