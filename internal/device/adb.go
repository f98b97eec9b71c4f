package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrADB wraps failures of the adb binary.
var ErrADB = errors.New("adb command failed")

// ADB drives an Android device or emulator through the adb binary.
type ADB struct {
	Binary string // path to adb; "adb" if empty
	Serial string // device serial; the only attached device if empty

	logger *zap.Logger
}

// NewADB creates an adb-backed device.
func NewADB(binary, serial string, logger *zap.Logger) *ADB {
	if binary == "" {
		binary = "adb"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ADB{Binary: binary, Serial: serial, logger: logger}
}

func (a *ADB) args(rest ...string) []string {
	var args []string
	if a.Serial != "" {
		args = append(args, "-s", a.Serial)
	}
	return append(args, rest...)
}

func (a *ADB) run(ctx context.Context, rest ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, a.Binary, a.args(rest...)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrADB, strings.Join(rest, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Tap sends "input tap x y".
func (a *ADB) Tap(ctx context.Context, x, y int) error {
	_, err := a.run(ctx, "shell", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	if err == nil {
		a.logger.Debug("tap", zap.Int("x", x), zap.Int("y", y))
	}
	return err
}

// Capture grabs a PNG screenshot with "exec-out screencap -p".
func (a *ADB) Capture(ctx context.Context) (image.Image, error) {
	out, err := a.run(ctx, "exec-out", "screencap", "-p")
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decoding screencap: %w", err)
	}
	return img, nil
}
