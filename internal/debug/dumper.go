// Package debug writes diagnostic images: minimap crops behind weak fixes
// and route overlays on the walkability raster.
package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/rucoy-nav/internal/locate"
)

// FrameDumper saves processed minimap crops as PNG files.
type FrameDumper struct {
	outputDir string
	prefix    string

	// Threshold dumps only fixes with a confidence below it.
	// Zero dumps every frame.
	Threshold int

	logger *zap.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq int
}

// NewFrameDumper creates a dumper writing into outputDir.
func NewFrameDumper(outputDir, prefix string, threshold int, logger *zap.Logger) *FrameDumper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FrameDumper{
		outputDir: outputDir,
		prefix:    prefix,
		Threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// OnFrame matches locate.Localizer.OnFrame. Write errors are logged.
func (d *FrameDumper) OnFrame(crop image.Image, fix locate.Fix) {
	if d.Threshold > 0 && fix.Confidence >= d.Threshold {
		return
	}
	path, err := d.Save(crop, fix)
	if err != nil {
		d.logger.Warn("dumping frame", zap.Error(err))
		return
	}
	d.logger.Debug("frame dumped",
		zap.String("path", path),
		zap.Int("confidence", fix.Confidence))
}

// Save writes img and returns the file name.
func (d *FrameDumper) Save(img image.Image, fix locate.Fix) (string, error) {
	if d.outputDir != "" {
		if err := os.MkdirAll(d.outputDir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := d.GenerateFilename(fix)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, nil
}

// GenerateFilename returns the next file name without saving. Names embed
// a timestamp, a sequence number, the fix position and its confidence.
func (d *FrameDumper) GenerateFilename(fix locate.Fix) string {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	timestamp := d.now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("%s_%s_%04d_%d_%d_c%d.png",
		d.prefix, timestamp, seq, fix.Pos.X, fix.Pos.Y, fix.Confidence)
	if d.outputDir != "" {
		filename = filepath.Join(d.outputDir, filename)
	}
	return filename
}
