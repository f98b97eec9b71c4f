// Package formats provides binary formats for navigation data files.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// WLK format errors.
var (
	ErrInvalidWLKMagic       = errors.New("invalid WLK magic: expected 'WALK'")
	ErrUnsupportedWLKVersion = errors.New("unsupported WLK version")
	ErrInvalidWLKSize        = errors.New("invalid WLK size")
)

// WLKMagic identifies a walkability cache file.
const WLKMagic = "WALK"

// Header sizes per minor version. 1.1 appends the 8-byte source key.
const (
	wlkHeaderSizeV10 = 16
	wlkHeaderSize    = 24
)

// Current version written by Encode.
const (
	WLKMajor = 1
	WLKMinor = 1
)

// WLKVersion represents the WLK file version.
type WLKVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v WLKVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// WLKCell packs the walkability bits and region tag of one world pixel.
//
//	bit 0     walkable after margin dilation
//	bit 1     walkable before margin dilation
//	bits 2..7 region tag (0 = unknown)
type WLKCell uint8

const (
	wlkWalkable     WLKCell = 1 << 0
	wlkBaseWalkable WLKCell = 1 << 1
	wlkRegionShift          = 2

	// MaxWLKRegion is the largest region tag a cell can store.
	MaxWLKRegion = 63
)

// NewWLKCell builds a cell from its parts. Regions above MaxWLKRegion are stored as 0.
func NewWLKCell(walkable, baseWalkable bool, region int) WLKCell {
	var c WLKCell
	if walkable {
		c |= wlkWalkable
	}
	if baseWalkable {
		c |= wlkBaseWalkable
	}
	if region > 0 && region <= MaxWLKRegion {
		c |= WLKCell(region) << wlkRegionShift
	}
	return c
}

// IsWalkable reports whether the cell is walkable after the safety margin.
func (c WLKCell) IsWalkable() bool { return c&wlkWalkable != 0 }

// IsBaseWalkable reports whether the cell is walkable before the safety margin.
func (c WLKCell) IsBaseWalkable() bool { return c&wlkBaseWalkable != 0 }

// Region returns the region tag.
func (c WLKCell) Region() int { return int(c >> wlkRegionShift) }

// WLK is a cached walkability raster.
type WLK struct {
	Version WLKVersion
	Margin  uint16
	Width   uint32
	Height  uint32

	// Key fingerprints the reference image and build options the cells were
	// derived from. Zero in version 1.0 files.
	Key uint64

	Cells []WLKCell
}

// GetCell returns the cell at the given coordinates.
// Returns false if coordinates are out of bounds.
func (w *WLK) GetCell(x, y int) (WLKCell, bool) {
	if x < 0 || y < 0 || x >= int(w.Width) || y >= int(w.Height) {
		return 0, false
	}
	return w.Cells[y*int(w.Width)+x], true
}

// IsWalkable checks if the cell at (x, y) is walkable after the margin.
func (w *WLK) IsWalkable(x, y int) bool {
	c, ok := w.GetCell(x, y)
	return ok && c.IsWalkable()
}

// IsBaseWalkable checks if the cell at (x, y) is walkable before the margin.
func (w *WLK) IsBaseWalkable(x, y int) bool {
	c, ok := w.GetCell(x, y)
	return ok && c.IsBaseWalkable()
}

// Region returns the region tag at (x, y), or 0 when out of bounds.
func (w *WLK) Region(x, y int) int {
	c, ok := w.GetCell(x, y)
	if !ok {
		return 0
	}
	return c.Region()
}

// CountWalkable returns the number of walkable cells after and before the margin.
func (w *WLK) CountWalkable() (walkable, base int) {
	for _, c := range w.Cells {
		if c.IsWalkable() {
			walkable++
		}
		if c.IsBaseWalkable() {
			base++
		}
	}
	return walkable, base
}

// ParseWLK parses a WLK file from raw bytes.
func ParseWLK(data []byte) (*WLK, error) {
	if len(data) < wlkHeaderSizeV10 {
		return nil, ErrInvalidWLKSize
	}

	if string(data[0:4]) != WLKMagic {
		return nil, ErrInvalidWLKMagic
	}

	version := WLKVersion{Major: data[4], Minor: data[5]}
	if version.Major != WLKMajor {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedWLKVersion, version)
	}

	r := bytes.NewReader(data[6:])

	var margin uint16
	if err := binary.Read(r, binary.LittleEndian, &margin); err != nil {
		return nil, fmt.Errorf("%w: reading margin", ErrInvalidWLKSize)
	}
	var width, height int32
	if err := binary.Read(r, binary.LittleEndian, &width); err != nil {
		return nil, fmt.Errorf("%w: reading width", ErrInvalidWLKSize)
	}
	if err := binary.Read(r, binary.LittleEndian, &height); err != nil {
		return nil, fmt.Errorf("%w: reading height", ErrInvalidWLKSize)
	}

	headerSize := wlkHeaderSizeV10
	var key uint64
	if version.Minor >= 1 {
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return nil, fmt.Errorf("%w: reading key", ErrInvalidWLKSize)
		}
		headerSize = wlkHeaderSize
	}

	if width <= 0 || height <= 0 || width > 1<<15 || height > 1<<15 {
		return nil, fmt.Errorf("invalid WLK dimensions: %dx%d", width, height)
	}

	cellCount := int(width) * int(height)
	body := data[headerSize:]
	if len(body) < cellCount {
		return nil, fmt.Errorf("%w: want %d cells, have %d", ErrInvalidWLKSize, cellCount, len(body))
	}

	w := &WLK{
		Version: version,
		Margin:  margin,
		Width:   uint32(width),
		Height:  uint32(height),
		Key:     key,
		Cells:   make([]WLKCell, cellCount),
	}
	for i := 0; i < cellCount; i++ {
		w.Cells[i] = WLKCell(body[i])
	}
	return w, nil
}

// ParseWLKFile parses a WLK file from disk.
func ParseWLKFile(path string) (*WLK, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading WLK file: %w", err)
	}
	return ParseWLK(data)
}

// Encode serializes the raster in the current WLK version.
func (w *WLK) Encode() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wlkHeaderSize+len(w.Cells)))
	buf.WriteString(WLKMagic)
	buf.WriteByte(WLKMajor)
	buf.WriteByte(WLKMinor)
	_ = binary.Write(buf, binary.LittleEndian, w.Margin)
	_ = binary.Write(buf, binary.LittleEndian, int32(w.Width))
	_ = binary.Write(buf, binary.LittleEndian, int32(w.Height))
	_ = binary.Write(buf, binary.LittleEndian, w.Key)
	for _, c := range w.Cells {
		buf.WriteByte(byte(c))
	}
	return buf.Bytes()
}

// WriteWLKFile writes the raster to disk.
func WriteWLKFile(path string, w *WLK) error {
	if err := os.WriteFile(path, w.Encode(), 0644); err != nil {
		return fmt.Errorf("writing WLK file: %w", err)
	}
	return nil
}
