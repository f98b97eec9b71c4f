package formats

import (
	"errors"
	"path/filepath"
	"testing"
)

func createTestWLK(width, height int) *WLK {
	w := &WLK{
		Version: WLKVersion{Major: WLKMajor, Minor: WLKMinor},
		Margin:  3,
		Width:   uint32(width),
		Height:  uint32(height),
		Key:     0x5eed,
		Cells:   make([]WLKCell, width*height),
	}
	for i := range w.Cells {
		w.Cells[i] = NewWLKCell(i%2 == 0, true, i%13)
	}
	return w
}

func TestParseWLK_ValidFile(t *testing.T) {
	src := createTestWLK(4, 3)

	w, err := ParseWLK(src.Encode())
	if err != nil {
		t.Fatalf("ParseWLK failed: %v", err)
	}

	if w.Width != 4 || w.Height != 3 {
		t.Errorf("expected 4x3, got %dx%d", w.Width, w.Height)
	}
	if w.Margin != 3 {
		t.Errorf("expected margin 3, got %d", w.Margin)
	}
	if w.Version.String() != "1.1" {
		t.Errorf("expected version 1.1, got %s", w.Version)
	}
	if w.Key != 0x5eed {
		t.Errorf("expected key 0x5eed, got %#x", w.Key)
	}
	for i := range src.Cells {
		if w.Cells[i] != src.Cells[i] {
			t.Fatalf("cell %d: got %08b, want %08b", i, w.Cells[i], src.Cells[i])
		}
	}
}

func TestParseWLK_Version10(t *testing.T) {
	src := createTestWLK(3, 2)
	data := src.Encode()
	// 1.0 files have no key field.
	legacy := append([]byte{}, data[:wlkHeaderSizeV10]...)
	legacy[5] = 0
	legacy = append(legacy, data[wlkHeaderSize:]...)

	w, err := ParseWLK(legacy)
	if err != nil {
		t.Fatalf("ParseWLK failed: %v", err)
	}
	if w.Key != 0 {
		t.Errorf("expected zero key for 1.0 file, got %#x", w.Key)
	}
	if w.Width != 3 || w.Height != 2 {
		t.Errorf("expected 3x2, got %dx%d", w.Width, w.Height)
	}
	for i := range src.Cells {
		if w.Cells[i] != src.Cells[i] {
			t.Fatalf("cell %d: got %08b, want %08b", i, w.Cells[i], src.Cells[i])
		}
	}
}

func TestParseWLK_InvalidMagic(t *testing.T) {
	data := createTestWLK(2, 2).Encode()
	copy(data, "GRAT")

	_, err := ParseWLK(data)
	if !errors.Is(err, ErrInvalidWLKMagic) {
		t.Errorf("expected ErrInvalidWLKMagic, got %v", err)
	}
}

func TestParseWLK_UnsupportedVersion(t *testing.T) {
	data := createTestWLK(2, 2).Encode()
	data[4] = 9

	_, err := ParseWLK(data)
	if !errors.Is(err, ErrUnsupportedWLKVersion) {
		t.Errorf("expected ErrUnsupportedWLKVersion, got %v", err)
	}
}

func TestParseWLK_Truncated(t *testing.T) {
	data := createTestWLK(4, 4).Encode()

	if _, err := ParseWLK(data[:10]); !errors.Is(err, ErrInvalidWLKSize) {
		t.Errorf("short header: expected ErrInvalidWLKSize, got %v", err)
	}
	if _, err := ParseWLK(data[:len(data)-1]); !errors.Is(err, ErrInvalidWLKSize) {
		t.Errorf("short body: expected ErrInvalidWLKSize, got %v", err)
	}
}

func TestWLKCell(t *testing.T) {
	tests := []struct {
		walkable, base bool
		region         int
		wantRegion     int
	}{
		{true, true, 5, 5},
		{false, true, 12, 12},
		{false, false, 0, 0},
		{true, true, MaxWLKRegion, MaxWLKRegion},
		{true, true, MaxWLKRegion + 1, 0},
	}
	for _, tt := range tests {
		c := NewWLKCell(tt.walkable, tt.base, tt.region)
		if c.IsWalkable() != tt.walkable || c.IsBaseWalkable() != tt.base || c.Region() != tt.wantRegion {
			t.Errorf("NewWLKCell(%v,%v,%d) = walkable %v base %v region %d",
				tt.walkable, tt.base, tt.region, c.IsWalkable(), c.IsBaseWalkable(), c.Region())
		}
	}
}

func TestWLK_BoundsAndCounts(t *testing.T) {
	w := createTestWLK(4, 4)

	if w.IsWalkable(-1, 0) || w.IsWalkable(4, 0) || w.IsBaseWalkable(0, 4) {
		t.Error("out of bounds cells must not be walkable")
	}
	if w.Region(100, 100) != 0 {
		t.Error("out of bounds region should be 0")
	}
	walkable, base := w.CountWalkable()
	if walkable != 8 || base != 16 {
		t.Errorf("CountWalkable = %d, %d; want 8, 16", walkable, base)
	}
}

func TestWLKFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.wlk")
	src := createTestWLK(8, 5)
	if err := WriteWLKFile(path, src); err != nil {
		t.Fatalf("WriteWLKFile: %v", err)
	}
	w, err := ParseWLKFile(path)
	if err != nil {
		t.Fatalf("ParseWLKFile: %v", err)
	}
	if w.Width != 8 || w.Height != 5 || len(w.Cells) != 40 {
		t.Errorf("unexpected raster %dx%d (%d cells)", w.Width, w.Height, len(w.Cells))
	}
	if _, err := ParseWLKFile(filepath.Join(t.TempDir(), "missing.wlk")); err == nil {
		t.Error("expected error for missing file")
	}
}
