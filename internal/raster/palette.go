package raster

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/Faultbox/rucoy-nav/pkg/math"
)

// DefaultTolerance is the maximum RGB distance for a pixel to match a zone color.
const DefaultTolerance = 100

// ErrUnknownZone is returned when a zone name or id is not in the palette.
var ErrUnknownZone = errors.New("unknown zone")

// Zone is a named world region identified by its map color.
type Zone struct {
	ID    int
	Name  string
	Color color.RGBA
	Spawn math.Point
}

// Palette maps reference-map colors to region ids.
type Palette struct {
	Zones     []Zone
	Tolerance float64
}

// DefaultPalette returns the zone table of the standard world map.
func DefaultPalette() *Palette {
	return &Palette{
		Tolerance: DefaultTolerance,
		Zones: []Zone{
			{1, "Beach", hex(0xf4e1ae), math.Pt(34, 1058)},
			{2, "Shore", hex(0x489848), math.Pt(177, 1139)},
			{3, "Starting Village", hex(0x122b12), math.Pt(379, 1147)},
			{4, "Crow Forest", hex(0x8fcc8f), math.Pt(548, 1135)},
			{5, "Desert", hex(0xe9bf99), math.Pt(374, 1342)},
			{6, "Assassin Maze", hex(0x345e35), math.Pt(377, 931)},
			{7, "Zombie Field", hex(0x64622b), math.Pt(369, 727)},
			{8, "Skeleton Lair", hex(0x938f5c), math.Pt(564, 727)},
			{9, "Elf Territory", hex(0x433d29), math.Pt(690, 933)},
			{10, "Lizard Zone", hex(0x367535), math.Pt(886, 632)},
			{11, "Unmapped Area", hex(0xb86f27), math.Pt(476, 430)},
			{12, "Goblin Field", hex(0x30d830), math.Pt(787, 1228)},
		},
	}
}

func hex(v uint32) color.RGBA {
	return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
}

// ParseHexColor parses "rrggbb" or "#rrggbb".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return hex(uint32(v)), nil
}

// Classify returns the id of the zone whose color is nearest to c, or 0 if
// no zone lies within the tolerance.
func (p *Palette) Classify(c color.RGBA) int {
	if p == nil {
		return 0
	}
	tol := p.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	best, bestDist := 0, tol*tol
	for _, z := range p.Zones {
		dr := float64(c.R) - float64(z.Color.R)
		dg := float64(c.G) - float64(z.Color.G)
		db := float64(c.B) - float64(z.Color.B)
		d := dr*dr + dg*dg + db*db
		if d < bestDist {
			best, bestDist = z.ID, d
		}
	}
	return best
}

// Zone returns the zone with the given id.
func (p *Palette) Zone(id int) (Zone, bool) {
	if p == nil {
		return Zone{}, false
	}
	for _, z := range p.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// Name returns the zone name for id, or "Unknown".
func (p *Palette) Name(id int) string {
	if z, ok := p.Zone(id); ok {
		return z.Name
	}
	return "Unknown"
}

// ByName looks a zone up by case-insensitive name.
func (p *Palette) ByName(name string) (Zone, error) {
	if p != nil {
		for _, z := range p.Zones {
			if strings.EqualFold(z.Name, name) {
				return z, nil
			}
		}
	}
	return Zone{}, fmt.Errorf("%w: %q", ErrUnknownZone, name)
}
