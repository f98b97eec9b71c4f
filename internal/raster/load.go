package raster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io/fs"
	"math"
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder

	"github.com/Faultbox/rucoy-nav/pkg/formats"
)

// DecodeImage reads an image file in any registered format.
// A missing file yields ErrNoReference.
func DecodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoReference, path)
		}
		return nil, fmt.Errorf("opening reference image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

// Load decodes the reference image at path and builds a raster from it.
func Load(path string, opts Options) (*Raster, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	return Build(img, opts)
}

// LoadCached returns the raster for img, reading it from cachePath when the
// cache was built from the same pixels with the same options. Otherwise the
// raster is built and the cache rewritten. The second return value reports a
// cache hit. A failed cache write is returned together with the usable raster.
func LoadCached(img image.Image, cachePath string, opts Options) (*Raster, bool, error) {
	if img == nil {
		return nil, false, ErrNoReference
	}
	var key uint64
	if cachePath != "" {
		key = SourceKey(img, opts)
		if w, err := formats.ParseWLKFile(cachePath); err == nil && cacheMatches(w, img, opts, key) {
			return FromWLK(w, opts.Palette), true, nil
		}
	}

	r, err := Build(img, opts)
	if err != nil {
		return nil, false, err
	}
	if cachePath != "" {
		w := r.WLK()
		w.Key = key
		if err := formats.WriteWLKFile(cachePath, w); err != nil {
			return r, false, fmt.Errorf("writing raster cache: %w", err)
		}
	}
	return r, false, nil
}

func cacheMatches(w *formats.WLK, img image.Image, opts Options, key uint64) bool {
	b := img.Bounds()
	return w.Key == key && int(w.Width) == b.Dx() && int(w.Height) == b.Dy() && int(w.Margin) == opts.Margin
}

// SourceKey fingerprints the pixels of img and every option that changes the
// built cells: threshold, margin and the palette colors. Never zero, so a
// version 1.0 cache without a key is always stale.
func SourceKey(img image.Image, opts Options) uint64 {
	h := fnv.New64a()
	var word [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(word[:], v)
		h.Write(word[:])
	}

	b := img.Bounds()
	put(uint64(b.Dx()))
	put(uint64(b.Dy()))
	put(uint64(clampInt(opts.Threshold, 0, 255)))
	put(uint64(opts.Margin))
	if p := opts.Palette; p != nil {
		put(math.Float64bits(p.Tolerance))
		put(uint64(len(p.Zones)))
		for _, z := range p.Zones {
			put(uint64(z.ID))
			h.Write([]byte{z.Color.R, z.Color.G, z.Color.B})
		}
	} else {
		put(0)
	}

	row := make([]byte, 3*b.Dx())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := rgbaAt(img, x, y)
			i := 3 * (x - b.Min.X)
			row[i], row[i+1], row[i+2] = c.R, c.G, c.B
		}
		h.Write(row)
	}

	if k := h.Sum64(); k != 0 {
		return k
	}
	return 1
}
