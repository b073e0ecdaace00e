package render

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// typeface selects one of the bundled Go fonts.
type typeface int

const (
	faceRegular typeface = iota
	faceMedium
	faceBold
	faceMono
	faceMonoBold
)

var faceTTF = map[typeface][]byte{
	faceRegular:  goregular.TTF,
	faceMedium:   gomedium.TTF,
	faceBold:     gobold.TTF,
	faceMono:     gomono.TTF,
	faceMonoBold: gomonobold.TTF,
}

var monoFamilies = []string{"mono", "courier", "menlo", "monaco", "consolas", "code"}

// pickTypeface maps a requested family and CSS weight onto the bundled
// fonts. Unknown families fall back to Go Regular.
func pickTypeface(family, weight string) typeface {
	w, err := strconv.Atoi(strings.TrimSpace(weight))
	if err != nil {
		w = 400
	}
	lower := strings.ToLower(family)
	for _, m := range monoFamilies {
		if strings.Contains(lower, m) {
			if w >= 600 {
				return faceMonoBold
			}
			return faceMono
		}
	}
	switch {
	case w >= 600:
		return faceBold
	case w >= 500:
		return faceMedium
	}
	return faceRegular
}

type faceKey struct {
	face typeface
	size float64
}

const (
	// maxFaceSize is the largest pixel size a face is built at. Larger
	// text is skipped.
	maxFaceSize = 2048
	// maxCachedFaces and maxCacheBytes bound the sized-face cache; zoom
	// makes sizes open-ended.
	maxCachedFaces = 256
	maxCacheBytes  = 64 << 20
	// maxFaceBytes bounds the glyph mask cache of a single face.
	maxFaceBytes    = 4 << 20
	maxGlyphEntries = 512
)

var errFaceTooLarge = errors.New("font size exceeds render limit")

type cachedFace struct {
	face  font.Face
	bytes int
}

// fontCache parses each typeface once and keeps sized faces around.
// Faces are not safe for concurrent drawing; the Renderer serializes use.
type fontCache struct {
	mu     sync.Mutex
	parsed map[typeface]*truetype.Font
	faces  map[faceKey]cachedFace
	bytes  int
}

func newFontCache() *fontCache {
	return &fontCache{
		parsed: make(map[typeface]*truetype.Font),
		faces:  make(map[faceKey]cachedFace),
	}
}

func (c *fontCache) face(tf typeface, size float64) (font.Face, error) {
	if !(size > 0) || size > maxFaceSize {
		return nil, fmt.Errorf("%w: %gpx", errFaceTooLarge, size)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := faceKey{face: tf, size: size}
	if f, ok := c.faces[key]; ok {
		return f.face, nil
	}
	ttf, ok := c.parsed[tf]
	if !ok {
		var err error
		ttf, err = truetype.Parse(faceTTF[tf])
		if err != nil {
			return nil, fmt.Errorf("failed to parse font: %w", err)
		}
		c.parsed[tf] = ttf
	}

	mask := glyphMaskBytes(ttf, size)
	entries := glyphEntries(mask)
	cost := mask * entries
	if len(c.faces) >= maxCachedFaces || c.bytes+cost > maxCacheBytes {
		c.faces = make(map[faceKey]cachedFace)
		c.bytes = 0
	}
	f := truetype.NewFace(ttf, &truetype.Options{
		Size:              size,
		DPI:               72,
		Hinting:           font.HintingFull,
		GlyphCacheEntries: entries,
	})
	c.faces[key] = cachedFace{face: f, bytes: cost}
	c.bytes += cost
	return f, nil
}

// size reports the estimated glyph mask memory held by cached faces.
func (c *fontCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// glyphMaskBytes is the size of one glyph mask as truetype.NewFace
// allocates it: the font's bounding box at the given pixel size.
func glyphMaskBytes(f *truetype.Font, size float64) int {
	b := f.Bounds(fixed.Int26_6(0.5 + size*64))
	w := (int(b.Max.X+63) >> 6) - (int(b.Min.X) >> 6)
	h := (-int(b.Min.Y-63) >> 6) - (-int(b.Max.Y) >> 6)
	return max(w, 1) * max(h, 1)
}

// glyphEntries picks the largest power of two glyph cache that keeps a
// face within maxFaceBytes. It is never less than one.
func glyphEntries(maskBytes int) int {
	n := maxGlyphEntries
	for n > 1 && maskBytes*n > maxFaceBytes {
		n /= 2
	}
	return n
}
