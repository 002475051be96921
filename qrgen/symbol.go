package qrgen

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/skip2/go-qrcode"
	"rsc.io/qr/coding"
)

// ErrCapacityExceeded is returned when the text does not fit a version 40
// symbol at the requested error-correction level.
var ErrCapacityExceeded = errors.New("data exceeds QR code capacity")

// quietZone is the light border around a symbol, in modules.
const quietZone = 4

// Symbol is a built QR code ready to be rendered.
type Symbol struct {
	version    int
	bitmap     [][]bool // modules, quiet zone included; true is dark
	moduleSize int
}

// Render builds a symbol for text. The smallest version at or above
// opts.Version that holds the text is chosen; the symbol never shrinks below
// opts.Version. Empty text yields a symbol carrying a zero-length segment.
func Render(text string, opts Options) (*Symbol, error) {
	level, err := ParseLevel(string(opts.Level))
	if err != nil {
		return nil, err
	}

	start := opts.Version
	if start < minVersion {
		start = minVersion
	}

	if text == "" {
		return renderEmpty(start, level, opts.ModuleSize)
	}

	var lastErr error
	for v := start; v <= maxVersion; v++ {
		code, err := qrcode.NewWithForcedVersion(text, v, level.recovery())
		if err == nil {
			return &Symbol{version: code.VersionNumber, bitmap: code.Bitmap(), moduleSize: opts.ModuleSize}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %d characters at level %s: %v", ErrCapacityExceeded, len(text), level, lastErr)
}

// renderEmpty builds a symbol holding an empty byte segment. go-qrcode
// refuses zero-length content, rsc.io/qr/coding does not.
func renderEmpty(version int, level Level, moduleSize int) (*Symbol, error) {
	plan, err := coding.NewPlan(coding.Version(version), level.coding(), 0)
	if err != nil {
		return nil, fmt.Errorf("plan version %d symbol: %w", version, err)
	}
	code, err := plan.Encode(coding.String(""))
	if err != nil {
		return nil, fmt.Errorf("encode empty symbol: %w", err)
	}

	n := code.Size + 2*quietZone
	bitmap := make([][]bool, n)
	for y := range bitmap {
		bitmap[y] = make([]bool, n)
		my := y - quietZone
		for x := range bitmap[y] {
			mx := x - quietZone
			if mx >= 0 && mx < code.Size && my >= 0 && my < code.Size {
				bitmap[y][x] = code.Black(mx, my)
			}
		}
	}
	return &Symbol{version: version, bitmap: bitmap, moduleSize: moduleSize}, nil
}

// Version is the QR version actually used.
func (s *Symbol) Version() int {
	return s.version
}

// Size is the edge length of the rendered image in pixels, quiet zone
// included.
func (s *Symbol) Size() int {
	return len(s.bitmap) * s.moduleScale()
}

func (s *Symbol) moduleScale() int {
	if s.moduleSize < 1 {
		return 1
	}
	return s.moduleSize
}

// PNG renders the symbol black on white with moduleSize pixels per module.
func (s *Symbol) PNG() ([]byte, error) {
	scale := s.moduleScale()
	size := s.Size()

	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{color.White, color.Black})
	for y, row := range s.bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					img.SetColorIndex(x*scale+dx, y*scale+dy, 1)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return buf.Bytes(), nil
}
