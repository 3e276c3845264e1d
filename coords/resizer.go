// Package coords maps points between a vision model's output coordinate
// space and the real screen coordinate space. Each grounding model family
// has its own convention; the adapter for a model is selected by substring
// match on the model identifier, defaulting to the identity mapping.
package coords

import (
	"fmt"
	"math"
	"strings"
)

// Point is a coordinate pair in either model or screen space.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Adapter transforms a model-space point into screen space.
type Adapter interface {
	ToScreen(p Point, screenWidth, screenHeight int) (Point, error)
}

// Invertible adapters can also map a screen-space point back into the
// model's output space.
type Invertible interface {
	Adapter
	ToModelSpace(p Point, screenWidth, screenHeight int) (Point, error)
}

// Identity passes coordinates through unchanged. Used for models that
// already emit screen-space pixels.
type Identity struct{}

func (Identity) ToScreen(p Point, _, _ int) (Point, error)     { return p, nil }
func (Identity) ToModelSpace(p Point, _, _ int) (Point, error) { return p, nil }

// NormalizedRange is the fixed per-axis range used by normalized-output
// models such as the Qwen-VL family.
const NormalizedRange = 1000

// Normalized scales coordinates emitted in a fixed 0..NormalizedRange
// space linearly onto the screen.
type Normalized struct{}

func (Normalized) ToScreen(p Point, screenWidth, screenHeight int) (Point, error) {
	return Point{
		X: p.X * screenWidth / NormalizedRange,
		Y: p.Y * screenHeight / NormalizedRange,
	}, nil
}

func (Normalized) ToModelSpace(p Point, screenWidth, screenHeight int) (Point, error) {
	if screenWidth <= 0 || screenHeight <= 0 {
		return Point{}, fmt.Errorf("invalid screen dimensions: %dx%d", screenWidth, screenHeight)
	}
	return Point{
		X: p.X * NormalizedRange / screenWidth,
		Y: p.Y * NormalizedRange / screenHeight,
	}, nil
}

// Tile-constrained resize constants, matching the preprocessing of
// UI-TARS-style models.
const (
	ImageFactor = 28
	MinPixels   = 100 * ImageFactor * ImageFactor
	MaxPixels   = 16384 * ImageFactor * ImageFactor
	MaxRatio    = 200
)

// TileResize handles models that internally resize the screenshot to the
// nearest tile-multiple dimensions within a total-pixel budget and emit
// coordinates in that resized space.
type TileResize struct {
	Factor    int
	MinPixels int
	MaxPixels int
	MaxRatio  int
}

// NewTileResize returns a TileResize with the standard constants.
func NewTileResize() TileResize {
	return TileResize{
		Factor:    ImageFactor,
		MinPixels: MinPixels,
		MaxPixels: MaxPixels,
		MaxRatio:  MaxRatio,
	}
}

func roundByFactor(n float64, factor int) int {
	return int(math.Round(n/float64(factor))) * factor
}

func ceilByFactor(n float64, factor int) int {
	return int(math.Ceil(n/float64(factor))) * factor
}

func floorByFactor(n float64, factor int) int {
	return int(math.Floor(n/float64(factor))) * factor
}

// SmartResize computes the dimensions the model resized the image to:
// each dimension rounded to the nearest factor multiple (minimum one
// factor), then scaled down/up by sqrt if the tiled area falls outside the
// [MinPixels, MaxPixels] budget.
func (r TileResize) SmartResize(height, width int) (int, int, error) {
	if height <= 0 || width <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions: height=%d, width=%d", height, width)
	}
	longer, shorter := height, width
	if width > height {
		longer, shorter = width, height
	}
	if float64(longer)/float64(shorter) > float64(r.MaxRatio) {
		return 0, 0, fmt.Errorf(
			"absolute aspect ratio must be smaller than %d, got %.2f",
			r.MaxRatio, float64(longer)/float64(shorter),
		)
	}

	hBar := roundByFactor(float64(height), r.Factor)
	if hBar < r.Factor {
		hBar = r.Factor
	}
	wBar := roundByFactor(float64(width), r.Factor)
	if wBar < r.Factor {
		wBar = r.Factor
	}

	if hBar*wBar > r.MaxPixels {
		beta := math.Sqrt(float64(height*width) / float64(r.MaxPixels))
		hBar = floorByFactor(float64(height)/beta, r.Factor)
		wBar = floorByFactor(float64(width)/beta, r.Factor)
	} else if hBar*wBar < r.MinPixels {
		beta := math.Sqrt(float64(r.MinPixels) / float64(height*width))
		hBar = ceilByFactor(float64(height)*beta, r.Factor)
		wBar = ceilByFactor(float64(width)*beta, r.Factor)
	}

	return hBar, wBar, nil
}

// ToScreen scales a point from the model's resized space back onto the
// original screen.
func (r TileResize) ToScreen(p Point, screenWidth, screenHeight int) (Point, error) {
	newHeight, newWidth, err := r.SmartResize(screenHeight, screenWidth)
	if err != nil {
		return Point{}, err
	}
	return Point{
		X: int(float64(p.X) / float64(newWidth) * float64(screenWidth)),
		Y: int(float64(p.Y) / float64(newHeight) * float64(screenHeight)),
	}, nil
}

// Model identifier patterns per strategy. Matching is case-insensitive
// substring search; the first strategy with a matching pattern wins.
var (
	tileResizePatterns = []string{"ui-tars", "uitars"}
	normalizedPatterns = []string{
		"ecnu-vl", "ecnu_vl",
		"qwen3-vl", "qwen3_vl", "qwen3vl", "qwen-vl",
	}
)

// ForModel returns the coordinate adapter for a model identifier,
// defaulting to Identity when no pattern matches.
func ForModel(model string) Adapter {
	lowered := strings.ToLower(model)
	for _, pattern := range tileResizePatterns {
		if strings.Contains(lowered, pattern) {
			return NewTileResize()
		}
	}
	for _, pattern := range normalizedPatterns {
		if strings.Contains(lowered, pattern) {
			return Normalized{}
		}
	}
	return Identity{}
}
