package coords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestForModel(t *testing.T) {
	tests := []struct {
		model string
		want  Adapter
	}{
		{"ui-tars-72b", NewTileResize()},
		{"UITARS-1.5", NewTileResize()},
		{"qwen3-vl-plus", Normalized{}},
		{"Qwen-VL-Max", Normalized{}},
		{"ecnu_vl_base", Normalized{}},
		{"gpt-4o", Identity{}},
		{"", Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, ForModel(tt.model))
		})
	}
}

func TestIdentityPassthrough(t *testing.T) {
	p := Point{X: 123, Y: 456}
	got, err := Identity{}.ToScreen(p, 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestNormalizedToScreen(t *testing.T) {
	got, err := Normalized{}.ToScreen(Point{X: 500, Y: 500}, 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 960, Y: 540}, got)

	got, err = Normalized{}.ToScreen(Point{X: 0, Y: 1000}, 1280, 720)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 0, Y: 720}, got)
}

func TestNormalizedToModelSpaceRejectsBadScreen(t *testing.T) {
	_, err := Normalized{}.ToModelSpace(Point{X: 10, Y: 10}, 0, 1080)
	assert.Error(t, err)
}

func TestSmartResizeDivisibleByFactor(t *testing.T) {
	r := NewTileResize()
	h, w, err := r.SmartResize(1080, 1920)
	require.NoError(t, err)
	assert.Zero(t, h%r.Factor)
	assert.Zero(t, w%r.Factor)
	assert.GreaterOrEqual(t, h*w, r.MinPixels)
	assert.LessOrEqual(t, h*w, r.MaxPixels)
}

func TestSmartResizeRejectsExtremeRatio(t *testing.T) {
	r := NewTileResize()
	_, _, err := r.SmartResize(10, 10000)
	assert.Error(t, err)
}

func TestSmartResizeRejectsNonPositive(t *testing.T) {
	r := NewTileResize()
	_, _, err := r.SmartResize(0, 100)
	assert.Error(t, err)
	_, _, err = r.SmartResize(100, -5)
	assert.Error(t, err)
}

func TestSmartResizeGrowsTinyImages(t *testing.T) {
	r := NewTileResize()
	h, w, err := r.SmartResize(50, 60)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, h*w, r.MinPixels)
}

func TestTileResizeToScreenCenterStaysClose(t *testing.T) {
	r := NewTileResize()
	newH, newW, err := r.SmartResize(1080, 1920)
	require.NoError(t, err)

	got, err := r.ToScreen(Point{X: newW / 2, Y: newH / 2}, 1920, 1080)
	require.NoError(t, err)
	assert.InDelta(t, 960, got.X, 2)
	assert.InDelta(t, 540, got.Y, 2)
}

func TestSmartResizeBoundsProperty(t *testing.T) {
	r := NewTileResize()
	rapid.Check(t, func(t *rapid.T) {
		height := rapid.IntRange(1, 8000).Draw(t, "height")
		width := rapid.IntRange(1, 8000).Draw(t, "width")
		longer, shorter := height, width
		if width > height {
			longer, shorter = width, height
		}
		if longer > shorter*r.MaxRatio {
			return
		}

		h, w, err := r.SmartResize(height, width)
		if err != nil {
			t.Fatalf("smart resize failed for %dx%d: %v", height, width, err)
		}
		if h%r.Factor != 0 || w%r.Factor != 0 {
			t.Fatalf("dimensions %dx%d not factor multiples", h, w)
		}
		if h*w > r.MaxPixels {
			t.Fatalf("area %d exceeds max %d", h*w, r.MaxPixels)
		}
		if h <= 0 || w <= 0 {
			t.Fatalf("non-positive output %dx%d", h, w)
		}
	})
}

func TestNormalizedRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		screenW := rapid.IntRange(NormalizedRange, 4000).Draw(t, "screenW")
		screenH := rapid.IntRange(NormalizedRange, 4000).Draw(t, "screenH")
		x := rapid.IntRange(0, NormalizedRange).Draw(t, "x")
		y := rapid.IntRange(0, NormalizedRange).Draw(t, "y")

		screen, err := Normalized{}.ToScreen(Point{X: x, Y: y}, screenW, screenH)
		if err != nil {
			t.Fatal(err)
		}
		back, err := Normalized{}.ToModelSpace(screen, screenW, screenH)
		if err != nil {
			t.Fatal(err)
		}
		// Integer truncation loses at most one model-space unit per pass.
		if diff := x - back.X; diff < 0 || diff > 2 {
			t.Fatalf("x round trip drifted: %d -> %d", x, back.X)
		}
		if diff := y - back.Y; diff < 0 || diff > 2 {
			t.Fatalf("y round trip drifted: %d -> %d", y, back.Y)
		}
	})
}
