package coords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewritePlanNormalizedClick(t *testing.T) {
	args := map[string]any{"x": float64(500), "y": float64(500), "button": "left"}
	out, err := RewritePlan("click", args, "qwen3-vl-plus", 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, 960, out["x"])
	assert.Equal(t, 540, out["y"])
	assert.Equal(t, "left", out["button"])
	// input map untouched
	assert.Equal(t, float64(500), args["x"])
}

func TestRewritePlanDrag(t *testing.T) {
	args := map[string]any{
		"start_x": 0, "start_y": 0,
		"end_x": 1000, "end_y": 1000,
	}
	out, err := RewritePlan("drag_and_drop", args, "ecnu-vl", 1280, 720)
	require.NoError(t, err)
	assert.Equal(t, 0, out["start_x"])
	assert.Equal(t, 0, out["start_y"])
	assert.Equal(t, 1280, out["end_x"])
	assert.Equal(t, 720, out["end_y"])
}

func TestRewritePlanIdentityModelPassthrough(t *testing.T) {
	args := map[string]any{"x": 10, "y": 20}
	out, err := RewritePlan("click", args, "gpt-4o", 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, args, out)
}

func TestRewritePlanSkipsIncompletePair(t *testing.T) {
	args := map[string]any{"x": 500}
	out, err := RewritePlan("click", args, "qwen-vl", 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, 500, out["x"])
}

func TestRewritePlanIgnoresKeyboardActions(t *testing.T) {
	args := map[string]any{"text": "hello"}
	out, err := RewritePlan("type", args, "qwen-vl", 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, "hello", out["text"])
}
