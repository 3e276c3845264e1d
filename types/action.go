package types

// Primitive action request bodies. Coordinates are screen-space pixels.
// Each single-point action also accepts a symbolic element index in place
// of coordinates; the index is resolved against the most recent element
// observation before dispatch.

// ClickAction clicks at a position or at an observed element.
type ClickAction struct {
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Button string `json:"button,omitempty"` // left, middle, right; default left
}

// DoubleClickAction double-clicks at a position or at an observed element.
type DoubleClickAction struct {
	X      *int   `json:"x,omitempty"`
	Y      *int   `json:"y,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Button string `json:"button,omitempty"`
}

// MoveToAction moves the pointer; Duration selects smooth movement.
type MoveToAction struct {
	X        *int    `json:"x,omitempty"`
	Y        *int    `json:"y,omitempty"`
	Index    *int    `json:"index,omitempty"`
	Duration float64 `json:"duration,omitempty"` // seconds; default 0.5
}

// DragAndDropAction drags from one point to another.
type DragAndDropAction struct {
	StartX     *int    `json:"start_x,omitempty"`
	StartY     *int    `json:"start_y,omitempty"`
	EndX       *int    `json:"end_x,omitempty"`
	EndY       *int    `json:"end_y,omitempty"`
	StartIndex *int    `json:"start_index,omitempty"`
	EndIndex   *int    `json:"end_index,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
}

// ScrollAction scrolls the wheel, optionally moving to a position first.
type ScrollAction struct {
	Direction string `json:"direction"` // up, down, left, right
	Amount    int    `json:"amount,omitempty"`
	X         *int   `json:"x,omitempty"`
	Y         *int   `json:"y,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

// TypeAction types literal text.
type TypeAction struct {
	Text string `json:"text"`
}

// KeyAction presses and releases a single key.
type KeyAction struct {
	Key string `json:"key"`
}

// HoldKeyAction holds a key down.
type HoldKeyAction struct {
	Key string `json:"key"`
}

// ReleaseKeyAction releases a held key.
type ReleaseKeyAction struct {
	Key string `json:"key"`
}

// HotkeyAction presses a key combination, e.g. ["ctrl", "a"]. Common
// aliases are normalized to canonical key names server-side.
type HotkeyAction struct {
	Keys []string `json:"keys"`
}

// CompositeRequest is the wire envelope for composite API calls:
// {"api": str, "args": {}}.
type CompositeRequest struct {
	API  string         `json:"api"`
	Args map[string]any `json:"args,omitempty"`
}

// SessionSummary is the per-session entry returned by session listing.
type SessionSummary struct {
	SessionID   string  `json:"session_id"`
	CreatedAt   float64 `json:"created_at"`
	LastUsedAt  float64 `json:"last_used_at"`
	IsRecording bool    `json:"is_recording"`
}
