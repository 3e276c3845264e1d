package types

// BoundingBox describes an element's position and size in screen pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether inner lies entirely within b. All four edge
// comparisons are non-strict.
func (b BoundingBox) Contains(inner BoundingBox) bool {
	return b.X <= inner.X &&
		b.Y <= inner.Y &&
		b.X+b.Width >= inner.X+inner.Width &&
		b.Y+b.Height >= inner.Y+inner.Height
}

// Center returns the center point of the box, rounded down.
func (b BoundingBox) Center() (int, int) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Element sources.
const (
	SourceDOM = "dom"
	SourceOCR = "ocr"
)

// Confidences carries the per-source confidence pair for a fused element.
// Structural (DOM) elements always have DOMConf 1.0; perceptual (OCR)
// elements carry the detector score.
type Confidences struct {
	DOMConf    float64 `json:"dom_conf"`
	OCRConf    float64 `json:"ocr_conf"`
	MergedConf float64 `json:"merged_conf"`
}

// Element is one observable UI element. Elements are ephemeral: they are
// recomputed on every observation request and never persisted.
type Element struct {
	Index        int         `json:"index"`
	Position     BoundingBox `json:"position"`
	Text         string      `json:"text"`
	Type         string      `json:"type"`
	Source       string      `json:"source,omitempty"`
	BlockName    string      `json:"block_name,omitempty"`
	Interactable bool        `json:"interactable,omitempty"`
	Confidences  Confidences `json:"confidences,omitempty"`
}

// ElementList is the observation response shape: a flat, globally
// re-indexed element list plus elapsed time.
type ElementList struct {
	Elements       []Element `json:"elements"`
	TotalSelectors int       `json:"total_selectors,omitempty"`
	Count          int       `json:"count"`
	ElapsedSeconds float64   `json:"elapsed_time"`
}
