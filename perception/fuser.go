// Package perception fuses structural (DOM) element observations with
// perceptual (OCR) detections into a single flat element list.
package perception

import (
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/types"
)

// DefaultMinConfidence is the OCR confidence floor applied when none is
// configured.
const DefaultMinConfidence = 0.5

// Element types considered directly interactable.
var interactableTypes = map[string]bool{
	"clickable":          true,
	"green_flag":         true,
	"stop_button":        true,
	"inputs":             true,
	"sprites":            true,
	"blocks":             true,
	"flyout_buttons":     true,
	"category_menu_item": true,
}

// FuserOptions configures a Fuser.
type FuserOptions struct {
	// EnableOCR toggles the perceptual channel entirely. When false,
	// Fuse returns the structural elements alone.
	EnableOCR bool

	// MinConfidence drops OCR detections scored below the floor before
	// any suppression logic runs.
	MinConfidence float64

	// HideCoveredOCROnCanvas controls whether DOM elements whose block
	// name contains "on canvas" suppress covered OCR detections. DOM
	// elements without that marker always suppress.
	HideCoveredOCROnCanvas bool
}

// Fuser merges DOM and OCR element lists. DOM elements pass through
// unchanged in their original order; OCR detections fully covered by a
// suppressing DOM element's bounding box are dropped, and the survivors
// are appended as non-interactable text elements.
type Fuser struct {
	opts   FuserOptions
	logger *zap.Logger
}

// NewFuser builds a Fuser. A zero MinConfidence is replaced with
// DefaultMinConfidence.
func NewFuser(opts FuserOptions, logger *zap.Logger) *Fuser {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fuser{opts: opts, logger: logger}
}

// OCRDetection is one raw detection from the OCR service.
type OCRDetection struct {
	Text        string  `json:"text"`
	Confidence  float64 `json:"confidence"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	ElementType string  `json:"element_type"`
}

// Fuse combines the two channels. The input slices are not modified.
func (f *Fuser) Fuse(dom []types.Element, ocr []OCRDetection) []types.Element {
	result := make([]types.Element, 0, len(dom)+len(ocr))
	for _, el := range dom {
		el.Source = types.SourceDOM
		el.Interactable = interactableTypes[el.Type]
		el.Confidences = types.Confidences{DOMConf: 1.0, OCRConf: 0.0, MergedConf: 1.0}
		result = append(result, el)
	}

	if !f.opts.EnableOCR || len(ocr) == 0 {
		return reindex(result)
	}

	kept := make([]OCRDetection, 0, len(ocr))
	for _, det := range ocr {
		if det.Confidence >= f.opts.MinConfidence {
			kept = append(kept, det)
		}
	}

	covered := make([]bool, len(kept))
	suppressed := 0
	for _, el := range result {
		if el.Type == "canvas" {
			continue
		}
		if strings.Contains(el.BlockName, "on canvas") && !f.opts.HideCoveredOCROnCanvas {
			continue
		}
		for i, det := range kept {
			if covered[i] {
				continue
			}
			box := types.BoundingBox{X: det.X, Y: det.Y, Width: det.Width, Height: det.Height}
			if el.Position.Contains(box) {
				covered[i] = true
				suppressed++
			}
		}
	}

	appended := 0
	for i, det := range kept {
		if covered[i] {
			continue
		}
		result = append(result, types.Element{
			Position:     types.BoundingBox{X: det.X, Y: det.Y, Width: det.Width, Height: det.Height},
			Text:         det.Text,
			Type:         "text",
			Source:       types.SourceOCR,
			Interactable: false,
			Confidences: types.Confidences{
				DOMConf:    0.0,
				OCRConf:    det.Confidence,
				MergedConf: det.Confidence,
			},
		})
		appended++
	}

	f.logger.Debug("fused element channels",
		zap.Int("dom", len(dom)),
		zap.Int("ocr", len(ocr)),
		zap.Int("suppressed", suppressed),
		zap.Int("appended", appended))

	return reindex(result)
}

// reindex renumbers the fused list so element indices stay valid for
// index-based actions.
func reindex(elements []types.Element) []types.Element {
	for i := range elements {
		elements[i].Index = i
	}
	return elements
}
