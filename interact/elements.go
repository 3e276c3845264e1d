package interact

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/engine/scripts"
	"github.com/BaSui01/blockbench/types"
)

// NamedSelector pairs a logical element type name with a CSS selector.
type NamedSelector struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// ParseNamedSelectors splits a comma-separated selector list. Each item is
// either a bare selector or a "name::selector" pair; bare selectors use
// the selector text as their name.
func ParseNamedSelectors(selectors string) []NamedSelector {
	var out []NamedSelector
	for _, item := range strings.Split(selectors, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, sel := item, item
		if idx := strings.Index(item, "::"); idx >= 0 {
			name = strings.TrimSpace(item[:idx])
			sel = strings.TrimSpace(item[idx+2:])
		}
		if sel != "" {
			out = append(out, NamedSelector{Name: name, Selector: sel})
		}
	}
	return out
}

// Elements returns the visible elements matching one selector.
func (h *Handler) Elements(ctx context.Context, selector string) (*types.ElementList, error) {
	startedAt := time.Now()

	script, err := scripts.Build("query_elements", selector)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build observation script").WithCause(err)
	}

	var elements []types.Element
	if err := h.page.Evaluate(ctx, script, &elements); err != nil {
		return nil, types.NewError(types.ErrJavaScript, "element query failed").WithCause(err)
	}

	elapsed := time.Since(startedAt).Seconds()
	h.logger.Debug("queried elements",
		zap.String("selector", selector),
		zap.Int("count", len(elements)),
		zap.Float64("elapsed", elapsed))

	h.SetElements(elements)
	return &types.ElementList{
		Elements:       elements,
		Count:          len(elements),
		ElapsedSeconds: elapsed,
	}, nil
}

// ElementsBatch observes multiple named selectors in one in-page pass and
// returns a flat list re-indexed globally from zero. The result becomes
// the new observation snapshot for index-based addressing.
func (h *Handler) ElementsBatch(ctx context.Context, namedSelectors []NamedSelector) (*types.ElementList, error) {
	startedAt := time.Now()

	script, err := scripts.Build("observe_elements", namedSelectors)
	if err != nil {
		return nil, types.NewError(types.ErrInternal, "failed to build observation script").WithCause(err)
	}

	var elements []types.Element
	if err := h.page.Evaluate(ctx, script, &elements); err != nil {
		return nil, types.NewError(types.ErrJavaScript, "batch element query failed").WithCause(err)
	}

	for i := range elements {
		elements[i].Index = i
	}

	elapsed := time.Since(startedAt).Seconds()
	h.logger.Debug("observed elements",
		zap.Int("selectors", len(namedSelectors)),
		zap.Int("count", len(elements)),
		zap.Float64("elapsed", elapsed))

	h.SetElements(elements)
	return &types.ElementList{
		Elements:       elements,
		TotalSelectors: len(namedSelectors),
		Count:          len(elements),
		ElapsedSeconds: elapsed,
	}, nil
}

// SetElements replaces the observation snapshot. The service boundary
// calls this after fusing OCR detections into an observation so symbolic
// indices resolve against exactly what the caller saw.
func (h *Handler) SetElements(elements []types.Element) {
	snapshot := make([]types.Element, len(elements))
	copy(snapshot, elements)
	h.mu.Lock()
	h.elements = snapshot
	h.mu.Unlock()
}

// Snapshot returns the current observation snapshot.
func (h *Handler) Snapshot() []types.Element {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]types.Element, len(h.elements))
	copy(out, h.elements)
	return out
}

// resolvePoint turns an (x, y, index) triple into concrete coordinates.
// An index takes effect only when a coordinate is missing; it resolves to
// the center of the indexed element in the latest observation snapshot.
func (h *Handler) resolvePoint(x, y, index *int) (int, int, *types.Error) {
	if x != nil && y != nil {
		return *x, *y, nil
	}
	if index == nil {
		return 0, 0, types.NewError(types.ErrInvalidArg, "x and y are required when no index is given")
	}

	h.mu.RLock()
	elements := h.elements
	h.mu.RUnlock()

	if len(elements) == 0 {
		return 0, 0, types.NewError(types.ErrIndexResolution,
			"no element observation available, call an elements endpoint first")
	}
	if *index < 0 || *index >= len(elements) {
		return 0, 0, types.NewErrorf(types.ErrIndexResolution,
			"element index %d out of range (0..%d)", *index, len(elements)-1)
	}

	el := elements[*index]
	if el.Position.Width <= 0 || el.Position.Height <= 0 {
		return 0, 0, types.NewErrorf(types.ErrIndexResolution,
			"element at index %d has no usable bounding box", *index)
	}

	cx, cy := el.Position.Center()
	h.logger.Debug("resolved element index",
		zap.Int("index", *index), zap.Int("x", cx), zap.Int("y", cy))
	return cx, cy, nil
}
