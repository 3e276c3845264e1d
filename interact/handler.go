// Package interact dispatches primitive pointer and keyboard actions to an
// automation page and keeps the element observation snapshot used for
// symbolic (index-based) addressing. Every operation returns a response
// envelope, never a Go error: failures are encoded as error envelopes so
// callers can always log and replay actions deterministically.
package interact

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/engine"
	"github.com/BaSui01/blockbench/envelope"
	"github.com/BaSui01/blockbench/types"
)

// Handler drives one page.
type Handler struct {
	page      engine.Page
	sessionID string
	logger    *zap.Logger

	mu       sync.RWMutex
	elements []types.Element
}

// NewHandler builds a Handler for a session's page.
func NewHandler(page engine.Page, sessionID string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		page:      page,
		sessionID: sessionID,
		logger:    logger.With(zap.String("component", "interact"), zap.String("session_id", sessionID)),
	}
}

// moveSteps converts a smooth-move duration in seconds to interpolation
// steps at 30 steps per second, with a floor of 10.
func moveSteps(duration float64) int {
	if duration <= 0 {
		return 1
	}
	steps := int(duration * 30)
	if steps < 10 {
		steps = 10
	}
	return steps
}

func (h *Handler) success(api string, requested, executed map[string]any, startedAt time.Time) *envelope.Envelope {
	return envelope.Success(
		envelope.NewAction(api, requested),
		envelope.NewAction(api, executed),
		nil,
		envelope.NewMeta(h.sessionID, startedAt),
	)
}

func (h *Handler) failure(api string, requested, executed map[string]any, startedAt time.Time, code types.ErrorCode, message string, details map[string]any) *envelope.Envelope {
	return envelope.Failure(
		envelope.NewAction(api, requested),
		envelope.NewAction(api, executed),
		envelope.ErrorInfo{Code: code, Message: message, Details: details},
		envelope.NewMeta(h.sessionID, startedAt),
	)
}

// dispatchError classifies an engine error: invalid-argument errors (bad
// key names, bad buttons) keep their code, everything else becomes an
// execution error.
func dispatchCode(err error) types.ErrorCode {
	if types.GetErrorCode(err) == types.ErrInvalidArg {
		return types.ErrInvalidArg
	}
	return types.ErrActionExecution
}

// Click clicks at a position or at an observed element.
func (h *Handler) Click(ctx context.Context, action types.ClickAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "click"
	button := action.Button
	if button == "" {
		button = engine.ButtonLeft
	}
	requested := clickArgs(action.X, action.Y, action.Index, button)

	x, y, rerr := h.resolvePoint(action.X, action.Y, action.Index)
	if rerr != nil {
		return h.failure(api, requested, requested, startedAt, rerr.Code, rerr.Message, nil)
	}
	executed := map[string]any{"x": x, "y": y, "button": button}

	if err := h.page.Click(ctx, x, y, button); err != nil {
		return h.failure(api, requested, executed, startedAt, dispatchCode(err), "Click action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// DoubleClick double-clicks at a position or at an observed element.
func (h *Handler) DoubleClick(ctx context.Context, action types.DoubleClickAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "double_click"
	button := action.Button
	if button == "" {
		button = engine.ButtonLeft
	}
	requested := clickArgs(action.X, action.Y, action.Index, button)

	x, y, rerr := h.resolvePoint(action.X, action.Y, action.Index)
	if rerr != nil {
		return h.failure(api, requested, requested, startedAt, rerr.Code, rerr.Message, nil)
	}
	executed := map[string]any{"x": x, "y": y, "button": button}

	if err := h.page.DoubleClick(ctx, x, y, button); err != nil {
		return h.failure(api, requested, executed, startedAt, dispatchCode(err), "Double click action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// MoveTo moves the pointer, smoothly when a duration is given.
func (h *Handler) MoveTo(ctx context.Context, action types.MoveToAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "move_to"
	requested := map[string]any{"duration": action.Duration}
	putOptInt(requested, "x", action.X)
	putOptInt(requested, "y", action.Y)
	putOptInt(requested, "index", action.Index)

	x, y, rerr := h.resolvePoint(action.X, action.Y, action.Index)
	if rerr != nil {
		return h.failure(api, requested, requested, startedAt, rerr.Code, rerr.Message, nil)
	}
	executed := map[string]any{"x": x, "y": y, "duration": action.Duration}

	if err := h.page.MouseMove(ctx, x, y, moveSteps(action.Duration)); err != nil {
		return h.failure(api, requested, executed, startedAt, types.ErrActionExecution, "Move action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// Drag drags from one point to another with the left button held.
func (h *Handler) Drag(ctx context.Context, action types.DragAndDropAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "drag_and_drop"
	requested := map[string]any{"duration": action.Duration}
	putOptInt(requested, "start_x", action.StartX)
	putOptInt(requested, "start_y", action.StartY)
	putOptInt(requested, "end_x", action.EndX)
	putOptInt(requested, "end_y", action.EndY)
	putOptInt(requested, "start_index", action.StartIndex)
	putOptInt(requested, "end_index", action.EndIndex)

	startX, startY, rerr := h.resolvePoint(action.StartX, action.StartY, action.StartIndex)
	if rerr != nil {
		return h.failure(api, requested, requested, startedAt, rerr.Code, rerr.Message, nil)
	}
	endX, endY, rerr := h.resolvePoint(action.EndX, action.EndY, action.EndIndex)
	if rerr != nil {
		return h.failure(api, requested, requested, startedAt, rerr.Code, rerr.Message, nil)
	}
	executed := map[string]any{
		"start_x": startX, "start_y": startY,
		"end_x": endX, "end_y": endY,
		"duration": action.Duration,
	}

	fail := func(err error) *envelope.Envelope {
		return h.failure(api, requested, executed, startedAt, types.ErrActionExecution, "Drag and drop action failed", map[string]any{"error": err.Error()})
	}
	if err := h.page.MouseMove(ctx, startX, startY, 1); err != nil {
		return fail(err)
	}
	if err := h.page.MouseDown(ctx, engine.ButtonLeft); err != nil {
		return fail(err)
	}
	if err := h.page.MouseMove(ctx, endX, endY, moveSteps(action.Duration)); err != nil {
		return fail(err)
	}
	if err := h.page.MouseUp(ctx, engine.ButtonLeft); err != nil {
		return fail(err)
	}
	return h.success(api, requested, executed, startedAt)
}

// Scroll scrolls the wheel, optionally moving to a position first.
func (h *Handler) Scroll(ctx context.Context, action types.ScrollAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "scroll"
	amount := action.Amount
	if amount == 0 {
		amount = 100
	}
	requested := map[string]any{"direction": action.Direction, "amount": amount}
	putOptInt(requested, "x", action.X)
	putOptInt(requested, "y", action.Y)
	putOptInt(requested, "index", action.Index)

	executed := map[string]any{"direction": action.Direction, "amount": amount}

	// Position is optional for scroll; an index still needs resolving.
	var moveX, moveY *int
	if action.Index != nil && (action.X == nil || action.Y == nil) {
		x, y, rerr := h.resolvePoint(action.X, action.Y, action.Index)
		if rerr != nil {
			return h.failure(api, requested, requested, startedAt, rerr.Code, rerr.Message, nil)
		}
		moveX, moveY = &x, &y
	} else if action.X != nil && action.Y != nil {
		moveX, moveY = action.X, action.Y
	}
	if moveX != nil {
		executed["x"], executed["y"] = *moveX, *moveY
	}

	var deltaX, deltaY int
	switch action.Direction {
	case "up":
		deltaY = -amount
	case "down":
		deltaY = amount
	case "left":
		deltaX = -amount
	case "right":
		deltaX = amount
	default:
		return h.failure(api, requested, executed, startedAt, types.ErrInvalidArg,
			"Unsupported scroll direction: "+action.Direction, nil)
	}

	if moveX != nil {
		if err := h.page.MouseMove(ctx, *moveX, *moveY, 1); err != nil {
			return h.failure(api, requested, executed, startedAt, types.ErrActionExecution, "Scroll action failed", map[string]any{"error": err.Error()})
		}
	}
	if err := h.page.Scroll(ctx, deltaX, deltaY); err != nil {
		return h.failure(api, requested, executed, startedAt, types.ErrActionExecution, "Scroll action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// TypeText types literal text.
func (h *Handler) TypeText(ctx context.Context, action types.TypeAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "type"
	args := map[string]any{"text": action.Text}
	if err := h.page.TypeText(ctx, action.Text); err != nil {
		return h.failure(api, args, args, startedAt, types.ErrActionExecution, "Type action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, args, args, startedAt)
}

// Key presses and releases a single key.
func (h *Handler) Key(ctx context.Context, action types.KeyAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "key"
	requested := map[string]any{"key": action.Key}
	key := NormalizeKey(action.Key)
	executed := map[string]any{"key": key}
	if err := h.page.KeyPress(ctx, key); err != nil {
		return h.failure(api, requested, executed, startedAt, dispatchCode(err), "Key action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// HoldKey holds a key down.
func (h *Handler) HoldKey(ctx context.Context, action types.HoldKeyAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "hold_key"
	requested := map[string]any{"key": action.Key}
	key := NormalizeKey(action.Key)
	executed := map[string]any{"key": key}
	if err := h.page.KeyDown(ctx, key); err != nil {
		return h.failure(api, requested, executed, startedAt, dispatchCode(err), "Hold key action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// ReleaseKey releases a held key.
func (h *Handler) ReleaseKey(ctx context.Context, action types.ReleaseKeyAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "release_key"
	requested := map[string]any{"key": action.Key}
	key := NormalizeKey(action.Key)
	executed := map[string]any{"key": key}
	if err := h.page.KeyUp(ctx, key); err != nil {
		return h.failure(api, requested, executed, startedAt, dispatchCode(err), "Release key action failed", map[string]any{"error": err.Error()})
	}
	return h.success(api, requested, executed, startedAt)
}

// Hotkey presses a key combination: every key but the last is held as a
// modifier, the last is pressed, then the modifiers release in reverse
// order.
func (h *Handler) Hotkey(ctx context.Context, action types.HotkeyAction) *envelope.Envelope {
	startedAt := time.Now()
	api := "hotkey"
	requested := map[string]any{"keys": action.Keys}

	keys := make([]string, len(action.Keys))
	for i, k := range action.Keys {
		keys[i] = NormalizeKey(k)
	}
	executed := map[string]any{"keys": keys}

	if len(keys) == 0 {
		return h.failure(api, requested, executed, startedAt, types.ErrInvalidArg,
			"Hotkey action failed: keys must not be empty", nil)
	}

	fail := func(err error) *envelope.Envelope {
		return h.failure(api, requested, executed, startedAt, dispatchCode(err), "Hotkey action failed", map[string]any{"error": err.Error()})
	}

	for _, key := range keys[:len(keys)-1] {
		if err := h.page.KeyDown(ctx, key); err != nil {
			return fail(err)
		}
	}
	if err := h.page.KeyPress(ctx, keys[len(keys)-1]); err != nil {
		return fail(err)
	}
	for i := len(keys) - 2; i >= 0; i-- {
		if err := h.page.KeyUp(ctx, keys[i]); err != nil {
			return fail(err)
		}
	}
	return h.success(api, requested, executed, startedAt)
}

// Screenshot captures the viewport as PNG bytes.
func (h *Handler) Screenshot(ctx context.Context) ([]byte, error) {
	return h.page.Screenshot(ctx)
}

func clickArgs(x, y, index *int, button string) map[string]any {
	args := map[string]any{"button": button}
	putOptInt(args, "x", x)
	putOptInt(args, "y", y)
	putOptInt(args, "index", index)
	return args
}

func putOptInt(args map[string]any, key string, v *int) {
	if v != nil {
		args[key] = *v
	}
}
