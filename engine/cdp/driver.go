// Package cdp implements the automation engine boundary over the Chrome
// DevTools Protocol using chromedp. One Engine owns a shared browser
// allocator; each page gets its own chromedp context.
package cdp

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/BaSui01/blockbench/engine"
	"github.com/BaSui01/blockbench/types"
)

// Config holds browser process options.
type Config struct {
	Headless  bool
	UserAgent string
	ProxyURL  string
}

// Engine implements engine.Engine on chromedp.
type Engine struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	config      Config
	logger      *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewEngine starts the browser allocator.
func NewEngine(config Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(config.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Info("cdp engine started", zap.Bool("headless", config.Headless))

	return &Engine{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		config:      config,
		logger:      logger.With(zap.String("component", "cdp_engine")),
	}, nil
}

// NewPage opens a fresh browser context sized to the requested viewport.
func (e *Engine) NewPage(ctx context.Context, opts engine.PageOptions) (engine.Page, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, types.NewError(types.ErrInternal, "engine is closed")
	}
	e.mu.Unlock()

	if opts.RecordVideoDir != "" {
		if err := os.MkdirAll(opts.RecordVideoDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recording dir: %w", err)
		}
		e.logger.Warn("video capture is not supported by the cdp engine, recording metadata only",
			zap.String("dir", opts.RecordVideoDir))
	}

	pageCtx, cancel := chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(opts.ViewportWidth), int64(opts.ViewportHeight)),
	}
	if err := chromedp.Run(pageCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	return &Page{
		ctx:            pageCtx,
		cancel:         cancel,
		viewportWidth:  opts.ViewportWidth,
		viewportHeight: opts.ViewportHeight,
		logger:         e.logger.With(zap.String("component", "cdp_page")),
	}, nil
}

// Close shuts down the browser allocator. Pages must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.logger.Info("closing cdp engine")
	e.allocCancel()
	return nil
}

// Page implements engine.Page. Pointer position and held modifiers are
// tracked so wheel and key events carry the right state.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc

	viewportWidth  int
	viewportHeight int
	logger         *zap.Logger

	mu        sync.Mutex
	mouseX    int
	mouseY    int
	modifiers input.Modifier
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("navigating", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *Page) Click(ctx context.Context, x, y int, button string) error {
	btn, err := mouseButton(button)
	if err != nil {
		return err
	}
	p.setMouse(x, y)
	return p.run(ctx, p.clickAction(x, y, btn, 1))
}

func (p *Page) DoubleClick(ctx context.Context, x, y int, button string) error {
	btn, err := mouseButton(button)
	if err != nil {
		return err
	}
	p.setMouse(x, y)
	return p.run(ctx,
		p.clickAction(x, y, btn, 1),
		p.clickAction(x, y, btn, 2),
	)
}

func (p *Page) clickAction(x, y int, btn input.MouseButton, clickCount int64) chromedp.Action {
	mods := p.heldModifiers()
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MousePressed, float64(x), float64(y)).
			WithButton(btn).WithClickCount(clickCount).WithModifiers(mods).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, float64(x), float64(y)).
			WithButton(btn).WithClickCount(clickCount).WithModifiers(mods).Do(ctx)
	})
}

// MouseMove moves the pointer to (x, y). With steps > 1 the move is
// interpolated so drags over drag-sensitive UI register intermediate
// positions.
func (p *Page) MouseMove(ctx context.Context, x, y, steps int) error {
	fromX, fromY := p.mousePosition()
	if steps < 1 {
		steps = 1
	}
	mods := p.heldModifiers()

	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for i := 1; i <= steps; i++ {
			px := float64(fromX) + float64(x-fromX)*float64(i)/float64(steps)
			py := float64(fromY) + float64(y-fromY)*float64(i)/float64(steps)
			if err := input.DispatchMouseEvent(input.MouseMoved, px, py).
				WithModifiers(mods).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
	if err == nil {
		p.setMouse(x, y)
	}
	return err
}

func (p *Page) MouseDown(ctx context.Context, button string) error {
	btn, err := mouseButton(button)
	if err != nil {
		return err
	}
	x, y := p.mousePosition()
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MousePressed, float64(x), float64(y)).
			WithButton(btn).WithClickCount(1).WithModifiers(p.heldModifiers()).Do(ctx)
	}))
}

func (p *Page) MouseUp(ctx context.Context, button string) error {
	btn, err := mouseButton(button)
	if err != nil {
		return err
	}
	x, y := p.mousePosition()
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseReleased, float64(x), float64(y)).
			WithButton(btn).WithClickCount(1).WithModifiers(p.heldModifiers()).Do(ctx)
	}))
}

// Scroll dispatches a wheel event at the current pointer position.
func (p *Page) Scroll(ctx context.Context, deltaX, deltaY int) error {
	x, y := p.mousePosition()
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, float64(x), float64(y)).
			WithDeltaX(float64(deltaX)).
			WithDeltaY(float64(deltaY)).
			WithModifiers(p.heldModifiers()).Do(ctx)
	}))
}

func (p *Page) TypeText(ctx context.Context, text string) error {
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, ch := range text {
			if err := input.DispatchKeyEvent(input.KeyChar).
				WithText(string(ch)).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (p *Page) KeyPress(ctx context.Context, key string) error {
	if err := p.KeyDown(ctx, key); err != nil {
		return err
	}
	return p.KeyUp(ctx, key)
}

func (p *Page) KeyDown(ctx context.Context, key string) error {
	def, err := lookupKey(key)
	if err != nil {
		return err
	}
	err = p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return keyEvent(def, true, p.heldModifiers()).Do(ctx)
	}))
	if err == nil && def.Modifier != 0 {
		p.mu.Lock()
		p.modifiers |= def.Modifier
		p.mu.Unlock()
	}
	return err
}

func (p *Page) KeyUp(ctx context.Context, key string) error {
	def, err := lookupKey(key)
	if err != nil {
		return err
	}
	if def.Modifier != 0 {
		p.mu.Lock()
		p.modifiers &^= def.Modifier
		p.mu.Unlock()
	}
	return p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return keyEvent(def, false, p.heldModifiers()).Do(ctx)
	}))
}

func keyEvent(def keyDef, down bool, mods input.Modifier) *input.DispatchKeyEventParams {
	typ := input.KeyUp
	if down {
		typ = input.KeyRawDown
		if def.Text != "" {
			typ = input.KeyDown
		}
	}
	ev := input.DispatchKeyEvent(typ).
		WithKey(def.Key).
		WithCode(def.Code).
		WithWindowsVirtualKeyCode(def.KeyCode).
		WithNativeVirtualKeyCode(def.KeyCode).
		WithModifiers(mods)
	if down && def.Text != "" {
		ev = ev.WithText(def.Text)
	}
	return ev
}

// Evaluate runs a script, awaiting promises, and unmarshals the value.
func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	if out == nil {
		var discard any
		out = &discard
	}
	return p.run(ctx, chromedp.Evaluate(script, out,
		func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
			return params.WithAwaitPromise(true)
		}))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

func (p *Page) ViewportSize() (int, int) {
	return p.viewportWidth, p.viewportHeight
}

func (p *Page) Close(ctx context.Context) error {
	p.logger.Debug("closing page")
	p.cancel()
	return nil
}

// run executes chromedp actions on the page context, honoring the caller
// deadline when one is set.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := p.ctx
	var cancel context.CancelFunc
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.ctx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (p *Page) setMouse(x, y int) {
	p.mu.Lock()
	p.mouseX, p.mouseY = x, y
	p.mu.Unlock()
}

func (p *Page) mousePosition() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mouseX, p.mouseY
}

func (p *Page) heldModifiers() input.Modifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modifiers
}

func mouseButton(button string) (input.MouseButton, error) {
	switch button {
	case "", engine.ButtonLeft:
		return input.Left, nil
	case engine.ButtonMiddle:
		return input.Middle, nil
	case engine.ButtonRight:
		return input.Right, nil
	default:
		return "", types.NewErrorf(types.ErrInvalidArg, "unknown mouse button: %q", button)
	}
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.Page = (*Page)(nil)
