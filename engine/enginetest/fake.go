// Package enginetest provides fake engine implementations for tests.
package enginetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/BaSui01/blockbench/engine"
)

// Call records one dispatched page operation.
type Call struct {
	Op   string
	Args []any
}

// FakePage implements engine.Page in memory, recording every call. An
// EvaluateFunc hook lets tests script the result of Evaluate per script;
// Fail forces an error from every operation listed in it.
type FakePage struct {
	mu     sync.Mutex
	calls  []Call
	closed bool

	// EvaluateFunc, when set, produces the evaluation result for a
	// script. The returned value is marshaled through JSON into out,
	// mirroring the real wire behavior.
	EvaluateFunc func(script string) (any, error)

	// Fail maps operation names ("click", "key_down", ...) to errors.
	Fail map[string]error

	// ScreenshotData is returned by Screenshot.
	ScreenshotData []byte

	Width  int
	Height int
}

// NewFakePage returns a page with a 1280x720 viewport.
func NewFakePage() *FakePage {
	return &FakePage{Width: 1280, Height: 720, ScreenshotData: []byte("fake-png")}
}

func (p *FakePage) record(op string, args ...any) error {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Op: op, Args: args})
	p.mu.Unlock()
	if err, ok := p.Fail[op]; ok {
		return err
	}
	return nil
}

// Calls returns a copy of the recorded operations.
func (p *FakePage) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallOps returns just the operation names, in order.
func (p *FakePage) CallOps() []string {
	calls := p.Calls()
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

// Closed reports whether Close was called.
func (p *FakePage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *FakePage) Navigate(_ context.Context, url string) error {
	return p.record("navigate", url)
}

func (p *FakePage) Click(_ context.Context, x, y int, button string) error {
	return p.record("click", x, y, button)
}

func (p *FakePage) DoubleClick(_ context.Context, x, y int, button string) error {
	return p.record("double_click", x, y, button)
}

func (p *FakePage) MouseMove(_ context.Context, x, y, steps int) error {
	return p.record("mouse_move", x, y, steps)
}

func (p *FakePage) MouseDown(_ context.Context, button string) error {
	return p.record("mouse_down", button)
}

func (p *FakePage) MouseUp(_ context.Context, button string) error {
	return p.record("mouse_up", button)
}

func (p *FakePage) Scroll(_ context.Context, deltaX, deltaY int) error {
	return p.record("scroll", deltaX, deltaY)
}

func (p *FakePage) TypeText(_ context.Context, text string) error {
	return p.record("type", text)
}

func (p *FakePage) KeyPress(_ context.Context, key string) error {
	return p.record("key_press", key)
}

func (p *FakePage) KeyDown(_ context.Context, key string) error {
	return p.record("key_down", key)
}

func (p *FakePage) KeyUp(_ context.Context, key string) error {
	return p.record("key_up", key)
}

func (p *FakePage) Evaluate(_ context.Context, script string, out any) error {
	if err := p.record("evaluate", script); err != nil {
		return err
	}
	if p.EvaluateFunc == nil {
		return nil
	}
	value, err := p.EvaluateFunc(script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("fake evaluate result not encodable: %w", err)
	}
	return json.Unmarshal(data, out)
}

func (p *FakePage) Screenshot(_ context.Context) ([]byte, error) {
	if err := p.record("screenshot"); err != nil {
		return nil, err
	}
	return p.ScreenshotData, nil
}

func (p *FakePage) ViewportSize() (int, int) {
	return p.Width, p.Height
}

func (p *FakePage) Close(_ context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.record("close")
}

// FakeEngine hands out FakePages and remembers them.
type FakeEngine struct {
	mu    sync.Mutex
	pages []*FakePage

	// NewPageErr, when set, is returned from NewPage.
	NewPageErr error

	// OnNewPage, when set, is called with each page before it is
	// returned, letting tests install hooks or drop recording files.
	OnNewPage func(page *FakePage, opts engine.PageOptions)
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{}
}

func (e *FakeEngine) NewPage(_ context.Context, opts engine.PageOptions) (engine.Page, error) {
	if e.NewPageErr != nil {
		return nil, e.NewPageErr
	}
	page := NewFakePage()
	if opts.ViewportWidth > 0 {
		page.Width = opts.ViewportWidth
	}
	if opts.ViewportHeight > 0 {
		page.Height = opts.ViewportHeight
	}
	if e.OnNewPage != nil {
		e.OnNewPage(page, opts)
	}
	e.mu.Lock()
	e.pages = append(e.pages, page)
	e.mu.Unlock()
	return page, nil
}

func (e *FakeEngine) Close(_ context.Context) error { return nil }

// Pages returns every page handed out so far.
func (e *FakeEngine) Pages() []*FakePage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*FakePage, len(e.pages))
	copy(out, e.pages)
	return out
}

var _ engine.Engine = (*FakeEngine)(nil)
var _ engine.Page = (*FakePage)(nil)
