// Package engine defines the boundary to the external browser automation
// engine. The rest of the service depends only on these interfaces; the
// cdp subpackage provides the production implementation and tests use
// fakes from enginetest.
package engine

import "context"

// Mouse buttons accepted by pointer operations.
const (
	ButtonLeft   = "left"
	ButtonMiddle = "middle"
	ButtonRight  = "right"
)

// PageOptions configures a new automation page.
type PageOptions struct {
	ViewportWidth  int
	ViewportHeight int

	// RecordVideoDir, when non-empty, asks the engine to capture the
	// page into a video file under the directory. Engines without
	// capture support create the directory and proceed without a file;
	// callers treat the file as best-effort.
	RecordVideoDir string
}

// Page is one isolated automation context. Implementations serialize
// access internally; methods are safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error

	Click(ctx context.Context, x, y int, button string) error
	DoubleClick(ctx context.Context, x, y int, button string) error
	MouseMove(ctx context.Context, x, y, steps int) error
	MouseDown(ctx context.Context, button string) error
	MouseUp(ctx context.Context, button string) error
	Scroll(ctx context.Context, deltaX, deltaY int) error

	TypeText(ctx context.Context, text string) error
	KeyPress(ctx context.Context, key string) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error

	// Evaluate runs a script in the page context and unmarshals its
	// completion value into out. A nil out discards the value.
	Evaluate(ctx context.Context, script string, out any) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	ViewportSize() (width, height int)

	Close(ctx context.Context) error
}

// Engine creates pages and owns the underlying browser process.
type Engine interface {
	NewPage(ctx context.Context, opts PageOptions) (Page, error)
	Close(ctx context.Context) error
}
