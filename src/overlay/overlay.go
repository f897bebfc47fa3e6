package overlay

import (
	"context"

	"screen-capture-extractor/src/screenshot"
)

// Selector defines a synchronous region-selection API owned by the event loop.
// The call is blocking and MUST be invoked only from the single event-loop goroutine.
// Returns (region, cancelled, error). If cancelled is true, region is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context) (screenshot.Region, bool, error)
}

// MinSize is the smallest accepted selection edge in pixels. Smaller drags count as a click
// and cancel the selection.
const MinSize = 4

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(ctx context.Context) (screenshot.Region, bool, error)

func (f SelectorFunc) Select(ctx context.Context) (screenshot.Region, bool, error) { return f(ctx) }
