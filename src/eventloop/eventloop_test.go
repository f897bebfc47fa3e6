package eventloop

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture-extractor/src/record"
	"screen-capture-extractor/src/screenshot"
	"screen-capture-extractor/src/session"
	"screen-capture-extractor/src/singleinstance"
	"screen-capture-extractor/src/table"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type fakeUI struct {
	mu       sync.Mutex
	statuses []string
	busy     []bool
	changed  []string
}

func (u *fakeUI) SetBusy(b bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.busy = append(u.busy, b)
}

func (u *fakeUI) Status(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statuses = append(u.statuses, msg)
}

func (u *fakeUI) Changed(path string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.changed = append(u.changed, path)
}

func (u *fakeUI) hasStatus(msg string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return slices.Contains(u.statuses, msg)
}

func (u *fakeUI) isBusy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.busy) > 0 && u.busy[len(u.busy)-1]
}

type fakeSelector struct {
	mu        sync.Mutex
	calls     int
	region    screenshot.Region
	cancelled bool
}

func (s *fakeSelector) Select(ctx context.Context) (screenshot.Region, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.region, s.cancelled, nil
}

func (s *fakeSelector) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeServer struct {
	conns chan singleinstance.Conn
}

func (s *fakeServer) Start(ctx context.Context) error { return nil }
func (s *fakeServer) Port() int                       { return 1 }
func (s *fakeServer) Close() error                    { return nil }

func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case c := <-s.conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeConn struct {
	req       singleinstance.Request
	mu        sync.Mutex
	successes []string
	errs      []string
	closed    chan struct{}
	once      sync.Once
}

func newConn(action singleinstance.Action, stdout bool) *fakeConn {
	return &fakeConn{req: singleinstance.Request{Action: action, OutputToStdout: stdout}, closed: make(chan struct{})}
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }

func (c *fakeConn) RespondSuccess(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successes = append(c.successes, text)
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.closed:
	case <-time.After(waitFor):
		t.Fatal("connection was not closed")
	}
}

type harness struct {
	loop     *Loop
	ui       *fakeUI
	selector *fakeSelector
	server   *fakeServer
	fs       afero.Fs
	store    *table.Store
	prompt   string
	captured []screenshot.Region
	mu       sync.Mutex
	release  chan struct{}
}

func newHarness(t *testing.T, answer string) *harness {
	h := &harness{
		ui:       &fakeUI{},
		selector: &fakeSelector{region: screenshot.Region{X: 1, Y: 2, Width: 30, Height: 40}},
		server:   &fakeServer{conns: make(chan singleinstance.Conn, 4)},
		fs:       afero.NewMemMapFs(),
		prompt:   "read it",
	}
	h.store = table.NewStore(h.fs, "/captures.csv")
	extract := func(ctx context.Context, image []byte, prompt string) (string, error) {
		if h.release != nil {
			select {
			case <-h.release:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return answer, nil
	}
	h.loop = New(Options{
		Selector: h.selector,
		Capture: func(r screenshot.Region) ([]byte, error) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.captured = append(h.captured, r)
			return []byte("img"), nil
		},
		Pipeline: session.Pipeline{Extract: extract, Store: h.store, Mode: record.ModeAuto},
		Remover:  h.store,
		Prompt:   func() string { return h.prompt },
		UI:       h.ui,
		Server:   h.server,
		Deadline: waitFor,
	})
	return h
}

func (h *harness) run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}

func (h *harness) waitStatus(t *testing.T, msg string) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ui.hasStatus(msg) }, waitFor, tick, "status %q", msg)
}

func (h *harness) csv(t *testing.T) string {
	t.Helper()
	data, err := afero.ReadFile(h.fs, "/captures.csv")
	require.NoError(t, err)
	return string(data)
}

func TestCaptureThenQuickSave(t *testing.T) {
	h := newHarness(t, `{"shop": "Cafe"}`)
	h.run(t)

	h.loop.Trigger(singleinstance.ActionCapture)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv (new file, 1 columns)")

	h.loop.Trigger(singleinstance.ActionQuick)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv")

	assert.Equal(t, 1, h.selector.count(), "quick save reuses the region")
	h.mu.Lock()
	assert.Equal(t, []screenshot.Region{h.selector.region, h.selector.region}, h.captured)
	h.mu.Unlock()
	assert.Equal(t, "shop\nCafe\nCafe\n", h.csv(t))

	require.Eventually(t, func() bool { return !h.ui.isBusy() }, waitFor, tick)
	h.ui.mu.Lock()
	assert.Equal(t, []bool{true, false, true, false}, h.ui.busy)
	assert.Equal(t, []string{"/captures.csv", "/captures.csv"}, h.ui.changed)
	h.ui.mu.Unlock()
}

func TestLocalFailures(t *testing.T) {
	t.Run("quick save without region", func(t *testing.T) {
		h := newHarness(t, `{"a": 1}`)
		h.run(t)
		h.loop.Trigger(singleinstance.ActionQuick)
		h.waitStatus(t, "Error: "+session.ErrNoRegion.Error())
		assert.Zero(t, h.selector.count())
	})

	t.Run("empty prompt", func(t *testing.T) {
		h := newHarness(t, `{"a": 1}`)
		h.prompt = "   "
		h.run(t)
		h.loop.Trigger(singleinstance.ActionCapture)
		h.waitStatus(t, "Error: "+session.ErrEmptyPrompt.Error())
		assert.Zero(t, h.selector.count(), "prompt is checked before selection")
	})

	t.Run("selection cancelled", func(t *testing.T) {
		h := newHarness(t, `{"a": 1}`)
		h.selector.cancelled = true
		h.run(t)
		h.loop.Trigger(singleinstance.ActionCapture)
		h.waitStatus(t, "Error: "+session.ErrSelectionCancelled.Error())

		// A cancelled selection does not become the quick save region.
		h.loop.Trigger(singleinstance.ActionQuick)
		h.waitStatus(t, "Error: "+session.ErrNoRegion.Error())
	})

}

func TestUnreadableAnswerSavesBlankRow(t *testing.T) {
	h := newHarness(t, "nothing to see")
	_, err := h.store.Append([]table.Row{table.NewRow("shop", "Cafe")})
	require.NoError(t, err)
	h.run(t)

	h.loop.Trigger(singleinstance.ActionCapture)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv")
	assert.Equal(t, "shop\nCafe\n\"\"\n", h.csv(t))

	h.loop.Trigger(singleinstance.ActionRemoveLast)
	h.waitStatus(t, "Removed last row from: /captures.csv")
	assert.Equal(t, "shop\nCafe\n", h.csv(t))
}

func TestDelegatedCaptureWithStdout(t *testing.T) {
	h := newHarness(t, `{"shop": "Cafe", "total": 7.5}`)
	h.run(t)

	conn := newConn(singleinstance.ActionCapture, true)
	h.server.conns <- conn
	conn.wait(t)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	require.Len(t, conn.successes, 1)
	assert.JSONEq(t, `[{"shop": "Cafe", "total": "7.5"}]`, conn.successes[0])
	assert.Empty(t, conn.errs)
}

func TestDelegatedRemoveLast(t *testing.T) {
	h := newHarness(t, "")
	_, err := h.store.Append([]table.Row{table.NewRow("a", "1"), table.NewRow("a", "2")})
	require.NoError(t, err)
	h.run(t)

	conn := newConn(singleinstance.ActionRemoveLast, false)
	h.server.conns <- conn
	conn.wait(t)
	assert.Equal(t, []string{"Removed last row from: /captures.csv"}, conn.successes)
	assert.Equal(t, "a\n1\n", h.csv(t))
	h.waitStatus(t, "Removed last row from: /captures.csv")

	h.loop.Trigger(singleinstance.ActionRemoveLast)
	h.loop.Trigger(singleinstance.ActionRemoveLast)
	h.waitStatus(t, "No data rows to remove.")
	assert.Equal(t, "a\n", h.csv(t))
}

func TestBusyRejectsSecondRequest(t *testing.T) {
	h := newHarness(t, `{"a": 1}`)
	h.release = make(chan struct{})
	h.run(t)

	h.loop.Trigger(singleinstance.ActionCapture)
	require.Eventually(t, h.ui.isBusy, waitFor, tick)

	conn := newConn(singleinstance.ActionRemoveLast, false)
	h.server.conns <- conn
	conn.wait(t)
	assert.Equal(t, []string{"busy, please retry"}, conn.errs)
	assert.Empty(t, conn.successes)

	close(h.release)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv (new file, 1 columns)")
	require.Eventually(t, func() bool { return !h.ui.isBusy() }, waitFor, tick)
}

func TestDeadlineCancelsExtraction(t *testing.T) {
	h := newHarness(t, `{"a": 1}`)
	h.release = make(chan struct{})
	h.loop.opts.Deadline = 50 * time.Millisecond
	h.run(t)

	h.loop.Trigger(singleinstance.ActionCapture)
	require.Eventually(t, func() bool {
		h.ui.mu.Lock()
		defer h.ui.mu.Unlock()
		return slices.ContainsFunc(h.ui.statuses, func(s string) bool {
			return strings.HasPrefix(s, "Error: ") && strings.Contains(s, context.DeadlineExceeded.Error())
		})
	}, waitFor, tick)
	require.Eventually(t, func() bool { return !h.ui.isBusy() }, waitFor, tick)
	close(h.release)
}

func TestRunWithoutServer(t *testing.T) {
	h := newHarness(t, `{"a": 1}`)
	h.loop.opts.Server = nil
	h.run(t)
	h.loop.Trigger(singleinstance.ActionCapture)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv (new file, 1 columns)")
}

type recordingTarget struct {
	mu       sync.Mutex
	saved    []session.Saved
	failures []error
}

func (r *recordingTarget) OnSuccess(saved session.Saved) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, saved)
	return nil
}

func (r *recordingTarget) OnFailure(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
	return nil
}

func TestNotifyReceivesLocalResultsOnly(t *testing.T) {
	h := newHarness(t, `{"a": 1}`)
	notify := &recordingTarget{}
	h.loop.opts.Notify = notify
	h.run(t)

	h.loop.Trigger(singleinstance.ActionCapture)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv (new file, 1 columns)")
	h.loop.Trigger(singleinstance.ActionQuick)
	h.waitStatus(t, "Saved 1 row(s) to: /captures.csv")

	conn := newConn(singleinstance.ActionQuick, false)
	h.server.conns <- conn
	conn.wait(t)

	h.prompt = ""
	h.loop.Trigger(singleinstance.ActionCapture)
	h.waitStatus(t, "Error: "+session.ErrEmptyPrompt.Error())

	notify.mu.Lock()
	defer notify.mu.Unlock()
	assert.Len(t, notify.saved, 2)
	assert.Equal(t, []error{session.ErrEmptyPrompt}, notify.failures)
}
