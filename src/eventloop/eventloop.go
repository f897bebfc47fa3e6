package eventloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"screen-capture-extractor/src/overlay"
	"screen-capture-extractor/src/screenshot"
	"screen-capture-extractor/src/session"
	"screen-capture-extractor/src/singleinstance"
	"screen-capture-extractor/src/worker"
)

// UI receives loop notifications. Methods are called from the loop goroutine; GUI
// implementations must hop to their own thread.
type UI interface {
	SetBusy(busy bool)
	Status(msg string)
	// Changed is called after the table file was written.
	Changed(path string)
}

// Remover drops the last saved row.
type Remover interface {
	RemoveLast() (bool, error)
	Path() string
}

type Options struct {
	Selector        overlay.Selector
	Capture         session.CaptureFunc
	Pipeline        session.Pipeline
	Remover         Remover
	Prompt          func() string
	UI              UI
	Server          singleinstance.Server
	Deadline        time.Duration
	CopyToClipboard bool
	// Notify also receives local results, e.g. desktop notifications while the window is hidden.
	Notify session.ResultTarget
}

// Loop is the single-threaded coordinator for hotkeys, GUI buttons and delegated requests.
// Region selection runs on the loop goroutine; saves and removals run one at a time on
// the worker pool and report back through results.
type Loop struct {
	opts       Options
	pool       *worker.Pool
	busy       bool
	lastRegion screenshot.Region
	triggers   chan singleinstance.Action
	results    chan result
}

type result struct {
	action  singleinstance.Action
	saved   session.Saved
	removed bool
	err     error
	target  session.ResultTarget
	conn    singleinstance.Conn
	cancel  context.CancelFunc
}

// New creates a loop. A zero deadline falls back to session.DefaultDeadline.
func New(opts Options) *Loop {
	if opts.Deadline <= 0 {
		opts.Deadline = session.DefaultDeadline
	}
	if opts.UI == nil {
		opts.UI = nopUI{}
	}
	if opts.Prompt == nil {
		opts.Prompt = func() string { return "" }
	}
	return &Loop{
		opts:     opts,
		pool:     worker.New(1),
		triggers: make(chan singleinstance.Action, 4),
		results:  make(chan result, 1),
	}
}

// Trigger posts a local action (hotkey, button, tray menu) into the loop. Triggers beyond
// the buffer are dropped.
func (l *Loop) Trigger(action singleinstance.Action) {
	select {
	case l.triggers <- action:
	default:
		log.Warn().Str("action", string(action)).Msg("trigger dropped, loop is saturated")
	}
}

// Deadline returns the per-request deadline.
func (l *Loop) Deadline() time.Duration { return l.opts.Deadline }

// Run starts the single-instance server, when one is configured, and processes requests.
// It blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()

	var conns chan singleinstance.Conn
	if srv := l.opts.Server; srv != nil {
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Close()
		log.Info().Int("port", srv.Port()).Msg("resident listening")

		conns = make(chan singleinstance.Conn, 4)
		go func() {
			defer close(conns)
			for {
				conn, err := srv.Next(ctx)
				if err != nil {
					return
				}
				conns <- conn
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case action := <-l.triggers:
			l.handle(ctx, action, nil)
		case conn, ok := <-conns:
			if !ok {
				return nil
			}
			l.handle(ctx, conn.Request().Action, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handle(ctx context.Context, action singleinstance.Action, conn singleinstance.Conn) {
	log.Debug().Str("action", string(action)).Bool("delegated", conn != nil).Msg("handling request")
	target := l.targetFor(conn)
	fail := func(err error) {
		log.Warn().Err(err).Str("action", string(action)).Msg("request rejected")
		_ = target.OnFailure(err)
		if conn != nil {
			_ = conn.Close()
		}
	}

	if l.busy {
		fail(worker.ErrBusy)
		return
	}

	res := result{action: action, target: target, conn: conn}
	switch action {
	case singleinstance.ActionRemoveLast:
		l.submit(ctx, &res, func(ctx context.Context) error {
			if l.opts.Remover == nil {
				return errors.New("no table configured")
			}
			removed, err := l.opts.Remover.RemoveLast()
			res.removed = removed
			return err
		}, fail)

	case singleinstance.ActionCapture, singleinstance.ActionQuick:
		prompt := strings.TrimSpace(l.opts.Prompt())
		if prompt == "" {
			fail(session.ErrEmptyPrompt)
			return
		}
		region := l.lastRegion
		if action == singleinstance.ActionQuick {
			if region.IsZero() {
				fail(session.ErrNoRegion)
				return
			}
		} else {
			r, cancelled, err := l.selectRegion(ctx)
			if err != nil {
				fail(fmt.Errorf("failed to select region: %w", err))
				return
			}
			if cancelled {
				fail(session.ErrSelectionCancelled)
				return
			}
			region = r
			l.lastRegion = r
		}
		l.submit(ctx, &res, func(ctx context.Context) error {
			// The outcome is delivered by handleResult, so Execute gets a no-op target.
			out, err := session.Execute(ctx, session.Options{
				Deadline: l.opts.Deadline,
				Prompt:   prompt,
				Region:   region,
				Capture:  l.opts.Capture,
				Pipeline: l.opts.Pipeline,
				Target:   session.Targets{},
			})
			res.saved = out.Saved
			return err
		}, fail)

	default:
		fail(fmt.Errorf("unsupported action %q", action))
	}
}

func (l *Loop) selectRegion(ctx context.Context) (screenshot.Region, bool, error) {
	if l.opts.Selector == nil {
		return screenshot.Region{}, false, errors.New("no region selector available")
	}
	return l.opts.Selector.Select(ctx)
}

// submit runs job on the pool. The job fills res; the callback hands it back to the loop.
func (l *Loop) submit(ctx context.Context, res *result, job worker.Job, fail func(error)) {
	jobCtx, cancel := context.WithTimeout(ctx, l.opts.Deadline)
	res.cancel = cancel
	l.setBusy(true)
	submitted := l.pool.Submit(jobCtx, string(res.action), job, func(err error) {
		out := *res
		out.err = err
		l.results <- out
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		fail(worker.ErrBusy)
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
		if res.conn != nil {
			_ = res.conn.Close()
		}
	}()

	if res.err != nil {
		log.Error().Err(res.err).Str("action", string(res.action)).Msg("request failed")
		_ = res.target.OnFailure(res.err)
		return
	}

	if res.action == singleinstance.ActionRemoveLast {
		msg := session.DescribeRemoval(l.opts.Remover.Path(), res.removed)
		if res.removed {
			l.opts.UI.Changed(l.opts.Remover.Path())
		}
		l.opts.UI.Status(msg)
		if res.conn != nil {
			_ = res.conn.RespondSuccess(msg)
		}
		return
	}

	l.opts.UI.Changed(res.saved.Path)
	if err := res.target.OnSuccess(res.saved); err != nil {
		log.Error().Err(err).Msg("failed to deliver result")
		_ = res.target.OnFailure(err)
	}
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	l.opts.UI.SetBusy(b)
}

func (l *Loop) targetFor(conn singleinstance.Conn) session.ResultTarget {
	if conn != nil {
		return session.DelegatedTarget{
			Conn:            conn,
			OutputToStdout:  conn.Request().OutputToStdout,
			CopyToClipboard: l.opts.CopyToClipboard,
		}
	}
	targets := session.Targets{uiTarget{ui: l.opts.UI}}
	if l.opts.CopyToClipboard {
		targets = append(targets, session.ClipboardTarget{})
	}
	if l.opts.Notify != nil {
		targets = append(targets, l.opts.Notify)
	}
	return targets
}

// uiTarget reports local results in the status line.
type uiTarget struct{ ui UI }

func (t uiTarget) OnSuccess(saved session.Saved) error {
	t.ui.Status(session.Describe(saved))
	return nil
}

func (t uiTarget) OnFailure(err error) error {
	t.ui.Status("Error: " + err.Error())
	return nil
}

type nopUI struct{}

func (nopUI) SetBusy(bool)   {}
func (nopUI) Status(string)  {}
func (nopUI) Changed(string) {}
