package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"screen-capture-extractor/src/logutil"
	"screen-capture-extractor/src/record"
	"screen-capture-extractor/src/screenshot"
	"screen-capture-extractor/src/table"
)

var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrEmptyPrompt        = errors.New("please enter a prompt")
	ErrNoImage            = errors.New("no image to extract from")
	ErrNoRegion           = errors.New("capture a region once before using quick save")
)

const DefaultDeadline = 120 * time.Second

type RegionSelectorFunc func(ctx context.Context) (screenshot.Region, bool, error)

type CaptureFunc func(region screenshot.Region) ([]byte, error)

// ExtractFunc sends an image and a prompt to the model and returns its raw answer.
type ExtractFunc func(ctx context.Context, image []byte, prompt string) (string, error)

// Appender is the table the pipeline writes to.
type Appender interface {
	Append(rows []table.Row) (table.Outcome, error)
	Path() string
}

// Pipeline turns an image into saved table rows.
type Pipeline struct {
	Extract ExtractFunc
	Store   Appender
	Mode    record.Mode
}

// Saved describes one successful save.
type Saved struct {
	Path    string
	Rows    []table.Row
	Outcome table.Outcome
}

// Save runs extract, decode, flatten and append. Input errors return before the model
// is called and leave the table untouched.
func (p Pipeline) Save(ctx context.Context, image []byte, prompt string) (Saved, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Saved{}, ErrEmptyPrompt
	}
	if len(image) == 0 {
		return Saved{}, ErrNoImage
	}
	if p.Extract == nil || p.Store == nil {
		return Saved{}, errors.New("pipeline is not configured")
	}

	text, err := p.Extract(ctx, image, prompt)
	if err != nil {
		return Saved{}, fmt.Errorf("extraction failed: %w", err)
	}

	res, err := record.Decode(text, p.Mode)
	if err != nil {
		return Saved{}, err
	}
	rows, err := record.Flatten(res)
	if err != nil {
		return Saved{}, err
	}
	if !hasFields(rows) {
		// Still saved as a blank row, so it can be filled in by hand or undone.
		log.Warn().Str("answer", logutil.Sanitize(text, 200)).Msg("model answer contained no fields")
	}

	out, err := p.Store.Append(rows)
	if err != nil {
		return Saved{}, err
	}
	log.Info().Str("path", p.Store.Path()).Int("rows", out.Appended).Bool("rewritten", out.Rewritten).Msg("rows saved")
	return Saved{Path: p.Store.Path(), Rows: rows, Outcome: out}, nil
}

func hasFields(rows []table.Row) bool {
	for _, r := range rows {
		if r.Len() > 0 {
			return true
		}
	}
	return false
}

// Describe is the one-line status shown after a save.
func Describe(s Saved) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Saved %d row(s) to: %s", s.Outcome.Appended, s.Path)
	switch {
	case s.Outcome.Created:
		fmt.Fprintf(&b, " (new file, %d columns)", len(s.Outcome.Header))
	case s.Outcome.Rewritten:
		fmt.Fprintf(&b, " (header now %d columns)", len(s.Outcome.Header))
	}
	return b.String()
}

// DescribeRemoval is the status line after removing the last row of path.
func DescribeRemoval(path string, removed bool) string {
	if !removed {
		return "No data rows to remove."
	}
	return "Removed last row from: " + path
}

type ResultTarget interface {
	OnSuccess(saved Saved) error
	OnFailure(err error) error
}

type Options struct {
	Deadline time.Duration
	Prompt   string
	// Region is used as is when set; SelectRegion is asked otherwise.
	Region       screenshot.Region
	SelectRegion RegionSelectorFunc
	Capture      CaptureFunc
	Pipeline     Pipeline
	Target       ResultTarget
}

type Result struct {
	Region screenshot.Region
	Saved  Saved
}

// Execute selects (or reuses) a region, captures it, saves the extraction and delivers
// the outcome to the target.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Target == nil {
		return Result{}, errors.New("Target is required")
	}
	if opts.Region.IsZero() && opts.SelectRegion == nil {
		return Result{}, errors.New("SelectRegion is required")
	}
	fail := func(err error) (Result, error) {
		_ = opts.Target.OnFailure(err)
		return Result{}, err
	}

	if strings.TrimSpace(opts.Prompt) == "" {
		return fail(ErrEmptyPrompt)
	}

	region := opts.Region
	if region.IsZero() {
		r, cancelled, err := opts.SelectRegion(ctx)
		if err != nil {
			return fail(err)
		}
		if cancelled {
			return fail(ErrSelectionCancelled)
		}
		region = r
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	jobCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	capture := opts.Capture
	if capture == nil {
		capture = screenshot.CaptureRegion
	}
	image, err := capture(region)
	if err != nil {
		return fail(err)
	}
	log.Info().Str("region", region.String()).Int("bytes", len(image)).Msg("captured region")

	saved, err := opts.Pipeline.Save(jobCtx, image, opts.Prompt)
	if err != nil {
		return fail(err)
	}
	if err := opts.Target.OnSuccess(saved); err != nil {
		return fail(err)
	}
	return Result{Region: region, Saved: saved}, nil
}
