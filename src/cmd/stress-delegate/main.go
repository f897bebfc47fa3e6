package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screen-capture-extractor/src/singleinstance"
)

type stressOptions struct {
	n           int
	concurrency int
	progress    bool
	action    string
	stdout    bool
	deadline  time.Duration
	portStart int
	portEnd   int
}

type counts struct {
	ok, busy, missing, failed int32
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	defaults := singleinstance.DefaultPorts()
	cmd := &cobra.Command{
		Use:           "stress-delegate",
		Short:         "Send many concurrent requests to the resident app",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var bar io.Writer
			if opts.progress {
				bar = cmd.ErrOrStderr()
			}
			return runWithOptions(cmd.Context(), cmd.OutOrStdout(), bar, *opts)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "max clients in flight (0 for all at once)")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a progress bar on stderr")
	cmd.Flags().StringVar(&opts.action, "action", "remove-last", "capture|quick|remove-last")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "ask for the saved rows as JSON")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")
	cmd.Flags().IntVar(&opts.portStart, "port-start", defaults.Start, "first resident port")
	cmd.Flags().IntVar(&opts.portEnd, "port-end", defaults.End, "last resident port")

	return cmd
}

// runWithOptions launches opts.n clients. A nil progress writer disables the bar.
func runWithOptions(ctx context.Context, out, progress io.Writer, opts stressOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	action, err := singleinstance.ParseAction(strings.ReplaceAll(opts.action, "-", "_"))
	if err != nil {
		return err
	}
	client := singleinstance.NewClient(singleinstance.PortRange{Start: opts.portStart, End: opts.portEnd})
	req := singleinstance.Request{Action: action, OutputToStdout: opts.stdout}

	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(opts.n,
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("delegating"),
		progressbar.OptionClearOnFinish(),
	)

	var (
		g errgroup.Group
		c counts
	)
	if opts.concurrency > 0 {
		g.SetLimit(opts.concurrency)
	}
	start := time.Now()
	for i := 0; i < opts.n; i++ {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, opts.deadline)
			defer cancel()
			delegated, _, err := client.Delegate(ctx, req)
			c.record(delegated, err)
			_ = bar.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	_ = bar.Finish()
	elapsed := time.Since(start)
	fmt.Fprintf(out, "launched=%d ok=%d busy=%d no_resident=%d err=%d elapsed=%s\n",
		opts.n, c.ok, c.busy, c.missing, c.failed, elapsed.Round(time.Millisecond))
	return nil
}

func (c *counts) record(delegated bool, err error) {
	switch {
	case !delegated:
		atomic.AddInt32(&c.missing, 1)
	case err == nil:
		atomic.AddInt32(&c.ok, 1)
	case errors.Is(err, context.DeadlineExceeded):
		atomic.AddInt32(&c.failed, 1)
	case strings.Contains(strings.ToLower(err.Error()), "busy"):
		atomic.AddInt32(&c.busy, 1)
	default:
		atomic.AddInt32(&c.failed, 1)
	}
}
