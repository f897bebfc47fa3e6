package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"screen-capture-extractor/src/runtimeinit"
	"screen-capture-extractor/src/session"
	"screen-capture-extractor/src/singleinstance"
)

const detectTimeout = 2 * time.Second

var errNoResident = errors.New("no resident app is running; start screen-capture-extractor first")

func newRemoveLastCmd(root *cliOptions, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-last",
		Short: "Remove the last data row (through the resident app when it runs)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := root.bootstrap(ctx, e, runtimeinit.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			// The resident serializes table writes, so it must do the removal when present.
			delegated, text, err := delegate(ctx, rt, singleinstance.Request{Action: singleinstance.ActionRemoveLast})
			if delegated {
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(e.stdout, text)
				return err
			}

			removed, err := rt.Store.RemoveLast()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.stdout, session.DescribeRemoval(rt.Store.Path(), removed))
			return err
		},
	}
}

func newTriggerCmd(root *cliOptions, e *env) *cobra.Command {
	var stdout bool
	cmd := &cobra.Command{
		Use:       "trigger capture|quick",
		Short:     "Ask the resident app to capture a new region or re-capture the last one",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"capture", "quick"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := singleinstance.ParseAction(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := root.bootstrap(ctx, e, runtimeinit.Options{})
			if err != nil {
				return err
			}
			defer rt.Close()

			// Selection is interactive, so allow for it on top of the extraction deadline.
			ctx, cancel := context.WithTimeout(ctx, 2*rt.Deadline())
			defer cancel()
			delegated, text, err := delegate(ctx, rt, singleinstance.Request{Action: action, OutputToStdout: stdout})
			if !delegated {
				return errNoResident
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(e.stdout, text)
			return err
		},
	}
	cmd.Flags().BoolVar(&stdout, "stdout", false, "Print the saved rows as JSON instead of a status line")
	return cmd
}

func newPingCmd(root *cliOptions, e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the model server and report whether the resident app is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := root.bootstrap(ctx, e, runtimeinit.Options{Ping: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			ok := color.New(color.FgGreen).SprintFunc()
			fmt.Fprintf(e.stdout, "%s model %s on %s\n", ok("ok"), rt.Client.Model(), rt.Client.Host())

			detectCtx, cancel := context.WithTimeout(ctx, detectTimeout)
			defer cancel()
			if port, running := singleinstance.DetectResidentPort(detectCtx, rt.Ports()); running {
				fmt.Fprintf(e.stdout, "%s resident on port %d\n", ok("ok"), port)
			} else {
				fmt.Fprintf(e.stdout, "%s no resident on ports %d-%d\n", color.New(color.FgYellow).Sprint("--"), rt.Ports().Start, rt.Ports().End)
			}
			return nil
		},
	}
}

func delegate(ctx context.Context, rt *runtimeinit.Runtime, req singleinstance.Request) (bool, string, error) {
	delegated, text, err := singleinstance.NewClient(rt.Ports()).Delegate(ctx, req)
	if delegated {
		log.Debug().Str("action", string(req.Action)).Err(err).Msg("delegated to resident")
	}
	return delegated, text, err
}
