package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"screen-capture-extractor/src/config"
	"screen-capture-extractor/src/eventloop"
	"screen-capture-extractor/src/gui"
	"screen-capture-extractor/src/hotkey"
	"screen-capture-extractor/src/notification"
	"screen-capture-extractor/src/overlay"
	"screen-capture-extractor/src/runtimeinit"
	"screen-capture-extractor/src/session"
	"screen-capture-extractor/src/singleinstance"
	"screen-capture-extractor/src/tray"
)

const appID = "io.github.screen-capture-extractor"

type mainOptions struct {
	envPath    string
	csvPath    string
	model      string
	ollamaHost string
	resultMode string
	debugDir   string
	skipPing   bool
	hidden     bool
}

func main() {
	// Ensure DPI awareness before creating any windows or querying metrics
	enableDPIAwareness()

	if err := newRootCmd(&mainOptions{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-capture-extractor",
		Short:         "Resident app: select a screen region, extract fields with a vision model, append them to a CSV table",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(cmd.Context(), *opts)
		},
	}
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to the .env file")
	cmd.Flags().StringVar(&opts.csvPath, "csv", "", "CSV table to append to (overrides CSV_PATH)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Vision model (overrides MODEL)")
	cmd.Flags().StringVar(&opts.ollamaHost, "host", "", "Ollama server URL (overrides OLLAMA_HOST)")
	cmd.Flags().StringVar(&opts.resultMode, "mode", "", "Result mode: auto or profile (overrides RESULT_MODE)")
	cmd.Flags().StringVar(&opts.debugDir, "debug-dir", "", "Save a copy of every captured image here")
	cmd.Flags().BoolVar(&opts.skipPing, "skip-ping", false, "Do not check the model server at startup")
	cmd.Flags().BoolVar(&opts.hidden, "hidden", false, "Start in the system tray without showing the window")
	return cmd
}

func (o mainOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		EnvPath:    o.envPath,
		CSVPath:    o.csvPath,
		Model:      o.model,
		OllamaHost: o.ollamaHost,
		ResultMode: o.resultMode,
	}
}

func runResident(ctx context.Context, opts mainOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: opts.loadOptions(),
		WithModel:   true,
		Ping:        !opts.skipPing,
		DebugDir:    opts.debugDir,
	})
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.Config

	detectCtx, detectCancel := context.WithTimeout(ctx, 2*time.Second)
	port, running := singleinstance.DetectResidentPort(detectCtx, rt.Ports())
	detectCancel()
	if running {
		return fmt.Errorf("already running on port %d", port)
	}

	a := app.NewWithID(appID)
	a.SetIcon(tray.Icon)

	var notifier session.ResultTarget
	if opts.hidden {
		notifier = notification.New(a)
	}

	var loop *eventloop.Loop
	trigger := func(action singleinstance.Action) func() {
		return func() { loop.Trigger(action) }
	}
	w := gui.New(a, rt.Store, cfg.Prompt, gui.Actions{
		Capture:    trigger(singleinstance.ActionCapture),
		QuickSave:  trigger(singleinstance.ActionQuick),
		RemoveLast: trigger(singleinstance.ActionRemoveLast),
	})
	loop = eventloop.New(eventloop.Options{
		Selector:        overlay.NewSelector(a),
		Pipeline:        rt.Pipeline(),
		Remover:         rt.Store,
		Prompt:          w.Prompt,
		UI:              w,
		Server:          singleinstance.NewServer(rt.Ports()),
		Deadline:        rt.Deadline(),
		CopyToClipboard: cfg.CopyToClipboard,
		Notify:          notifier,
	})

	hasTray := tray.Setup(a, tray.Config{
		Hotkey:          cfg.Hotkey,
		QuickSaveHotkey: cfg.QuickSaveHotkey,
		OnShow:          w.Show,
		OnCapture:       trigger(singleinstance.ActionCapture),
		OnQuickSave:     trigger(singleinstance.ActionQuick),
		OnRemoveLast:    trigger(singleinstance.ActionRemoveLast),
	})

	err = hotkey.Listen(
		hotkey.Binding{Combo: cfg.Hotkey, Action: trigger(singleinstance.ActionCapture)},
		hotkey.Binding{Combo: cfg.QuickSaveHotkey, Action: trigger(singleinstance.ActionQuick)},
	)
	if err != nil {
		log.Error().Err(err).Msg("global hotkeys disabled")
		w.Status("Hotkeys disabled: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer fyne.Do(a.Quit)
		err := loop.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("event loop stopped")
			return err
		}
		return nil
	})
	g.Go(func() error {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	log.Info().
		Str("hotkey", cfg.Hotkey).
		Str("quick_save_hotkey", cfg.QuickSaveHotkey).
		Str("csv", cfg.CSVPath).
		Msg("resident started")
	w.Status(readyMessage(cfg))

	if opts.hidden && hasTray {
		a.Run()
	} else {
		w.ShowAndRun()
	}

	cancel()
	return g.Wait()
}

func readyMessage(cfg *config.Config) string {
	var keys []string
	if cfg.Hotkey != "" {
		keys = append(keys, cfg.Hotkey+" captures")
	}
	if cfg.QuickSaveHotkey != "" {
		keys = append(keys, cfg.QuickSaveHotkey+" re-captures the last region")
	}
	msg := fmt.Sprintf("Ready. Saving to %s with %s.", cfg.CSVPath, cfg.Model)
	if len(keys) > 0 {
		msg += " " + strings.Join(keys, ", ") + "."
	}
	return msg
}
