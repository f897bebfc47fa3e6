package main

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"screen-capture-extractor/src/config"
	"screen-capture-extractor/src/logutil"
	"screen-capture-extractor/src/runtimeinit"
	"screen-capture-extractor/src/session"
)

type cliOptions struct {
	envPath    string
	csvPath    string
	model      string
	ollamaHost string
	resultMode string
	verbose    bool
}

// env is what the commands read from and write to.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	fs     afero.Fs

	// extract and capture replace the model call and the screen grab in tests.
	extract session.ExtractFunc
	capture session.CaptureFunc
}

func defaultEnv() *env {
	return &env{
		stdin:  os.Stdin,
		stdout: color.Output,
		stderr: color.Error,
		fs:     afero.NewOsFs(),
	}
}

func main() {
	if err := run(); err != nil {
		color.New(color.FgRed).Fprintf(color.Error, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), defaultEnv())
}

func runWithArgs(args []string, e *env) error {
	if len(args) == 0 {
		args = []string{"extractor"}
	}
	cmd := newRootCmd(&cliOptions{}, e)
	cmd.SetArgs(args[1:])
	cmd.SetIn(e.stdin)
	cmd.SetOut(e.stdout)
	cmd.SetErr(e.stderr)
	return cmd.ExecuteContext(context.Background())
}

func newRootCmd(opts *cliOptions, e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "extractor",
		Short:         "Extract structured fields from screenshots into a CSV table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.envPath, "env", "", "Path to the .env file")
	flags.StringVar(&opts.csvPath, "csv", "", "CSV table (overrides CSV_PATH)")
	flags.StringVar(&opts.model, "model", "", "Vision model (overrides MODEL)")
	flags.StringVar(&opts.ollamaHost, "host", "", "Ollama server URL (overrides OLLAMA_HOST)")
	flags.StringVar(&opts.resultMode, "mode", "", "Result mode: auto or profile (overrides RESULT_MODE)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")

	cmd.AddCommand(
		newSaveCmd(opts, e),
		newRemoveLastCmd(opts, e),
		newTriggerCmd(opts, e),
		newPingCmd(opts, e),
		newShowCmd(opts, e),
	)
	return cmd
}

func (o *cliOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{
		EnvPath:    o.envPath,
		CSVPath:    o.csvPath,
		Model:      o.model,
		OllamaHost: o.ollamaHost,
		ResultMode: o.resultMode,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// bootstrap loads the configuration. Logs go to stderr in verbose mode and nowhere otherwise.
func (o *cliOptions) bootstrap(ctx context.Context, e *env, opts runtimeinit.Options) (*runtimeinit.Runtime, error) {
	opts.LoadOptions = o.loadOptions()
	opts.Fs = e.fs
	opts.SetupLogging = func(*config.Config) io.Closer {
		if o.verbose {
			logutil.SetupConsole(e.stderr, zerolog.DebugLevel)
		} else {
			logutil.SetupConsole(io.Discard, zerolog.Disabled)
		}
		return nopCloser{}
	}
	return runtimeinit.Bootstrap(ctx, opts)
}

// normalizeLegacyArgs accepts single-dash long flags ("-csv x") as used by older scripts.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}
		name, _, _ := strings.Cut(arg[1:], "=")
		if legacyFlags[name] {
			normalized[i] = "-" + arg
		}
	}

	return normalized
}

var legacyFlags = map[string]bool{
	"env": true, "csv": true, "model": true, "host": true, "mode": true, "verbose": true,
	"image": true, "region": true, "prompt": true, "prompt-file": true, "json": true,
	"copy": true, "debug-dir": true, "stdout": true, "tail": true,
}
