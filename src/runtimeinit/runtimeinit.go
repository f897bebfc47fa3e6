package runtimeinit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"screen-capture-extractor/src/clipboard"
	"screen-capture-extractor/src/config"
	"screen-capture-extractor/src/extract"
	"screen-capture-extractor/src/llm"
	"screen-capture-extractor/src/logutil"
	"screen-capture-extractor/src/record"
	"screen-capture-extractor/src/session"
	"screen-capture-extractor/src/singleinstance"
	"screen-capture-extractor/src/table"
)

const pingTimeout = 10 * time.Second

type Options struct {
	LoadOptions config.LoadOptions
	// SetupLogging replaces the default file logging setup.
	SetupLogging func(cfg *config.Config) io.Closer
	// WithModel creates the model client; Ping additionally checks it is reachable.
	WithModel bool
	Ping      bool
	// Clipboard fails the bootstrap when the clipboard cannot be initialized.
	Clipboard bool
	// DebugDir receives a copy of every image sent to the model.
	DebugDir string
	Fs       afero.Fs
}

// Runtime is everything the commands and the resident app share.
type Runtime struct {
	Config    *config.Config
	Client    *llm.Client
	Extractor extract.Extractor
	Store     *table.Store
	Mode      record.Mode

	closer io.Closer
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	rt := &Runtime{Config: cfg}
	if opts.SetupLogging != nil {
		rt.closer = opts.SetupLogging(cfg)
	} else {
		rt.closer = logutil.Setup(cfg.EnableFileLogging, cfg.LogMaxSize)
	}
	if cfg.EnvPath != "" {
		log.Info().Str("path", cfg.EnvPath).Msg("loaded env file")
	}

	mode, err := record.ParseMode(cfg.ResultMode)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Mode = mode

	if opts.Fs == nil {
		rt.Store = table.NewStore(afero.NewOsFs(), cfg.CSVPath).WithFileLock(table.DefaultLockTimeout)
	} else {
		rt.Store = table.NewStore(opts.Fs, cfg.CSVPath)
	}

	if opts.WithModel || opts.Ping {
		rt.Client, err = llm.New(llm.Config{
			Host:         cfg.OllamaHost,
			Model:        cfg.Model,
			SystemPrompt: cfg.SystemPrompt,
			NumPredict:   cfg.NumPredict,
			FormatJSON:   cfg.FormatJSON,
			Retries:      cfg.ExtractRetries,
		})
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Extractor = extract.Extractor{Model: rt.Client, MaxImageSize: cfg.MaxImageSize, DebugDir: opts.DebugDir}
	}

	if opts.Ping {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := rt.Client.Ping(pingCtx)
		cancel()
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		log.Info().Str("host", rt.Client.Host()).Str("model", rt.Client.Model()).Msg("model ping succeeded")
	}

	if opts.Clipboard || cfg.CopyToClipboard {
		if err := clipboard.Init(); err != nil {
			if opts.Clipboard {
				rt.Close()
				return nil, fmt.Errorf("failed to initialize clipboard: %w", err)
			}
			log.Warn().Err(err).Msg("clipboard unavailable, results will not be copied")
			cfg.CopyToClipboard = false
		}
	}

	log.Info().
		Str("csv", cfg.CSVPath).
		Str("model", cfg.Model).
		Str("mode", string(mode)).
		Int("deadline_sec", cfg.ExtractDeadlineSec).
		Msg("runtime initialized")
	return rt, nil
}

// Pipeline wires the extractor to the table store.
func (r *Runtime) Pipeline() session.Pipeline {
	return session.Pipeline{Extract: r.Extractor.FromImage, Store: r.Store, Mode: r.Mode}
}

func (r *Runtime) Deadline() time.Duration {
	return time.Duration(r.Config.ExtractDeadlineSec) * time.Second
}

func (r *Runtime) Ports() singleinstance.PortRange {
	return singleinstance.PortRange{Start: r.Config.PortStart, End: r.Config.PortEnd}
}

// Close releases the log file.
func (r *Runtime) Close() {
	if r.closer != nil {
		_ = r.closer.Close()
		r.closer = nil
	}
}
