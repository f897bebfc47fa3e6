package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"screen-capture-extractor/src/runtimeinit"
	"screen-capture-extractor/src/screenshot"
	"screen-capture-extractor/src/session"
)

type saveOptions struct {
	imagePath  string
	region     string
	prompt     string
	promptFile string
	jsonOutput bool
	copy       bool
	debugDir   string
}

func newSaveCmd(root *cliOptions, e *env) *cobra.Command {
	opts := &saveOptions{}
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Extract fields from an image file or a screen region and append them to the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(cmd.Context(), root, e, *opts)
		},
	}
	cmd.Flags().StringVar(&opts.imagePath, "image", "", "PNG or JPEG file to extract from (use '-' for stdin)")
	cmd.Flags().StringVar(&opts.region, "region", "", "Screen region to capture: x,y,width,height")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "Prompt (defaults to PROMPT from the env file)")
	cmd.Flags().StringVar(&opts.promptFile, "prompt-file", "", "Read the prompt from a file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the saved rows as JSON instead of a status line")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "Also copy the saved rows to the clipboard")
	cmd.Flags().StringVar(&opts.debugDir, "debug-dir", "", "Save a copy of the image sent to the model here")
	cmd.MarkFlagsMutuallyExclusive("image", "region")
	cmd.MarkFlagsOneRequired("image", "region")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompt-file")
	return cmd
}

func runSave(ctx context.Context, root *cliOptions, e *env, opts saveOptions) error {
	var region screenshot.Region
	if opts.region != "" {
		r, err := screenshot.ParseRegion(opts.region)
		if err != nil {
			return err
		}
		region = r
	}

	rt, err := root.bootstrap(ctx, e, runtimeinit.Options{
		WithModel: true,
		Clipboard: opts.copy,
		DebugDir:  opts.debugDir,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	prompt, err := resolvePrompt(e.fs, opts, rt.Config.Prompt)
	if err != nil {
		return err
	}

	pipeline := rt.Pipeline()
	if e.extract != nil {
		pipeline.Extract = e.extract
	}
	target := session.Targets{session.StdoutTarget{Writer: e.stdout, JSON: opts.jsonOutput}}
	if opts.copy {
		target = append(target, session.ClipboardTarget{})
	}

	if opts.imagePath == "" {
		_, err := session.Execute(ctx, session.Options{
			Deadline: rt.Deadline(),
			Prompt:   prompt,
			Region:   region,
			Capture:  e.capture,
			Pipeline: pipeline,
			Target:   target,
		})
		return err
	}

	image, err := readImage(e, opts.imagePath)
	if err != nil {
		return err
	}
	if err := screenshot.ValidateImage(image, rt.Config.MaxImageSize); err != nil {
		return err
	}
	log.Debug().Str("source", opts.imagePath).Int("bytes", len(image)).Msg("read image")

	jobCtx, cancel := context.WithTimeout(ctx, rt.Deadline())
	defer cancel()
	saved, err := pipeline.Save(jobCtx, image, prompt)
	if err != nil {
		_ = target.OnFailure(err)
		return err
	}
	return target.OnSuccess(saved)
}

func resolvePrompt(fs afero.Fs, opts saveOptions, fallback string) (string, error) {
	prompt := opts.prompt
	if opts.promptFile != "" {
		data, err := afero.ReadFile(fs, opts.promptFile)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = fallback
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w (pass --prompt or set PROMPT)", session.ErrEmptyPrompt)
	}
	return strings.TrimSpace(prompt), nil
}

func readImage(e *env, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(e.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		return data, nil
	}
	data, err := afero.ReadFile(e.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}
