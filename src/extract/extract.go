package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/rs/zerolog/log"

	"screen-capture-extractor/src/logutil"
	"screen-capture-extractor/src/screenshot"
)

// Model is the vision model the extractor talks to.
type Model interface {
	Extract(ctx context.Context, image []byte, prompt string) (string, error)
}

// Extractor captures or validates images and asks the model for structured text.
type Extractor struct {
	Model        Model
	MaxImageSize datasize.ByteSize
	// DebugDir, when set, receives a copy of every image sent to the model.
	DebugDir string
}

// FromRegion captures region and extracts from the captured image.
func (e Extractor) FromRegion(ctx context.Context, region screenshot.Region, prompt string) (string, error) {
	log.Debug().Str("region", region.String()).Msg("capturing region")
	image, err := screenshot.CaptureRegion(region)
	if err != nil {
		return "", err
	}
	return e.FromImage(ctx, image, prompt)
}

// FromImage sends image (PNG or JPEG) and prompt to the model and returns its raw answer.
func (e Extractor) FromImage(ctx context.Context, image []byte, prompt string) (string, error) {
	if e.Model == nil {
		return "", fmt.Errorf("extractor has no model")
	}
	if err := screenshot.ValidateImage(image, e.MaxImageSize); err != nil {
		return "", err
	}
	e.saveDebugImage(image)

	text, err := e.Model.Extract(ctx, image, prompt)
	if err != nil {
		return "", err
	}
	log.Info().Str("output", logutil.Sanitize(text, 500)).Msg("raw model output")
	return text, nil
}

func (e Extractor) saveDebugImage(image []byte) {
	if e.DebugDir == "" {
		return
	}
	name := filepath.Join(e.DebugDir, fmt.Sprintf("capture_%s.img", time.Now().Format("20060102_150405.000")))
	if err := os.WriteFile(name, image, 0o600); err != nil {
		log.Warn().Err(err).Msg("could not save debug image")
		return
	}
	log.Debug().Str("path", name).Int("bytes", len(image)).Msg("saved debug image")
}
