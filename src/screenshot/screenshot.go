package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/kbinani/screenshot"
)

var (
	ErrNoDisplay        = errors.New("no active displays found")
	ErrInvalidRegion    = errors.New("invalid region")
	ErrUnsupportedImage = errors.New("unsupported image format (expected PNG or JPEG)")
	ErrImageTooLarge    = errors.New("image too large")
)

// JPEGQuality is used for everything sent to the model.
const JPEGQuality = 90

// Region is a rectangle in virtual-screen coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// RegionFromCorners builds a region from two opposite corners given in any order.
func RegionFromCorners(x0, y0, x1, y1 int) Region {
	left, right := min(x0, x1), max(x0, x1)
	top, bottom := min(y0, y1), max(y0, y1)
	return Region{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// ParseRegion reads "x,y,width,height".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, fmt.Errorf("%w: %q (expected x,y,width,height)", ErrInvalidRegion, s)
	}
	var n [4]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, fmt.Errorf("%w: %q: %v", ErrInvalidRegion, s, err)
		}
		n[i] = v
	}
	r := Region{X: n[0], Y: n[1], Width: n[2], Height: n[3]}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidRegion, r.Width, r.Height)
	}
	return nil
}

func (r Region) IsZero() bool { return r == Region{} }

func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height)
}

// VirtualBounds returns the union of all active display bounds.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, ErrNoDisplay
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// CaptureDisplay captures the entire virtual screen across all active displays.
// The selector paints it as its background.
func CaptureDisplay() (*image.RGBA, error) {
	union, err := VirtualBounds()
	if err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screen: %w", err)
	}
	return img, nil
}

// CaptureRegion captures region and returns it JPEG encoded.
func CaptureRegion(region Region) ([]byte, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(region.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", region, err)
	}
	return EncodeJPEG(img)
}

func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image as JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// ValidateImage checks that data is a PNG or JPEG no larger than maxSize.
// A zero maxSize disables the size check.
func ValidateImage(data []byte, maxSize datasize.ByteSize) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty", ErrUnsupportedImage)
	}
	if maxSize > 0 && datasize.ByteSize(len(data)) > maxSize {
		return fmt.Errorf("%w: %s exceeds %s", ErrImageTooLarge,
			datasize.ByteSize(len(data)).HumanReadable(), maxSize.HumanReadable())
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "png" && format != "jpeg" {
		return fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
	return nil
}
