package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion(" 10, -20 ,300,40")
	require.NoError(t, err)
	assert.Equal(t, Region{X: 10, Y: -20, Width: 300, Height: 40}, r)
	assert.Equal(t, "10,-20,300,40", r.String())
	assert.Equal(t, image.Rect(10, -20, 310, 20), r.Rect())

	for _, bad := range []string{"", "1,2,3", "a,b,c,d", "0,0,0,10", "0,0,10,-1"} {
		_, err := ParseRegion(bad)
		assert.ErrorIs(t, err, ErrInvalidRegion, bad)
	}
}

func TestRegionFromCorners(t *testing.T) {
	assert.Equal(t, Region{X: 5, Y: 2, Width: 10, Height: 8}, RegionFromCorners(15, 10, 5, 2))
	assert.True(t, RegionFromCorners(3, 3, 3, 3).Validate() != nil)
	assert.True(t, Region{}.IsZero())
}

func TestCaptureRegionRejectsEmptyRegion(t *testing.T) {
	_, err := CaptureRegion(Region{X: 0, Y: 0, Width: 0, Height: 0})
	assert.ErrorIs(t, err, ErrInvalidRegion)
}

func TestCaptureRegion(t *testing.T) {
	if _, err := VirtualBounds(); err != nil {
		t.Skipf("no display available: %v", err)
	}
	data, err := CaptureRegion(Region{X: 0, Y: 0, Width: 50, Height: 50})
	if err != nil {
		t.Skipf("capture failed (expected in headless environment): %v", err)
	}
	assert.NoError(t, ValidateImage(data, 0))
}

func TestEncodeAndValidateImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 100, A: 255})
		}
	}

	jpg, err := EncodeJPEG(img)
	require.NoError(t, err)
	assert.NoError(t, ValidateImage(jpg, datasize.MB))

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))
	assert.NoError(t, ValidateImage(pngBuf.Bytes(), 0))

	assert.ErrorIs(t, ValidateImage(jpg, datasize.ByteSize(10)), ErrImageTooLarge)
	assert.ErrorIs(t, ValidateImage([]byte("GIF89a...."), 0), ErrUnsupportedImage)
	assert.ErrorIs(t, ValidateImage(nil, 0), ErrUnsupportedImage)
}
