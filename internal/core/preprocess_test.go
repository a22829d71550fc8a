package core

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestNormalizeShapeAndRange(t *testing.T) {
	tensor := Normalize(solidImage(50, 30, color.RGBA{R: 120, G: 200, B: 40, A: 255}))
	require.Len(t, tensor.Data, 3*224*224)

	for i, v := range tensor.Data {
		require.GreaterOrEqual(t, v, float32(0), "value %d out of range", i)
		require.LessOrEqual(t, v, float32(1), "value %d out of range", i)
	}
}

func TestNormalizeChannelPlanes(t *testing.T) {
	// A solid color stays solid through resizing, so each plane should be
	// constant at the scaled channel value.
	tensor := Normalize(solidImage(64, 64, color.RGBA{R: 255, G: 0, B: 127, A: 255}))

	plane := 224 * 224
	assert.InDelta(t, 1.0, tensor.Data[0], 1e-3)
	assert.InDelta(t, 0.0, tensor.Data[plane], 1e-3)
	assert.InDelta(t, float64(127)/255.0, tensor.Data[2*plane], 1e-2)

	// spot-check plane uniformity
	assert.InDelta(t, tensor.Data[0], tensor.Data[plane-1], 1e-3)
	assert.InDelta(t, tensor.Data[plane], tensor.Data[2*plane-1], 1e-3)
}

func TestDecodeImagePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solidImage(8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255})))

	img, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	_, err := DecodeImage(strings.NewReader("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidImage)
}
