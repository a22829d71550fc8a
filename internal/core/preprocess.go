package core

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
)

const (
	inputSize   = 224
	numChannels = 3
)

// tensorLen is the flat length of one normalized input image.
const tensorLen = numChannels * inputSize * inputSize

// ImageTensor is a normalized image ready for the backbone: NCHW float32,
// 3 channels, 224x224, values in [0,1].
type ImageTensor struct {
	Data []float32
}

// DecodeImage reads an encoded image (jpeg, png or bmp) from r.
func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Normalize converts an image to the backbone input format: 3-channel
// color, resized to 224x224, pixel values scaled to [0,1], channel planes
// laid out contiguously.
func Normalize(img image.Image) ImageTensor {
	resized := resize.Resize(inputSize, inputSize, img, resize.Lanczos3)

	data := make([]float32, tensorLen)
	plane := inputSize * inputSize
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			i := y*inputSize + x
			data[i] = float32(r) / 65535.0
			data[plane+i] = float32(g) / 65535.0
			data[2*plane+i] = float32(b) / 65535.0
		}
	}
	return ImageTensor{Data: data}
}
