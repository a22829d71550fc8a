package core

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// featureMapSize is the spatial size of the backbone's output feature map
// for a 224x224 input.
const featureMapSize = 7

// FeatureMap holds the backbone's convolutional features for one image,
// channels-first.
type FeatureMap struct {
	Data     []float32
	Channels int
	Height   int
	Width    int
}

func (f FeatureMap) At(c, y, x int) float32 {
	return f.Data[(c*f.Height+y)*f.Width+x]
}

// GlobalAvgPool reduces each channel plane to its mean, producing the
// pooled feature vector shared by the task heads.
func (f FeatureMap) GlobalAvgPool() []float32 {
	pooled := make([]float32, f.Channels)
	plane := f.Height * f.Width
	for c := 0; c < f.Channels; c++ {
		var sum float32
		for i := 0; i < plane; i++ {
			sum += f.Data[c*plane+i]
		}
		pooled[c] = sum / float32(plane)
	}
	return pooled
}

// FeatureExtractor produces the shared visual features every task head
// consumes. Extraction cost is paid once per image regardless of how many
// heads read the result.
type FeatureExtractor interface {
	Extract(tensor ImageTensor) (FeatureMap, error)
	Channels() int
}

// OnnxBackbone runs the exported backbone network through ONNX Runtime.
// Tensors are created per call; Run is serialized since the runtime build
// in use is not guaranteed re-entrant.
type OnnxBackbone struct {
	mu       sync.Mutex
	session  *ort.DynamicAdvancedSession
	channels int
}

func LoadOnnxBackbone(path string, channels int) (*OnnxBackbone, error) {
	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{"image"}, []string{"features"}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create backbone session: %w", err)
	}
	return &OnnxBackbone{session: session, channels: channels}, nil
}

func (b *OnnxBackbone) Extract(tensor ImageTensor) (FeatureMap, error) {
	if len(tensor.Data) != tensorLen {
		return FeatureMap{}, fmt.Errorf("%w: tensor has %d values, want %d", ErrInvalidImage, len(tensor.Data), tensorLen)
	}

	inT, err := ort.NewTensor(ort.NewShape(1, numChannels, inputSize, inputSize), tensor.Data)
	if err != nil {
		return FeatureMap{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inT.Destroy()

	outT, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(b.channels), featureMapSize, featureMapSize))
	if err != nil {
		return FeatureMap{}, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outT.Destroy()

	b.mu.Lock()
	err = b.session.Run([]ort.Value{inT}, []ort.Value{outT})
	b.mu.Unlock()
	if err != nil {
		return FeatureMap{}, fmt.Errorf("backbone run error: %w", err)
	}

	data := make([]float32, len(outT.GetData()))
	copy(data, outT.GetData())
	return FeatureMap{
		Data:     data,
		Channels: b.channels,
		Height:   featureMapSize,
		Width:    featureMapSize,
	}, nil
}

func (b *OnnxBackbone) Channels() int { return b.channels }

func (b *OnnxBackbone) Close() {
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
}
