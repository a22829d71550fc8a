package core

import (
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"

	"bovine-backend/internal/taxonomy"
)

var (
	// ErrModelNotLoaded is returned when inference is requested before the
	// backbone and heads are constructed.
	ErrModelNotLoaded = errors.New("classification model not loaded")

	// ErrInvalidImage is returned when an input cannot be decoded or
	// normalized to the expected shape.
	ErrInvalidImage = errors.New("invalid image")
)

// Variant selects the backbone capacity tier.
type Variant string

const (
	VariantLightweight Variant = "lightweight"
	VariantBalanced    Variant = "balanced"
	VariantAccurate    Variant = "accurate"
)

// headsFile is the head-weight artifact expected next to the backbone.
const headsFile = "heads.json"

type variantSpec struct {
	backboneFile    string
	featureChannels int
	// tunableLayers is how many trailing backbone layers were left
	// unfrozen during training. Inference behavior is identical across
	// variants; this is recorded for the artifact contract only.
	tunableLayers int
}

var variants = map[Variant]variantSpec{
	VariantLightweight: {backboneFile: "backbone_b0.onnx", featureChannels: 1280, tunableLayers: 20},
	VariantBalanced:    {backboneFile: "backbone_b2.onnx", featureChannels: 1408, tunableLayers: 40},
	VariantAccurate:    {backboneFile: "backbone_b4.onnx", featureChannels: 1792, tunableLayers: 40},
}

// Classifier assembles the shared backbone and the five task heads into a
// single prediction pipeline. It is immutable after construction and safe
// for concurrent use.
type Classifier struct {
	backbone FeatureExtractor
	heads    *HeadEnsemble
	variant  Variant
}

func NewClassifier(backbone FeatureExtractor, heads *HeadEnsemble, variant Variant) *Classifier {
	return &Classifier{backbone: backbone, heads: heads, variant: variant}
}

func (c *Classifier) Variant() Variant { return c.variant }

// Untrained reports whether the classifier is serving fallback head
// weights.
func (c *Classifier) Untrained() bool {
	return c.heads != nil && c.heads.Untrained()
}

// Predict normalizes one image, runs the shared backbone once, then every
// task head, returning the raw per-task probability distributions.
func (c *Classifier) Predict(img image.Image) (map[taxonomy.Task][]float32, error) {
	if c == nil || c.backbone == nil || c.heads == nil {
		return nil, ErrModelNotLoaded
	}
	tensor := Normalize(img)
	features, err := c.backbone.Extract(tensor)
	if err != nil {
		return nil, err
	}
	return c.heads.Score(features)
}

// PredictReader decodes an encoded image from r and predicts. The model
// check runs before any decoding work.
func (c *Classifier) PredictReader(r io.Reader) (map[taxonomy.Task][]float32, error) {
	if c == nil || c.backbone == nil || c.heads == nil {
		return nil, ErrModelNotLoaded
	}
	img, err := DecodeImage(r)
	if err != nil {
		return nil, err
	}
	return c.Predict(img)
}

func (c *Classifier) Close() {
	if closer, ok := c.backbone.(interface{ Close() }); ok {
		closer.Close()
	}
}

// ClassifierLoader constructs a classifier from a model artifact directory.
type ClassifierLoader func(modelDir string) (*Classifier, error)

// NewClassifierLoaders returns a loader per variant, keyed the same way
// the serving configuration selects variants.
func NewClassifierLoaders() map[Variant]ClassifierLoader {
	loaders := make(map[Variant]ClassifierLoader, len(variants))
	for v := range variants {
		loaders[v] = func(modelDir string) (*Classifier, error) {
			return LoadClassifier(modelDir, v)
		}
	}
	return loaders
}

// LoadClassifier loads the backbone session and head weights for a variant
// from modelDir. A missing heads.json falls back to seeded untrained
// weights; a missing backbone is an error.
func LoadClassifier(modelDir string, variant Variant) (*Classifier, error) {
	spec, ok := variants[variant]
	if !ok {
		return nil, fmt.Errorf("unknown model variant %q", variant)
	}

	backbone, err := LoadOnnxBackbone(filepath.Join(modelDir, spec.backboneFile), spec.featureChannels)
	if err != nil {
		return nil, err
	}

	heads, err := LoadHeadEnsemble(filepath.Join(modelDir, headsFile), spec.featureChannels)
	if err != nil {
		backbone.Close()
		return nil, err
	}

	return NewClassifier(backbone, heads, variant), nil
}
