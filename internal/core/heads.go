package core

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"

	"bovine-backend/internal/taxonomy"
)

// breedBranchFilters is the channel width of the breed-specialized
// convolutional branch.
const breedBranchFilters = 256

// untrainedSeed fixes the fallback weight initialization so that an
// untrained server is at least deterministic across restarts.
const untrainedSeed = 42

// denseLayer is a fully connected layer: out = W*x + b.
type denseLayer struct {
	Weights [][]float32 `json:"weights"` // [out][in]
	Bias    []float32   `json:"bias"`
}

func (l *denseLayer) forward(x []float32, relu bool) ([]float32, error) {
	out := make([]float32, len(l.Bias))
	for i, row := range l.Weights {
		if len(row) != len(x) {
			return nil, fmt.Errorf("dense layer expects %d inputs, got %d", len(row), len(x))
		}
		sum := l.Bias[i]
		for j, w := range row {
			sum += w * x[j]
		}
		if relu && sum < 0 {
			sum = 0
		}
		out[i] = sum
	}
	return out, nil
}

// convLayer is a 3x3 same-padding convolution followed by ReLU.
type convLayer struct {
	Kernels [][]float32 `json:"kernels"` // [filters][inChannels*3*3]
	Bias    []float32   `json:"bias"`
}

func (l *convLayer) forward(f FeatureMap) (FeatureMap, error) {
	filters := len(l.Bias)
	kernelLen := f.Channels * 9
	out := make([]float32, filters*f.Height*f.Width)
	for o := 0; o < filters; o++ {
		k := l.Kernels[o]
		if len(k) != kernelLen {
			return FeatureMap{}, fmt.Errorf("conv kernel expects %d weights, got %d", kernelLen, len(k))
		}
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				sum := l.Bias[o]
				for c := 0; c < f.Channels; c++ {
					for dy := -1; dy <= 1; dy++ {
						yy := y + dy
						if yy < 0 || yy >= f.Height {
							continue
						}
						for dx := -1; dx <= 1; dx++ {
							xx := x + dx
							if xx < 0 || xx >= f.Width {
								continue
							}
							sum += k[(c*3+dy+1)*3+dx+1] * f.At(c, yy, xx)
						}
					}
				}
				if sum < 0 {
					sum = 0
				}
				out[(o*f.Height+y)*f.Width+x] = sum
			}
		}
	}
	return FeatureMap{Data: out, Channels: filters, Height: f.Height, Width: f.Width}, nil
}

func softmax(x []float32) []float32 {
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	exps := make([]float64, len(x))
	var sum float64
	for i, v := range x {
		e := math.Exp(float64(v - max))
		exps[i] = e
		sum += e
	}
	out := make([]float32, len(x))
	for i, e := range exps {
		out[i] = float32(e / sum)
	}
	return out
}

func concat(a, b []float32) []float32 {
	out := make([]float32, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

type headWeights struct {
	BreedBranch convLayer    `json:"breed_branch"`
	AnimalType  []denseLayer `json:"animal_type"`
	Breed       []denseLayer `json:"breed"`
	Age         []denseLayer `json:"age"`
	Gender      []denseLayer `json:"gender"`
	Health      []denseLayer `json:"health"`
}

// HeadEnsemble holds the five task classifiers plus the breed feature
// branch they partially share. Each head is a pure function over the
// pooled features; no head reads another head's output.
type HeadEnsemble struct {
	weights   headWeights
	untrained bool
}

// headInput carries the two pooled feature vectors the heads draw from.
type headInput struct {
	global []float32
	breed  []float32
}

func (e *HeadEnsemble) scorers() map[taxonomy.Task]func(headInput) ([]float32, error) {
	return map[taxonomy.Task]func(headInput) ([]float32, error){
		taxonomy.TaskAnimalType: func(in headInput) ([]float32, error) {
			return runHead(e.weights.AnimalType, in.global)
		},
		taxonomy.TaskBreed: func(in headInput) ([]float32, error) {
			return runHead(e.weights.Breed, in.breed)
		},
		taxonomy.TaskAge: func(in headInput) ([]float32, error) {
			return runHead(e.weights.Age, concat(in.global, in.breed))
		},
		taxonomy.TaskGender: func(in headInput) ([]float32, error) {
			return runHead(e.weights.Gender, concat(in.global, in.breed))
		},
		taxonomy.TaskHealth: func(in headInput) ([]float32, error) {
			return runHead(e.weights.Health, concat(in.global, in.breed))
		},
	}
}

// runHead applies the dense stack with ReLU on hidden layers and softmax
// on the output, so every head yields a probability simplex.
func runHead(layers []denseLayer, x []float32) ([]float32, error) {
	h := x
	for i := range layers {
		var err error
		h, err = layers[i].forward(h, i < len(layers)-1)
		if err != nil {
			return nil, err
		}
	}
	return softmax(h), nil
}

// Score runs every task head over the shared feature map. The backbone
// features are pooled once and the breed branch is computed once; both are
// then reused across heads.
func (e *HeadEnsemble) Score(features FeatureMap) (map[taxonomy.Task][]float32, error) {
	branch, err := e.weights.BreedBranch.forward(features)
	if err != nil {
		return nil, fmt.Errorf("breed branch: %w", err)
	}
	in := headInput{
		global: features.GlobalAvgPool(),
		breed:  branch.GlobalAvgPool(),
	}

	out := make(map[taxonomy.Task][]float32, len(taxonomy.Tasks))
	for task, score := range e.scorers() {
		v, err := score(in)
		if err != nil {
			return nil, fmt.Errorf("%s head: %w", task, err)
		}
		out[task] = v
	}
	return out, nil
}

// Untrained reports whether the ensemble is running on fallback weights.
// Predictions from an untrained ensemble carry no meaning.
func (e *HeadEnsemble) Untrained() bool { return e.untrained }

// LoadHeadEnsemble reads head weights from a JSON artifact. A missing file
// falls back to deterministic untrained weights; callers are expected to
// surface that condition rather than hide it.
func LoadHeadEnsemble(path string, channels int) (*HeadEnsemble, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewUntrainedHeadEnsemble(channels), nil
		}
		return nil, fmt.Errorf("read head weights: %w", err)
	}
	var w headWeights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse head weights: %w", err)
	}
	return &HeadEnsemble{weights: w}, nil
}

// NewUntrainedHeadEnsemble builds the head topology with seeded Glorot
// weights. channels is the backbone's pooled feature width.
func NewUntrainedHeadEnsemble(channels int) *HeadEnsemble {
	rng := rand.New(rand.NewSource(untrainedSeed))
	combined := channels + breedBranchFilters
	w := headWeights{
		BreedBranch: initConv(rng, channels, breedBranchFilters),
		AnimalType:  initHead(rng, channels, 64, taxonomy.NumLabels(taxonomy.TaskAnimalType)),
		Breed:       initHead(rng, breedBranchFilters, 512, 256, taxonomy.NumLabels(taxonomy.TaskBreed)),
		Age:         initHead(rng, combined, 128, taxonomy.NumLabels(taxonomy.TaskAge)),
		Gender:      initHead(rng, combined, 64, taxonomy.NumLabels(taxonomy.TaskGender)),
		Health:      initHead(rng, combined, 128, taxonomy.NumLabels(taxonomy.TaskHealth)),
	}
	return &HeadEnsemble{weights: w, untrained: true}
}

func initHead(rng *rand.Rand, in int, dims ...int) []denseLayer {
	layers := make([]denseLayer, len(dims))
	for i, out := range dims {
		layers[i] = initDense(rng, in, out)
		in = out
	}
	return layers
}

func initDense(rng *rand.Rand, in, out int) denseLayer {
	limit := float32(math.Sqrt(6.0 / float64(in+out)))
	l := denseLayer{Weights: make([][]float32, out), Bias: make([]float32, out)}
	for i := range l.Weights {
		row := make([]float32, in)
		for j := range row {
			row[j] = (rng.Float32()*2 - 1) * limit
		}
		l.Weights[i] = row
	}
	return l
}

func initConv(rng *rand.Rand, inChannels, filters int) convLayer {
	kernelLen := inChannels * 9
	limit := float32(math.Sqrt(6.0 / float64(kernelLen+filters)))
	l := convLayer{Kernels: make([][]float32, filters), Bias: make([]float32, filters)}
	for i := range l.Kernels {
		k := make([]float32, kernelLen)
		for j := range k {
			k[j] = (rng.Float32()*2 - 1) * limit
		}
		l.Kernels[i] = k
	}
	return l
}
