package core

import (
	"math"
	"testing"

	"bovine-backend/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannels = 16

// testFeatures builds a deterministic non-uniform feature map.
func testFeatures(channels int) FeatureMap {
	data := make([]float32, channels*featureMapSize*featureMapSize)
	for i := range data {
		data[i] = float32((i*31)%97) / 97.0
	}
	return FeatureMap{Data: data, Channels: channels, Height: featureMapSize, Width: featureMapSize}
}

func TestSoftmax(t *testing.T) {
	out := softmax([]float32{0, 0})
	require.Len(t, out, 2)
	assert.InDelta(t, 0.5, out[0], 1e-6)
	assert.InDelta(t, 0.5, out[1], 1e-6)

	out = softmax([]float32{1, 2, 3})
	var sum float64
	for _, v := range out {
		sum += float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	assert.Greater(t, out[2], out[1])
	assert.Greater(t, out[1], out[0])

	// large logits must not overflow
	out = softmax([]float32{1000, 1001})
	assert.False(t, math.IsNaN(float64(out[0])))
	assert.Greater(t, out[1], out[0])
}

func TestDenseLayerForward(t *testing.T) {
	l := denseLayer{
		Weights: [][]float32{{1, 2}, {-1, 0}},
		Bias:    []float32{0.5, 1},
	}

	out, err := l.forward([]float32{1, 1}, false)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, out[0], 1e-6)
	assert.InDelta(t, 0.0, out[1], 1e-6)

	out, err = l.forward([]float32{2, 0}, true)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, out[0], 1e-6)
	assert.InDelta(t, 0.0, out[1], 1e-6, "relu clamps negatives")

	_, err = l.forward([]float32{1, 2, 3}, false)
	assert.Error(t, err)
}

func TestGlobalAvgPool(t *testing.T) {
	f := FeatureMap{
		Data:     []float32{1, 2, 3, 4, 10, 10, 10, 10},
		Channels: 2,
		Height:   2,
		Width:    2,
	}
	pooled := f.GlobalAvgPool()
	require.Len(t, pooled, 2)
	assert.InDelta(t, 2.5, pooled[0], 1e-6)
	assert.InDelta(t, 10.0, pooled[1], 1e-6)
}

func TestConvLayerKernelMismatch(t *testing.T) {
	l := convLayer{Kernels: [][]float32{{1, 2, 3}}, Bias: []float32{0}}
	_, err := l.forward(testFeatures(2))
	assert.Error(t, err)
}

func TestScoreProducesSimplexPerTask(t *testing.T) {
	ensemble := NewUntrainedHeadEnsemble(testChannels)
	scores, err := ensemble.Score(testFeatures(testChannels))
	require.NoError(t, err)
	require.Len(t, scores, len(taxonomy.Tasks))

	for _, task := range taxonomy.Tasks {
		vector, ok := scores[task]
		require.True(t, ok, "missing %s head output", task)
		assert.Len(t, vector, taxonomy.NumLabels(task), "task %s", task)

		var sum float64
		for _, v := range vector {
			assert.GreaterOrEqual(t, v, float32(0))
			sum += float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-5, "task %s distribution must sum to 1", task)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	ensemble := NewUntrainedHeadEnsemble(testChannels)
	features := testFeatures(testChannels)

	first, err := ensemble.Score(features)
	require.NoError(t, err)
	second, err := ensemble.Score(features)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestUntrainedEnsemblesShareSeed(t *testing.T) {
	a := NewUntrainedHeadEnsemble(testChannels)
	b := NewUntrainedHeadEnsemble(testChannels)
	assert.True(t, a.Untrained())
	assert.True(t, b.Untrained())

	features := testFeatures(testChannels)
	sa, err := a.Score(features)
	require.NoError(t, err)
	sb, err := b.Score(features)
	require.NoError(t, err)
	assert.Equal(t, sa, sb, "fallback init must be deterministic across instances")
}

func TestLoadHeadEnsembleMissingFileFallsBack(t *testing.T) {
	ensemble, err := LoadHeadEnsemble(t.TempDir()+"/heads.json", testChannels)
	require.NoError(t, err)
	assert.True(t, ensemble.Untrained())
}
