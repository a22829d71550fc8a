package core

import (
	"testing"

	"bovine-backend/internal/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceLevel(t *testing.T) {
	tests := []struct {
		confidence float32
		want       string
	}{
		{0.99, LevelHigh},
		{0.85, LevelHigh}, // boundary maps to the higher band
		{0.8499, LevelMedium},
		{0.70, LevelMedium},
		{0.65, LevelMedium},
		{0.6499, LevelLow},
		{0.50, LevelLow},
		{0.45, LevelLow},
		{0.4499, LevelUncertain},
		{0.10, LevelUncertain},
		{0.0, LevelUncertain},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceLevel(tt.confidence), "confidence %v", tt.confidence)
	}
}

// breedVector builds a uniform low-score breed distribution with the given
// index boosted to peak. Remaining mass is spread over the other labels.
func breedVector(peakIdx int, peak float32) []float32 {
	n := taxonomy.NumBreeds()
	v := make([]float32, n)
	rest := (1 - peak) / float32(n-1)
	for i := range v {
		v[i] = rest
	}
	v[peakIdx] = peak
	return v
}

func TestEnrichHighConfidenceBreed(t *testing.T) {
	gir := taxonomy.BreedIndex("Gir")
	require.GreaterOrEqual(t, gir, 0)

	raw := map[taxonomy.Task][]float32{
		taxonomy.TaskBreed: breedVector(gir, 0.91),
	}

	enriched, err := Enrich(raw)
	require.NoError(t, err)

	breed := enriched["breed"]
	assert.Equal(t, "Gir", breed.Prediction)
	assert.InDelta(t, 0.91, breed.Confidence, 1e-6)
	assert.Equal(t, LevelHigh, breed.ConfidenceLevel)
	require.NotNil(t, breed.NeedsVerification)
	assert.False(t, *breed.NeedsVerification)
	assert.Empty(t, breed.Suggestion)

	require.Len(t, breed.Top3, 3)
	assert.Equal(t, "Gir", breed.Top3[0].Breed)
}

func TestEnrichMediumConfidenceNeedsVerification(t *testing.T) {
	raw := map[taxonomy.Task][]float32{
		taxonomy.TaskBreed: breedVector(0, 0.5),
	}

	enriched, err := Enrich(raw)
	require.NoError(t, err)

	breed := enriched["breed"]
	assert.Equal(t, LevelLow, breed.ConfidenceLevel)
	require.NotNil(t, breed.NeedsVerification)
	assert.True(t, *breed.NeedsVerification)
	assert.Empty(t, breed.Suggestion, "suggestion only below the low-confidence threshold")
}

func TestEnrichUncertainBreedGetsSuggestion(t *testing.T) {
	raw := map[taxonomy.Task][]float32{
		taxonomy.TaskBreed: breedVector(3, 0.30),
	}

	enriched, err := Enrich(raw)
	require.NoError(t, err)

	breed := enriched["breed"]
	assert.Equal(t, LevelUncertain, breed.ConfidenceLevel)
	require.NotNil(t, breed.NeedsVerification)
	assert.True(t, *breed.NeedsVerification)
	assert.Equal(t, lowQualitySuggestion, breed.Suggestion)
}

func TestEnrichTop3SortedDescending(t *testing.T) {
	v := breedVector(10, 0.6)
	v[20] = 0.2
	v[30] = 0.1

	enriched, err := Enrich(map[taxonomy.Task][]float32{taxonomy.TaskBreed: v})
	require.NoError(t, err)

	top := enriched["breed"].Top3
	require.Len(t, top, 3)
	assert.Equal(t, taxonomy.BreedName(10), top[0].Breed)
	assert.Equal(t, taxonomy.BreedName(20), top[1].Breed)
	assert.Equal(t, taxonomy.BreedName(30), top[2].Breed)
	assert.GreaterOrEqual(t, top[0].Confidence, top[1].Confidence)
	assert.GreaterOrEqual(t, top[1].Confidence, top[2].Confidence)
}

func TestEnrichNonBreedTasks(t *testing.T) {
	raw := map[taxonomy.Task][]float32{
		taxonomy.TaskAnimalType: {0.9, 0.1},
		taxonomy.TaskAge:        {0.1, 0.7, 0.1, 0.1},
		taxonomy.TaskGender:     {0.4, 0.6},
		taxonomy.TaskHealth:     {0.2, 0.2, 0.6},
	}

	enriched, err := Enrich(raw)
	require.NoError(t, err)

	assert.Equal(t, "cattle", enriched["animal_type"].Prediction)
	assert.Equal(t, "adult", enriched["age"].Prediction)
	assert.Equal(t, "female", enriched["gender"].Prediction)
	assert.Equal(t, "poor", enriched["health"].Prediction)

	for task, result := range enriched {
		assert.Nil(t, result.Top3, "top_3 is breed-only, found on %s", task)
		assert.Nil(t, result.NeedsVerification, "needs_verification is breed-only, found on %s", task)
	}
}

func TestArgmaxTieBreaksLowestIndex(t *testing.T) {
	assert.Equal(t, 0, argmax([]float32{0.5, 0.5}))
	assert.Equal(t, 1, argmax([]float32{0.1, 0.45, 0.45}))
}

func TestEnrichRejectsWrongVectorLength(t *testing.T) {
	_, err := Enrich(map[taxonomy.Task][]float32{
		taxonomy.TaskGender: {0.2, 0.3, 0.5},
	})
	assert.Error(t, err)
}

func TestEnrichRejectsUnknownTask(t *testing.T) {
	_, err := Enrich(map[taxonomy.Task][]float32{
		taxonomy.Task("bogus"): {1.0},
	})
	assert.Error(t, err)
}
