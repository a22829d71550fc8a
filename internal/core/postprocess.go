package core

import (
	"fmt"
	"sort"

	"bovine-backend/internal/taxonomy"
	"bovine-backend/pkg/api"
)

const (
	LevelHigh      = "high"
	LevelMedium    = "medium"
	LevelLow       = "low"
	LevelUncertain = "uncertain"
)

// lowQualitySuggestion is attached to breed results in the uncertain band.
const lowQualitySuggestion = "Image quality may be poor or animal pose may not be optimal for classification"

// ConfidenceLevel buckets a raw confidence score. Bands are closed on the
// lower bound and evaluated in descending order, so the exact threshold
// values map to the higher band.
func ConfidenceLevel(confidence float32) string {
	switch {
	case confidence >= taxonomy.HighConfidence:
		return LevelHigh
	case confidence >= taxonomy.MediumConfidence:
		return LevelMedium
	case confidence >= taxonomy.LowConfidence:
		return LevelLow
	default:
		return LevelUncertain
	}
}

// argmax returns the index of the maximum value, keeping the lowest index
// on ties.
func argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// Enrich converts raw per-task probability distributions into ranked,
// confidence-banded results. It is pure: no model invocation, no side
// effects.
func Enrich(raw map[taxonomy.Task][]float32) (map[string]api.TaskResult, error) {
	out := make(map[string]api.TaskResult, len(raw))
	for task, vector := range raw {
		labels := taxonomy.Labels(task)
		if len(labels) == 0 {
			return nil, fmt.Errorf("unknown task %q", task)
		}
		if len(vector) != len(labels) {
			return nil, fmt.Errorf("%s head returned %d scores for %d labels", task, len(vector), len(labels))
		}

		idx := argmax(vector)
		confidence := vector[idx]
		result := api.TaskResult{
			Prediction:      labels[idx],
			Confidence:      confidence,
			ConfidenceLevel: ConfidenceLevel(confidence),
		}

		if task == taxonomy.TaskBreed {
			result.Top3 = topBreeds(vector, 3)
			needsVerification := confidence < taxonomy.HighConfidence
			result.NeedsVerification = &needsVerification
			if confidence < taxonomy.LowConfidence {
				result.Suggestion = lowQualitySuggestion
			}
		}

		out[string(task)] = result
	}
	return out, nil
}

// topBreeds returns the k highest-scoring breeds sorted descending,
// resolved through the taxonomy.
func topBreeds(v []float32, k int) []api.BreedScore {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] > v[idx[b]] })

	if k > len(idx) {
		k = len(idx)
	}
	top := make([]api.BreedScore, k)
	for i := 0; i < k; i++ {
		top[i] = api.BreedScore{Breed: taxonomy.BreedName(idx[i]), Confidence: v[idx[i]]}
	}
	return top
}
