// Package taxonomy holds the fixed label tables for every classification
// task. All index-to-label resolution in the backend goes through this
// package; the breed index space is the concatenation of the cattle list
// followed by the buffalo list, so index order is part of the model's
// output contract and must never change.
package taxonomy

// Task identifies one of the five classification heads.
type Task string

const (
	TaskAnimalType Task = "animal_type"
	TaskBreed      Task = "breed"
	TaskAge        Task = "age"
	TaskGender     Task = "gender"
	TaskHealth     Task = "health"
)

// Tasks lists every head in a fixed order.
var Tasks = []Task{TaskAnimalType, TaskBreed, TaskAge, TaskGender, TaskHealth}

// Confidence band thresholds. Bands are closed on the lower bound and
// evaluated in descending order.
const (
	HighConfidence   float32 = 0.85
	MediumConfidence float32 = 0.65
	LowConfidence    float32 = 0.45
)

var cattleBreeds = []string{
	"Amritmahal", "Bachaur", "Bargur", "Dangi", "Deoni", "Gaolao", "Gir",
	"Hallikar", "Hariana", "Kangayam", "Kankrej", "Kherigarh", "Khillari",
	"Krishna Valley", "Malnad Gidda", "Malvi", "Mewati", "Nagori", "Nellore",
	"Nimari", "Ongole", "Ponwar", "Pulikulam", "Rathi", "Red Kandhari",
	"Red Sindhi", "Sahiwal", "Siri", "Tharparkar", "Umblachery", "Vechur",
	"Alambadi", "Belahi", "Binjharpuri", "Gangatiri", "Gobra", "Kachcha",
	"Kenwariya", "Kosali", "Lohani", "Mandvi", "Nagauri", "Palamedu",
	"Punganur", "Vadiya",
}

var buffaloBreeds = []string{
	"Bhadawari", "Jaffarabadi", "Mehsana", "Murrah", "Nili-Ravi",
	"Pandharpuri", "Surti", "Toda", "Kalahandi", "Marathwada", "Nagpuri",
	"Godavari", "Chilika", "Dibrugarh", "Jerangi", "Lakhimi",
	"Swamp Buffalo", "Tarai", "Banni", "Gojri", "Kundi", "Lime", "Manda",
	"Manipuri", "Sambalpuri", "Chhattisgarhi", "Dharwadi", "Ellichpur",
}

var animalTypes = []string{"cattle", "buffalo"}

var ageBrackets = []string{"young", "adult", "mature", "old"}

var genderClasses = []string{"male", "female"}

var healthLevels = []string{"healthy", "moderate", "poor"}

// allBreeds is the full cattle-then-buffalo index space.
var allBreeds = append(append([]string{}, cattleBreeds...), buffaloBreeds...)

var breedIndex = func() map[string]int {
	m := make(map[string]int, len(allBreeds))
	for i, b := range allBreeds {
		m[b] = i
	}
	return m
}()

// Labels returns a copy of the ordered label list for a task.
func Labels(task Task) []string {
	switch task {
	case TaskAnimalType:
		return append([]string{}, animalTypes...)
	case TaskBreed:
		return append([]string{}, allBreeds...)
	case TaskAge:
		return append([]string{}, ageBrackets...)
	case TaskGender:
		return append([]string{}, genderClasses...)
	case TaskHealth:
		return append([]string{}, healthLevels...)
	}
	return nil
}

// NumLabels returns the output cardinality of a task's head.
func NumLabels(task Task) int {
	switch task {
	case TaskAnimalType:
		return len(animalTypes)
	case TaskBreed:
		return len(allBreeds)
	case TaskAge:
		return len(ageBrackets)
	case TaskGender:
		return len(genderClasses)
	case TaskHealth:
		return len(healthLevels)
	}
	return 0
}

func NumBreeds() int { return len(allBreeds) }

func NumCattleBreeds() int { return len(cattleBreeds) }

func NumBuffaloBreeds() int { return len(buffaloBreeds) }

func CattleBreeds() []string { return append([]string{}, cattleBreeds...) }

func BuffaloBreeds() []string { return append([]string{}, buffaloBreeds...) }

// BreedName resolves a breed index to its name, or "Unknown" when the
// index is outside the breed index space.
func BreedName(i int) string {
	if i < 0 || i >= len(allBreeds) {
		return "Unknown"
	}
	return allBreeds[i]
}

// BreedIndex resolves a breed name back to its index, or -1 when the name
// is not in the taxonomy.
func BreedIndex(name string) int {
	if i, ok := breedIndex[name]; ok {
		return i
	}
	return -1
}

// AnimalTypeForBreed reports which animal type owns a breed index: cattle
// occupy [0, NumCattleBreeds), buffalo the rest of the range.
func AnimalTypeForBreed(i int) (string, bool) {
	switch {
	case i >= 0 && i < len(cattleBreeds):
		return "cattle", true
	case i >= len(cattleBreeds) && i < len(allBreeds):
		return "buffalo", true
	}
	return "", false
}
