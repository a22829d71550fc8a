package api

import (
	"time"

	"github.com/google/uuid"
)

// BreedScore is one entry of the ranked breed list.
type BreedScore struct {
	Breed      string  `json:"breed"`
	Confidence float32 `json:"confidence"`
}

// TaskResult is the enriched outcome of a single classification head. The
// breed task additionally carries Top3, NeedsVerification and, below the
// low-confidence threshold, Suggestion.
type TaskResult struct {
	Prediction        string       `json:"prediction"`
	Confidence        float32      `json:"confidence"`
	ConfidenceLevel   string       `json:"confidence_level"`
	Top3              []BreedScore `json:"top_3,omitempty"`
	NeedsVerification *bool        `json:"needs_verification,omitempty"`
	Suggestion        string       `json:"suggestion,omitempty"`
}

type ClassifyResponse struct {
	Success        bool                  `json:"success"`
	Data           map[string]TaskResult `json:"data"`
	Message        string                `json:"message"`
	ProcessingTime float64               `json:"processing_time"`
}

// ErrorResponse is the envelope returned on every failed request.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

type ClassifyURLRequest struct {
	ImageURL string `json:"image_url"`
}

type BatchItemResult struct {
	Filename string                `json:"filename"`
	Index    int                   `json:"index"`
	Success  bool                  `json:"success"`
	Results  map[string]TaskResult `json:"results,omitempty"`
	Error    string                `json:"error,omitempty"`
}

type BatchData struct {
	Results                   []BatchItemResult `json:"results"`
	TotalImages               int               `json:"total_images"`
	SuccessfulClassifications int               `json:"successful_classifications"`
	FailedClassifications     int               `json:"failed_classifications"`
}

type BatchResponse struct {
	Success        bool      `json:"success"`
	Data           BatchData `json:"data"`
	ProcessingTime float64   `json:"processing_time"`
}

type HealthResponse struct {
	Status           string         `json:"status"`
	ModelLoaded      bool           `json:"model_loaded"`
	UntrainedWeights bool           `json:"untrained_weights"`
	SupportedBreeds  map[string]int `json:"supported_breeds"`
}

type BreedsData struct {
	CattleBreeds  []string `json:"cattle_breeds"`
	BuffaloBreeds []string `json:"buffalo_breeds"`
	TotalBreeds   int      `json:"total_breeds"`
}

type BreedsResponse struct {
	Success bool       `json:"success"`
	Data    BreedsData `json:"data"`
}

type HistoryQuery struct {
	Limit int `schema:"limit"`
}

type HistoryRecord struct {
	Id             uuid.UUID             `json:"id"`
	Source         string                `json:"source"`
	Filename       string                `json:"filename"`
	Success        bool                  `json:"success"`
	PredictedBreed string                `json:"predicted_breed,omitempty"`
	Confidence     float32               `json:"confidence,omitempty"`
	Results        map[string]TaskResult `json:"results,omitempty"`
	Error          string                `json:"error,omitempty"`
	CreationTime   time.Time             `json:"creation_time"`
}

type HistoryResponse struct {
	Success bool            `json:"success"`
	Data    []HistoryRecord `json:"data"`
}
