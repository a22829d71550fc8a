package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"bovine-backend/internal/core"
	"bovine-backend/internal/database"
	"bovine-backend/internal/taxonomy"
	"bovine-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MaxBatchSize bounds /classify/batch; larger requests are rejected
	// before any file is processed.
	MaxBatchSize = 10

	// MaxFileBytes bounds a single uploaded image.
	MaxFileBytes = 10 << 20
)

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".bmp":  {},
}

type BackendService struct {
	classifier *core.Classifier
	db         *gorm.DB
	fetcher    *resty.Client
}

// NewBackendService builds the serving façade. classifier may be nil, in
// which case classification endpoints report 503 until a model is loaded.
func NewBackendService(classifier *core.Classifier, db *gorm.DB, fetchTimeout time.Duration) *BackendService {
	return &BackendService{
		classifier: classifier,
		db:         db,
		fetcher:    resty.New().SetTimeout(fetchTimeout).SetRetryCount(0),
	}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))
	r.Get("/breeds", RestHandler(s.GetBreeds))
	r.Get("/history", RestHandler(s.GetHistory))
	r.Route("/classify", func(r chi.Router) {
		r.Post("/", RestHandler(s.Classify))
		r.Post("/batch", RestHandler(s.ClassifyBatch))
		r.Post("/url", RestHandler(s.ClassifyURL))
	})
}

func (s *BackendService) Health(r *http.Request) (any, error) {
	status := "healthy"
	if s.classifier == nil {
		status = "model_not_loaded"
	}
	return api.HealthResponse{
		Status:           status,
		ModelLoaded:      s.classifier != nil,
		UntrainedWeights: s.classifier != nil && s.classifier.Untrained(),
		SupportedBreeds: map[string]int{
			"cattle":  taxonomy.NumCattleBreeds(),
			"buffalo": taxonomy.NumBuffaloBreeds(),
			"total":   taxonomy.NumBreeds(),
		},
	}, nil
}

func (s *BackendService) GetBreeds(r *http.Request) (any, error) {
	return api.BreedsResponse{
		Success: true,
		Data: api.BreedsData{
			CattleBreeds:  taxonomy.CattleBreeds(),
			BuffaloBreeds: taxonomy.BuffaloBreeds(),
			TotalBreeds:   taxonomy.NumBreeds(),
		},
	}, nil
}

func (s *BackendService) Classify(r *http.Request) (any, error) {
	start := time.Now()

	if s.classifier == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "classification model not loaded")
	}

	if err := r.ParseMultipartForm(MaxFileBytes); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "no file provided, use 'file' as the form field name")
	}
	defer file.Close()

	if err := validateUpload(header); err != nil {
		return nil, err
	}

	results, err := s.classifyReader(file)
	s.record(r.Context(), database.SourceUpload, header.Filename, results, err)
	if err != nil {
		return nil, err
	}

	slog.Info("classified image", "filename", header.Filename)
	return api.ClassifyResponse{
		Success:        true,
		Data:           results,
		Message:        "Classification completed successfully",
		ProcessingTime: elapsedSeconds(start),
	}, nil
}

func (s *BackendService) ClassifyBatch(r *http.Request) (any, error) {
	start := time.Now()

	if s.classifier == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "classification model not loaded")
	}

	if err := r.ParseMultipartForm(MaxFileBytes); err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to parse multipart form: %v", err)
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "no files provided, use 'files' as the form field name")
	}

	files := r.MultipartForm.File["files"]
	if len(files) > MaxBatchSize {
		return nil, CodedErrorf(http.StatusBadRequest, "maximum %d images allowed per batch request", MaxBatchSize)
	}

	items := make([]api.BatchItemResult, 0, len(files))
	succeeded := 0
	for i, header := range files {
		item := api.BatchItemResult{Filename: header.Filename, Index: i}

		results, err := s.classifyUpload(header)
		s.record(r.Context(), database.SourceBatch, header.Filename, results, err)
		if err != nil {
			// One bad image must not abort the rest of the batch.
			item.Error = err.Error()
		} else {
			item.Success = true
			item.Results = results
			succeeded++
		}
		items = append(items, item)
	}

	return api.BatchResponse{
		Success: true,
		Data: api.BatchData{
			Results:                   items,
			TotalImages:               len(files),
			SuccessfulClassifications: succeeded,
			FailedClassifications:     len(files) - succeeded,
		},
		ProcessingTime: elapsedSeconds(start),
	}, nil
}

func (s *BackendService) ClassifyURL(r *http.Request) (any, error) {
	start := time.Now()

	if s.classifier == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "classification model not loaded")
	}

	req, err := ParseRequest[api.ClassifyURLRequest](r)
	if err != nil {
		return nil, err
	}
	if req.ImageURL == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "image_url is required")
	}

	resp, err := s.fetcher.R().SetContext(r.Context()).Get(req.ImageURL)
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "failed to download image: %v", err)
	}
	if resp.IsError() {
		return nil, CodedErrorf(http.StatusBadRequest, "failed to download image: status %d", resp.StatusCode())
	}

	results, err := s.classifyReader(bytes.NewReader(resp.Body()))
	s.record(r.Context(), database.SourceURL, req.ImageURL, results, err)
	if err != nil {
		return nil, err
	}

	slog.Info("classified image from url", "url", req.ImageURL)
	return api.ClassifyResponse{
		Success:        true,
		Data:           results,
		Message:        "URL image classification completed successfully",
		ProcessingTime: elapsedSeconds(start),
	}, nil
}

func (s *BackendService) GetHistory(r *http.Request) (any, error) {
	if s.db == nil {
		return nil, CodedErrorf(http.StatusServiceUnavailable, "classification history not available")
	}

	params, err := ParseRequestQueryParams[api.HistoryQuery](r)
	if err != nil {
		return nil, err
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	records, err := database.RecentClassifications(r.Context(), s.db, limit)
	if err != nil {
		slog.Error("error loading classification history", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to load classification history")
	}

	out := make([]api.HistoryRecord, len(records))
	for i, rec := range records {
		out[i] = toHistoryRecord(rec)
	}
	return api.HistoryResponse{Success: true, Data: out}, nil
}

// classifyUpload validates and classifies one multipart file.
func (s *BackendService) classifyUpload(header *multipart.FileHeader) (map[string]api.TaskResult, error) {
	if err := validateUpload(header); err != nil {
		return nil, err
	}
	f, err := header.Open()
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "unable to open uploaded file: %v", err)
	}
	defer f.Close()
	return s.classifyReader(f)
}

// classifyReader runs the full predict-then-enrich pipeline and maps core
// errors onto HTTP status codes.
func (s *BackendService) classifyReader(r io.Reader) (map[string]api.TaskResult, error) {
	raw, err := s.classifier.PredictReader(r)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrModelNotLoaded):
			return nil, CodedError(http.StatusServiceUnavailable, err)
		case errors.Is(err, core.ErrInvalidImage):
			return nil, CodedError(http.StatusBadRequest, err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "classification failed: %v", err)
	}

	enriched, err := core.Enrich(raw)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "classification failed: %v", err)
	}
	return enriched, nil
}

func validateUpload(header *multipart.FileHeader) error {
	if header.Size > MaxFileBytes {
		return CodedErrorf(http.StatusRequestEntityTooLarge, "file size too large, maximum size is %dMB", MaxFileBytes/(1<<20))
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return CodedErrorf(http.StatusBadRequest, "invalid file format %q, allowed formats: .jpg, .jpeg, .png, .bmp", ext)
	}
	return nil
}

// record persists one classification outcome. Recording failures are
// logged, never surfaced to the client.
func (s *BackendService) record(ctx context.Context, source, name string, results map[string]api.TaskResult, classifyErr error) {
	if s.db == nil {
		return
	}

	rec := database.Classification{
		Id:           uuid.New(),
		Source:       source,
		Filename:     name,
		CreationTime: time.Now(),
	}
	if classifyErr != nil {
		rec.Error = classifyErr.Error()
	} else {
		rec.Success = true
		if breed, ok := results[string(taxonomy.TaskBreed)]; ok {
			rec.PredictedBreed = breed.Prediction
			rec.Confidence = breed.Confidence
		}
		if payload, err := json.Marshal(results); err == nil {
			rec.Results = datatypes.JSON(payload)
		}
	}

	if err := database.RecordClassification(ctx, s.db, &rec); err != nil {
		slog.Error("error recording classification", "error", err)
	}
}

func toHistoryRecord(rec database.Classification) api.HistoryRecord {
	out := api.HistoryRecord{
		Id:             rec.Id,
		Source:         rec.Source,
		Filename:       rec.Filename,
		Success:        rec.Success,
		PredictedBreed: rec.PredictedBreed,
		Confidence:     rec.Confidence,
		Error:          rec.Error,
		CreationTime:   rec.CreationTime,
	}
	if len(rec.Results) > 0 {
		var results map[string]api.TaskResult
		if err := json.Unmarshal(rec.Results, &results); err == nil {
			out.Results = results
		}
	}
	return out
}

func elapsedSeconds(start time.Time) float64 {
	return math.Round(time.Since(start).Seconds()*1000) / 1000
}
