package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Classification sources.
const (
	SourceUpload = "upload"
	SourceBatch  = "batch"
	SourceURL    = "url"
)

// Classification records the outcome of one classified image, successful
// or not.
type Classification struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Source   string `gorm:"size:20;not null"`
	Filename string

	Success        bool
	PredictedBreed string
	Confidence     float32
	Results        datatypes.JSON
	Error          string

	CreationTime time.Time `gorm:"index"`
}
