package database_test

import (
	"context"
	"testing"
	"time"

	"bovine-backend/internal/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())
	return db
}

func TestRecentClassificationsOrderAndLimit(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, database.RecordClassification(ctx, db, &database.Classification{
			Id:             uuid.New(),
			Source:         database.SourceUpload,
			Filename:       "img.png",
			Success:        true,
			PredictedBreed: "Gir",
			Confidence:     0.9,
			CreationTime:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := database.RecentClassifications(ctx, db, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.True(t, !records[i-1].CreationTime.Before(records[i].CreationTime), "records must be newest first")
	}
}

func TestRecordClassificationFailure(t *testing.T) {
	db := createDB(t)
	ctx := context.Background()

	require.NoError(t, database.RecordClassification(ctx, db, &database.Classification{
		Id:           uuid.New(),
		Source:       database.SourceBatch,
		Filename:     "broken.jpg",
		Error:        "invalid image",
		CreationTime: time.Now(),
	}))

	records, err := database.RecentClassifications(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Success)
	assert.Equal(t, "invalid image", records[0].Error)
}
