package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// RecordClassification stores one classification outcome.
func RecordClassification(ctx context.Context, db *gorm.DB, record *Classification) error {
	if err := db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("error recording classification: %w", err)
	}
	return nil
}

// RecentClassifications returns up to limit records, newest first.
func RecentClassifications(ctx context.Context, db *gorm.DB, limit int) ([]Classification, error) {
	var records []Classification
	if err := db.WithContext(ctx).Order("creation_time DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("error querying classification history: %w", err)
	}
	return records, nil
}
