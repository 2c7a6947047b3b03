package store

import (
	"context"
	"fmt"
	"time"

	"github.com/vitalmesh/telemetryd/internal/database"
	"github.com/vitalmesh/telemetryd/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore is the GORM-backed Store over the per-category record tables.
type DBStore struct {
	db *database.DB
}

// NewDBStore creates a store over an already-connected database handle.
func NewDBStore(db *database.DB) *DBStore {
	return &DBStore{db: db}
}

// Migrate creates or updates the per-category record tables.
func (s *DBStore) Migrate() error {
	return s.db.AutoMigrate(
		&models.HeartRateRecord{},
		&models.GPSRecord{},
		&models.SleepStateRecord{},
		&models.PowerEventRecord{},
		&models.GenericRecord{},
	)
}

// Append persists one record, idempotent on duplicate id.
func (s *DBStore) Append(ctx context.Context, rec models.Record) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(rec).Error
}

// AppendBatch persists several records in one transaction.
func (s *DBStore) AppendBatch(ctx context.Context, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, rec := range recs {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(rec).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Unsynced returns up to limit unacknowledged records, oldest-first.
func (s *DBStore) Unsynced(ctx context.Context, category string, limit int) ([]models.Record, error) {
	q := s.db.WithContext(ctx).
		Where("synced = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	switch category {
	case models.CategoryHeartRate:
		var rows []models.HeartRateRecord
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Record, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	case models.CategoryGPS:
		var rows []models.GPSRecord
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Record, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	case models.CategorySleepState:
		var rows []models.SleepStateRecord
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Record, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	case models.CategoryPowerEvent:
		var rows []models.PowerEventRecord
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Record, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	case models.CategoryGeneric:
		var rows []models.GenericRecord
		if err := q.Find(&rows).Error; err != nil {
			return nil, err
		}
		out := make([]models.Record, len(rows))
		for i := range rows {
			out[i] = &rows[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown record category: %s", category)
	}
}

// MarkSynced flips synced to true for the given ids; unknown ids are a no-op.
func (s *DBStore) MarkSynced(ctx context.Context, category string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	model, err := modelFor(category)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Model(model).
		Where("id IN ?", ids).
		Update("synced", true).Error
}

// PurgeOlderThan deletes acknowledged records created before cutoff.
func (s *DBStore) PurgeOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	model, err := modelFor(category)
	if err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).
		Where("synced = ? AND created_at < ?", true, cutoff).
		Delete(model)
	return res.RowsAffected, res.Error
}

// UnsyncedCount returns the number of unacknowledged records.
func (s *DBStore) UnsyncedCount(ctx context.Context, category string) (int64, error) {
	model, err := modelFor(category)
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.db.WithContext(ctx).
		Model(model).
		Where("synced = ?", false).
		Count(&count).Error
	return count, err
}

// modelFor maps a category name to an empty model for table resolution
func modelFor(category string) (interface{}, error) {
	switch category {
	case models.CategoryHeartRate:
		return &models.HeartRateRecord{}, nil
	case models.CategoryGPS:
		return &models.GPSRecord{}, nil
	case models.CategorySleepState:
		return &models.SleepStateRecord{}, nil
	case models.CategoryPowerEvent:
		return &models.PowerEventRecord{}, nil
	case models.CategoryGeneric:
		return &models.GenericRecord{}, nil
	default:
		return nil, fmt.Errorf("unknown record category: %s", category)
	}
}
