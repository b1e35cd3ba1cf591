package source

import (
	"context"
	"fmt"

	"github.com/zulandar/logyard/internal/models"
	"gorm.io/gorm"
)

// Store keeps training log lines in arrival order.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store. The training_log_lines table must already be migrated.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append records lines for a training run in the given order.
func (s *Store) Append(ctx context.Context, trainingID string, configID int, lines ...string) ([]models.TrainingLogLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	rows := make([]models.TrainingLogLine, len(lines))
	for i, l := range lines {
		rows[i] = models.TrainingLogLine{TrainingID: trainingID, ConfigID: configID, Content: l}
	}
	// One insert per row keeps ids ascending in line order on every driver.
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			if err := tx.Create(&rows[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("source: append %s: %w", trainingID, err)
	}
	return rows, nil
}

// Lines returns every line for a training run.
func (s *Store) Lines(ctx context.Context, trainingID string) ([]models.TrainingLogLine, error) {
	return s.LinesAfter(ctx, trainingID, 0)
}

// LinesAfter returns the lines with an id greater than afterID.
func (s *Store) LinesAfter(ctx context.Context, trainingID string, afterID uint) ([]models.TrainingLogLine, error) {
	var rows []models.TrainingLogLine
	err := s.db.WithContext(ctx).
		Where("training_id = ? AND id > ?", trainingID, afterID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("source: lines %s: %w", trainingID, err)
	}
	return rows, nil
}

// Trainings lists training ids that have at least one line.
func (s *Store) Trainings(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.TrainingLogLine{}).
		Distinct("training_id").
		Order("training_id").
		Pluck("training_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("source: trainings: %w", err)
	}
	return ids, nil
}

// Contents extracts the text of each row.
func Contents(rows []models.TrainingLogLine) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Content
	}
	return out
}

func lastID(rows []models.TrainingLogLine, fallback uint) uint {
	if len(rows) == 0 {
		return fallback
	}
	return rows[len(rows)-1].ID
}
