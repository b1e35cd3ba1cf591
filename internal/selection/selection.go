// Package selection persists the user's selected configuration and
// environment ids between runs.
package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/logyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotSet is returned when a requested key has no stored value.
var ErrNotSet = errors.New("selection: not set")

// Keys stored in the selections table.
const (
	KeyConfigID = "config_id"
	KeyEnvID    = "env_id"
)

// Selection is the current selected context. Nil means unset.
type Selection struct {
	ConfigID *int `json:"config_id"`
	EnvID    *int `json:"env_id"`
}

// Store reads and writes the selection through gorm.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store. The selections table must already be migrated.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns every stored key.
func (s *Store) Get(ctx context.Context) (Selection, error) {
	var rows []models.Selection
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return Selection{}, fmt.Errorf("selection: get: %w", err)
	}
	var sel Selection
	for _, r := range rows {
		v := r.Value
		switch r.Key {
		case KeyConfigID:
			sel.ConfigID = &v
		case KeyEnvID:
			sel.EnvID = &v
		}
	}
	return sel, nil
}

// ConfigID returns the stored config id or ErrNotSet.
func (s *Store) ConfigID(ctx context.Context) (int, error) {
	return s.value(ctx, KeyConfigID)
}

// EnvID returns the stored environment id or ErrNotSet.
func (s *Store) EnvID(ctx context.Context) (int, error) {
	return s.value(ctx, KeyEnvID)
}

// SetConfigID stores the selected configuration id.
func (s *Store) SetConfigID(ctx context.Context, id int) error {
	return s.set(ctx, KeyConfigID, id)
}

// SetEnvID stores the selected environment id.
func (s *Store) SetEnvID(ctx context.Context, id int) error {
	return s.set(ctx, KeyEnvID, id)
}

// ClearConfigID removes the selected configuration id.
func (s *Store) ClearConfigID(ctx context.Context) error {
	return s.clear(ctx, KeyConfigID)
}

// ClearEnvID removes the selected environment id.
func (s *Store) ClearEnvID(ctx context.Context) error {
	return s.clear(ctx, KeyEnvID)
}

// Clear removes every stored key.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where("1 = 1").Delete(&models.Selection{}).Error; err != nil {
		return fmt.Errorf("selection: clear: %w", err)
	}
	return nil
}

func (s *Store) value(ctx context.Context, key string) (int, error) {
	var row models.Selection
	err := s.db.WithContext(ctx).Where(&models.Selection{Key: key}).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrNotSet
	}
	if err != nil {
		return 0, fmt.Errorf("selection: get %s: %w", key, err)
	}
	return row.Value, nil
}

func (s *Store) set(ctx context.Context, key string, v int) error {
	row := models.Selection{Key: key, Value: v}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("selection: set %s: %w", key, err)
	}
	return nil
}

func (s *Store) clear(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&models.Selection{Key: key}).Error; err != nil {
		return fmt.Errorf("selection: clear %s: %w", key, err)
	}
	return nil
}
