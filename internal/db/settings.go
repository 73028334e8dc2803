package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm/clause"

	"kiosk-player/internal/motion"
	"kiosk-player/internal/settings"
)

// settingsRow is the singleton settings table row.
type settingsRow struct {
	ID          int       `gorm:"type:integer;primaryKey;column:id"`
	Playing     bool      `gorm:"column:playing"`
	IntervalSec float64   `gorm:"column:interval_sec"`
	Transition  string    `gorm:"type:text;column:transition"`
	Shuffle     bool      `gorm:"column:shuffle"`
	Seed        int64     `gorm:"column:seed"`
	KenBurns    bool      `gorm:"column:ken_burns"`
	UpdatedAt   time.Time `gorm:"type:datetime;column:updated_at"`
}

func (settingsRow) TableName() string { return "settings" }

// SettingsRepository stores the live settings in a single row. It
// implements settings.Repository.
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository.
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Load returns the stored settings; ok is false when none were saved yet.
func (r *SettingsRepository) Load(ctx context.Context) (settings.Settings, bool, error) {
	var row settingsRow
	err := r.db.WithContext(ctx).Where("id = ?", 1).First(&row).Error
	if err != nil {
		if errors.Is(MapGormError(err), ErrNotFound) {
			return settings.Settings{}, false, nil
		}
		return settings.Settings{}, false, fmt.Errorf("failed to load settings: %w", MapGormError(err))
	}

	mode, err := motion.ParseMode(row.Transition)
	if err != nil {
		mode = motion.Crossfade
	}
	s := settings.Settings{
		Playing:     row.Playing,
		IntervalSec: row.IntervalSec,
		Transition:  mode,
		Shuffle:     row.Shuffle,
		Seed:        uint32(row.Seed),
		KenBurns:    row.KenBurns,
	}
	return s.Normalize(), true, nil
}

// Save upserts the singleton row.
func (r *SettingsRepository) Save(ctx context.Context, s settings.Settings) error {
	s = s.Normalize()
	row := settingsRow{
		ID:          1,
		Playing:     s.Playing,
		IntervalSec: s.IntervalSec,
		Transition:  s.Transition.String(),
		Shuffle:     s.Shuffle,
		Seed:        int64(s.Seed),
		KenBurns:    s.KenBurns,
		UpdatedAt:   time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", MapGormError(err))
	}
	return nil
}
