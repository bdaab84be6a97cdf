package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/dance-area-backend/internal/dance"
)

var ErrUnknownDriver = errors.New("unknown database driver")

// TrackRecord caches resolved track metadata so a restart does not have to
// hit the upstream provider again for every queued link.
type TrackRecord struct {
	URL        string `gorm:"primaryKey;size:512"`
	Title      string
	Artist     string
	Album      string
	DurationMS int64
	FetchedAt  time.Time
}

func (r TrackRecord) toTrack() dance.TrackInfo {
	return dance.TrackInfo{
		URL:      r.URL,
		Title:    r.Title,
		Artist:   r.Artist,
		Album:    r.Album,
		Duration: r.DurationMS,
	}
}

type Store struct {
	db *gorm.DB
}

// Open connects with "postgres" or "sqlite" and migrates the schema.
func Open(driver, dsn string, log *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.AutoMigrate(&TrackRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("track store ready", zap.String("driver", driver))
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, url string) (dance.TrackInfo, bool, error) {
	var rec TrackRecord
	err := s.db.WithContext(ctx).Where("url = ?", url).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dance.TrackInfo{}, false, nil
	}
	if err != nil {
		return dance.TrackInfo{}, false, err
	}
	return rec.toTrack(), true, nil
}

func (s *Store) Put(ctx context.Context, t dance.TrackInfo) error {
	rec := TrackRecord{
		URL:        t.URL,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMS: t.Duration,
		FetchedAt:  time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
