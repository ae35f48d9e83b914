// Package store persists completion reports in Postgres.
package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sanspareilsmyn/vitalens/internal/config"
	"github.com/sanspareilsmyn/vitalens/internal/message"
)

// ReportRecord is one completed session as stored in vitalens_reports.
type ReportRecord struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	SessionID string `gorm:"not null;index"`
	Source    string `gorm:"not null"`
	Frames    int    `gorm:"not null"`

	AvgBPM         float64
	AvgHRV         float64
	AvgSpO2        float64
	AvgRespiration float64
	AvgSystolic    float64
	AvgDiastolic   float64
	StressLevel    string

	ActivityScore    float64
	SleepScore       float64
	EquilibriumScore float64
	MetabolismScore  float64
	HealthScore      float64
	RelaxationScore  float64

	Age    float64
	Weight float64
	Height float64

	CompletedAt time.Time `gorm:"not null;index"`
	CreatedAt   time.Time
}

func (ReportRecord) TableName() string { return "vitalens_reports" }

func toRecord(r message.Report) ReportRecord {
	avg := r.Metrics.Average
	return ReportRecord{
		ID:               r.ID,
		SessionID:        r.SessionID,
		Source:           r.Source,
		Frames:           r.Frames,
		AvgBPM:           avg.BPM,
		AvgHRV:           avg.HRV,
		AvgSpO2:          avg.SpO2,
		AvgRespiration:   avg.Respiration,
		AvgSystolic:      avg.Systolic,
		AvgDiastolic:     avg.Diastolic,
		StressLevel:      r.Metrics.Stress,
		ActivityScore:    r.Scores.Activity,
		SleepScore:       r.Scores.Sleep,
		EquilibriumScore: r.Scores.Equilibrium,
		MetabolismScore:  r.Scores.Metabolism,
		HealthScore:      r.Scores.Health,
		RelaxationScore:  r.Scores.Relaxation,
		Age:              r.Attributes.Age,
		Weight:           r.Attributes.Weight,
		Height:           r.Attributes.Height,
		CompletedAt:      r.CompletedAt,
	}
}

// ReportStore writes reports through gorm.
type ReportStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects to Postgres, applies the pool settings and migrates the
// reports table.
func Open(cfg config.StorageConfig, logger *zap.Logger) (*ReportStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&ReportRecord{}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	logger.Info("Report store ready", zap.String("table", ReportRecord{}.TableName()))
	return &ReportStore{db: db, logger: logger}, nil
}

func (s *ReportStore) Save(ctx context.Context, r message.Report) error {
	rec := toRecord(r)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	s.logger.Debug("Report stored", zap.String("report_id", r.ID), zap.String("session_id", r.SessionID))
	return nil
}

// Recent returns the latest reports for a session, newest first.
func (s *ReportStore) Recent(ctx context.Context, sessionID string, limit int) ([]ReportRecord, error) {
	var recs []ReportRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("completed_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return recs, nil
}

func (s *ReportStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
