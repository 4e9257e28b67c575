package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/lcalzada-xor/wpilot/internal/core/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// AuditStore keeps the append-only attack attempt trail in SQLite via
// GORM. It implements ports.AttemptSink.
type AuditStore struct {
	db *gorm.DB
}

// AttemptModel is the GORM model for attack attempts.
type AttemptModel struct {
	ID        string `gorm:"primaryKey"`
	TargetID  string `gorm:"index"`
	Phase     string
	StartedAt time.Time
	EndedAt   time.Time
	Outcome   string
	ErrorKind string
	Artifact  string
}

// NewAuditStore opens (or creates) the database and migrates the schema.
func NewAuditStore(path string) (*AuditStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening audit db: %w", err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("enabling db tracing: %w", err)
	}

	if err := db.AutoMigrate(&AttemptModel{}); err != nil {
		return nil, fmt.Errorf("migrating audit schema: %w", err)
	}
	db.Exec("CREATE INDEX IF NOT EXISTS idx_attempts_started_at ON attempt_models(started_at)")

	return &AuditStore{db: db}, nil
}

// AppendAttempt records one phase execution. The trail is append-only;
// rows are never updated.
func (a *AuditStore) AppendAttempt(ctx context.Context, attempt domain.AttackAttempt) error {
	model := AttemptModel{
		ID:        attempt.ID,
		TargetID:  attempt.TargetID,
		Phase:     string(attempt.Phase),
		StartedAt: attempt.StartedAt,
		EndedAt:   attempt.EndedAt,
		Outcome:   string(attempt.Outcome),
		ErrorKind: attempt.ErrorKind,
		Artifact:  attempt.Artifact,
	}
	if err := a.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("appending attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// ListAttempts returns all attempts against one target, oldest first.
func (a *AuditStore) ListAttempts(ctx context.Context, targetID string) ([]domain.AttackAttempt, error) {
	var models []AttemptModel
	err := a.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("started_at asc").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("listing attempts for %s: %w", targetID, err)
	}

	attempts := make([]domain.AttackAttempt, len(models))
	for i, m := range models {
		attempts[i] = domain.AttackAttempt{
			ID:        m.ID,
			TargetID:  m.TargetID,
			Phase:     domain.AttackPhase(m.Phase),
			StartedAt: m.StartedAt,
			EndedAt:   m.EndedAt,
			Outcome:   domain.AttackOutcome(m.Outcome),
			ErrorKind: m.ErrorKind,
			Artifact:  m.Artifact,
		}
	}
	return attempts, nil
}

// Close releases the underlying connection pool.
func (a *AuditStore) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
