package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

// LogRepository persists the append-only audit tables: authentication logs
// and mail query history.
type LogRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

func (r *LogRepository) CreateAuthLog(ctx context.Context, log *model.AuthenticationLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create authentication log: %w", err)
	}
	return nil
}

func (r *LogRepository) ListAuthLogs(ctx context.Context, accountID string, limit int) ([]model.AuthenticationLog, error) {
	var logs []model.AuthenticationLog
	query := r.db.WithContext(ctx).Order("timestamp DESC")
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list authentication logs: %w", result.Error)
	}
	return logs, nil
}

func (r *LogRepository) CreateQueryHistory(ctx context.Context, history *model.MailQueryHistory) error {
	if history.QueryDateTime.IsZero() {
		history.QueryDateTime = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("failed to create query history: %w", err)
	}
	return nil
}

func (r *LogRepository) ListQueryHistory(ctx context.Context, accountID string, limit int) ([]model.MailQueryHistory, error) {
	var history []model.MailQueryHistory
	query := r.db.WithContext(ctx).Order("query_date_time DESC")
	if accountID != "" {
		query = query.Where("account_id = ?", accountID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&history)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list query history: %w", result.Error)
	}
	return history, nil
}

// DeleteOlderThan ages out both audit tables in one call. Returns the total
// number of rows removed.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("timestamp < ?", cutoff).Delete(&model.AuthenticationLog{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete old authentication logs: %w", result.Error)
		}
		total += result.RowsAffected

		result = tx.Where("query_date_time < ?", cutoff).Delete(&model.MailQueryHistory{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete old query history: %w", result.Error)
		}
		total += result.RowsAffected
		return nil
	})
	return total, err
}
