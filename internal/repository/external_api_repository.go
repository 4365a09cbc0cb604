package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/model"
)

type ExternalAPIRepository struct {
	db *gorm.DB
}

func NewExternalAPIRepository(db *gorm.DB) *ExternalAPIRepository {
	return &ExternalAPIRepository{db: db}
}

func (r *ExternalAPIRepository) Create(ctx context.Context, call *model.ExternalAPICall) error {
	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create external API call: %w", err)
	}
	return nil
}

func (r *ExternalAPIRepository) GetByID(ctx context.Context, id uint) (*model.ExternalAPICall, error) {
	var call model.ExternalAPICall
	result := r.db.WithContext(ctx).First(&call, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get external API call: %w", result.Error)
	}
	return &call, nil
}

// RecordResult writes the outcome of one dispatch attempt.
func (r *ExternalAPIRepository) RecordResult(ctx context.Context, id uint, status int, body string, success bool) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&model.ExternalAPICall{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"response_status": status,
			"response_body":   body,
			"success":         success,
			"completed_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record external API result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementRetry bumps the retry counter after a retry attempt.
func (r *ExternalAPIRepository) IncrementRetry(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&model.ExternalAPICall{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment retry count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// stalePendingAge is how long a pending call may sit without a recorded
// outcome before the retry sweep picks it up. A crash between dispatch and
// RecordResult leaves such a row behind.
const stalePendingAge = 10 * time.Minute

// ListRetryable returns failed calls that have not exhausted the retry
// ceiling, oldest first. Pending rows older than stalePendingAge are
// included so orphaned dispatches are retried too.
func (r *ExternalAPIRepository) ListRetryable(ctx context.Context, maxRetries int) ([]model.ExternalAPICall, error) {
	var calls []model.ExternalAPICall
	stale := time.Now().UTC().Add(-stalePendingAge)
	result := r.db.WithContext(ctx).
		Where("success = ? AND retry_count < ? AND (completed_at IS NOT NULL OR created_at < ?)", false, maxRetries, stale).
		Order("created_at").
		Find(&calls)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list retryable calls: %w", result.Error)
	}
	return calls, nil
}

func (r *ExternalAPIRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]model.ExternalAPICall, error) {
	var calls []model.ExternalAPICall
	query := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&calls)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list external API calls: %w", result.Error)
	}
	return calls, nil
}
