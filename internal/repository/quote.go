// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"time"

	"quoteit/internal/models"

	"gorm.io/gorm"
)

// QuoteRepository defines the interface for quote data operations
type QuoteRepository interface {
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, id string) (*models.Quote, error)
	ListByUser(ctx context.Context, userID string, includePrivate bool) ([]*models.Quote, error)
	ListPublicByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Quote, error)
	LatestPublicByUser(ctx context.Context, userID string) (*models.Quote, error)
	ListPublicSince(ctx context.Context, since time.Time, excludeUserID string, limit int) ([]*models.Quote, error)
	Update(ctx context.Context, id string, updates map[string]any) (*models.Quote, error)
	Delete(ctx context.Context, id string) error
}

// quoteRepository implements QuoteRepository
type quoteRepository struct {
	db *gorm.DB
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

func (r *quoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	if err := r.db.WithContext(ctx).Create(quote).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *quoteRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	var quote models.Quote
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&quote).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Quote", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &quote, nil
}

func (r *quoteRepository) ListByUser(ctx context.Context, userID string, includePrivate bool) ([]*models.Quote, error) {
	var quotes []*models.Quote
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !includePrivate {
		q = q.Where("is_private = ?", false)
	}
	if err := q.Order("created_at DESC").Find(&quotes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return quotes, nil
}

func (r *quoteRepository) ListPublicByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Quote, error) {
	var quotes []*models.Quote
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_private = ? AND created_at > ?", userID, false, since.UTC()).
		Order("created_at DESC").
		Find(&quotes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return quotes, nil
}

// LatestPublicByUser returns nil, nil when the user has no public quote.
func (r *quoteRepository) LatestPublicByUser(ctx context.Context, userID string) (*models.Quote, error) {
	var quotes []*models.Quote
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_private = ?", userID, false).
		Order("created_at DESC").
		Limit(1).
		Find(&quotes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(quotes) == 0 {
		return nil, nil
	}
	return quotes[0], nil
}

func (r *quoteRepository) ListPublicSince(ctx context.Context, since time.Time, excludeUserID string, limit int) ([]*models.Quote, error) {
	var quotes []*models.Quote
	if limit <= 0 {
		return quotes, nil
	}
	if err := r.db.WithContext(ctx).
		Where("is_private = ? AND created_at > ? AND user_id <> ?", false, since.UTC(), excludeUserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&quotes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return quotes, nil
}

// Update applies the column updates and returns the stored quote.
func (r *quoteRepository) Update(ctx context.Context, id string, updates map[string]any) (*models.Quote, error) {
	var quote models.Quote
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Quote{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Quote", id)
		}
		return tx.Where("id = ?", id).First(&quote).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(err)
	}
	return &quote, nil
}

func (r *quoteRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Quote{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Quote", id)
	}
	return nil
}
