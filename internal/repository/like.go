package repository

import (
	"context"
	"errors"

	"quoteit/internal/models"
	"quoteit/internal/observability"

	"gorm.io/gorm"
)

// DefaultLikeDeleteBatch is the number of likes removed per statement when a quote is deleted.
const DefaultLikeDeleteBatch = 500

// likesDecrement floors the like counter at zero.
const likesDecrement = "CASE WHEN likes > 0 THEN likes - 1 ELSE 0 END"

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	Exists(ctx context.Context, userID, quoteID string) (bool, error)
	Toggle(ctx context.Context, userID, quoteID string) (*models.Quote, error)
	ListByUser(ctx context.Context, userID string) ([]models.Like, error)
	DeleteByQuote(ctx context.Context, quoteID string, batchSize int) (int64, error)
}

// likeRepository implements LikeRepository
type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Exists(ctx context.Context, userID, quoteID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("user_id = ? AND quote_id = ?", userID, quoteID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Toggle removes the like when present and creates it otherwise. The like row and
// the quote's counter change commit together; the returned quote carries the new
// count and Liked state.
func (r *likeRepository) Toggle(ctx context.Context, userID, quoteID string) (*models.Quote, error) {
	var quote models.Quote
	liked := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND quote_id = ?", userID, quoteID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}

		expr := gorm.Expr(likesDecrement)
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.Like{UserID: userID, QuoteID: quoteID}).Error; err != nil {
				return err
			}
			expr = gorm.Expr("likes + ?", 1)
			liked = true
		}

		upd := tx.Model(&models.Quote{}).Where("id = ?", quoteID).Update("likes", expr)
		if upd.Error != nil {
			observability.CounterUpdateFailures.WithLabelValues("likes").Inc()
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return models.NewNotFoundError("Quote", quoteID)
		}

		return tx.Where("id = ?", quoteID).First(&quote).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, models.NewUpdateError("like", err)
	}

	quote.Liked = liked
	return &quote, nil
}

// ListByUser returns the user's likes, newest first.
func (r *likeRepository) ListByUser(ctx context.Context, userID string) ([]models.Like, error) {
	var likes []models.Like
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&likes).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return likes, nil
}

// DeleteByQuote removes every like referencing quoteID in batches. Batches are
// committed independently; the count of removed rows is returned even on error.
func (r *likeRepository) DeleteByQuote(ctx context.Context, quoteID string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultLikeDeleteBatch
	}

	var total int64
	for {
		var ids []string
		if err := r.db.WithContext(ctx).
			Model(&models.Like{}).
			Where("quote_id = ?", quoteID).
			Limit(batchSize).
			Pluck("id", &ids).Error; err != nil {
			return total, models.NewInternalError(err)
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Like{})
		if res.Error != nil {
			return total, models.NewInternalError(res.Error)
		}
		total += res.RowsAffected

		if len(ids) < batchSize {
			return total, nil
		}
	}
}
