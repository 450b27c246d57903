package repository

import (
	"context"
	"errors"

	"quoteit/internal/models"
	"quoteit/internal/observability"

	"gorm.io/gorm"
)

// FollowRepository defines the interface for follow-edge data operations
type FollowRepository interface {
	Exists(ctx context.Context, followerID, followedID string) (bool, error)
	Toggle(ctx context.Context, followerID, followedID string) (FollowToggle, error)
	ListFollowers(ctx context.Context, userID string) ([]models.Follow, error)
	ListFollowing(ctx context.Context, userID string) ([]models.Follow, error)
	ListTouching(ctx context.Context, userID string) ([]models.Follow, error)
}

// FollowToggle is the committed outcome of a follow toggle.
type FollowToggle struct {
	Following bool
	// FollowingCount is the follower's following_count after the toggle.
	FollowingCount int
	// FollowerCount is the followed user's follower_count after the toggle.
	FollowerCount int
}

// followRepository implements FollowRepository
type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Exists(ctx context.Context, followerID, followedID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// Toggle deletes the edge when present and creates it otherwise, adjusting the
// follower's following_count and the followed user's follower_count in the same
// transaction. The counters are read back before commit.
func (r *followRepository) Toggle(ctx context.Context, followerID, followedID string) (FollowToggle, error) {
	var result FollowToggle

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND followed_id = ?", followerID, followedID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}

		delta := -1
		if res.RowsAffected == 0 {
			if err := tx.Create(&models.Follow{FollowerID: followerID, FollowedID: followedID}).Error; err != nil {
				return err
			}
			delta = 1
			result.Following = true
		}

		if err := adjustUserCounter(tx, followerID, "following_count", delta); err != nil {
			return err
		}
		if err := adjustUserCounter(tx, followedID, "follower_count", delta); err != nil {
			return err
		}

		var err error
		if result.FollowingCount, err = readUserCounter(tx, followerID, "following_count"); err != nil {
			return err
		}
		result.FollowerCount, err = readUserCounter(tx, followedID, "follower_count")
		return err
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return FollowToggle{}, appErr
		}
		return FollowToggle{}, models.NewUpdateError("follow", err)
	}
	return result, nil
}

// ListFollowers returns edges pointing at userID, newest first.
func (r *followRepository) ListFollowers(ctx context.Context, userID string) ([]models.Follow, error) {
	return r.list(ctx, "followed_id = ?", userID)
}

// ListFollowing returns edges leaving userID, newest first.
func (r *followRepository) ListFollowing(ctx context.Context, userID string) ([]models.Follow, error) {
	return r.list(ctx, "follower_id = ?", userID)
}

// ListTouching returns every edge with userID at either end, newest first.
func (r *followRepository) ListTouching(ctx context.Context, userID string) ([]models.Follow, error) {
	return r.list(ctx, "follower_id = ? OR followed_id = ?", userID, userID)
}

func (r *followRepository) list(ctx context.Context, query string, args ...any) ([]models.Follow, error) {
	var edges []models.Follow
	if err := r.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return edges, nil
}

// adjustUserCounter adds delta to a denormalised user counter, flooring at zero.
// A missing user is reported as NotFound so the surrounding transaction rolls back.
func adjustUserCounter(tx *gorm.DB, userID, column string, delta int) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update(column, gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta))
	if res.Error != nil {
		observability.CounterUpdateFailures.WithLabelValues(column).Inc()
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", userID)
	}
	return nil
}

func readUserCounter(tx *gorm.DB, userID, column string) (int, error) {
	var value int
	if err := tx.Model(&models.User{}).
		Select(column).
		Where("id = ?", userID).
		Scan(&value).Error; err != nil {
		return 0, err
	}
	return value, nil
}
