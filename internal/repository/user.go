package repository

import (
	"context"
	"errors"
	"strings"

	"quoteit/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// usernamePrefixEnd is appended to a prefix to form the exclusive upper bound of a range scan.
const usernamePrefixEnd = "\uf8ff"

// UserRepository defines the interface for user and username-reservation data operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	CreateWithUsername(ctx context.Context, user *models.User) error
	Update(ctx context.Context, id string, updates map[string]any) (*models.User, error)
	AdjustQuoteCount(ctx context.Context, id string, delta int) error
	DeleteCascade(ctx context.Context, id string) error
}

// userRepository implements UserRepository
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("username = ?", models.NormalizeUsername(username)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("User", username)
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// SearchByPrefix returns users whose username starts with prefix, ordered by username.
func (r *userRepository) SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Where("username >= ? AND username < ?", prefix, prefix+usernamePrefixEnd).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Username{}).
		Where("username = ?", models.NormalizeUsername(username)).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// CreateWithUsername reserves the username and creates the user atomically.
// A reservation held by someone else yields a Conflict error.
func (r *userRepository) CreateWithUsername(ctx context.Context, user *models.User) error {
	user.Username = models.NormalizeUsername(user.Username)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Username{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.NewConflictError("username " + user.Username + " is already taken")
		}
		if err := tx.Create(&models.Username{Username: user.Username, UserID: user.ID}).Error; err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if isUniqueViolation(err) {
			return models.NewConflictError("user or username already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Update applies the column updates and returns the stored user.
func (r *userRepository) Update(ctx context.Context, id string, updates map[string]any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return tx.Where("id = ?", id).First(&user).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) AdjustQuoteCount(ctx context.Context, id string, delta int) error {
	return adjustUserCounter(r.db.WithContext(ctx), id, "quote_count", delta)
}

// DeleteCascade removes the user together with everything that references them:
// their quotes and the likes on those quotes, their own likes (decrementing the
// liked quotes), their follow edges (decrementing each counterpart), their
// username reservation, and attribution links on other users' quotes.
func (r *userRepository) DeleteCascade(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quoteIDs []string
		if err := tx.Model(&models.Quote{}).Where("user_id = ?", id).Pluck("id", &quoteIDs).Error; err != nil {
			return err
		}
		if len(quoteIDs) > 0 {
			if err := tx.Where("quote_id IN ?", quoteIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}

		var likedIDs []string
		if err := tx.Model(&models.Like{}).Where("user_id = ?", id).Pluck("quote_id", &likedIDs).Error; err != nil {
			return err
		}
		if len(likedIDs) > 0 {
			if err := tx.Model(&models.Quote{}).
				Where("id IN ?", likedIDs).
				Update("likes", gorm.Expr(likesDecrement)).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", id).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}

		var edges []models.Follow
		if err := tx.Where("follower_id = ? OR followed_id = ?", id, id).Find(&edges).Error; err != nil {
			return err
		}
		for _, edge := range edges {
			column := "following_count"
			if edge.FollowerID == id {
				column = "follower_count"
			}
			err := adjustUserCounter(tx, edge.Counterpart(id), column, -1)
			if err != nil && !models.HasCode(err, models.CodeNotFound) {
				return err
			}
		}
		if len(edges) > 0 {
			if err := tx.Where("follower_id = ? OR followed_id = ?", id, id).Delete(&models.Follow{}).Error; err != nil {
				return err
			}
		}

		if len(quoteIDs) > 0 {
			if err := tx.Where("user_id = ?", id).Delete(&models.Quote{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Quote{}).
			Where("attribution_user_id = ?", id).
			Update("attribution_user_id", "").Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Username{}).Error; err != nil {
			return err
		}

		res := tx.Where("id = ?", id).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return models.NewInternalError(err)
	}
	return nil
}

// pgUniqueViolation is the Postgres SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
