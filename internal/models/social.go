package models

import (
	"time"

	"gorm.io/gorm"
)

// Like records that a user liked a quote. At most one per (user, quote).
type Like struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:idx_likes_user_quote,priority:1" json:"user_id"`
	QuoteID   string    `gorm:"size:64;not null;uniqueIndex:idx_likes_user_quote,priority:2;index" json:"quote_id"`
	CreatedAt time.Time `json:"timestamp"`
}

func (l *Like) BeforeCreate(_ *gorm.DB) error {
	if l.ID == "" {
		l.ID = NewID()
	}
	return nil
}

// Follow is a directed edge: FollowerID follows FollowedID.
type Follow struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	FollowerID string    `gorm:"size:64;not null;uniqueIndex:idx_follows_pair,priority:1" json:"follower_id"`
	FollowedID string    `gorm:"size:64;not null;uniqueIndex:idx_follows_pair,priority:2;index" json:"followed_id"`
	CreatedAt  time.Time `json:"timestamp"`
}

func (f *Follow) BeforeCreate(_ *gorm.DB) error {
	if f.ID == "" {
		f.ID = NewID()
	}
	return nil
}

// Counterpart returns the endpoint of the edge that is not userID.
func (f *Follow) Counterpart(userID string) string {
	if f.FollowerID == userID {
		return f.FollowedID
	}
	return f.FollowerID
}
