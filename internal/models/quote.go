// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultQuoteTitle is the title given to quotes published from a transcription.
const DefaultQuoteTitle = "New Quote"

// Quote is a published (or private) transcribed quote.
type Quote struct {
	ID                string    `gorm:"primaryKey;size:64" json:"id"`
	Title             string    `gorm:"not null" json:"title"`
	Transcription     string    `gorm:"type:text;not null" json:"transcription"`
	UserID            string    `gorm:"size:64;not null;index:idx_quotes_user_created,priority:1" json:"user_id"`
	Likes             int       `gorm:"not null;default:0" json:"likes"`
	IsPrivate         bool      `gorm:"not null;default:false;index" json:"is_private"`
	Attribution       string    `json:"attribution"`
	AttributionUserID string    `gorm:"size:64;index" json:"attribution_user_id"`
	CreatedAt         time.Time `gorm:"index:idx_quotes_user_created,priority:2;index" json:"timestamp"`
	UpdatedAt         time.Time `json:"-"`

	// Liked indicates whether the requesting user liked this quote (computed)
	Liked bool `gorm:"-" json:"liked"`
}

// BeforeCreate assigns an id when the caller did not provide one.
func (q *Quote) BeforeCreate(_ *gorm.DB) error {
	if q.ID == "" {
		q.ID = NewID()
	}
	return nil
}

// HasAttributionUser reports whether the quote links to another user.
func (q *Quote) HasAttributionUser() bool {
	return q.AttributionUserID != ""
}

// Report flags a quote for moderation.
type Report struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	QuoteID   string    `gorm:"size:64;not null;index" json:"quote_id"`
	Reason    string    `gorm:"type:text" json:"reason"`
	UserID    string    `gorm:"size:64;not null" json:"user_reporting"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Report) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	return nil
}
