package models

import (
	"strings"
	"time"
)

// Avatar color tags a profile may carry.
const (
	AvatarColorSage  = "sage"
	AvatarColorCream = "cream"
	AvatarColorMocha = "mocha"
	AvatarColorOlive = "olive"
	AvatarColorTaupe = "taupe"
	AvatarColorLime  = "lime"
)

var avatarColors = map[string]struct{}{
	AvatarColorSage:  {},
	AvatarColorCream: {},
	AvatarColorMocha: {},
	AvatarColorOlive: {},
	AvatarColorTaupe: {},
	AvatarColorLime:  {},
}

// User is a public profile. ID equals the authentication identity.
type User struct {
	ID             string     `gorm:"primaryKey;size:64" json:"id"`
	Username       string     `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Bio            string     `gorm:"type:text" json:"bio"`
	ProfileAvatar  string     `json:"profile_avatar"`
	AvatarColor    string     `gorm:"size:16" json:"avatar_color"`
	IsPrivate      bool       `gorm:"not null;default:false" json:"is_private"`
	FollowerCount  int        `gorm:"not null;default:0" json:"follower_count"`
	FollowingCount int        `gorm:"not null;default:0" json:"following_count"`
	QuoteCount     int        `gorm:"not null;default:0" json:"quote_count"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActive     *time.Time `json:"last_active,omitempty"`
}

// ApplyDefaults fills fields a stored profile may be missing.
func (u *User) ApplyDefaults() {
	if !IsAvatarColor(u.AvatarColor) {
		u.AvatarColor = AvatarColorSage
	}
	if u.FollowerCount < 0 {
		u.FollowerCount = 0
	}
	if u.FollowingCount < 0 {
		u.FollowingCount = 0
	}
	if u.QuoteCount < 0 {
		u.QuoteCount = 0
	}
}

// IsAvatarColor reports whether tag is a known avatar color.
func IsAvatarColor(tag string) bool {
	_, ok := avatarColors[tag]
	return ok
}

// NormalizeUsername lowercases and trims a username for storage and search.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Username reserves a username for a user. The username is the primary key.
type Username struct {
	Username  string    `gorm:"primaryKey;size:64" json:"username"`
	UserID    string    `gorm:"size:64;not null;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
