// Package service contains business logic for users, the follow graph, quotes and feeds.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"quoteit/internal/cache"
	"quoteit/internal/models"
	"quoteit/internal/observability"
	"quoteit/internal/repository"
)

const (
	// SearchLimit caps username search results.
	SearchLimit = 10
	// DefaultLoadTimeout bounds LoadCurrentUser.
	DefaultLoadTimeout = 10 * time.Second

	generateAttempts = 25
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,29}$`)

var (
	usernameAdjectives = []string{
		"happy", "brave", "wise", "calm", "bold", "kind", "swift", "witty", "cool", "eager",
		"quiet", "smart", "loyal", "sharp", "quick", "deep", "bright", "wild", "gentle", "clever",
		"mighty", "noble", "proud", "silent", "tough", "warm", "fresh", "keen", "grand", "jolly",
	}
	usernameNouns = []string{
		"tiger", "eagle", "wolf", "fox", "panda", "dragon", "shark", "raven", "hawk", "bear",
		"falcon", "dolphin", "phoenix", "badger", "lynx", "owl", "koala", "whale", "jaguar", "raccoon",
		"turtle", "otter", "robot", "ninja", "pirate", "wizard", "hunter", "knight", "ranger", "sage",
	}
)

// CreateUserInput carries the profile of a newly registered user. ID is the
// authentication identity.
type CreateUserInput struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Bio           string `json:"bio"`
	ProfileAvatar string `json:"profile_avatar"`
	AvatarColor   string `json:"avatar_color"`
	IsPrivate     bool   `json:"is_private"`
}

// ProfileUpdate lists the profile fields a user may change. Nil fields are left alone.
type ProfileUpdate struct {
	Bio           *string `json:"bio"`
	ProfileAvatar *string `json:"profile_avatar"`
	AvatarColor   *string `json:"avatar_color"`
	IsPrivate     *bool   `json:"is_private"`
}

// UserService provides profile lookup, search and account lifecycle logic.
type UserService struct {
	userRepo    repository.UserRepository
	users       *cache.UserCache
	loadTimeout time.Duration
}

// NewUserService returns a new UserService.
func NewUserService(userRepo repository.UserRepository, users *cache.UserCache, loadTimeout time.Duration) *UserService {
	if loadTimeout <= 0 {
		loadTimeout = DefaultLoadTimeout
	}
	return &UserService{
		userRepo:    userRepo,
		users:       users,
		loadTimeout: loadTimeout,
	}
}

// FetchUser returns the profile for id through the user cache.
func (s *UserService) FetchUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.Get(ctx, id)
}

// FetchUserByUsername returns nil, nil when no user holds username.
func (s *UserService) FetchUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	user.ApplyDefaults()
	return user, nil
}

// SearchUser returns up to SearchLimit users whose username starts with prefix.
// Lookup failures are logged and produce an empty result.
func (s *UserService) SearchUser(ctx context.Context, prefix string) []models.User {
	prefix = models.NormalizeUsername(prefix)
	if prefix == "" {
		return []models.User{}
	}

	users, err := s.userRepo.SearchByPrefix(ctx, prefix, SearchLimit)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "user search failed",
			slog.String("prefix", prefix), slog.String("error", err.Error()))
		return []models.User{}
	}
	for i := range users {
		users[i].ApplyDefaults()
	}
	return users
}

// UpdateUserProfile merges the update into the stored profile and refreshes the cached copy.
func (s *UserService) UpdateUserProfile(ctx context.Context, id string, in ProfileUpdate) (*models.User, error) {
	updates := map[string]any{}
	if in.Bio != nil {
		updates["bio"] = *in.Bio
	}
	if in.ProfileAvatar != nil {
		updates["profile_avatar"] = *in.ProfileAvatar
	}
	if in.AvatarColor != nil {
		if !models.IsAvatarColor(*in.AvatarColor) {
			return nil, models.NewValidationError("unknown avatar color " + *in.AvatarColor)
		}
		updates["avatar_color"] = *in.AvatarColor
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}
	if len(updates) == 0 {
		return s.FetchUser(ctx, id)
	}

	return s.applyUpdate(ctx, id, updates)
}

// TogglePrivacy flips the user's privacy flag.
func (s *UserService) TogglePrivacy(ctx context.Context, id string) (*models.User, error) {
	current, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyUpdate(ctx, id, map[string]any{"is_private": !current.IsPrivate})
}

func (s *UserService) applyUpdate(ctx context.Context, id string, updates map[string]any) (*models.User, error) {
	user, err := s.userRepo.Update(ctx, id, updates)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			return nil, err
		}
		return nil, models.NewUpdateError("user", err)
	}
	user.ApplyDefaults()
	s.users.Replace(user)
	return user, nil
}

// LoadCurrentUser fetches the signed-in user's profile, giving up after the
// configured timeout.
func (s *UserService) LoadCurrentUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	type result struct {
		user *models.User
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		u, err := s.FetchUser(ctx, id)
		ch <- result{user: u, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) {
			return nil, models.NewTimeoutError("load current user", r.err)
		}
		return r.user, r.err
	case <-ctx.Done():
		return nil, models.NewTimeoutError("load current user", ctx.Err())
	}
}

// CreateUser registers a profile and reserves its username atomically.
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, models.NewValidationError("user id is required")
	}
	username := models.NormalizeUsername(in.Username)
	if !usernamePattern.MatchString(username) {
		return nil, models.NewValidationError("username must be 3-30 characters of letters, digits, '.', '_' or '-'")
	}
	if in.AvatarColor != "" && !models.IsAvatarColor(in.AvatarColor) {
		return nil, models.NewValidationError("unknown avatar color " + in.AvatarColor)
	}

	user := &models.User{
		ID:            in.ID,
		Username:      username,
		Bio:           in.Bio,
		ProfileAvatar: in.ProfileAvatar,
		AvatarColor:   in.AvatarColor,
		IsPrivate:     in.IsPrivate,
	}
	user.ApplyDefaults()

	if err := s.userRepo.CreateWithUsername(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GenerateUsername proposes an unreserved adjective-noun username.
func (s *UserService) GenerateUsername(ctx context.Context) (string, error) {
	for attempt := 0; attempt < generateAttempts; attempt++ {
		candidate := randomUsername()
		if attempt >= generateAttempts/2 {
			candidate = fmt.Sprintf("%s-%d", candidate, rand.IntN(1000))
		}
		taken, err := s.userRepo.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", models.NewConflictError("could not find an available username")
}

func randomUsername() string {
	adj := usernameAdjectives[rand.IntN(len(usernameAdjectives))]
	noun := usernameNouns[rand.IntN(len(usernameNouns))]
	return adj + "-" + noun
}

// DeleteUser removes the account and everything that references it. Counters of
// other users change too, so the whole profile cache is dropped afterwards.
func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	if err := s.userRepo.DeleteCascade(ctx, id); err != nil {
		return err
	}
	s.users.Reset()
	observability.Logger.InfoContext(ctx, "user deleted", slog.String("user_id", id))
	return nil
}
