package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quoteit/internal/cache"
	"quoteit/internal/models"
	"quoteit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_CreateAndFetch(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	u, err := svc.CreateUser(ctx, CreateUserInput{ID: "auth-1", Username: "Calm-Otter"})
	require.NoError(t, err)
	assert.Equal(t, "calm-otter", u.Username)
	assert.Equal(t, models.AvatarColorSage, u.AvatarColor)

	fetched, err := svc.FetchUser(ctx, "auth-1")
	require.NoError(t, err)
	assert.Equal(t, "calm-otter", fetched.Username)

	byName, err := svc.FetchUserByUsername(ctx, "calm-otter")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "auth-1", byName.ID)

	missing, err := svc.FetchUserByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = svc.FetchUser(ctx, "nobody")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateUserInput
		code string
	}{
		{"missing id", CreateUserInput{Username: "valid-name"}, models.CodeValidation},
		{"short username", CreateUserInput{ID: "x", Username: "ab"}, models.CodeValidation},
		{"bad characters", CreateUserInput{ID: "x", Username: "no spaces"}, models.CodeValidation},
		{"bad color", CreateUserInput{ID: "x", Username: "valid-name", AvatarColor: "neon"}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, tt.in)
			assert.True(t, models.HasCode(err, tt.code))
		})
	}

	_, err := svc.CreateUser(ctx, CreateUserInput{ID: "a", Username: "taken-name"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserInput{ID: "b", Username: "taken-name"})
	assert.True(t, models.HasCode(err, models.CodeConflict))
}

func TestUserService_SearchUser(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	for _, name := range []string{"brave-fox", "brave-owl", "bright-owl", "calm-bear"} {
		testutil.CreateUser(t, env.db, name)
	}

	assert.Empty(t, svc.SearchUser(ctx, ""))

	results := svc.SearchUser(ctx, "BRAVE")
	require.Len(t, results, 2)
	assert.Equal(t, "brave-fox", results[0].Username)
	assert.Equal(t, "brave-owl", results[1].Username)

	assert.Len(t, svc.SearchUser(ctx, "b"), 3)
	assert.Empty(t, svc.SearchUser(ctx, "zzz"))
}

func TestUserService_UpdateProfileRefreshesCache(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	u := testutil.CreateUser(t, env.db, "writer")
	_, err := svc.FetchUser(ctx, u.ID)
	require.NoError(t, err)

	bio := "new bio"
	color := models.AvatarColorMocha
	updated, err := svc.UpdateUserProfile(ctx, u.ID, ProfileUpdate{Bio: &bio, AvatarColor: &color})
	require.NoError(t, err)
	assert.Equal(t, bio, updated.Bio)

	cached, err := svc.FetchUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, bio, cached.Bio)
	assert.Equal(t, models.AvatarColorMocha, cached.AvatarColor)

	bad := "neon"
	_, err = svc.UpdateUserProfile(ctx, u.ID, ProfileUpdate{AvatarColor: &bad})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = svc.UpdateUserProfile(ctx, "missing", ProfileUpdate{Bio: &bio})
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserService_TogglePrivacy(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	u := testutil.CreateUser(t, env.db, "shy")

	first, err := svc.TogglePrivacy(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, first.IsPrivate)

	second, err := svc.TogglePrivacy(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, second.IsPrivate)
}

func TestUserService_GenerateUsername(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()

	name, err := svc.GenerateUsername(context.Background())
	require.NoError(t, err)
	parts := strings.Split(name, "-")
	require.GreaterOrEqual(t, len(parts), 2)
	assert.Contains(t, usernameAdjectives, parts[0])
	assert.Contains(t, usernameNouns, parts[1])
}

type blockingLoader struct{}

func (blockingLoader) GetByID(ctx context.Context, _ string) (*models.User, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestUserService_LoadCurrentUserTimesOut(t *testing.T) {
	env := newTestEnv(t)
	svc := NewUserService(env.users, cache.NewUserCache(blockingLoader{}, 10), 20*time.Millisecond)

	_, err := svc.LoadCurrentUser(context.Background(), "anyone")
	assert.True(t, models.HasCode(err, models.CodeTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestUserService_LoadCurrentUser(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()

	u := testutil.CreateUser(t, env.db, "me")
	loaded, err := svc.LoadCurrentUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "me", loaded.Username)
}

func TestUserService_DeleteUser(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	u := testutil.CreateUser(t, env.db, "leaving")
	follower := testutil.CreateUser(t, env.db, "stays")
	testutil.Follow(t, env.db, follower.ID, u.ID, time.Hour)

	_, err := svc.FetchUser(ctx, follower.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	assert.Zero(t, env.cache.Len())

	_, err = svc.FetchUser(ctx, u.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	refreshed, err := svc.FetchUser(ctx, follower.ID)
	require.NoError(t, err)
	assert.Zero(t, refreshed.FollowingCount)
}
