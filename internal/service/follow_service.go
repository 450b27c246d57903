package service

import (
	"context"
	"log/slog"

	"quoteit/internal/cache"
	"quoteit/internal/models"
	"quoteit/internal/observability"
	"quoteit/internal/repository"

	"golang.org/x/sync/errgroup"
)

// resolveConcurrency bounds parallel profile lookups when listing followers.
const resolveConcurrency = 8

// FollowService provides follow-graph business logic.
type FollowService struct {
	followRepo repository.FollowRepository
	users      *cache.UserCache
}

// NewFollowService returns a new FollowService.
func NewFollowService(followRepo repository.FollowRepository, users *cache.UserCache) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		users:      users,
	}
}

// ToggleFollow follows targetID when actorID does not follow them yet and
// unfollows otherwise. It reports whether actorID follows targetID afterwards.
func (s *FollowService) ToggleFollow(ctx context.Context, actorID, targetID string) (bool, error) {
	if actorID == targetID {
		return false, models.NewValidationError("Cannot follow yourself")
	}

	result, err := s.followRepo.Toggle(ctx, actorID, targetID)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "toggle follow failed",
			slog.String("target_id", targetID), slog.String("error", err.Error()))
		return false, err
	}

	// Committed values, not deltas: a profile cached after the commit already counts this toggle.
	s.users.Update(actorID, func(u *models.User) { u.FollowingCount = result.FollowingCount })
	s.users.Update(targetID, func(u *models.User) { u.FollowerCount = result.FollowerCount })

	return result.Following, nil
}

// IsFollowing reports whether actorID follows targetID. Lookup failures read as false.
func (s *FollowService) IsFollowing(ctx context.Context, actorID, targetID string) bool {
	ok, err := s.followRepo.Exists(ctx, actorID, targetID)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "follow lookup failed",
			slog.String("target_id", targetID), slog.String("error", err.Error()))
		return false
	}
	return ok
}

// GetFollowers returns the users following userID, newest edge first.
func (s *FollowService) GetFollowers(ctx context.Context, userID string) ([]models.User, error) {
	edges, err := s.followRepo.ListFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowerID
	}
	return s.resolveUsers(ctx, ids), nil
}

// GetFollowing returns the users userID follows, newest edge first.
func (s *FollowService) GetFollowing(ctx context.Context, userID string) ([]models.User, error) {
	edges, err := s.followRepo.ListFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.FollowedID
	}
	return s.resolveUsers(ctx, ids), nil
}

// resolveUsers looks every id up through the cache in parallel. Ids that fail to
// resolve are dropped; the rest keep their input order.
func (s *FollowService) resolveUsers(ctx context.Context, ids []string) []models.User {
	resolved := make([]*models.User, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			u, err := s.users.Get(gctx, id)
			if err != nil {
				observability.Logger.WarnContext(gctx, "dropping unresolvable user",
					slog.String("user_id", id), slog.String("error", err.Error()))
				return nil
			}
			resolved[i] = u
			return nil
		})
	}
	_ = g.Wait()

	users := make([]models.User, 0, len(ids))
	for _, u := range resolved {
		if u != nil {
			users = append(users, *u)
		}
	}
	return users
}
