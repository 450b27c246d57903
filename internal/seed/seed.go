// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"quoteit/internal/models"
	"quoteit/internal/observability"
	"quoteit/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	Users          int
	QuotesPerUser  int
	FollowsPerUser int
	LikesPerUser   int
	// MaxAge spreads quote timestamps over this window back from now.
	MaxAge time.Duration
	Clean  bool
	// RandSeed makes runs reproducible; zero picks a time-based seed.
	RandSeed int64
}

// DefaultOptions returns a small but connected demo graph.
func DefaultOptions() Options {
	return Options{
		Users:          50,
		QuotesPerUser:  6,
		FollowsPerUser: 8,
		LikesPerUser:   15,
		MaxAge:         14 * 24 * time.Hour,
		Clean:          true,
	}
}

// Summary counts what a seeding run created.
type Summary struct {
	Users   int
	Quotes  int
	Follows int
	Likes   int
}

// Seeder writes demo data through the repositories so every counter stays
// consistent with the rows it summarises.
type Seeder struct {
	db      *gorm.DB
	users   repository.UserRepository
	quotes  repository.QuoteRepository
	follows repository.FollowRepository
	likes   repository.LikeRepository
}

// NewSeeder returns a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:      db,
		users:   repository.NewUserRepository(db),
		quotes:  repository.NewQuoteRepository(db),
		follows: repository.NewFollowRepository(db),
		likes:   repository.NewLikeRepository(db),
	}
}

var usernameUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

var avatarColors = []string{
	models.AvatarColorSage, models.AvatarColorCream, models.AvatarColorMocha,
	models.AvatarColorOlive, models.AvatarColorTaupe, models.AvatarColorLime,
}

// Run seeds users, quotes, follow edges and likes.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.RandSeed == 0 {
		opts.RandSeed = time.Now().UnixNano()
	}
	faker := gofakeit.New(opts.RandSeed)

	if opts.Clean {
		if err := s.ClearAll(); err != nil {
			return sum, fmt.Errorf("clear data: %w", err)
		}
	}

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u := &models.User{
			ID:          models.NewID(),
			Username:    fakeUsername(faker, i),
			Bio:         faker.Sentence(8),
			AvatarColor: faker.RandomString(avatarColors),
			IsPrivate:   faker.Number(1, 10) == 1,
		}
		if err := s.users.CreateWithUsername(ctx, u); err != nil {
			return sum, fmt.Errorf("create user %s: %w", u.Username, err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	quotes := make([]*models.Quote, 0, opts.Users*opts.QuotesPerUser)
	for _, u := range users {
		for j := 0; j < opts.QuotesPerUser; j++ {
			q := fakeQuote(faker, u, users, opts.MaxAge)
			if err := s.quotes.Create(ctx, q); err != nil {
				return sum, fmt.Errorf("create quote: %w", err)
			}
			if err := s.users.AdjustQuoteCount(ctx, u.ID, 1); err != nil {
				return sum, fmt.Errorf("adjust quote count: %w", err)
			}
			quotes = append(quotes, q)
		}
	}
	sum.Quotes = len(quotes)

	if len(users) > 1 {
		for _, u := range users {
			for _, target := range pickDistinct(faker, len(users), opts.FollowsPerUser, func(i int) bool { return users[i].ID == u.ID }) {
				if _, err := s.follows.Toggle(ctx, u.ID, users[target].ID); err != nil {
					return sum, fmt.Errorf("follow: %w", err)
				}
				sum.Follows++
			}
		}
	}

	if len(quotes) > 0 {
		for _, u := range users {
			for _, idx := range pickDistinct(faker, len(quotes), opts.LikesPerUser, func(i int) bool { return quotes[i].IsPrivate }) {
				if _, err := s.likes.Toggle(ctx, u.ID, quotes[idx].ID); err != nil {
					return sum, fmt.Errorf("like: %w", err)
				}
				sum.Likes++
			}
		}
	}

	observability.Logger.InfoContext(ctx, "seeding complete",
		slog.Int("users", sum.Users),
		slog.Int("quotes", sum.Quotes),
		slog.Int("follows", sum.Follows),
		slog.Int("likes", sum.Likes),
	)
	return sum, nil
}

// ClearAll deletes every row the application owns.
func (s *Seeder) ClearAll() error {
	tables := []any{&models.Report{}, &models.Like{}, &models.Follow{}, &models.Quote{}, &models.Username{}, &models.User{}}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, model := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func fakeUsername(faker *gofakeit.Faker, i int) string {
	base := usernameUnsafe.ReplaceAllString(strings.ToLower(faker.Username()), "")
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "reader"
	}
	return fmt.Sprintf("%s.%d", base, i)
}

func fakeQuote(faker *gofakeit.Faker, author *models.User, users []*models.User, maxAge time.Duration) *models.Quote {
	q := &models.Quote{
		Title:         models.DefaultQuoteTitle,
		Transcription: faker.Sentence(faker.Number(6, 18)),
		UserID:        author.ID,
		IsPrivate:     faker.Number(1, 8) == 1,
	}
	if maxAge > 0 {
		minutes := faker.Number(0, int(maxAge/time.Minute))
		q.CreatedAt = time.Now().UTC().Add(-time.Duration(minutes) * time.Minute)
	}
	switch faker.Number(1, 4) {
	case 1:
		linked := users[faker.Number(0, len(users)-1)]
		q.Attribution = linked.Username
		q.AttributionUserID = linked.ID
	case 2:
		q.Attribution = faker.Name()
	}
	return q
}

// pickDistinct returns up to n distinct indexes below size, skipping excluded ones.
func pickDistinct(faker *gofakeit.Faker, size, n int, exclude func(int) bool) []int {
	candidates := make([]int, 0, size)
	for i := 0; i < size; i++ {
		if !exclude(i) {
			candidates = append(candidates, i)
		}
	}
	faker.ShuffleAnySlice(candidates)
	if n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates
}
