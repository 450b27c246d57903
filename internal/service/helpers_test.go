package service

import (
	"context"
	"sync"
	"testing"

	"quoteit/internal/cache"
	"quoteit/internal/models"
	"quoteit/internal/notifications"
	"quoteit/internal/repository"
	"quoteit/internal/testutil"

	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	quotes   repository.QuoteRepository
	likes    repository.LikeRepository
	follows  repository.FollowRepository
	users    repository.UserRepository
	reports  repository.ReportRepository
	cache    *cache.UserCache
	notifier *fakeNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	users := repository.NewUserRepository(db)
	return &testEnv{
		db:       db,
		quotes:   repository.NewQuoteRepository(db),
		likes:    repository.NewLikeRepository(db),
		follows:  repository.NewFollowRepository(db),
		users:    users,
		reports:  repository.NewReportRepository(db),
		cache:    cache.NewUserCache(users, cache.DefaultUserCacheSize),
		notifier: newFakeNotifier(),
	}
}

func (e *testEnv) quoteService() *QuoteService {
	return NewQuoteService(e.quotes, e.likes, e.users, e.reports, e.notifier)
}

func (e *testEnv) followService() *FollowService {
	return NewFollowService(e.follows, e.cache)
}

func (e *testEnv) userService() *UserService {
	return NewUserService(e.users, e.cache, 0)
}

func (e *testEnv) feedService(opts FeedOptions) *FeedService {
	return NewFeedService(e.quotes, e.likes, e.follows, e.notifier, opts)
}

// fakeNotifier records publishes and delivers them synchronously to subscribers.
type fakeNotifier struct {
	mu        sync.Mutex
	published []models.Quote
	handlers  map[int]func(models.Quote)
	nextID    int
	closed    int
	publishFn func(q *models.Quote) error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{handlers: map[int]func(models.Quote){}}
}

func (n *fakeNotifier) PublishQuoteChanged(_ context.Context, q *models.Quote) error {
	if n.publishFn != nil {
		if err := n.publishFn(q); err != nil {
			return err
		}
	}
	n.mu.Lock()
	n.published = append(n.published, *q)
	n.mu.Unlock()
	n.emit(*q)
	return nil
}

func (n *fakeNotifier) SubscribeQuotes(_ context.Context, fn func(models.Quote)) (notifications.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = fn
	return &fakeSubscription{n: n, id: id}, nil
}

func (n *fakeNotifier) emit(q models.Quote) {
	n.mu.Lock()
	handlers := make([]func(models.Quote), 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()
	for _, h := range handlers {
		h(q)
	}
}

func (n *fakeNotifier) active() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.handlers)
}

func (n *fakeNotifier) publishedIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, len(n.published))
	for i, q := range n.published {
		ids[i] = q.ID
	}
	return ids
}

type fakeSubscription struct {
	n    *fakeNotifier
	id   int
	once sync.Once
}

func (s *fakeSubscription) Close() {
	s.once.Do(func() {
		s.n.mu.Lock()
		delete(s.n.handlers, s.id)
		s.n.closed++
		s.n.mu.Unlock()
	})
}

func quoteIDs(quotes []models.Quote) []string {
	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
	}
	return ids
}
