package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"quoteit/internal/models"
	"quoteit/internal/notifications"
	"quoteit/internal/observability"
	"quoteit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultFeedMaxQuotes caps the recommended feed.
	DefaultFeedMaxQuotes = 200
	// DefaultFeedWindow is how far back the recommended feed looks for recent quotes.
	DefaultFeedWindow = 48 * time.Hour
)

// QuoteSubscriber attaches listeners to the live quote-change stream.
type QuoteSubscriber interface {
	SubscribeQuotes(ctx context.Context, onQuote func(models.Quote)) (notifications.Subscription, error)
}

// FeedOptions tune recommended-feed assembly.
type FeedOptions struct {
	MaxQuotes int
	Window    time.Duration
	Now       func() time.Time
}

func (o FeedOptions) withDefaults() FeedOptions {
	if o.MaxQuotes <= 0 {
		o.MaxQuotes = DefaultFeedMaxQuotes
	}
	if o.Window <= 0 {
		o.Window = DefaultFeedWindow
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// FeedService builds Feed instances over shared repositories.
type FeedService struct {
	quoteRepo  repository.QuoteRepository
	likeRepo   repository.LikeRepository
	followRepo repository.FollowRepository
	subscriber QuoteSubscriber
	opts       FeedOptions
}

// NewFeedService returns a new FeedService. subscriber may be nil, in which case
// feeds never receive live updates.
func NewFeedService(
	quoteRepo repository.QuoteRepository,
	likeRepo repository.LikeRepository,
	followRepo repository.FollowRepository,
	subscriber QuoteSubscriber,
	opts FeedOptions,
) *FeedService {
	return &FeedService{
		quoteRepo:  quoteRepo,
		likeRepo:   likeRepo,
		followRepo: followRepo,
		subscriber: subscriber,
		opts:       opts.withDefaults(),
	}
}

// NewFeed returns a live feed showing userID's content to viewerID. Callers must Close it.
func (s *FeedService) NewFeed(userID, viewerID string) *Feed {
	return &Feed{svc: s, subscriber: s.subscriber, userID: userID, viewerID: viewerID}
}

// NewSnapshotFeed returns a feed that never subscribes to live updates.
func (s *FeedService) NewSnapshotFeed(userID, viewerID string) *Feed {
	return &Feed{svc: s, userID: userID, viewerID: viewerID}
}

// Feed holds one ordered list of quotes for a displayed user and a viewer, plus
// at most one live-update listener that patches that list in place.
type Feed struct {
	svc        *FeedService
	subscriber QuoteSubscriber

	mu       sync.Mutex
	userID   string
	viewerID string
	quotes   []models.Quote
	sub      notifications.Subscription
	onChange func([]models.Quote)
	closed   bool
}

// Quotes returns a copy of the current list.
func (f *Feed) Quotes() []models.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.quotes)
}

// OnChange registers fn to run after a live update replaced an entry.
func (f *Feed) OnChange(fn func([]models.Quote)) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// SetUser points the feed at another user, detaching the listener and clearing the list.
func (f *Feed) SetUser(userID string) {
	f.detach()
	f.mu.Lock()
	f.userID = userID
	f.quotes = nil
	f.mu.Unlock()
}

// Close detaches the live listener. The feed must not be reused afterwards.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.detach()
}

// GetQuotes loads the displayed user's quotes, newest first. Owners see their
// private quotes too.
func (f *Feed) GetQuotes(ctx context.Context) []models.Quote {
	userID, viewerID := f.ids()
	done := observability.TrackFeed("user")
	ctx, span := observability.StartSpan(ctx, "feed.user_quotes", attribute.String("feed.user_id", userID))
	defer span.End()

	quotes, err := f.svc.quoteRepo.ListByUser(ctx, userID, userID == viewerID)
	if err != nil {
		span.RecordError(err)
		observability.Logger.ErrorContext(ctx, "loading user quotes failed",
			slog.String("user_id", userID), slog.String("error", err.Error()))
	}

	out := make([]models.Quote, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, *q)
	}
	f.setQuotes(out)
	f.Subscribe(ctx)
	done(len(out))
	return out
}

// GetLikedQuotes loads the viewer's liked quotes, most recently liked first.
// Quotes are fetched one by one and the walk stops at the first failed fetch,
// keeping whatever was loaded before it.
func (f *Feed) GetLikedQuotes(ctx context.Context) []models.Quote {
	_, viewerID := f.ids()
	done := observability.TrackFeed("liked")
	ctx, span := observability.StartSpan(ctx, "feed.liked_quotes")
	defer span.End()

	out := []models.Quote{}
	likes, err := f.svc.likeRepo.ListByUser(ctx, viewerID)
	if err != nil {
		span.RecordError(err)
		observability.Logger.ErrorContext(ctx, "loading likes failed", slog.String("error", err.Error()))
	}
	for _, like := range likes {
		q, err := f.svc.quoteRepo.GetByID(ctx, like.QuoteID)
		if err != nil {
			observability.Logger.WarnContext(ctx, "stopping liked quotes at missing quote",
				slog.String("quote_id", like.QuoteID), slog.String("error", err.Error()))
			break
		}
		q.Liked = true
		out = append(out, *q)
	}

	f.setQuotes(out)
	f.Subscribe(ctx)
	done(len(out))
	return out
}

// GetRecommendedQuotes assembles the viewer's home feed: recent quotes from
// everyone the viewer shares a follow edge with (falling back to each user's
// latest public quote), then recent public quotes from anyone else, capped at
// MaxQuotes and returned oldest selected first.
func (f *Feed) GetRecommendedQuotes(ctx context.Context) []models.Quote {
	_, viewerID := f.ids()
	opts := f.svc.opts
	done := observability.TrackFeed("recommended")
	ctx, span := observability.StartSpan(ctx, "feed.recommended")
	defer span.End()

	since := opts.Now().Add(-opts.Window)
	sel := newQuoteSelection(opts.MaxQuotes)

	for _, userID := range f.relevantUsers(ctx, viewerID) {
		if sel.full() {
			break
		}
		quotes, err := f.svc.quoteRepo.ListPublicByUserSince(ctx, userID, since)
		if err != nil {
			observability.Logger.ErrorContext(ctx, "loading recent quotes failed",
				slog.String("user_id", userID), slog.String("error", err.Error()))
			continue
		}
		if len(quotes) == 0 {
			latest, err := f.svc.quoteRepo.LatestPublicByUser(ctx, userID)
			if err != nil {
				observability.Logger.ErrorContext(ctx, "loading latest quote failed",
					slog.String("user_id", userID), slog.String("error", err.Error()))
				continue
			}
			if latest != nil {
				quotes = append(quotes, latest)
			}
		}
		sel.addAll(quotes)
	}
	followed := sel.len()

	if !sel.full() {
		quotes, err := f.svc.quoteRepo.ListPublicSince(ctx, since, viewerID, opts.MaxQuotes-sel.len())
		if err != nil {
			observability.Logger.ErrorContext(ctx, "loading backfill quotes failed", slog.String("error", err.Error()))
		}
		sel.addAll(quotes)
	}

	out := sel.quotes
	slices.Reverse(out)
	span.SetAttributes(
		attribute.Int("feed.followed_quotes", followed),
		attribute.Int("feed.total_quotes", len(out)),
	)

	f.setQuotes(out)
	f.Subscribe(ctx)
	done(len(out))
	return out
}

// relevantUsers returns the counterpart of every follow edge touching viewerID,
// most recent edge first, without duplicates or the viewer.
func (f *Feed) relevantUsers(ctx context.Context, viewerID string) []string {
	edges, err := f.svc.followRepo.ListTouching(ctx, viewerID)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "loading follow edges failed", slog.String("error", err.Error()))
		return nil
	}
	seen := make(map[string]struct{}, len(edges))
	users := make([]string, 0, len(edges))
	for _, e := range edges {
		id := e.Counterpart(viewerID)
		if id == viewerID {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		users = append(users, id)
	}
	return users
}

// Subscribe attaches a live-update listener, detaching any previous one first.
// Snapshot feeds and closed feeds do nothing.
func (f *Feed) Subscribe(ctx context.Context) {
	f.detach()
	if f.subscriber == nil {
		return
	}

	sub, err := f.subscriber.SubscribeQuotes(ctx, f.applyChange)
	if err != nil {
		observability.Logger.ErrorContext(ctx, "feed subscription failed", slog.String("error", err.Error()))
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sub.Close()
		return
	}
	old := f.sub
	f.sub = sub
	f.mu.Unlock()

	if old != nil {
		old.Close()
	}
}

// applyChange replaces the matching entry in place. Order is never recomputed.
func (f *Feed) applyChange(q models.Quote) {
	f.mu.Lock()
	i := slices.IndexFunc(f.quotes, func(existing models.Quote) bool { return existing.ID == q.ID })
	if i < 0 {
		f.mu.Unlock()
		return
	}
	q.Liked = f.quotes[i].Liked
	f.quotes[i] = q
	snapshot := slices.Clone(f.quotes)
	fn := f.onChange
	f.mu.Unlock()

	if fn != nil {
		fn(snapshot)
	}
}

func (f *Feed) detach() {
	f.mu.Lock()
	old := f.sub
	f.sub = nil
	f.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

func (f *Feed) ids() (userID, viewerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userID, f.viewerID
}

// setQuotes stores a private copy so live updates never write into a slice
// already handed to a caller.
func (f *Feed) setQuotes(quotes []models.Quote) {
	owned := slices.Clone(quotes)
	f.mu.Lock()
	f.quotes = owned
	f.mu.Unlock()
}

// quoteSelection accumulates distinct quotes up to a limit.
type quoteSelection struct {
	limit  int
	seen   map[string]struct{}
	quotes []models.Quote
}

func newQuoteSelection(limit int) *quoteSelection {
	return &quoteSelection{limit: limit, seen: make(map[string]struct{}), quotes: []models.Quote{}}
}

func (s *quoteSelection) len() int   { return len(s.quotes) }
func (s *quoteSelection) full() bool { return len(s.quotes) >= s.limit }

func (s *quoteSelection) addAll(quotes []*models.Quote) {
	for _, q := range quotes {
		if s.full() {
			return
		}
		if _, ok := s.seen[q.ID]; ok {
			continue
		}
		s.seen[q.ID] = struct{}{}
		s.quotes = append(s.quotes, *q)
	}
}
