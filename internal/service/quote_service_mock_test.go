package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"quoteit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockQuoteRepository is a mock of the QuoteRepository interface
type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	args := m.Called(ctx, quote)
	return args.Error(0)
}

func (m *MockQuoteRepository) GetByID(ctx context.Context, id string) (*models.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteRepository) ListByUser(ctx context.Context, userID string, includePrivate bool) ([]*models.Quote, error) {
	args := m.Called(ctx, userID, includePrivate)
	return args.Get(0).([]*models.Quote), args.Error(1)
}

func (m *MockQuoteRepository) ListPublicByUserSince(ctx context.Context, userID string, since time.Time) ([]*models.Quote, error) {
	args := m.Called(ctx, userID, since)
	return args.Get(0).([]*models.Quote), args.Error(1)
}

func (m *MockQuoteRepository) LatestPublicByUser(ctx context.Context, userID string) (*models.Quote, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteRepository) ListPublicSince(ctx context.Context, since time.Time, excludeUserID string, limit int) ([]*models.Quote, error) {
	args := m.Called(ctx, since, excludeUserID, limit)
	return args.Get(0).([]*models.Quote), args.Error(1)
}

func (m *MockQuoteRepository) Update(ctx context.Context, id string, updates map[string]any) (*models.Quote, error) {
	args := m.Called(ctx, id, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *MockQuoteRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestQuoteService_UpdateQuoteStoreErrors(t *testing.T) {
	title := "edited"
	existing := &models.Quote{ID: "q1", UserID: "author", Title: "old"}

	tests := []struct {
		name     string
		updateFn func(m *MockQuoteRepository)
		wantCode string
	}{
		{
			name: "store failure maps to update failed",
			updateFn: func(m *MockQuoteRepository) {
				m.On("Update", mock.Anything, "q1", map[string]any{"title": title}).
					Return(nil, errors.New("connection reset"))
			},
			wantCode: models.CodeUpdateFailed,
		},
		{
			name: "vanished quote stays not found",
			updateFn: func(m *MockQuoteRepository) {
				m.On("Update", mock.Anything, "q1", map[string]any{"title": title}).
					Return(nil, models.NewNotFoundError("Quote", "q1"))
			},
			wantCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockQuoteRepository)
			repo.On("GetByID", mock.Anything, "q1").Return(existing, nil)
			tt.updateFn(repo)
			notifier := newFakeNotifier()

			svc := NewQuoteService(repo, nil, nil, nil, notifier)
			_, err := svc.UpdateQuote(context.Background(), "author", "q1", QuoteUpdate{Title: &title})

			require.Error(t, err)
			assert.True(t, models.HasCode(err, tt.wantCode), err.Error())
			assert.Empty(t, notifier.publishedIDs())
			repo.AssertExpectations(t)
		})
	}
}

func TestQuoteService_UpdateQuoteWithoutChangesSkipsStore(t *testing.T) {
	repo := new(MockQuoteRepository)
	repo.On("GetByID", mock.Anything, "q1").Return(&models.Quote{ID: "q1", UserID: "author"}, nil)

	svc := NewQuoteService(repo, nil, nil, nil, newFakeNotifier())
	quote, err := svc.UpdateQuote(context.Background(), "author", "q1", QuoteUpdate{})

	require.NoError(t, err)
	assert.Equal(t, "q1", quote.ID)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}
