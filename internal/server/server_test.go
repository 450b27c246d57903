package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quoteit/internal/config"
	"quoteit/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "server-test-secret-with-enough-length"

type testServer struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		JWTSecret:          testJWTSecret,
		UserCacheSize:      100,
		FeedMaxQuotes:      200,
		FeedWindow:         48 * time.Hour,
		ProfileLoadTimeout: 5 * time.Second,
	}
	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(cfg, db, nil)
	require.NoError(t, err)

	return &testServer{srv: srv, app: srv.App(), db: db}
}

func tokenFor(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

// do sends a request as viewer (anonymous when empty) and returns status and body.
func (ts *testServer) do(t *testing.T, method, path, viewer string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if viewer != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, viewer))
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)

	resp := decode[map[string]any](t, body)
	assert.Equal(t, "healthy", resp["status"])
	checks := resp["checks"].(map[string]any)
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestAPIRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/feed", "/api/me", "/api/users/search?q=a"} {
		status, _ := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, path)
	}
}

func TestProfileLifecycle(t *testing.T) {
	ts := newTestServer(t)
	viewer := "auth-user-1"

	status, _ := ts.do(t, http.MethodGet, "/api/me", viewer, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body := ts.do(t, http.MethodPost, "/api/me", viewer, map[string]any{
		"username":     "Reader.One",
		"bio":          "hello",
		"avatar_color": "olive",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	created := decode[map[string]any](t, body)
	assert.Equal(t, viewer, created["id"])
	assert.Equal(t, "reader.one", created["username"])

	status, _ = ts.do(t, http.MethodPost, "/api/me", "auth-user-2", map[string]any{"username": "reader.one"})
	assert.Equal(t, http.StatusConflict, status)

	status, body = ts.do(t, http.MethodGet, "/api/me", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", decode[map[string]any](t, body)["bio"])

	status, body = ts.do(t, http.MethodPut, "/api/me", viewer, map[string]any{"bio": "updated"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "updated", decode[map[string]any](t, body)["bio"])

	status, _ = ts.do(t, http.MethodPut, "/api/me", viewer, map[string]any{"avatar_color": "purple"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = ts.do(t, http.MethodPost, "/api/me/privacy", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, body)["is_private"])

	status, body = ts.do(t, http.MethodGet, "/api/users/by-username/reader.one", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, viewer, decode[map[string]any](t, body)["id"])

	status, _ = ts.do(t, http.MethodGet, "/api/users/by-username/nobody", viewer, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = ts.do(t, http.MethodGet, "/api/users/search?q=read", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	status, body = ts.do(t, http.MethodGet, "/api/usernames/suggestion", viewer, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, decode[map[string]string](t, body)["username"])

	status, _ = ts.do(t, http.MethodDelete, "/api/me", viewer, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = ts.do(t, http.MethodGet, "/api/users/"+viewer, viewer, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestQuoteLifecycle(t *testing.T) {
	ts := newTestServer(t)
	author := testutil.CreateUser(t, ts.db, "author")
	reader := testutil.CreateUser(t, ts.db, "reader")

	status, _ := ts.do(t, http.MethodPost, "/api/quotes", author.ID, map[string]any{"transcription": "  "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := ts.do(t, http.MethodPost, "/api/quotes", author.ID, map[string]any{
		"transcription": "To be or not to be",
		"attribution":   "reader",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	quote := decode[map[string]any](t, body)
	quoteID := quote["id"].(string)
	assert.Equal(t, "New Quote", quote["title"])
	assert.Equal(t, reader.ID, quote["attribution_user_id"])
	assert.NotEmpty(t, quote["relative_time"])

	status, body = ts.do(t, http.MethodPost, "/api/quotes/"+quoteID+"/like", reader.ID, nil)
	require.Equal(t, http.StatusOK, status)
	liked := decode[map[string]any](t, body)
	assert.EqualValues(t, 1, liked["likes"])
	assert.Equal(t, true, liked["liked"])

	status, body = ts.do(t, http.MethodGet, "/api/quotes/"+quoteID+"/like", reader.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]bool](t, body)["liked"])

	status, body = ts.do(t, http.MethodGet, "/api/me/likes", reader.ID, nil)
	require.Equal(t, http.StatusOK, status)
	likes := decode[[]map[string]any](t, body)
	require.Len(t, likes, 1)
	assert.Equal(t, quoteID, likes[0]["id"])

	status, _ = ts.do(t, http.MethodPut, "/api/quotes/"+quoteID, reader.ID, map[string]any{"title": "mine"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = ts.do(t, http.MethodPut, "/api/quotes/"+quoteID, author.ID, map[string]any{"title": "Hamlet"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Hamlet", decode[map[string]any](t, body)["title"])

	status, _ = ts.do(t, http.MethodPost, "/api/quotes/"+quoteID+"/report", reader.ID, map[string]any{"reason": ""})
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = ts.do(t, http.MethodPost, "/api/quotes/"+quoteID+"/report", reader.ID, map[string]any{"reason": "spam"})
	assert.Equal(t, http.StatusCreated, status)

	status, _ = ts.do(t, http.MethodDelete, "/api/quotes/"+quoteID, reader.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = ts.do(t, http.MethodDelete, "/api/quotes/"+quoteID, author.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = ts.do(t, http.MethodPost, "/api/quotes/"+quoteID+"/like", reader.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUserQuotesRespectPrivacy(t *testing.T) {
	ts := newTestServer(t)
	owner := testutil.CreateUser(t, ts.db, "owner")
	other := testutil.CreateUser(t, ts.db, "other")
	testutil.CreateQuote(t, ts.db, owner.ID, time.Hour, false)
	testutil.CreateQuote(t, ts.db, owner.ID, 2*time.Hour, true)

	_, body := ts.do(t, http.MethodGet, "/api/users/"+owner.ID+"/quotes", owner.ID, nil)
	assert.Len(t, decode[[]map[string]any](t, body), 2)

	_, body = ts.do(t, http.MethodGet, "/api/users/"+owner.ID+"/quotes", other.ID, nil)
	quotes := decode[[]map[string]any](t, body)
	require.Len(t, quotes, 1)
	assert.Equal(t, "1h ago", quotes[0]["relative_time"])
}

func TestFollowAndFeed(t *testing.T) {
	ts := newTestServer(t)
	viewer := testutil.CreateUser(t, ts.db, "viewer")
	writer := testutil.CreateUser(t, ts.db, "writer")
	recent := testutil.CreateQuote(t, ts.db, writer.ID, time.Hour, false)

	status, _ := ts.do(t, http.MethodPost, "/api/users/"+viewer.ID+"/follow", viewer.ID, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := ts.do(t, http.MethodPost, "/api/users/"+writer.ID+"/follow", viewer.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decode[map[string]bool](t, body)["following"])

	_, body = ts.do(t, http.MethodGet, "/api/users/"+writer.ID+"/follow", viewer.ID, nil)
	assert.Equal(t, true, decode[map[string]bool](t, body)["following"])

	_, body = ts.do(t, http.MethodGet, "/api/users/"+writer.ID+"/followers", viewer.ID, nil)
	followers := decode[[]map[string]any](t, body)
	require.Len(t, followers, 1)
	assert.Equal(t, viewer.ID, followers[0]["id"])

	_, body = ts.do(t, http.MethodGet, "/api/users/"+viewer.ID+"/following", viewer.ID, nil)
	assert.Len(t, decode[[]map[string]any](t, body), 1)

	_, body = ts.do(t, http.MethodGet, "/api/users/"+writer.ID, viewer.ID, nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, body)["follower_count"])

	status, body = ts.do(t, http.MethodGet, "/api/feed", viewer.ID, nil)
	require.Equal(t, http.StatusOK, status)
	feed := decode[[]map[string]any](t, body)
	require.Len(t, feed, 1)
	assert.Equal(t, recent.ID, feed[0]["id"])

	status, body = ts.do(t, http.MethodPost, "/api/users/"+writer.ID+"/follow", viewer.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, decode[map[string]bool](t, body)["following"])
}

func TestFeedStreamRequiresUpgrade(t *testing.T) {
	ts := newTestServer(t)
	viewer := testutil.CreateUser(t, ts.db, "streamer")

	req := httptest.NewRequest(http.MethodGet, "/ws/feed?token="+tokenFor(t, viewer.ID), nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)

	status, _ := ts.do(t, http.MethodGet, "/ws/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
