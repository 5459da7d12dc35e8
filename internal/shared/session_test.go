package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewSessionManager(client, "test_session", "secret", time.Hour, false)
}

func TestIssueAndLoadByID(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	issued, err := sm.Issue(ctx, Identity{UserID: 7, Username: "ravi", Role: "pwi"})
	require.NoError(t, err)
	require.NotEmpty(t, issued.ID)

	loaded, err := sm.LoadByID(ctx, issued.ID)
	require.NoError(t, err)
	identity, ok := loaded.Identity()
	require.True(t, ok)
	assert.Equal(t, Identity{UserID: 7, Username: "ravi", Role: "pwi"}, identity)
}

func TestLoadByIDUnknown(t *testing.T) {
	sm := newTestSessionManager(t)
	_, err := sm.LoadByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadPrefersBearerToken(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()
	issued, err := sm.Issue(ctx, Identity{UserID: 1, Username: "admin", Role: "admin"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+issued.ID)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "other"})

	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, sess.ID)
	assert.True(t, sess.ViaBearer())
	assert.True(t, sess.Authenticated())
}

func TestLoadWithoutCredentialsIsAnonymous(t *testing.T) {
	sm := newTestSessionManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.NotEmpty(t, sess.ID)
}

func TestAdoptRevokesPreviousSession(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	anon, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, anon))
	anonID := anon.ID

	issued, err := sm.Issue(ctx, Identity{UserID: 3, Username: "meena", Role: "worker"})
	require.NoError(t, err)
	anon.Adopt(issued)

	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, res, req, anon))

	_, err = sm.LoadByID(ctx, anonID)
	assert.ErrorIs(t, err, ErrNotFound)

	loaded, err := sm.LoadByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())

	cookies := res.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, issued.ID, cookies[len(cookies)-1].Value)
}

func TestDestroyRemovesSession(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()
	issued, err := sm.Issue(ctx, Identity{UserID: 2, Username: "sup", Role: "supervisor"})
	require.NoError(t, err)

	sm.Destroy(issued)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), req, issued))

	_, err = sm.LoadByID(ctx, issued.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, BearerToken(req))
	req.Header.Set("Authorization", "bearer abc ")
	assert.Equal(t, "abc", BearerToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, BearerToken(req))
}
