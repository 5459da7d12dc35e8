package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Identity is the authenticated principal as persisted in the session store.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// SessionManager orchestrates cookie and bearer-token sessions backed by Redis.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session holds per-request session data.
type Session struct {
	ID         string
	values     map[string]string
	identity   *Identity
	viaBearer  bool
	previousID string
	manager    *SessionManager
	isNew      bool
	dirty      bool
	destroyed  bool
}

type sessionPayload struct {
	Values   map[string]string `json:"values"`
	Identity *Identity         `json:"identity,omitempty"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load loads or creates a new session for request. A bearer token takes
// precedence over the session cookie.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	if token := BearerToken(r); token != "" {
		sess, err := sm.LoadByID(ctx, token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return sm.newSession(), nil
			}
			return nil, err
		}
		sess.viaBearer = true
		return sess, nil
	}

	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	sess, err := sm.LoadByID(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			sess := sm.newSession()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}
	return sess, nil
}

// LoadByID fetches a persisted session. Returns ErrNotFound when the ID is unknown or expired.
func (sm *SessionManager) LoadByID(ctx context.Context, id string) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}

	sess := sm.newSession()
	sess.ID = id
	if stored.Values != nil {
		sess.values = stored.Values
	}
	sess.identity = stored.Identity
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Issue creates and persists a fresh authenticated session, returning it.
func (sm *SessionManager) Issue(ctx context.Context, identity Identity) (*Session, error) {
	sess := sm.newSession()
	sess.identity = &identity
	if err := sm.persist(ctx, sess); err != nil {
		return nil, err
	}
	sess.isNew = false
	sess.dirty = false
	return sess, nil
}

// Revoke deletes a persisted session by ID.
func (sm *SessionManager) Revoke(ctx context.Context, id string) error {
	if err := sm.client.Del(ctx, sm.redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// Commit persists the session and writes cookie headers as needed.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.previousID != "" && sess.previousID != sess.ID {
		if err := sm.Revoke(ctx, sess.previousID); err != nil {
			return err
		}
		sess.previousID = ""
	}

	if sess.destroyed {
		if err := sm.Revoke(ctx, sess.ID); err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.isNew && sess.ID == "" {
		sess.ID = sm.generateSessionID()
	}

	if sess.dirty || sess.isNew {
		if err := sm.persist(ctx, sess); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
	}

	if sess.ID != "" && !sess.viaBearer {
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Now().Add(sm.ttl),
		})
	}
	return nil
}

// Destroy marks the session for deletion.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// Session helpers

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	if s.values == nil {
		return ""
	}
	return s.values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if s.values == nil {
		return
	}
	delete(s.values, key)
	s.dirty = true
}

// Identity returns the authenticated identity, if any.
func (s *Session) Identity() (Identity, bool) {
	if s == nil || s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// Authenticated reports whether an identity is bound to the session.
func (s *Session) Authenticated() bool {
	_, ok := s.Identity()
	return ok
}

// ViaBearer reports whether the session was resolved from an Authorization header.
func (s *Session) ViaBearer() bool {
	return s != nil && s.viaBearer
}

// Adopt rebinds the request session to an issued session. The previous ID is
// revoked on commit so an anonymous session cannot be fixated into an authenticated one.
func (s *Session) Adopt(issued *Session) {
	if s == nil || issued == nil {
		return
	}
	if s.ID != issued.ID {
		s.previousID = s.ID
	}
	s.ID = issued.ID
	s.identity = issued.identity
	s.values = make(map[string]string)
	s.dirty = true
	s.destroyed = false
}

func (sm *SessionManager) persist(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sessionPayload{Values: sess.values, Identity: sess.identity})
	if err != nil {
		return err
	}
	return sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err()
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:      sm.generateSessionID(),
		values:  make(map[string]string),
		manager: sm,
		isNew:   true,
		dirty:   true,
	}
}

func (sm *SessionManager) redisKey(id string) string {
	return "session:" + id
}

func (sm *SessionManager) generateSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(sm.secret) > 0 {
		for i := range b {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
