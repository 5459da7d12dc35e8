package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
)

const (
	// CSRFSessionKey is the key used to persist tokens in the session store.
	CSRFSessionKey = "csrf_token"
	// CSRFFormField is the form field name carrying the CSRF token.
	CSRFFormField = "csrf_token"

	csrfNonceLen = 16
)

// CSRFManager issues and verifies CSRF tokens bound to a session. A token is
// a random nonce followed by an HMAC over the session ID and that nonce, so a
// token copied into another session never verifies.
type CSRFManager struct {
	secret []byte
}

// NewCSRFManager returns a CSRFManager using the provided secret key.
func NewCSRFManager(secret string) *CSRFManager {
	return &CSRFManager{secret: []byte(secret)}
}

// Required reports whether a request needs a CSRF token. Only authenticated
// cookie sessions on unsafe methods do: bearer clients and anonymous sessions
// carry no ambient credentials a third-party page could ride on.
func (m *CSRFManager) Required(sess *Session, method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return sess != nil && !sess.ViaBearer() && sess.Authenticated()
}

// Check verifies token when the request requires one.
func (m *CSRFManager) Check(ctx context.Context, sess *Session, method, token string) error {
	if !m.Required(sess, method) {
		return nil
	}
	return m.VerifyToken(ctx, sess, token)
}

// EnsureToken retrieves or generates a CSRF token for the session.
func (m *CSRFManager) EnsureToken(_ context.Context, sess *Session) (string, error) {
	if sess == nil {
		return "", errors.New("session missing")
	}
	if token := sess.Get(CSRFSessionKey); token != "" && m.bound(sess.ID, token) {
		return token, nil
	}
	token, err := m.generateToken(sess.ID)
	if err != nil {
		return "", err
	}
	sess.Set(CSRFSessionKey, token)
	return token, nil
}

// VerifyToken compares the supplied token with the session token.
func (m *CSRFManager) VerifyToken(_ context.Context, sess *Session, token string) error {
	if sess == nil || token == "" {
		return ErrCSRFTokenMissing
	}
	expected := sess.Get(CSRFSessionKey)
	if expected == "" {
		return ErrCSRFTokenMissing
	}
	if !hmac.Equal([]byte(expected), []byte(token)) || !m.bound(sess.ID, token) {
		return ErrCSRFTokenMismatch
	}
	return nil
}

func (m *CSRFManager) generateToken(sessionID string) (string, error) {
	nonce := make([]byte, csrfNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(append(nonce, m.mac(sessionID, nonce)...)), nil
}

// bound reports whether token was minted for sessionID.
func (m *CSRFManager) bound(sessionID, token string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != csrfNonceLen+sha256.Size {
		return false
	}
	return hmac.Equal(raw[csrfNonceLen:], m.mac(sessionID, raw[:csrfNonceLen]))
}

func (m *CSRFManager) mac(sessionID string, nonce []byte) []byte {
	h := hmac.New(sha256.New, m.secret)
	_, _ = h.Write([]byte(sessionID))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write(nonce)
	return h.Sum(nil)
}
