package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// Authenticator issues and verifies session tokens for principals.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (string, rbac.Principal, error)
	Verify(ctx context.Context, token string) bool
	PrincipalFromToken(ctx context.Context, token string) (rbac.Principal, error)
}

// Service wraps authentication business rules. Tokens are session IDs in the
// Redis session store, so a token and a session cookie are interchangeable.
type Service struct {
	repo     Repository
	sessions *shared.SessionManager
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *shared.SessionManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		sessions: sessions,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// Authenticate validates credentials and issues a fresh session for the user.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*shared.Session, rbac.Principal, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.validate.Struct(creds); err != nil {
		return nil, rbac.Principal{}, validationError(err)
	}

	user, err := s.repo.FindByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, rbac.Principal{}, shared.ErrInvalidCredentials
		}
		return nil, rbac.Principal{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		return nil, rbac.Principal{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, rbac.Principal{}, shared.ErrInvalidCredentials
	}

	principal := user.Principal()
	sess, err := s.sessions.Issue(ctx, shared.Identity{
		UserID:   principal.UserID,
		Username: principal.Username,
		Role:     string(principal.Role),
	})
	if err != nil {
		return nil, rbac.Principal{}, fmt.Errorf("issue session: %w", err)
	}
	if err := s.repo.TouchLastLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn("touch last login", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
	return sess, principal, nil
}

// Login authenticates and returns the bearer token for the new session.
func (s *Service) Login(ctx context.Context, creds Credentials) (string, rbac.Principal, error) {
	sess, principal, err := s.Authenticate(ctx, creds)
	if err != nil {
		return "", rbac.Principal{}, err
	}
	return sess.ID, principal, nil
}

// Verify reports whether token names a live authenticated session.
func (s *Service) Verify(ctx context.Context, token string) bool {
	_, err := s.PrincipalFromToken(ctx, token)
	return err == nil
}

// PrincipalFromToken resolves the principal bound to a token.
func (s *Service) PrincipalFromToken(ctx context.Context, token string) (rbac.Principal, error) {
	sess, err := s.sessions.LoadByID(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return rbac.Principal{}, shared.ErrUnauthenticated
		}
		return rbac.Principal{}, fmt.Errorf("load session: %w", err)
	}
	return PrincipalFromSession(sess)
}

// Logout revokes the token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, token)
}

// PrincipalFromSession maps a session identity onto a principal.
func PrincipalFromSession(sess *shared.Session) (rbac.Principal, error) {
	identity, ok := sess.Identity()
	if !ok {
		return rbac.Principal{}, shared.ErrUnauthenticated
	}
	role, err := rbac.ParseRole(identity.Role)
	if err != nil {
		return rbac.Principal{}, fmt.Errorf("%w: %v", shared.ErrUnauthenticated, err)
	}
	return rbac.Principal{UserID: identity.UserID, Username: identity.Username, Role: role}, nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	ve := &shared.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		ve.Fields[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return ve
}

var _ Authenticator = (*Service)(nil)
