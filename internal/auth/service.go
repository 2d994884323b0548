// Package auth registers users and issues the bearer tokens that identify
// them to the API.
package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/slotswap/internal/domain"
	"github.com/roach88/slotswap/internal/store"
)

// AccessToken is the login response.
type AccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service implements signup and login over the user directory.
type Service struct {
	store  *store.Store
	tokens *Tokens
}

// NewService creates a Service.
func NewService(s *store.Store, tokens *Tokens) *Service {
	return &Service{store: s, tokens: tokens}
}

// Tokens returns the token issuer used by the service.
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Signup registers a user. A taken email fails with DUPLICATE.
func (s *Service) Signup(ctx context.Context, name, email, password string) (domain.User, error) {
	if domain.NormalizeText(name) == "" {
		return domain.User{}, domain.NewValidation("name", "must not be empty")
	}
	if !strings.Contains(email, "@") {
		return domain.User{}, domain.NewValidation("email", "must be an email address")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}

	var u domain.User
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		u, err = tx.Users.Create(ctx, name, email, hash)
		return err
	})
	if err != nil {
		return domain.User{}, err
	}
	slog.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and issues a bearer token. Unknown email and
// wrong password fail identically.
func (s *Service) Login(ctx context.Context, email, password string) (AccessToken, error) {
	var u domain.User
	err := s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		u, err = tx.Users.ByEmail(ctx, email)
		return err
	})
	if err != nil && !domain.Is(err, domain.ErrCodeNotFound) {
		return AccessToken{}, err
	}
	if err != nil || !CheckPassword(u.PasswordHash, password) {
		return AccessToken{}, domain.Errorf(domain.ErrCodeValidation, "Invalid email or password")
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{AccessToken: token, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to its user. A valid token for a
// deleted user is UNAUTHENTICATED.
func (s *Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return domain.User{}, err
	}
	id, err := claims.UserID()
	if err != nil {
		return domain.User{}, err
	}

	var u domain.User
	err = s.store.View(ctx, func(tx *store.Tx) error {
		var err error
		u, err = tx.Users.ByID(ctx, id)
		return err
	})
	if domain.Is(err, domain.ErrCodeNotFound) {
		return domain.User{}, domain.Errorf(domain.ErrCodeUnauthenticated, "Invalid or expired token")
	}
	return u, err
}
