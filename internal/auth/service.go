package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
)

const minPasswordLength = 6

// Result is the outcome of a successful sign-in.
type Result struct {
	Identity domain.Identity
	Token    string
	Profile  *domain.UserProfile
}

// Authenticator is the identity provider the session store talks to.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (Result, error)
	SignUpWithPassword(ctx context.Context, email, password, displayName string) (Result, error)
	SignInWithOAuthProvider(ctx context.Context, provider, idToken string) (Result, error)
	// ResolveIdentity maps a session token back to an identity. Errors that
	// are not auth failures are transient.
	ResolveIdentity(ctx context.Context, token string) (domain.Identity, error)
}

type Service struct {
	users    repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenService
	verifier ProviderVerifier
	log      *slog.Logger
}

func NewService(users repository.UserRepository, hasher PasswordHasher, tokens TokenService, verifier ProviderVerifier, log *slog.Logger) *Service {
	if verifier == nil {
		verifier = DisabledVerifier{}
	}
	return &Service{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		log:      log,
	}
}

func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (Result, error) {
	email = normalizeEmail(email)

	creds, err := s.users.GetCredentials(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return Result{}, ErrInvalidCredentials
	}
	if err != nil {
		return Result{}, fmt.Errorf("load credentials: %w", err)
	}
	if !s.hasher.Check(password, creds.PasswordHash) {
		return Result{}, ErrInvalidCredentials
	}

	return s.complete(ctx, domain.UserProfile{UserID: creds.UserID, Email: email})
}

func (s *Service) SignUpWithPassword(ctx context.Context, email, password, displayName string) (Result, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Result{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return Result{}, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Result{}, fmt.Errorf("hash password: %w", err)
	}

	userID := uuid.NewString()
	err = s.users.CreateCredentials(ctx, domain.Credentials{
		Email:        email,
		PasswordHash: hash,
		UserID:       userID,
		CreatedAt:    time.Now().UTC(),
	})
	if errors.Is(err, repository.ErrEmailTaken) {
		return Result{}, ErrEmailTaken
	}
	if err != nil {
		return Result{}, fmt.Errorf("create credentials: %w", err)
	}

	s.log.InfoContext(ctx, "user signed up", slog.String("user_id", userID))
	return s.complete(ctx, domain.UserProfile{UserID: userID, Email: email, DisplayName: displayName})
}

func (s *Service) SignInWithOAuthProvider(ctx context.Context, provider, idToken string) (Result, error) {
	ident, err := s.verifier.Verify(ctx, provider, idToken)
	if err != nil {
		return Result{}, err
	}

	return s.complete(ctx, domain.UserProfile{
		UserID:      ident.UserID,
		Email:       normalizeEmail(ident.Email),
		DisplayName: ident.DisplayName,
		PhotoURL:    ident.PhotoURL,
	})
}

func (s *Service) ResolveIdentity(ctx context.Context, token string) (domain.Identity, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		return domain.Guest(), err
	}

	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domain.Guest(), ErrInvalidToken
		}
		return domain.Guest(), fmt.Errorf("load user: %w", err)
	}
	return domain.Authenticated(userID), nil
}

// complete creates the user document on first sign-in and issues a token.
func (s *Service) complete(ctx context.Context, seed domain.UserProfile) (Result, error) {
	profile, err := s.users.EnsureUser(ctx, seed)
	if err != nil {
		return Result{}, fmt.Errorf("ensure user: %w", err)
	}

	token, err := s.tokens.Issue(profile.UserID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Identity: domain.Authenticated(profile.UserID),
		Token:    token,
		Profile:  profile,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
