package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ProviderGoogle is the only OAuth provider the storefront offers.
const ProviderGoogle = "google"

// ProviderIdentity is what a verified provider token tells us about a user.
type ProviderIdentity struct {
	UserID      string
	Email       string
	DisplayName string
	PhotoURL    string
}

type ProviderVerifier interface {
	Verify(ctx context.Context, provider, idToken string) (ProviderIdentity, error)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier checks ID tokens issued by Firebase Authentication.
type FirebaseVerifier struct {
	client idTokenVerifier
}

func NewFirebaseVerifier(ctx context.Context, projectID, credentialsPath string) (*FirebaseVerifier, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}

	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, provider, idToken string) (ProviderIdentity, error) {
	if provider != ProviderGoogle {
		return ProviderIdentity{}, fmt.Errorf("%w: %q", ErrProviderUnavailable, provider)
	}

	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return ProviderIdentity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if token.Firebase.SignInProvider != "google.com" {
		return ProviderIdentity{}, fmt.Errorf("%w: token issued by %s", ErrInvalidToken, token.Firebase.SignInProvider)
	}

	return ProviderIdentity{
		UserID:      token.UID,
		Email:       claimString(token.Claims, "email"),
		DisplayName: claimString(token.Claims, "name"),
		PhotoURL:    claimString(token.Claims, "picture"),
	}, nil
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// DisabledVerifier rejects every provider sign-in. It is used when no
// Firebase credentials are configured.
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(context.Context, string, string) (ProviderIdentity, error) {
	return ProviderIdentity{}, ErrProviderUnavailable
}
