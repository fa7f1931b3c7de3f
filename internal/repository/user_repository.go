package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUserRepository struct {
	users       *mongo.Collection
	credentials *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{
		users:       db.Collection("users"),
		credentials: db.Collection("credentials"),
	}
}

// EnsureUser creates the user document on first sign-in and returns the
// stored profile. Existing documents are left untouched.
func (m *mongoUserRepository) EnsureUser(ctx context.Context, profile domain.UserProfile) (*domain.UserProfile, error) {
	now := time.Now()
	insert := bson.M{
		"user_id":          profile.UserID,
		"email":            profile.Email,
		"display_name":     profile.DisplayName,
		"photo_url":        profile.PhotoURL,
		"style_preference": "",
		"gender":           "",
		"settings": domain.Settings{
			Notifications: domain.DefaultNotificationSettings(),
			Addresses:     []domain.Address{},
		},
		"created_at": now,
		"updated_at": now,
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var stored domain.UserProfile
	err := m.users.FindOneAndUpdate(ctx, bson.M{"user_id": profile.UserID}, bson.M{"$setOnInsert": insert}, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &stored, nil
}

func (m *mongoUserRepository) GetUser(ctx context.Context, userID string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := m.users.FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &profile, nil
}

func (m *mongoUserRepository) UpdateProfile(ctx context.Context, userID, displayName, stylePreference, gender string) (*domain.UserProfile, error) {
	return m.update(ctx, userID, bson.M{
		"display_name":     displayName,
		"style_preference": stylePreference,
		"gender":           gender,
	})
}

func (m *mongoUserRepository) UpdateSettings(ctx context.Context, userID string, settings domain.Settings) (*domain.UserProfile, error) {
	return m.update(ctx, userID, bson.M{"settings": settings})
}

func (m *mongoUserRepository) update(ctx context.Context, userID string, fields bson.M) (*domain.UserProfile, error) {
	fields["updated_at"] = time.Now()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var profile domain.UserProfile
	err := m.users.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, bson.M{"$set": fields}, opts).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &profile, nil
}

func (m *mongoUserRepository) GetCredentials(ctx context.Context, email string) (*domain.Credentials, error) {
	var creds domain.Credentials
	err := m.credentials.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&creds)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	return &creds, nil
}

func (m *mongoUserRepository) CreateCredentials(ctx context.Context, creds domain.Credentials) error {
	creds.Email = normalizeEmail(creds.Email)
	if creds.CreatedAt.IsZero() {
		creds.CreatedAt = time.Now()
	}
	_, err := m.credentials.InsertOne(ctx, creds)
	if mongo.IsDuplicateKeyError(err) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create credentials: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
