package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxRemoteSearches bounds the per-user search history kept remotely.
const MaxRemoteSearches = 20

type mongoSearchRepository struct {
	collection *mongo.Collection
}

type recentSearchDoc struct {
	UserID    string    `bson:"user_id"`
	Terms     []string  `bson:"terms"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewMongoSearchRepository(db *mongo.Database) SearchRepository {
	return &mongoSearchRepository{collection: db.Collection("recent_searches")}
}

func (m *mongoSearchRepository) AppendRecentSearch(ctx context.Context, userID, term string) error {
	filter := bson.M{"user_id": userID}

	// $pull and $push cannot target the same field in one update.
	_, err := m.collection.UpdateOne(ctx, filter, bson.M{"$pull": bson.M{"terms": term}})
	if err != nil {
		return fmt.Errorf("failed to dedupe recent search: %w", err)
	}

	update := bson.M{
		"$push": bson.M{"terms": bson.M{
			"$each":     bson.A{term},
			"$position": 0,
			"$slice":    MaxRemoteSearches,
		}},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err = m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to append recent search: %w", err)
	}
	return nil
}

func (m *mongoSearchRepository) RecentSearches(ctx context.Context, userID string) ([]string, error) {
	var doc recentSearchDoc
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recent searches: %w", err)
	}
	return doc.Terms, nil
}
