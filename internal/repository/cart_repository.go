package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) CartRepository {
	return &mongoCartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *mongoCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	cart.Normalize()
	return &cart, nil
}

func (m *mongoCartRepository) PutCart(ctx context.Context, userID string, cart *domain.Cart) error {
	now := time.Now()
	items := cart.Items
	if items == nil {
		items = []domain.CartLineItem{}
	}

	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": now,
		},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to put cart: %w", err)
	}

	return nil
}

func (m *mongoCartRepository) RemoveCartItem(ctx context.Context, userID string, key domain.LineKey) error {
	match := bson.M{"product_id": key.ProductID}
	if key.Size == "" {
		match["size"] = bson.M{"$in": bson.A{"", nil}}
	} else {
		match["size"] = key.Size
	}

	update := bson.M{
		"$pull": bson.M{"items": match},
		"$set":  bson.M{"updated_at": time.Now()},
	}

	_, err := m.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	// A missing cart means the item is already gone.
	return nil
}

func (m *mongoCartRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}
