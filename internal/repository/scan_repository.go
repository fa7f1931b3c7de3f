package repository

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoScanRepository struct {
	collection *mongo.Collection
}

func NewMongoScanRepository(db *mongo.Database) ScanRepository {
	return &mongoScanRepository{collection: db.Collection("scans")}
}

func (m *mongoScanRepository) GetScans(ctx context.Context, userID string) ([]domain.Scan, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find scans: %w", err)
	}
	defer cursor.Close(ctx)

	scans := []domain.Scan{}
	if err := cursor.All(ctx, &scans); err != nil {
		return nil, fmt.Errorf("failed to decode scans: %w", err)
	}
	return scans, nil
}

func (m *mongoScanRepository) PutScan(ctx context.Context, userID string, scan domain.Scan) error {
	scan.UserID = userID
	filter := bson.M{"user_id": userID, "scan_id": scan.ScanID}
	_, err := m.collection.ReplaceOne(ctx, filter, scan, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save scan: %w", err)
	}
	return nil
}
