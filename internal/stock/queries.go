package stock

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// recentTradesLimit caps the conclusions returned for an "open" request.
const recentTradesLimit = 50

// MongoService implements Service against a mongo.Database.
type MongoService struct {
	db *mongo.Database
}

// NewMongoService creates a MongoService.
func NewMongoService(db *mongo.Database) *MongoService {
	return &MongoService{db: db}
}

// CurrentSnapshot returns all stocks ordered by code.
func (s *MongoService) CurrentSnapshot(ctx context.Context) ([]Summary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})

	cursor, err := s.db.Collection("stocks").Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("query stocks: %w", err)
	}
	defer cursor.Close(ctx)

	stocks := []Summary{}
	if err := cursor.All(ctx, &stocks); err != nil {
		return nil, fmt.Errorf("decode stocks: %w", err)
	}
	return stocks, nil
}

// RecentTrades returns the newest conclusions for a stock code.
func (s *MongoService) RecentTrades(ctx context.Context, stockCode string) ([]Conclusion, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(recentTradesLimit)

	cursor, err := s.db.Collection("conclusions").Find(ctx, bson.M{"code": stockCode}, opts)
	if err != nil {
		return nil, fmt.Errorf("query conclusions for %s: %w", stockCode, err)
	}
	defer cursor.Close(ctx)

	conclusions := []Conclusion{}
	if err := cursor.All(ctx, &conclusions); err != nil {
		return nil, fmt.Errorf("decode conclusions for %s: %w", stockCode, err)
	}
	return conclusions, nil
}
