package storage

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kartick026/trafficloud/internal/models"
)

const analysisCollection = "traffic_analysis"

// MongoStore persists analysis records in a MongoDB collection, one
// document per frame id.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Printf("Connected to MongoDB: %s (database: %s)", uri, database)

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(analysisCollection),
	}, nil
}

// PutAnalysis upserts the record by frame id.
func (s *MongoStore) PutAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	filter := bson.M{"frame_id": record.FrameID}

	_, err := s.collection.ReplaceOne(ctx, filter, record, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store analysis %s: %w", record.FrameID, err)
	}

	return nil
}

// RecentAnalyses returns up to limit records, newest first.
func (s *MongoStore) RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent analyses: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.AnalysisRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode analyses: %w", err)
	}

	return records, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
