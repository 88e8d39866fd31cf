package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore persists the audit trail in MongoDB. Useful for deployments
// that keep chat telemetry separate from the relational data.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ Store = (*MongoStore)(nil)

// NewMongoStore connects to MongoDB at uri and uses the named database.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	if database == "" {
		database = "ragchat"
	}
	return &MongoStore{client: client, db: client.Database(database)}, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error { return s.client.Disconnect(ctx) }

func (s *MongoStore) LogReasoningStep(ctx context.Context, log ReasoningLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection("reasoning_logs").InsertOne(ctx, log); err != nil {
		return fmt.Errorf("log reasoning step: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveCitations(ctx context.Context, citations []Citation) error {
	if len(citations) == 0 {
		return nil
	}
	docs := make([]any, len(citations))
	for i, c := range citations {
		docs[i] = c
	}
	if _, err := s.db.Collection("citations").InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("save citations: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveEvaluation(ctx context.Context, eval Evaluation) error {
	if eval.CreatedAt.IsZero() {
		eval.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection("self_evaluations").InsertOne(ctx, eval); err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	return nil
}

func (s *MongoStore) ArchiveExperience(ctx context.Context, exp Experience) error {
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection("experiences").InsertOne(ctx, exp); err != nil {
		return fmt.Errorf("archive experience: %w", err)
	}
	return nil
}

func (s *MongoStore) RecordStrategyOutcome(ctx context.Context, workspaceID, strategy, complexity string, success bool, latencyMS int64, confidence float64) error {
	filter := bson.M{
		"workspace_id": workspaceID,
		"strategy":     strategy,
		"complexity":   complexity,
	}
	successInc := 0
	if success {
		successInc = 1
	}
	// Averages are recomputed on read from the accumulated sums; documents
	// carry running totals instead of a rolling mean.
	update := bson.M{
		"$inc": bson.M{
			"total_uses":     1,
			"success_count":  successInc,
			"latency_ms_sum": latencyMS,
			"confidence_sum": confidence,
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	_, err := s.db.Collection("strategy_metrics").UpdateOne(ctx, filter, update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("record strategy outcome: %w", err)
	}
	return nil
}
