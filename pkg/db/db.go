package db

import (
	"context"
	"fmt"
	"time"

	"podnotes/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RunHistory stores one document per worker run in MongoDB for ops dashboards.
type RunHistory struct {
	mongoClient *mongo.Client
	collection  *mongo.Collection
}

// RunDocument is the stored shape of a run.
type RunDocument struct {
	RunID      string    `bson:"run_id"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
	Failed     bool      `bson:"failed"`
	Error      string    `bson:"error,omitempty"`

	TotalEpisodes         int   `bson:"total_episodes"`
	ProcessedEpisodes     int   `bson:"processed_episodes"`
	SkippedEpisodes       int   `bson:"skipped_episodes"`
	AvailableTranscripts  int   `bson:"available_transcripts"`
	ProcessingCount       int   `bson:"processing_count"`
	NotFoundCount         int   `bson:"not_found_count"`
	NoMatchCount          int   `bson:"no_match_count"`
	ErrorCount            int   `bson:"error_count"`
	FallbackAttempts      int   `bson:"fallback_attempts"`
	FallbackSuccesses     int   `bson:"fallback_successes"`
	FallbackFailures      int   `bson:"fallback_failures"`
	FallbackSkippedBudget int   `bson:"fallback_skipped_budget"`
	QuotaExhausted        bool  `bson:"quota_exhausted"`
	LockNotAcquired       bool  `bson:"lock_not_acquired"`
	CreditsConsumed       int   `bson:"credits_consumed"`
	TotalElapsedMs        int64 `bson:"total_elapsed_ms"`
	AverageProcessingMs   int64 `bson:"average_processing_time_ms"`
}

// NewRunDocument flattens a summary into its stored shape.
func NewRunDocument(startedAt time.Time, summary domain.WorkerSummary, runErr error) RunDocument {
	doc := RunDocument{
		RunID:                 summary.RunID,
		StartedAt:             startedAt.UTC(),
		FinishedAt:            startedAt.Add(summary.TotalElapsed()).UTC(),
		TotalEpisodes:         summary.TotalEpisodes,
		ProcessedEpisodes:     summary.ProcessedEpisodes,
		SkippedEpisodes:       summary.SkippedEpisodes,
		AvailableTranscripts:  summary.AvailableTranscripts,
		ProcessingCount:       summary.ProcessingCount,
		NotFoundCount:         summary.NotFoundCount,
		NoMatchCount:          summary.NoMatchCount,
		ErrorCount:            summary.ErrorCount,
		FallbackAttempts:      summary.FallbackAttempts,
		FallbackSuccesses:     summary.FallbackSuccesses,
		FallbackFailures:      summary.FallbackFailures,
		FallbackSkippedBudget: summary.FallbackSkippedBudget,
		QuotaExhausted:        summary.QuotaExhausted,
		LockNotAcquired:       summary.LockNotAcquired,
		CreditsConsumed:       summary.CreditsConsumed,
		TotalElapsedMs:        summary.TotalElapsedMs,
		AverageProcessingMs:   summary.AverageProcessingTimeMs,
	}
	if runErr != nil {
		doc.Failed = true
		doc.Error = runErr.Error()
	}
	return doc
}

// NewRunHistory creates a new run history recorder
func NewRunHistory(connectionString, databaseName, collectionName string) *RunHistory {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &RunHistory{}
	}

	return &RunHistory{
		mongoClient: mongoClient,
		collection:  mongoClient.Database(databaseName).Collection(collectionName),
	}
}

// Connect verifies the MongoDB connection
func (c *RunHistory) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *RunHistory) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// RecordRun upserts the run keyed by run_id, so recording twice is harmless.
func (c *RunHistory) RecordRun(ctx context.Context, startedAt time.Time, summary domain.WorkerSummary, runErr error) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}
	if summary.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	doc := NewRunDocument(startedAt, summary, runErr)
	filter := bson.M{"run_id": doc.RunID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	_, err := c.collection.UpdateOne(ctx, filter, update, opts)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (c *RunHistory) RecentRuns(ctx context.Context, limit int64) ([]RunDocument, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cursor, err := c.collection.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer cursor.Close(ctx)

	var runs []RunDocument
	if err := cursor.All(ctx, &runs); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return runs, nil
}
