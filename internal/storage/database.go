package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jobradar/jobradar/internal/types"
)

// MongoStorage writes jobs to a MongoDB collection, upserting by Job.ID
// so a posting re-observed on a later run refreshes in place rather than
// duplicating — the spec's "downstream persistence keys on id".
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStorage creates a new MongoDB storage backend.
func NewMongoStorage(uri, database, collection string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoStorage{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

// Store upserts each job by its id field. Per-job failures are collected
// and returned together rather than aborting the rest of the batch,
// matching the no-partial-writes-per-source guarantee at the batch
// level: a failure on one job never silently drops its siblings.
func (s *MongoStorage) Store(jobs []*types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var errs []error
	stored := 0
	for _, job := range jobs {
		filter := bson.M{"_id": job.ID}
		update := bson.M{"$set": jobToDocument(job)}
		opts := options.UpdateOne().SetUpsert(true)

		if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
			errs = append(errs, fmt.Errorf("upsert job %q: %w", job.ID, err))
			continue
		}
		stored++
	}

	s.count += stored
	s.logger.Debug("jobs upserted in mongodb", "count", stored, "total", s.count, "errors", len(errs))

	if len(errs) > 0 {
		return fmt.Errorf("mongodb store: %d of %d jobs failed: %w", len(errs), len(jobs), errs[0])
	}
	return nil
}

func jobToDocument(job *types.Job) bson.M {
	return bson.M{
		"title":            job.Title,
		"company":          job.Company,
		"url":              job.URL,
		"source":           job.Source,
		"location":         job.Location,
		"salary":           job.Salary,
		"job_type":         job.JobType,
		"experience_level": job.ExperienceLevel,
		"is_remote":        job.IsRemote,
		"description":      job.Description,
		"skills":           job.Skills,
		"posted_at":        job.PostedAt,
		"last_seen":        job.LastSeen,
		"expires":          job.Expires,
	}
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "total_jobs", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- Multi-Storage Fan-Out ---

// MultiStorage writes jobs to multiple backends simultaneously.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(jobs []*types.Job) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(jobs); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
