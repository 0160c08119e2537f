// Package mongostore provides a MongoDB-backed implementation of
// checkpoint.Store, for deployments that need checkpoints to survive a
// process restart (checkpoint.inmemstore does not).
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/no-ai-labs/spice-sub002/checkpoint"
	"github.com/no-ai-labs/spice-sub002/errs"
	"github.com/no-ai-labs/spice-sub002/hitl"
	"github.com/no-ai-labs/spice-sub002/message"
)

const (
	defaultCollection = "graph_checkpoints"
	defaultOpTimeout  = 5 * time.Second
)

// Options configures a Store.
type Options struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements checkpoint.Store against a MongoDB collection.
type Store struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// New builds a Store, ensuring the supporting indexes exist.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := ensureIndexes(ctx, coll); err != nil {
		return nil, err
	}
	return &Store{coll: coll, timeout: timeout}, nil
}

// Save implements checkpoint.Store.
func (s *Store) Save(ctx context.Context, cp checkpoint.Checkpoint) error {
	if cp.ID == "" {
		return errs.New(errs.KindCheckpoint, "checkpoint id is required")
	}
	if cp.RunID == "" {
		return errs.New(errs.KindCheckpoint, "run id is required")
	}
	doc := fromCheckpoint(cp)
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"checkpoint_id": cp.ID}
	update := bson.M{"$set": doc}
	_, err := s.coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return errs.Wrap(errs.KindCheckpoint, "save checkpoint", err)
	}
	return nil
}

// Load implements checkpoint.Store.
func (s *Store) Load(ctx context.Context, id string) (checkpoint.Checkpoint, error) {
	if id == "" {
		return checkpoint.Checkpoint{}, errs.New(errs.KindCheckpoint, "checkpoint id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc checkpointDocument
	if err := s.coll.FindOne(ctx, bson.M{"checkpoint_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return checkpoint.Checkpoint{}, errs.Errorf(errs.KindNotFound, "checkpoint %q not found", id)
		}
		return checkpoint.Checkpoint{}, errs.Wrap(errs.KindCheckpoint, "load checkpoint", err)
	}
	return doc.toCheckpoint(), nil
}

// ListByRun implements checkpoint.Store.
func (s *Store) ListByRun(ctx context.Context, runID string) ([]checkpoint.Checkpoint, error) {
	if runID == "" {
		return nil, errs.New(errs.KindCheckpoint, "run id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.coll.Find(ctx, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "list checkpoints", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []checkpoint.Checkpoint
	for cur.Next(ctx) {
		var doc checkpointDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, errs.Wrap(errs.KindCheckpoint, "decode checkpoint", err)
		}
		out = append(out, doc.toCheckpoint())
	}
	if err := cur.Err(); err != nil {
		return nil, errs.Wrap(errs.KindCheckpoint, "list checkpoints", err)
	}
	return out, nil
}

// Delete implements checkpoint.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"checkpoint_id": id})
	if err != nil {
		return errs.Wrap(errs.KindCheckpoint, "delete checkpoint", err)
	}
	return nil
}

// DeleteByRun implements checkpoint.Store.
func (s *Store) DeleteByRun(ctx context.Context, runID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteMany(ctx, bson.M{"run_id": runID})
	if err != nil {
		return errs.Wrap(errs.KindCheckpoint, "delete checkpoints by run", err)
	}
	return nil
}

// CleanupExpired implements checkpoint.Store.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	res, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC(), "$ne": nil}})
	if err != nil {
		return 0, errs.Wrap(errs.KindCheckpoint, "cleanup expired checkpoints", err)
	}
	return int(res.DeletedCount), nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll *mongodriver.Collection) error {
	checkpointIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "checkpoint_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := coll.Indexes().CreateOne(ctx, checkpointIndex); err != nil {
		return err
	}
	runIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}},
	}
	if _, err := coll.Indexes().CreateOne(ctx, runIndex); err != nil {
		return err
	}
	return nil
}

type checkpointDocument struct {
	CheckpointID       string                 `bson:"checkpoint_id"`
	RunID              string                 `bson:"run_id"`
	GraphID            string                 `bson:"graph_id"`
	CurrentNodeID      string                 `bson:"current_node_id"`
	Message            bson.Raw               `bson:"message"`
	CreatedAt          time.Time              `bson:"created_at"`
	ExpiresAt          *time.Time             `bson:"expires_at,omitempty"`
	PendingInteraction *hitl.HumanInteraction `bson:"pending_interaction,omitempty"`
}

func fromCheckpoint(cp checkpoint.Checkpoint) checkpointDocument {
	raw, _ := bson.Marshal(cp.Message)
	return checkpointDocument{
		CheckpointID:       cp.ID,
		RunID:              cp.RunID,
		GraphID:            cp.GraphID,
		CurrentNodeID:      cp.CurrentNodeID,
		Message:            raw,
		CreatedAt:          cp.CreatedAt.UTC(),
		ExpiresAt:          cp.ExpiresAt,
		PendingInteraction: cp.PendingInteraction,
	}
}

func (doc checkpointDocument) toCheckpoint() checkpoint.Checkpoint {
	var msg message.Message
	_ = bson.Unmarshal(doc.Message, &msg)
	return checkpoint.Checkpoint{
		ID:                 doc.CheckpointID,
		RunID:              doc.RunID,
		GraphID:            doc.GraphID,
		CurrentNodeID:      doc.CurrentNodeID,
		Message:            msg,
		CreatedAt:          doc.CreatedAt,
		ExpiresAt:          doc.ExpiresAt,
		PendingInteraction: doc.PendingInteraction,
	}
}
