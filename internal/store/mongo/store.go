// Package mongo adapts the document store behind the model Store
// interfaces. Collection names follow the deployed database: sessoesChat,
// accessLogs and systemInstructions.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/estilobot/backend/internal/model/accesslog"
	"github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/model/instruction"
)

const (
	sessionCollection     = "sessoesChat"
	accessLogCollection   = "accessLogs"
	instructionCollection = "systemInstructions"
)

// SessionStore implements chat.Store on a shared *mongo.Database handle.
// The handle's lifecycle (connect once, disconnect on shutdown) is owned
// by the caller.
type SessionStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewSessionStore wraps the database handle.
func NewSessionStore(db *mongo.Database, logger *zap.Logger) *SessionStore {
	return &SessionStore{db: db, logger: logger}
}

// Get fetches one session by identifier.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := s.db.Collection(sessionCollection).
		FindOne(ctx, bson.M{"sessionId": sessionID}).
		Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Session{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Session{}, storeErr("get session", chat.ErrUnavailable, err)
	}
	return session, nil
}

// Upsert creates or updates the session in a single document update, so a
// concurrent pair of appends to the same identifier cannot lose messages:
// scalars are last-writer-wins, messages accumulate via $push.
func (s *SessionStore) Upsert(ctx context.Context, sessionID string, patch chat.Patch) (chat.Session, error) {
	setOnInsert := bson.M{
		"sessionId": sessionID,
		"startTime": patch.StartTime,
	}
	if patch.BotID != "" {
		setOnInsert["botId"] = patch.BotID
	}

	set := bson.M{}
	if !patch.EndTime.IsZero() {
		set["endTime"] = patch.EndTime
	}
	if patch.Title != "" {
		set["title"] = patch.Title
	} else {
		setOnInsert["title"] = chat.DefaultTitle
	}

	update := bson.M{"$setOnInsert": setOnInsert}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(patch.Messages) > 0 {
		update["$push"] = bson.M{"messages": bson.M{"$each": patch.Messages}}
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var session chat.Session
	err := s.db.Collection(sessionCollection).
		FindOneAndUpdate(ctx, bson.M{"sessionId": sessionID}, update, opts).
		Decode(&session)
	if err != nil {
		return chat.Session{}, storeErr("upsert session", chat.ErrUnavailable, err)
	}

	s.logger.Debug("session upserted",
		zap.String("sessionId", sessionID),
		zap.Int("appended", len(patch.Messages)))
	return session, nil
}

// ListRecent returns summaries ordered by startTime descending.
func (s *SessionStore) ListRecent(ctx context.Context, limit, offset int) ([]chat.SessionSummary, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "startTime", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset)).
		SetProjection(bson.M{"sessionId": 1, "startTime": 1, "title": 1})

	cursor, err := s.db.Collection(sessionCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, storeErr("list sessions", chat.ErrUnavailable, err)
	}
	defer cursor.Close(ctx)

	summaries := make([]chat.SessionSummary, 0, limit)
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, storeErr("decode session summaries", chat.ErrUnavailable, err)
	}
	return summaries, nil
}

// Count reports the total number of stored sessions.
func (s *SessionStore) Count(ctx context.Context) (int64, error) {
	total, err := s.db.Collection(sessionCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storeErr("count sessions", chat.ErrUnavailable, err)
	}
	return total, nil
}

// AccessLogStore implements accesslog.Store.
type AccessLogStore struct {
	db     *mongo.Database
	logger *zap.Logger
}

// NewAccessLogStore wraps the database handle.
func NewAccessLogStore(db *mongo.Database, logger *zap.Logger) *AccessLogStore {
	return &AccessLogStore{db: db, logger: logger}
}

// Insert stores one access-log entry and returns its object id.
func (s *AccessLogStore) Insert(ctx context.Context, entry accesslog.Entry) (string, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.Collection(accessLogCollection).InsertOne(ctx, entry)
	if err != nil {
		return "", storeErr("insert access log", accesslog.ErrUnavailable, err)
	}

	s.logger.Debug("access log inserted", zap.String("ip", entry.IPAddress))
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprint(res.InsertedID), nil
}

// Count reports the total number of access-log entries.
func (s *AccessLogStore) Count(ctx context.Context) (int64, error) {
	total, err := s.db.Collection(accessLogCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, storeErr("count access logs", accesslog.ErrUnavailable, err)
	}
	return total, nil
}

// InstructionStore implements instruction.Store against the singleton
// system-instruction document.
type InstructionStore struct {
	db *mongo.Database
}

// NewInstructionStore wraps the database handle.
func NewInstructionStore(db *mongo.Database) *InstructionStore {
	return &InstructionStore{db: db}
}

// Get returns the stored system instruction.
func (s *InstructionStore) Get(ctx context.Context) (instruction.Instruction, error) {
	var doc instruction.Instruction
	err := s.db.Collection(instructionCollection).FindOne(ctx, bson.M{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return instruction.Instruction{}, instruction.ErrNotFound
	}
	if err != nil {
		return instruction.Instruction{}, storeErr("get system instruction", instruction.ErrUnavailable, err)
	}
	return doc, nil
}

// Set upserts the system instruction text.
func (s *InstructionStore) Set(ctx context.Context, text string) error {
	update := bson.M{"$set": bson.M{"text": text, "lastUpdated": time.Now().UTC()}}
	_, err := s.db.Collection(instructionCollection).
		UpdateOne(ctx, bson.M{}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return storeErr("update system instruction", instruction.ErrUnavailable, err)
	}
	return nil
}

// storeErr wraps a driver failure in the owning domain's unavailability
// sentinel, so errors.Is checks never cross collection boundaries.
func storeErr(op string, sentinel, err error) error {
	return fmt.Errorf("%s: %w: %v", op, sentinel, err)
}
