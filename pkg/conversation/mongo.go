package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// collection is the part of *mongo.Collection the store uses.
type collection interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
	InsertMany(ctx context.Context, documents any, opts ...options.Lister[options.InsertManyOptions]) (*mongo.InsertManyResult, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
	UpdateOne(ctx context.Context, filter any, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter any, opts ...options.Lister[options.DeleteOneOptions]) (*mongo.DeleteResult, error)
}

// MongoStore keeps conversations in MongoDB.
type MongoStore struct {
	client        *mongo.Client
	conversations collection
	messages      collection
	now           func() time.Time
	seq           atomic.Int64
}

func newMongoStore(client *mongo.Client, conversations, messages collection) *MongoStore {
	return &MongoStore{
		client:        client,
		conversations: conversations,
		messages:      messages,
		now:           time.Now,
	}
}

// OpenMongo connects to uri and uses the named database.
func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		return nil, errors.New("mongo database is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	messages := db.Collection(messagesCollection)
	_, err = messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create message index: %w", err)
	}
	return newMongoStore(client, db.Collection(conversationsCollection), messages), nil
}

// nextSeq is monotonic within the process and ordered by wall clock across
// restarts.
func (s *MongoStore) nextSeq() int64 {
	now := s.now().UnixNano()
	for {
		last := s.seq.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.seq.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (s *MongoStore) Create(ctx context.Context, userID, title string) (*Conversation, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	now := s.now().UTC()
	conv := &Conversation{ID: NewID(), UserID: userID, Title: title, CreatedAt: now, UpdatedAt: now}
	if _, err := s.conversations.InsertOne(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*Conversation, error) {
	var conv Conversation
	err := s.conversations.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

func (s *MongoStore) Owns(ctx context.Context, id, userID string) (bool, error) {
	n, err := s.conversations.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}})
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return n > 0, nil
}

func (s *MongoStore) History(ctx context.Context, id string, limit int) ([]Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "seq", Value: -1}}).
		SetLimit(int64(historyLimit(limit)))
	cursor, err := s.messages.Find(ctx, bson.D{{Key: "conversation_id", Value: id}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	msgs := []Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *MongoStore) Append(ctx context.Context, id string, msgs ...NewMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	now := s.now().UTC()
	docs := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		docs = append(docs, Message{
			ID:             NewID(),
			ConversationID: id,
			Role:           m.Role,
			Content:        m.Content,
			CreatedAt:      now,
			Seq:            s.nextSeq(),
		})
	}
	if _, err := s.messages.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert messages: %w", err)
	}
	return nil
}

func (s *MongoStore) Touch(ctx context.Context, id string) error {
	res, err := s.conversations.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "updated_at", Value: s.now().UTC()}}}},
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteMessage(ctx context.Context, messageID, userID string) error {
	var msg Message
	err := s.messages.FindOne(ctx, bson.D{{Key: "_id", Value: messageID}}).Decode(&msg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to look up message: %w", err)
	}

	owned, err := s.Owns(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrAccessDenied
	}

	if _, err := s.messages.DeleteOne(ctx, bson.D{{Key: "_id", Value: messageID}}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}
