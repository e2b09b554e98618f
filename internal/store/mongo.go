package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gitlab.com/dirk.krummacker/beetagged/internal/apperr"
	"gitlab.com/dirk.krummacker/beetagged/pkg/model"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultMongoDatabase is used when no database name is configured.
const DefaultMongoDatabase = "beetagged"

const mongoCollection = "contacts"

// contactDoc is the MongoDB representation of a contact.
type contactDoc struct {
	ID          string      `bson:"_id"`
	Key         string      `bson:"key"`
	Name        string      `bson:"name"`
	Email       string      `bson:"email"`
	Company     string      `bson:"company"`
	Position    string      `bson:"position"`
	Location    string      `bson:"location"`
	Phone       string      `bson:"phone"`
	ProfileURL  string      `bson:"profileUrl"`
	Picture     string      `bson:"picture"`
	Source      string      `bson:"source"`
	ConnectedOn string      `bson:"connectedOn"`
	Tags        []model.Tag `bson:"tags"`
	CreatedAt   int64       `bson:"createdAt"`
	UpdatedAt   int64       `bson:"updatedAt"`
}

func toDoc(c *model.Contact) contactDoc {
	tags := c.Tags
	if tags == nil {
		tags = []model.Tag{}
	}
	return contactDoc{
		ID: c.ID, Key: c.Key, Name: c.Name, Email: c.Email, Company: c.Company,
		Position: c.Position, Location: c.Location, Phone: c.Phone, ProfileURL: c.ProfileURL,
		Picture: c.Picture, Source: c.Source, ConnectedOn: c.ConnectedOn, Tags: tags,
		CreatedAt: millis(c.CreatedAt), UpdatedAt: millis(c.UpdatedAt),
	}
}

func (d contactDoc) contact() model.Contact {
	tags := d.Tags
	if tags == nil {
		tags = []model.Tag{}
	}
	return model.Contact{
		ID: d.ID, Key: d.Key, Name: d.Name, Email: d.Email, Company: d.Company,
		Position: d.Position, Location: d.Location, Phone: d.Phone, ProfileURL: d.ProfileURL,
		Picture: d.Picture, Source: d.Source, ConnectedOn: d.ConnectedOn, Tags: tags,
		CreatedAt: fromMillis(d.CreatedAt), UpdatedAt: fromMillis(d.UpdatedAt),
	}
}

// MongoStore keeps contacts in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// newestFirst orders contacts by creation time, ties by ID.
var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}

// OpenMongoStore connects to MongoDB and makes sure the key index exists.
func OpenMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = DefaultMongoDatabase
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	s := &MongoStore{client: client, coll: client.Database(database).Collection(mongoCollection)}
	_, err = s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: newestFirst},
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongodb indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) Name() string { return DriverMongoDB }

func (s *MongoStore) FindAll(ctx context.Context) ([]model.Contact, error) {
	return s.find(ctx, options.Find().SetSort(newestFirst))
}

func (s *MongoStore) List(ctx context.Context, offset, limit int) ([]model.Contact, error) {
	return s.find(ctx, options.Find().SetSort(newestFirst).SetSkip(int64(offset)).SetLimit(int64(limit)))
}

func (s *MongoStore) find(ctx context.Context, opts *options.FindOptionsBuilder) ([]model.Contact, error) {
	cursor, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find contacts: %w", err)
	}
	var docs []contactDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode contacts: %w", err)
	}
	out := make([]model.Contact, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.contact())
	}
	return out, nil
}

func (s *MongoStore) FindByKey(ctx context.Context, key string) (model.Contact, error) {
	return s.findOne(ctx, bson.D{{Key: "key", Value: key}})
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (model.Contact, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (model.Contact, error) {
	var d contactDoc
	if err := s.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Contact{}, apperr.ErrNotFound
		}
		return model.Contact{}, fmt.Errorf("find contact: %w", err)
	}
	return d.contact(), nil
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count contacts: %w", err)
	}
	return int(n), nil
}

// Upsert replaces the document with the contact's key. The ID and creation time of an existing
// document are kept.
func (s *MongoStore) Upsert(ctx context.Context, c *model.Contact) error {
	if c.Key == "" {
		return fmt.Errorf("%w: contact key is required", apperr.ErrInvalid)
	}
	existing, err := s.FindByKey(ctx, c.Key)
	switch {
	case err == nil:
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	case errors.Is(err, apperr.ErrNotFound):
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
	default:
		return err
	}
	_, err = s.coll.ReplaceOne(ctx, bson.D{{Key: "key", Value: c.Key}}, toDoc(c), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if result.DeletedCount == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}
