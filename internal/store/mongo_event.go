package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/evently/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const eventsCollection = "events"

type eventDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	FlyerURL    string             `bson:"flyer"`
	EventDate   string             `bson:"event_date"`
	StartTime   string             `bson:"start_time"`
	EndTime     string             `bson:"end_time"`
	Owner       string             `bson:"owner"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func newEventDocument(event types.Event) eventDocument {
	return eventDocument{
		Title:       event.Title,
		Description: event.Description,
		FlyerURL:    event.FlyerURL,
		EventDate:   event.EventDate,
		StartTime:   event.StartTime,
		EndTime:     event.EndTime,
		Owner:       event.Owner,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func (d eventDocument) toEvent() types.Event {
	return types.Event{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		FlyerURL:    d.FlyerURL,
		EventDate:   d.EventDate,
		StartTime:   d.StartTime,
		EndTime:     d.EndTime,
		Owner:       d.Owner,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoEventRepository persists events in the "events" collection.
type MongoEventRepository struct {
	coll *mongo.Collection
}

func NewMongoEventRepository(db *mongo.Database) *MongoEventRepository {
	return &MongoEventRepository{coll: db.Collection(eventsCollection)}
}

// EnsureIndexes creates the unique (title, owner) index.
func (r *MongoEventRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}, {Key: "owner", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *MongoEventRepository) List(ctx context.Context, filter types.EventFilter, page types.Page) ([]types.Event, error) {
	query, err := eventQuery(filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(page.Skip)).
		SetLimit(int64(page.Limit))

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := make([]types.Event, 0, page.Limit)
	for cursor.Next(ctx) {
		var doc eventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		events = append(events, doc.toEvent())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *MongoEventRepository) Get(ctx context.Context, id string) (types.Event, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return types.Event{}, ErrInvalidID
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MongoEventRepository) FindByTitleOwner(ctx context.Context, title, owner string) (types.Event, error) {
	return r.findOne(ctx, bson.M{"title": title, "owner": owner})
}

func (r *MongoEventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	doc := newEventDocument(event)
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Event{}, ErrDuplicate
		}
		return types.Event{}, err
	}
	event.ID = doc.ID.Hex()
	return event, nil
}

// Replace overwrites every mutable field of the stored event. CreatedAt is kept.
func (r *MongoEventRepository) Replace(ctx context.Context, event types.Event) (types.Event, error) {
	oid, err := primitive.ObjectIDFromHex(event.ID)
	if err != nil {
		return types.Event{}, ErrInvalidID
	}

	current, err := r.findOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return types.Event{}, err
	}
	event.CreatedAt = current.CreatedAt
	event.UpdatedAt = time.Now().UTC()

	doc := newEventDocument(event)
	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Event{}, ErrDuplicate
		}
		return types.Event{}, err
	}
	if result.MatchedCount == 0 {
		return types.Event{}, ErrNotFound
	}
	return event, nil
}

func (r *MongoEventRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoEventRepository) findOne(ctx context.Context, filter bson.M) (types.Event, error) {
	var doc eventDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return doc.toEvent(), nil
}

// eventQuery translates an EventFilter into a Mongo filter. Terms are
// matched literally, so regex metacharacters in user input have no effect.
func eventQuery(filter types.EventFilter) (bson.M, error) {
	query := bson.M{}

	var or bson.A
	if term := strings.TrimSpace(filter.Title); term != "" {
		or = append(or, bson.M{"title": containsRegex(term)})
	}
	if term := strings.TrimSpace(filter.Description); term != "" {
		or = append(or, bson.M{"description": containsRegex(term)})
	}
	if len(or) > 0 {
		query["$or"] = or
	}

	if filter.ExcludeID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.ExcludeID)
		if err != nil {
			return nil, ErrInvalidID
		}
		query["_id"] = bson.M{"$ne": oid}
	}
	return query, nil
}

func containsRegex(term string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}
