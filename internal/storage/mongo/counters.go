package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// counter is one document of the counters collection.
type counter struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// nextID atomically increments the named counter and returns the new value.
func (m *Mongo) nextID(ctx context.Context, name string) (int64, error) {
	const op = "storage/mongo/nextID"

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var c counter
	err := m.counters.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: name}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "seq", Value: int64(1)}}}},
		opts,
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("%s: %s: %w", op, name, err)
	}

	return c.Seq, nil
}

// seedCounters raises every counter to at least the current max id,
// so rows inserted before the counters existed are never reused.
func (m *Mongo) seedCounters(ctx context.Context) error {
	const op = "storage/mongo/seedCounters"

	for name, coll := range map[string]*mongodriver.Collection{
		usersCollection:    m.users,
		newsCollection:     m.news,
		commentsCollection: m.comments,
	} {
		maxID, err := maxID(ctx, coll)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}

		_, err = m.counters.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: name}},
			bson.D{{Key: "$max", Value: bson.D{{Key: "seq", Value: maxID}}}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", op, name, err)
		}
	}

	return nil
}

func maxID(ctx context.Context, coll *mongodriver.Collection) (int64, error) {
	var doc struct {
		ID int64 `bson:"id"`
	}

	err := coll.FindOne(ctx, bson.D{},
		options.FindOne().
			SetSort(bson.D{{Key: "id", Value: -1}}).
			SetProjection(bson.D{{Key: "id", Value: 1}}),
	).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	return doc.ID, nil
}
