// Package mongo implements storage.Storage on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/siveal/internal/config"
	"github.com/pribylovaa/siveal/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection       = "users"
	newsCollection        = "news"
	commentsCollection    = "comments"
	subscribersCollection = "subscribers"
	countersCollection    = "counters"
	defaultDBName         = "siveal_db"
)

// Mongo is a thin adapter over the SIVEAL collections.
type Mongo struct {
	client      *mongodriver.Client
	db          *mongodriver.Database
	users       *mongodriver.Collection
	news        *mongodriver.Collection
	comments    *mongodriver.Collection
	subscribers *mongodriver.Collection
	counters    *mongodriver.Collection
}

var _ storage.Storage = (*Mongo)(nil)

// New connects, pings, creates indexes and seeds the id counters.
func New(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo: nil config")
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("mongo: empty cfg.DB.URL")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.DB.URL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(cfg.DB.URL))

	m := &Mongo{
		client:      cli,
		db:          db,
		users:       db.Collection(usersCollection),
		news:        db.Collection(newsCollection),
		comments:    db.Collection(commentsCollection),
		subscribers: db.Collection(subscribersCollection),
		counters:    db.Collection(countersCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	if err := m.seedCounters(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping checks the primary; used by the readiness probe.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes creates the indexes the queries rely on:
//   - unique id on every entity, unique username/email on users;
//   - news listing: published + time(desc), category;
//   - comments by article + createdAt;
//   - unique subscriber email and unsubscribe token.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	unique := func(name string) *options.IndexOptions {
		return options.Index().SetName(name).SetUnique(true)
	}

	plan := map[*mongodriver.Collection][]mongodriver.IndexModel{
		m.users: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique("uniq_id")},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique("uniq_username")},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique("uniq_email")},
		},
		m.news: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique("uniq_id")},
			{Keys: bson.D{{Key: "published", Value: 1}, {Key: "time", Value: -1}}, Options: options.Index().SetName("published_time_desc")},
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("category")},
		},
		m.comments: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: unique("uniq_id")},
			{Keys: bson.D{{Key: "articleId", Value: 1}, {Key: "createdAt", Value: 1}}, Options: options.Index().SetName("article_created_asc")},
		},
		m.subscribers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique("uniq_email")},
			{Keys: bson.D{{Key: "unsubscribeToken", Value: 1}}, Options: unique("uniq_unsubscribe_token")},
			{Keys: bson.D{{Key: "isActive", Value: 1}, {Key: "subscribedAt", Value: -1}}, Options: options.Index().SetName("active_subscribed_desc")},
		},
	}

	for coll, models := range plan {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo ensure indexes %s: %w", coll.Name(), err)
		}
	}

	return nil
}

// databaseFromURI extracts the database name from the URI path.
// Falls back to the default when the path is empty or unparsable.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

// toMS truncates to the millisecond precision of BSON dates.
func toMS(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// mapErr converts driver errors into storage sentinels.
func mapErr(err error) error {
	switch {
	case errors.Is(err, mongodriver.ErrNoDocuments):
		return storage.ErrNotFound
	case mongodriver.IsDuplicateKeyError(err):
		return storage.ErrConflict
	default:
		return err
	}
}
