package mongo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateSubscriber inserts a new subscriber. Duplicate email or token is storage.ErrConflict.
func (m *Mongo) CreateSubscriber(ctx context.Context, s models.Subscriber) (*models.Subscriber, error) {
	const op = "storage/mongo/CreateSubscriber"

	now := toMS(time.Now())
	s.CreatedAt = now
	s.UpdatedAt = now

	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = now
	} else {
		s.SubscribedAt = toMS(s.SubscribedAt)
	}

	if _, err := m.subscribers.InsertOne(ctx, s); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, mapErr(err))
	}

	return &s, nil
}

// SubscriberByEmail returns the subscriber in any state.
func (m *Mongo) SubscriberByEmail(ctx context.Context, email string) (*models.Subscriber, error) {
	const op = "storage/mongo/SubscriberByEmail"

	var s models.Subscriber
	if err := m.subscribers.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeSubscriber(&s)

	return &s, nil
}

// ReactivateSubscriber only matches inactive documents, so two racing
// subscribe calls cannot both succeed. The unsubscribe token is kept.
func (m *Mongo) ReactivateSubscriber(ctx context.Context, email string, prefs models.PreferencesPatch, at time.Time) (*models.Subscriber, error) {
	const op = "storage/mongo/ReactivateSubscriber"

	at = toMS(at)
	set := append(bson.D{
		{Key: "isActive", Value: true},
		{Key: "subscribedAt", Value: at},
		{Key: "unsubscribedAt", Value: nil},
		{Key: "updatedAt", Value: at},
	}, preferencesSet(prefs)...)

	return m.updateSubscriber(ctx, op,
		bson.D{{Key: "email", Value: email}, {Key: "isActive", Value: false}},
		bson.D{{Key: "$set", Value: set}},
	)
}

// DeactivateSubscriber matches an active subscriber by email or token.
func (m *Mongo) DeactivateSubscriber(ctx context.Context, lookup models.SubscriberLookup, at time.Time) (*models.Subscriber, error) {
	const op = "storage/mongo/DeactivateSubscriber"

	filter := bson.D{{Key: "isActive", Value: true}}
	if lookup.Email != "" {
		filter = append(filter, bson.E{Key: "email", Value: lookup.Email})
	} else {
		filter = append(filter, bson.E{Key: "unsubscribeToken", Value: lookup.Token})
	}

	at = toMS(at)

	return m.updateSubscriber(ctx, op, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "isActive", Value: false},
		{Key: "unsubscribedAt", Value: at},
		{Key: "updatedAt", Value: at},
	}}})
}

// UpdatePreferences changes the supplied preference fields of an active subscriber.
func (m *Mongo) UpdatePreferences(ctx context.Context, email string, prefs models.PreferencesPatch, at time.Time) (*models.Subscriber, error) {
	const op = "storage/mongo/UpdatePreferences"

	set := append(bson.D{{Key: "updatedAt", Value: toMS(at)}}, preferencesSet(prefs)...)

	return m.updateSubscriber(ctx, op,
		bson.D{{Key: "email", Value: email}, {Key: "isActive", Value: true}},
		bson.D{{Key: "$set", Value: set}},
	)
}

// ListSubscribers pages through active subscribers, newest first.
// The category filter matches the category itself or "all".
func (m *Mongo) ListSubscribers(ctx context.Context, f models.SubscriberFilter) (*models.SubscriberPage, error) {
	const op = "storage/mongo/ListSubscribers"

	filter := bson.D{{Key: "isActive", Value: true}}
	if f.Category != "" && f.Category != models.CategoryAll {
		filter = append(filter, bson.E{Key: "preferences.categories", Value: bson.D{
			{Key: "$in", Value: bson.A{f.Category, models.CategoryAll}},
		}})
	}

	if f.Language != "" {
		filter = append(filter, bson.E{Key: "preferences.language", Value: f.Language})
	}

	if f.Search != "" {
		filter = append(filter, bson.E{Key: "email", Value: primitive.Regex{
			Pattern: regexp.QuoteMeta(f.Search),
			Options: "i",
		}})
	}

	page := f.Page
	if page < 1 {
		page = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "subscribedAt", Value: -1}}).
		SetSkip((page - 1) * f.Limit).
		SetLimit(f.Limit).
		SetProjection(bson.D{{Key: "unsubscribeToken", Value: 0}})

	cur, err := m.subscribers.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	items := make([]models.Subscriber, 0)
	for cur.Next(ctx) {
		var s models.Subscriber
		if err := cur.Decode(&s); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		normalizeSubscriber(&s)
		items = append(items, s)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	total, err := m.subscribers.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: count: %w", op, err)
	}

	return &models.SubscriberPage{
		Items: items,
		Page:  page,
		Limit: f.Limit,
		Total: total,
	}, nil
}

// SubscriberStats counts active subscribers and groups them by category and language.
func (m *Mongo) SubscriberStats(ctx context.Context, since time.Time) (*models.SubscriberStats, error) {
	const op = "storage/mongo/SubscriberStats"

	active := bson.D{{Key: "isActive", Value: true}}

	total, err := m.subscribers.CountDocuments(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("%s: total: %w", op, err)
	}

	fresh, err := m.subscribers.CountDocuments(ctx, bson.D{
		{Key: "isActive", Value: true},
		{Key: "subscribedAt", Value: bson.D{{Key: "$gte", Value: toMS(since)}}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: new this month: %w", op, err)
	}

	categories, err := m.distribution(ctx, bson.A{
		bson.D{{Key: "$match", Value: active}},
		bson.D{{Key: "$unwind", Value: "$preferences.categories"}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$preferences.categories"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: categories: %w", op, err)
	}

	languages, err := m.distribution(ctx, bson.A{
		bson.D{{Key: "$match", Value: active}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$preferences.language"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: languages: %w", op, err)
	}

	return &models.SubscriberStats{
		TotalSubscribers:     total,
		NewThisMonth:         fresh,
		CategoryDistribution: categories,
		LanguageDistribution: languages,
	}, nil
}

// CountSubscribers returns active and inactive counts.
func (m *Mongo) CountSubscribers(ctx context.Context) (*models.SubscriberCounts, error) {
	const op = "storage/mongo/CountSubscribers"

	active, err := m.subscribers.CountDocuments(ctx, bson.D{{Key: "isActive", Value: true}})
	if err != nil {
		return nil, fmt.Errorf("%s: active: %w", op, err)
	}

	inactive, err := m.subscribers.CountDocuments(ctx, bson.D{{Key: "isActive", Value: false}})
	if err != nil {
		return nil, fmt.Errorf("%s: inactive: %w", op, err)
	}

	return &models.SubscriberCounts{Active: active, Inactive: inactive}, nil
}

func (m *Mongo) distribution(ctx context.Context, pipeline bson.A) ([]models.Bucket, error) {
	cur, err := m.subscribers.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]models.Bucket, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (m *Mongo) updateSubscriber(ctx context.Context, op string, filter, update bson.D) (*models.Subscriber, error) {
	var s models.Subscriber
	err := m.subscribers.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeSubscriber(&s)

	return &s, nil
}

func preferencesSet(p models.PreferencesPatch) bson.D {
	var set bson.D
	if len(p.Categories) > 0 {
		set = append(set, bson.E{Key: "preferences.categories", Value: p.Categories})
	}

	if p.Language != "" {
		set = append(set, bson.E{Key: "preferences.language", Value: p.Language})
	}

	if p.Frequency != "" {
		set = append(set, bson.E{Key: "preferences.frequency", Value: p.Frequency})
	}

	return set
}

func normalizeSubscriber(s *models.Subscriber) {
	s.SubscribedAt = s.SubscribedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()

	if s.UnsubscribedAt != nil {
		t := s.UnsubscribedAt.UTC()
		s.UnsubscribedAt = &t
	}
}
