package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateArticle inserts the article under the next id of the news counter.
// A zero Time is replaced with now.
func (m *Mongo) CreateArticle(ctx context.Context, a models.Article) (*models.Article, error) {
	const op = "storage/mongo/CreateArticle"

	id, err := m.nextID(ctx, newsCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := toMS(time.Now())
	a.ID = id
	a.Views = 0
	a.CreatedAt = now
	a.UpdatedAt = now

	if a.Time.IsZero() {
		a.Time = now
	} else {
		a.Time = toMS(a.Time)
	}

	if _, err := m.news.InsertOne(ctx, a); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, mapErr(err))
	}

	return &a, nil
}

// ArticleByID returns the article regardless of its published flag.
func (m *Mongo) ArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	const op = "storage/mongo/ArticleByID"

	var a models.Article
	if err := m.news.FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&a); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeArticle(&a)

	return &a, nil
}

// UpdateArticle applies the non-nil fields of patch.
func (m *Mongo) UpdateArticle(ctx context.Context, id int64, patch models.ArticlePatch) (*models.Article, error) {
	const op = "storage/mongo/UpdateArticle"

	set := bson.D{{Key: "updatedAt", Value: toMS(time.Now())}}
	str := func(key string, v *string) {
		if v != nil {
			set = append(set, bson.E{Key: key, Value: *v})
		}
	}

	str("title", patch.Title)
	str("summary", patch.Summary)
	str("content", patch.Content)
	str("image", patch.Image)
	str("category", patch.Category)
	str("author", patch.Author)
	str("metaTitle", patch.MetaTitle)
	str("metaDescription", patch.MetaDescription)
	str("title_tr", patch.TitleTR)
	str("summary_tr", patch.SummaryTR)
	str("content_tr", patch.ContentTR)
	str("title_az", patch.TitleAZ)
	str("summary_az", patch.SummaryAZ)
	str("content_az", patch.ContentAZ)
	str("title_ru", patch.TitleRU)
	str("summary_ru", patch.SummaryRU)
	str("content_ru", patch.ContentRU)

	if patch.Time != nil {
		set = append(set, bson.E{Key: "time", Value: toMS(*patch.Time)})
	}

	if patch.Featured != nil {
		set = append(set, bson.E{Key: "featured", Value: *patch.Featured})
	}

	if patch.Published != nil {
		set = append(set, bson.E{Key: "published", Value: *patch.Published})
	}

	if patch.Tags != nil {
		set = append(set, bson.E{Key: "tags", Value: *patch.Tags})
	}

	var a models.Article
	err := m.news.FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeArticle(&a)

	return &a, nil
}

// DeleteArticle is a hard delete; comments of the article are kept.
func (m *Mongo) DeleteArticle(ctx context.Context, id int64) error {
	const op = "storage/mongo/DeleteArticle"

	res, err := m.news.DeleteOne(ctx, bson.D{{Key: "id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ListArticles returns published articles sorted by time desc, id desc.
func (m *Mongo) ListArticles(ctx context.Context, f models.ArticleFilter) ([]models.Article, error) {
	const op = "storage/mongo/ListArticles"

	filter := bson.D{{Key: "published", Value: true}}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: f.Category})
	}

	if f.FeaturedOnly {
		filter = append(filter, bson.E{Key: "featured", Value: true})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: -1}, {Key: "id", Value: -1}}).
		SetSkip(f.Offset)
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cur, err := m.news.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	items := make([]models.Article, 0)
	for cur.Next(ctx) {
		var a models.Article
		if err := cur.Decode(&a); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		normalizeArticle(&a)
		items = append(items, a)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return items, nil
}

// IncrementViews bumps the counter with $inc and returns the new value.
func (m *Mongo) IncrementViews(ctx context.Context, id int64) (int64, error) {
	const op = "storage/mongo/IncrementViews"

	var out struct {
		Views int64 `bson:"views"`
	}

	err := m.news.FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$inc", Value: bson.D{{Key: "views", Value: int64(1)}}}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetProjection(bson.D{{Key: "views", Value: 1}}),
	).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	return out.Views, nil
}

// ArticleStats returns the number of articles and the total of their views.
func (m *Mongo) ArticleStats(ctx context.Context) (int64, int64, error) {
	const op = "storage/mongo/ArticleStats"

	cur, err := m.news.Aggregate(ctx, bson.A{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "views", Value: bson.D{{Key: "$sum", Value: "$views"}}},
		}}},
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%s: aggregate: %w", op, err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Count int64 `bson:"count"`
		Views int64 `bson:"views"`
	}

	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, fmt.Errorf("%s: decode: %w", op, err)
	}

	if len(rows) == 0 {
		return 0, 0, nil
	}

	return rows[0].Count, rows[0].Views, nil
}

func normalizeArticle(a *models.Article) {
	a.Time = a.Time.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
}
