package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateComment inserts the comment under the next id of the comments counter.
// Parent resolution is done by the caller.
func (m *Mongo) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	const op = "storage/mongo/CreateComment"

	id, err := m.nextID(ctx, commentsCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := toMS(time.Now())
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := m.comments.InsertOne(ctx, c); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, mapErr(err))
	}

	return &c, nil
}

// CommentByID returns the comment even when it is deleted or unapproved.
func (m *Mongo) CommentByID(ctx context.Context, id int64) (*models.Comment, error) {
	const op = "storage/mongo/CommentByID"

	var c models.Comment
	if err := m.comments.FindOne(ctx, bson.D{{Key: "id", Value: id}}).Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeComment(&c)

	return &c, nil
}

// ListVisibleComments returns approved, non-deleted comments ordered by createdAt asc, id asc.
func (m *Mongo) ListVisibleComments(ctx context.Context, articleID int64) ([]models.Comment, error) {
	const op = "storage/mongo/ListVisibleComments"

	filter := bson.D{
		{Key: "articleId", Value: articleID},
		{Key: "isApproved", Value: true},
		{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}},
	}

	cur, err := m.comments.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	items := make([]models.Comment, 0)
	for cur.Next(ctx) {
		var c models.Comment
		if err := cur.Decode(&c); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		normalizeComment(&c)
		items = append(items, c)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return items, nil
}

// EditComment replaces the content and marks the comment edited.
func (m *Mongo) EditComment(ctx context.Context, id int64, content string, at time.Time) (*models.Comment, error) {
	const op = "storage/mongo/EditComment"

	at = toMS(at)

	return m.updateComment(ctx, op, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: content},
		{Key: "edited", Value: true},
		{Key: "editedAt", Value: at},
		{Key: "updatedAt", Value: at},
	}}})
}

// SoftDeleteComment hides the comment and records who did it.
func (m *Mongo) SoftDeleteComment(ctx context.Context, id, by int64, at time.Time) error {
	const op = "storage/mongo/SoftDeleteComment"

	at = toMS(at)

	_, err := m.updateComment(ctx, op, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "deleted", Value: true},
		{Key: "deletedAt", Value: at},
		{Key: "deletedBy", Value: by},
		{Key: "updatedAt", Value: at},
	}}})

	return err
}

// RestoreComment undoes a soft delete.
func (m *Mongo) RestoreComment(ctx context.Context, id int64) error {
	const op = "storage/mongo/RestoreComment"

	_, err := m.updateComment(ctx, op, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "deleted", Value: false},
			{Key: "updatedAt", Value: toMS(time.Now())},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "deletedAt", Value: ""},
			{Key: "deletedBy", Value: ""},
		}},
	})

	return err
}

// ReactToComment increments likes or dislikes with $inc.
func (m *Mongo) ReactToComment(ctx context.Context, id int64, like bool) (*models.Comment, error) {
	const op = "storage/mongo/ReactToComment"

	field := "dislikes"
	if like {
		field = "likes"
	}

	return m.updateComment(ctx, op, id, bson.D{{Key: "$inc", Value: bson.D{{Key: field, Value: int64(1)}}}})
}

// ReportComment appends a report to reportedBy.
func (m *Mongo) ReportComment(ctx context.Context, id int64, r models.CommentReport) error {
	const op = "storage/mongo/ReportComment"

	r.ReportedAt = toMS(r.ReportedAt)

	_, err := m.updateComment(ctx, op, id, bson.D{
		{Key: "$push", Value: bson.D{{Key: "reportedBy", Value: r}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: toMS(time.Now())}}},
	})

	return err
}

// CountComments counts comments that are not soft deleted.
func (m *Mongo) CountComments(ctx context.Context) (int64, error) {
	const op = "storage/mongo/CountComments"

	n, err := m.comments.CountDocuments(ctx, bson.D{{Key: "deleted", Value: bson.D{{Key: "$ne", Value: true}}}})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (m *Mongo) updateComment(ctx context.Context, op string, id int64, update bson.D) (*models.Comment, error) {
	var c models.Comment
	err := m.comments.FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: id}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeComment(&c)

	return &c, nil
}

func normalizeComment(c *models.Comment) {
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	for i := range c.ReportedBy {
		c.ReportedBy[i].ReportedAt = c.ReportedBy[i].ReportedAt.UTC()
	}
}
