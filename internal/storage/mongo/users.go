package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/pribylovaa/siveal/internal/models"
	"github.com/pribylovaa/siveal/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateUser inserts the user under the next id of the users counter.
func (m *Mongo) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "storage/mongo/CreateUser"

	id, err := m.nextID(ctx, usersCollection)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := toMS(time.Now())
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := m.users.InsertOne(ctx, u); err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, mapErr(err))
	}

	return &u, nil
}

// UserByID returns storage.ErrNotFound when absent.
func (m *Mongo) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage/mongo/UserByID"

	return m.findUser(ctx, op, bson.D{{Key: "id", Value: id}})
}

func (m *Mongo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage/mongo/UserByUsername"

	return m.findUser(ctx, op, bson.D{{Key: "username", Value: username}})
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/mongo/UserByEmail"

	return m.findUser(ctx, op, bson.D{{Key: "email", Value: email}})
}

func (m *Mongo) findUser(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var u models.User
	if err := m.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeUser(&u)

	return &u, nil
}

// UserExists matches either the username or the email.
func (m *Mongo) UserExists(ctx context.Context, username, email string) (bool, error) {
	const op = "storage/mongo/UserExists"

	n, err := m.users.CountDocuments(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: username}},
		bson.D{{Key: "email", Value: email}},
	}}}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// UpdateUser applies the non-nil fields of patch.
// A taken email returns storage.ErrConflict.
func (m *Mongo) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error) {
	const op = "storage/mongo/UpdateUser"

	set := bson.D{{Key: "updatedAt", Value: toMS(time.Now())}}
	add := func(key string, v *string) {
		if v != nil {
			set = append(set, bson.E{Key: key, Value: *v})
		}
	}

	add("email", patch.Email)
	add("password", patch.PasswordHash)
	add("firstName", patch.FirstName)
	add("lastName", patch.LastName)
	add("bio", patch.Bio)
	add("location", patch.Location)
	add("website", patch.Website)
	add("avatar", patch.Avatar)

	var u models.User
	err := m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeUser(&u)

	return &u, nil
}

// IncrementLoginAttempts runs as one pipeline update:
//   - an expired lock is dropped and the counter restarts at 1;
//   - otherwise the counter grows by one;
//   - when it reaches max and no lock is active, lockUntil is set.
func (m *Mongo) IncrementLoginAttempts(ctx context.Context, id int64, max int, lockUntil time.Time) (*models.User, error) {
	const op = "storage/mongo/IncrementLoginAttempts"

	expired := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$gt", Value: bson.A{"$lockUntil", nil}}},
		bson.D{{Key: "$lte", Value: bson.A{"$lockUntil", "$$NOW"}}},
	}}}

	pipeline := mongodriver.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "_lockExpired", Value: expired}}}},
		{{Key: "$set", Value: bson.D{
			{Key: "loginAttempts", Value: bson.D{{Key: "$cond", Value: bson.A{
				"$_lockExpired",
				1,
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$loginAttempts", 0}}}, 1}}},
			}}}},
			{Key: "lockUntil", Value: bson.D{{Key: "$cond", Value: bson.A{"$_lockExpired", "$$REMOVE", "$lockUntil"}}}},
		}}},
		{{Key: "$set", Value: bson.D{
			{Key: "lockUntil", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$gte", Value: bson.A{"$loginAttempts", max}}},
					bson.D{{Key: "$not", Value: bson.A{bson.D{{Key: "$gt", Value: bson.A{"$lockUntil", "$$NOW"}}}}}},
				}}},
				toMS(lockUntil),
				"$lockUntil",
			}}}},
			{Key: "updatedAt", Value: toMS(time.Now())},
		}}},
		{{Key: "$unset", Value: "_lockExpired"}},
	}

	var u models.User
	err := m.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "id", Value: id}},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapErr(err))
	}

	normalizeUser(&u)

	return &u, nil
}

func (m *Mongo) ResetLoginAttempts(ctx context.Context, id int64, at time.Time) error {
	const op = "storage/mongo/ResetLoginAttempts"

	res, err := m.users.UpdateOne(ctx, bson.D{{Key: "id", Value: id}}, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "loginAttempts", Value: 0},
			{Key: "lastLogin", Value: toMS(at)},
			{Key: "updatedAt", Value: toMS(at)},
		}},
		{Key: "$unset", Value: bson.D{{Key: "lockUntil", Value: ""}}},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteUser is a hard delete.
func (m *Mongo) DeleteUser(ctx context.Context, id int64) error {
	const op = "storage/mongo/DeleteUser"

	res, err := m.users.DeleteOne(ctx, bson.D{{Key: "id", Value: id}})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// ListUsers returns every account, newest first.
func (m *Mongo) ListUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage/mongo/ListUsers"

	cur, err := m.users.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}
	defer cur.Close(ctx)

	items := make([]models.User, 0)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}

		normalizeUser(&u)
		items = append(items, u)
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: cursor: %w", op, err)
	}

	return items, nil
}

func (m *Mongo) CountUsers(ctx context.Context) (int64, error) {
	const op = "storage/mongo/CountUsers"

	n, err := m.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func normalizeUser(u *models.User) {
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	if u.LastLogin != nil {
		t := u.LastLogin.UTC()
		u.LastLogin = &t
	}

	if u.LockUntil != nil {
		t := u.LockUntil.UTC()
		u.LockUntil = &t
	}
}
