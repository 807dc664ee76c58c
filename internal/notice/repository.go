package notice

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNoticeNotFound = errors.New("notice not found")

type Repository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{collection: db.Collection("notices")}
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"publishedAt": -1}},
		{Keys: bson.M{"category": 1}},
		{Keys: bson.M{"targetAudience.isGlobal": 1}},
		{Keys: bson.M{"isArchived": 1}},
	})
	return err
}

func (r *Repository) Insert(ctx context.Context, n *Notice) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

func (r *Repository) FindByID(ctx context.Context, id primitive.ObjectID) (*Notice, error) {
	var n Notice
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}
	return &n, nil
}

// Find returns one page of notices sorted newest-first plus the unpaged
// total for the same filter.
func (r *Repository) Find(ctx context.Context, filter bson.M, page, limit int64) ([]Notice, int64, error) {
	skip := (page - 1) * limit
	cursor, err := r.collection.Find(ctx, filter, options.Find().
		SetSort(bson.M{"publishedAt": -1}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	var notices []Notice
	if err := cursor.All(ctx, &notices); err != nil {
		return nil, 0, err
	}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return notices, total, nil
}

func (r *Repository) Update(ctx context.Context, id primitive.ObjectID, update bson.M) (*Notice, error) {
	var n Notice
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *Repository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoticeNotFound
	}
	return nil
}

// ToggleArchive flips isArchived with a pipeline update so two concurrent
// toggles cannot lose each other.
func (r *Repository) ToggleArchive(ctx context.Context, id primitive.ObjectID) (*Notice, error) {
	pipeline := bson.A{
		bson.M{"$set": bson.M{"isArchived": bson.M{"$not": "$isArchived"}, "updated_at": time.Now()}},
	}
	var n Notice
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&n)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoticeNotFound
		}
		return nil, err
	}
	return &n, nil
}

// TrackView appends a view-log entry and bumps the counter in one
// conditional update. A repeat view by the same user matches nothing and
// is a no-op, so the increment can never double-apply.
func (r *Repository) TrackView(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "viewCount.userId": bson.M{"$ne": userID}},
		bson.M{
			"$push": bson.M{"viewCount": ViewEntry{UserID: userID, ViewedAt: time.Now()}},
			"$inc":  bson.M{"views": 1},
		})
	return err
}

func (r *Repository) AddComment(ctx context.Context, id primitive.ObjectID, comment Comment) (*Notice, error) {
	return r.Update(ctx, id, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updated_at": time.Now()},
	})
}

// Acknowledge is append-if-absent: a duplicate acknowledgment matches no
// document and leaves the list unchanged.
func (r *Repository) Acknowledge(ctx context.Context, id, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "acknowledgments.userId": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"acknowledgments": Acknowledgment{UserID: userID, AcknowledgedAt: time.Now()}}})
	return err
}

// FindDue lists unpublished notices whose scheduled date has passed.
func (r *Repository) FindDue(ctx context.Context, now time.Time) ([]Notice, error) {
	cursor, err := r.collection.Find(ctx, bson.M{
		"scheduledDate": bson.M{"$lte": now},
		"isPublished":   false,
	})
	if err != nil {
		return nil, err
	}
	var notices []Notice
	if err := cursor.All(ctx, &notices); err != nil {
		return nil, err
	}
	return notices, nil
}

// ClaimPublish marks a due notice published if and only if it is still
// unpublished. The boolean result tells the caller whether it won the
// claim and therefore owns the fanout.
func (r *Repository) ClaimPublish(ctx context.Context, id primitive.ObjectID, now time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "isPublished": false},
		bson.M{"$set": bson.M{"isPublished": true, "publishedAt": now, "updated_at": now}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
