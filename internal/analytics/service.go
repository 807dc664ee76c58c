package analytics

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"NoticeBoard/internal/apperror"
)

type CountBucket struct {
	ID    string `bson:"_id" json:"_id"`
	Count int64  `bson:"count" json:"count"`
}

// NoticeDigest is the compact projection used for the top-viewed and
// most-recent lists.
type NoticeDigest struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Category    string             `bson:"category" json:"category"`
	Views       int64              `bson:"views" json:"views"`
	PublishedAt time.Time          `bson:"publishedAt" json:"publishedAt"`
	AuthorName  string             `bson:"authorName" json:"authorName,omitempty"`
	AuthorEmail string             `bson:"authorEmail" json:"authorEmail,omitempty"`
}

type Summary struct {
	TotalNotices      int64          `json:"totalNotices"`
	TotalViews        int64          `json:"totalViews"`
	TotalUsers        int64          `json:"totalUsers"`
	NoticesByCategory []CountBucket  `json:"noticesByCategory"`
	NoticesByPriority []CountBucket  `json:"noticesByPriority"`
	UsersByRole       []CountBucket  `json:"usersByRole"`
	TopViewedNotices  []NoticeDigest `json:"topViewedNotices"`
	RecentNotices     []NoticeDigest `json:"recentNotices"`
}

// Service computes read-only rollups over the notices and users
// collections for the admin dashboard.
type Service struct {
	notices *mongo.Collection
	users   *mongo.Collection
}

func NewService(db *mongo.Database) *Service {
	return &Service{
		notices: db.Collection("notices"),
		users:   db.Collection("users"),
	}
}

func (s *Service) Summary(ctx context.Context, startDate, endDate string) (*Summary, error) {
	filter, err := buildDateFilter(startDate, endDate)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		NoticesByCategory: []CountBucket{},
		NoticesByPriority: []CountBucket{},
		UsersByRole:       []CountBucket{},
		TopViewedNotices:  []NoticeDigest{},
		RecentNotices:     []NoticeDigest{},
	}

	summary.TotalNotices, err = s.notices.CountDocuments(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	summary.TotalUsers, err = s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, apperror.Internal(err)
	}
	summary.TotalViews, err = s.totalViews(ctx, filter)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.groupCount(ctx, s.notices, filter, "$category", &summary.NoticesByCategory); err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.groupCount(ctx, s.notices, filter, "$priority", &summary.NoticesByPriority); err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.groupCount(ctx, s.users, bson.M{}, "$role", &summary.UsersByRole); err != nil {
		return nil, apperror.Internal(err)
	}
	summary.TopViewedNotices, err = s.digests(ctx, filter, bson.M{"views": -1}, 10)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	summary.RecentNotices, err = s.digests(ctx, filter, bson.M{"publishedAt": -1}, 5)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return summary, nil
}

func (s *Service) totalViews(ctx context.Context, filter bson.M) (int64, error) {
	cursor, err := s.notices.Aggregate(ctx, bson.A{
		bson.M{"$match": filter},
		bson.M{"$group": bson.M{"_id": nil, "totalViews": bson.M{"$sum": "$views"}}},
	})
	if err != nil {
		return 0, err
	}
	var results []struct {
		TotalViews int64 `bson:"totalViews"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].TotalViews, nil
}

func (s *Service) groupCount(ctx context.Context, coll *mongo.Collection, filter bson.M, field string, out *[]CountBucket) error {
	cursor, err := coll.Aggregate(ctx, bson.A{
		bson.M{"$match": filter},
		bson.M{"$group": bson.M{"_id": field, "count": bson.M{"$sum": 1}}},
	})
	if err != nil {
		return err
	}
	return cursor.All(ctx, out)
}

func (s *Service) digests(ctx context.Context, filter bson.M, sort bson.M, limit int64) ([]NoticeDigest, error) {
	cursor, err := s.notices.Aggregate(ctx, bson.A{
		bson.M{"$match": filter},
		bson.M{"$sort": sort},
		bson.M{"$limit": limit},
		bson.M{"$lookup": bson.M{
			"from":         "users",
			"localField":   "author",
			"foreignField": "_id",
			"as":           "authorDoc",
		}},
		bson.M{"$unwind": bson.M{"path": "$authorDoc", "preserveNullAndEmptyArrays": true}},
		bson.M{"$project": bson.M{
			"title":       1,
			"category":    1,
			"views":       1,
			"publishedAt": 1,
			"authorName":  "$authorDoc.name",
			"authorEmail": "$authorDoc.email",
		}},
	})
	if err != nil {
		return nil, err
	}
	digests := []NoticeDigest{}
	if err := cursor.All(ctx, &digests); err != nil {
		return nil, err
	}
	return digests, nil
}

// buildDateFilter constrains the rollups to a publishedAt range when the
// caller supplies one.
func buildDateFilter(startDate, endDate string) (bson.M, error) {
	if startDate == "" && endDate == "" {
		return bson.M{}, nil
	}
	published := bson.M{}
	if startDate != "" {
		start, err := parseDate(startDate)
		if err != nil {
			return nil, apperror.Validation("Invalid startDate")
		}
		published["$gte"] = start
	}
	if endDate != "" {
		end, err := parseDate(endDate)
		if err != nil {
			return nil, apperror.Validation("Invalid endDate")
		}
		published["$lte"] = end
	}
	return bson.M{"publishedAt": published}, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date format: " + value)
}
