package notice

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"NoticeBoard/internal/apperror"
	"NoticeBoard/internal/user"
)

// Notifier receives every notice the moment it becomes published, whether
// immediately on create or later by the scheduler.
type Notifier interface {
	NoticePublished(ctx context.Context, n *Notice)
}

// Store is the persistence surface the service drives.
type Store interface {
	Insert(ctx context.Context, n *Notice) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Notice, error)
	Find(ctx context.Context, filter bson.M, page, limit int64) ([]Notice, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, update bson.M) (*Notice, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ToggleArchive(ctx context.Context, id primitive.ObjectID) (*Notice, error)
	TrackView(ctx context.Context, id, userID primitive.ObjectID) error
	AddComment(ctx context.Context, id primitive.ObjectID, comment Comment) (*Notice, error)
	Acknowledge(ctx context.Context, id, userID primitive.ObjectID) error
}

// AuthorSource resolves author references for API responses.
type AuthorSource interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]user.User, error)
}

type Service struct {
	repo     Store
	users    AuthorSource
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewService(repo *Repository, users *user.Repository, notifier Notifier, log *zap.Logger) *Service {
	return &Service{repo: repo, users: users, notifier: notifier, log: log, now: time.Now}
}

type CreateInput struct {
	Title         string
	Content       string
	Category      string
	Priority      string
	RawAudience   string
	ScheduledDate string
	ExpiresAt     string
	Attachments   []Attachment
}

type UpdateInput struct {
	Title         string
	Content       string
	Category      string
	Priority      string
	RawAudience   string
	ScheduledDate string
	ExpiresAt     string
	IsPublished   *bool
	Attachments   []Attachment
}

type ListFilters struct {
	Category   string
	StartDate  string
	EndDate    string
	Department string
	Year       string
	Course     string
	IsArchived string
	Search     string
	Page       int64
	Limit      int64
}

func (s *Service) Create(ctx context.Context, v Viewer, in CreateInput) (*Notice, error) {
	if v.Role != user.RoleAdmin && v.Role != user.RoleFaculty {
		return nil, apperror.Forbidden("Only faculty and admin can create notices")
	}
	if in.Title == "" || in.Content == "" {
		return nil, apperror.Validation("Title and content are required")
	}
	category := in.Category
	if category == "" {
		category = CategoryGeneral
	}
	if !ValidCategory(category) {
		return nil, apperror.Validation("Invalid category")
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, apperror.Validation("Invalid priority")
	}

	scheduled, err := parseOptionalTime(in.ScheduledDate)
	if err != nil {
		return nil, apperror.Validation("Invalid scheduledDate")
	}
	expires, err := parseOptionalTime(in.ExpiresAt)
	if err != nil {
		return nil, apperror.Validation("Invalid expiresAt")
	}

	now := s.now()
	attachments := in.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	n := &Notice{
		Title:          in.Title,
		Content:        in.Content,
		Category:       category,
		Priority:       priority,
		AuthorID:       v.ID,
		TargetAudience: s.parseAudience(in.RawAudience),
		Attachments:    attachments,
		ScheduledDate:  scheduled,
		PublishedAt:    now,
		ExpiresAt:      expires,
		IsPublished:    scheduled == nil || !scheduled.After(now),
		Views:          0,
		ViewLog:        []ViewEntry{},
		Comments:       []Comment{},
		Acknowledgment: []Acknowledgment{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, n); err != nil {
		return nil, apperror.Internal(err)
	}
	s.log.Info("Notice created",
		zap.String("id", n.ID.Hex()),
		zap.String("title", n.Title),
		zap.Bool("published", n.IsPublished))

	if n.IsPublished && s.notifier != nil {
		s.notifier.NoticePublished(ctx, n)
	}
	if err := s.populateAuthors(ctx, n); err != nil {
		return nil, apperror.Internal(err)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, v Viewer, f ListFilters) ([]Notice, Pagination, error) {
	filter, err := buildListQuery(v, f, s.now())
	if err != nil {
		return nil, Pagination{}, err
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 {
		limit = 10
	}
	notices, total, err := s.repo.Find(ctx, filter, page, limit)
	if err != nil {
		return nil, Pagination{}, apperror.Internal(err)
	}
	if notices == nil {
		notices = []Notice{}
	}
	if err := s.populateAuthors(ctx, noticePtrs(notices)...); err != nil {
		return nil, Pagination{}, apperror.Internal(err)
	}
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return notices, Pagination{Page: page, Limit: limit, Total: total, Pages: pages}, nil
}

// GetByID fetches a single notice and records the view. The view log keeps
// at most one entry per user, so re-reading is a no-op.
func (s *Service) GetByID(ctx context.Context, v Viewer, id primitive.ObjectID) (*Notice, error) {
	if err := s.repo.TrackView(ctx, id, v.ID); err != nil {
		return nil, apperror.Internal(err)
	}
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.populateAuthors(ctx, n); err != nil {
		return nil, apperror.Internal(err)
	}
	return n, nil
}

func (s *Service) Update(ctx context.Context, v Viewer, id primitive.ObjectID, in UpdateInput) (*Notice, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if !v.IsAdmin() && existing.AuthorID != v.ID {
		return nil, apperror.Forbidden("Not authorized to update this notice")
	}

	set := bson.M{"updated_at": s.now()}
	if in.Title != "" {
		set["title"] = in.Title
	}
	if in.Content != "" {
		set["content"] = in.Content
	}
	if in.Category != "" {
		if !ValidCategory(in.Category) {
			return nil, apperror.Validation("Invalid category")
		}
		set["category"] = in.Category
	}
	if in.Priority != "" {
		if !ValidPriority(in.Priority) {
			return nil, apperror.Validation("Invalid priority")
		}
		set["priority"] = in.Priority
	}
	if in.RawAudience != "" {
		var audience TargetAudience
		if err := json.Unmarshal([]byte(in.RawAudience), &audience); err != nil {
			// Malformed audience keeps the stored one, matching create's
			// permissive policy.
			s.log.Warn("Malformed targetAudience on update, keeping existing",
				zap.String("notice", id.Hex()), zap.Error(err))
		} else {
			set["targetAudience"] = normalizeAudience(audience)
		}
	}
	if in.ScheduledDate != "" {
		scheduled, err := parseOptionalTime(in.ScheduledDate)
		if err != nil {
			return nil, apperror.Validation("Invalid scheduledDate")
		}
		set["scheduledDate"] = scheduled
	}
	if in.ExpiresAt != "" {
		expires, err := parseOptionalTime(in.ExpiresAt)
		if err != nil {
			return nil, apperror.Validation("Invalid expiresAt")
		}
		set["expiresAt"] = expires
	}
	if in.IsPublished != nil && v.IsAdmin() {
		set["isPublished"] = *in.IsPublished
	}

	update := bson.M{"$set": set}
	if len(in.Attachments) > 0 {
		update["$push"] = bson.M{"attachments": bson.M{"$each": in.Attachments}}
	}
	n, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.populateAuthors(ctx, n); err != nil {
		return nil, apperror.Internal(err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, v Viewer, id primitive.ObjectID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return classify(err)
	}
	if !v.IsAdmin() && existing.AuthorID != v.ID {
		return apperror.Forbidden("Not authorized to delete this notice")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return classify(err)
	}
	s.log.Info("Notice deleted", zap.String("id", id.Hex()), zap.String("by", v.ID.Hex()))
	return nil
}

func (s *Service) Archive(ctx context.Context, v Viewer, id primitive.ObjectID) (*Notice, error) {
	if !v.IsAdmin() {
		return nil, apperror.Forbidden("Only admin can archive notices")
	}
	n, err := s.repo.ToggleArchive(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if err := s.populateAuthors(ctx, n); err != nil {
		return nil, apperror.Internal(err)
	}
	return n, nil
}

func (s *Service) AddComment(ctx context.Context, v Viewer, id primitive.ObjectID, text string) (*Notice, error) {
	if text == "" {
		return nil, apperror.Validation("Comment text is required")
	}
	n, err := s.repo.AddComment(ctx, id, Comment{
		UserID:    v.ID,
		Comment:   text,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, classify(err)
	}
	if err := s.populateAuthors(ctx, n); err != nil {
		return nil, apperror.Internal(err)
	}
	return n, nil
}

// Acknowledge records the reader's acknowledgment once; repeat calls are
// no-ops.
func (s *Service) Acknowledge(ctx context.Context, v Viewer, id primitive.ObjectID) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return classify(err)
	}
	if err := s.repo.Acknowledge(ctx, id, v.ID); err != nil {
		return apperror.Internal(err)
	}
	return nil
}

// parseAudience applies the permissive intake policy: a missing or
// malformed targeting rule falls back to a global audience instead of
// failing the request.
func (s *Service) parseAudience(raw string) TargetAudience {
	if raw == "" {
		return GlobalAudience()
	}
	var audience TargetAudience
	if err := json.Unmarshal([]byte(raw), &audience); err != nil {
		s.log.Warn("Malformed targetAudience, defaulting to global", zap.Error(err))
		return GlobalAudience()
	}
	return normalizeAudience(audience)
}

func normalizeAudience(a TargetAudience) TargetAudience {
	if a.Roles == nil {
		a.Roles = []string{}
	}
	if a.Departments == nil {
		a.Departments = []string{}
	}
	if a.Years == nil {
		a.Years = []string{}
	}
	if a.Courses == nil {
		a.Courses = []string{}
	}
	return a
}

// buildListQuery assembles the store filter for a listing request: always
// published, audience-visible and unexpired for non-admin readers, then
// intersected with the caller's optional filters.
func buildListQuery(v Viewer, f ListFilters, now time.Time) (bson.M, error) {
	ands := []bson.M{{"isPublished": true}}

	if clauses := VisibilityClauses(v); clauses != nil {
		ands = append(ands, bson.M{"$or": clauses})
		ands = append(ands, bson.M{"$or": []bson.M{
			{"expiresAt": bson.M{"$exists": false}},
			{"expiresAt": nil},
			{"expiresAt": bson.M{"$gt": now}},
		}})
	}

	if f.Category != "" {
		ands = append(ands, bson.M{"category": f.Category})
	}
	if f.StartDate != "" || f.EndDate != "" {
		published := bson.M{}
		if f.StartDate != "" {
			start, err := parseOptionalTime(f.StartDate)
			if err != nil {
				return nil, apperror.Validation("Invalid startDate")
			}
			published["$gte"] = *start
		}
		if f.EndDate != "" {
			end, err := parseOptionalTime(f.EndDate)
			if err != nil {
				return nil, apperror.Validation("Invalid endDate")
			}
			published["$lte"] = *end
		}
		ands = append(ands, bson.M{"publishedAt": published})
	}
	if f.Department != "" {
		ands = append(ands, bson.M{"targetAudience.departments": f.Department})
	}
	if f.Year != "" {
		ands = append(ands, bson.M{"targetAudience.years": f.Year})
	}
	if f.Course != "" {
		ands = append(ands, bson.M{"targetAudience.courses": f.Course})
	}

	archived := false
	if f.IsArchived != "" {
		parsed, err := strconv.ParseBool(f.IsArchived)
		if err != nil {
			return nil, apperror.Validation("Invalid isArchived")
		}
		archived = parsed
	}
	ands = append(ands, bson.M{"isArchived": archived})

	if f.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		ands = append(ands, bson.M{"$or": []bson.M{
			{"title": pattern},
			{"content": pattern},
		}})
	}

	return bson.M{"$and": ands}, nil
}

// populateAuthors resolves author references for API responses, one users
// query per batch.
func (s *Service) populateAuthors(ctx context.Context, notices ...*Notice) error {
	if len(notices) == 0 {
		return nil
	}
	idSet := make(map[primitive.ObjectID]struct{}, len(notices))
	ids := make([]primitive.ObjectID, 0, len(notices))
	for _, n := range notices {
		if _, seen := idSet[n.AuthorID]; !seen {
			idSet[n.AuthorID] = struct{}{}
			ids = append(ids, n.AuthorID)
		}
	}
	authors, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[primitive.ObjectID]*AuthorRef, len(authors))
	for i := range authors {
		a := authors[i]
		byID[a.ID] = &AuthorRef{
			ID:         a.ID.Hex(),
			Name:       a.Name,
			Email:      a.Email,
			Role:       a.Role,
			Department: a.Department,
		}
	}
	for _, n := range notices {
		n.Author = byID[n.AuthorID]
	}
	return nil
}

func noticePtrs(notices []Notice) []*Notice {
	ptrs := make([]*Notice, len(notices))
	for i := range notices {
		ptrs[i] = &notices[i]
	}
	return ptrs
}

func parseOptionalTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("unrecognized time format: " + value)
}

func classify(err error) error {
	if errors.Is(err, ErrNoticeNotFound) {
		return apperror.NotFound("Notice not found")
	}
	return apperror.Internal(err)
}
