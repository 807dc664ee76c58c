package notice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"NoticeBoard/internal/apperror"
	"NoticeBoard/internal/user"
)

func findClause(t *testing.T, query bson.M, key string) []bson.M {
	t.Helper()
	ands, ok := query["$and"].([]bson.M)
	require.True(t, ok, "list query must be an $and of clauses")
	var hits []bson.M
	for _, clause := range ands {
		if _, present := clause[key]; present {
			hits = append(hits, clause)
		}
	}
	return hits
}

func TestBuildListQueryDefaults(t *testing.T) {
	now := time.Now()
	query, err := buildListQuery(testViewer("student", "CSE", "2", "BTech"), ListFilters{}, now)
	require.NoError(t, err)

	assert.Contains(t, findClause(t, query, "isPublished"), bson.M{"isPublished": true})
	assert.Contains(t, findClause(t, query, "isArchived"), bson.M{"isArchived": false})

	// Non-admin readers get the audience restriction and the expiry cutoff.
	ors := findClause(t, query, "$or")
	require.Len(t, ors, 2)
}

func TestBuildListQueryAdminSkipsAudience(t *testing.T) {
	query, err := buildListQuery(testViewer("admin", "", "", ""), ListFilters{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, findClause(t, query, "$or"))
}

func TestBuildListQueryFilters(t *testing.T) {
	v := testViewer("admin", "", "", "")

	t.Run("category and audience filters", func(t *testing.T) {
		query, err := buildListQuery(v, ListFilters{
			Category:   "exams",
			Department: "CSE",
			Year:       "3",
			Course:     "BTech",
		}, time.Now())
		require.NoError(t, err)
		assert.Contains(t, findClause(t, query, "category"), bson.M{"category": "exams"})
		assert.Contains(t, findClause(t, query, "targetAudience.departments"), bson.M{"targetAudience.departments": "CSE"})
		assert.Contains(t, findClause(t, query, "targetAudience.years"), bson.M{"targetAudience.years": "3"})
		assert.Contains(t, findClause(t, query, "targetAudience.courses"), bson.M{"targetAudience.courses": "BTech"})
	})

	t.Run("date range", func(t *testing.T) {
		query, err := buildListQuery(v, ListFilters{StartDate: "2025-01-01", EndDate: "2025-02-01"}, time.Now())
		require.NoError(t, err)
		published := findClause(t, query, "publishedAt")
		require.Len(t, published, 1)
		rangeQuery := published[0]["publishedAt"].(bson.M)
		assert.Contains(t, rangeQuery, "$gte")
		assert.Contains(t, rangeQuery, "$lte")
	})

	t.Run("invalid date rejected", func(t *testing.T) {
		_, err := buildListQuery(v, ListFilters{StartDate: "not-a-date"}, time.Now())
		assert.Error(t, err)
	})

	t.Run("archived flag", func(t *testing.T) {
		query, err := buildListQuery(v, ListFilters{IsArchived: "true"}, time.Now())
		require.NoError(t, err)
		assert.Contains(t, findClause(t, query, "isArchived"), bson.M{"isArchived": true})
	})

	t.Run("search is a case-insensitive quoted substring", func(t *testing.T) {
		query, err := buildListQuery(v, ListFilters{Search: "exam (final)"}, time.Now())
		require.NoError(t, err)
		ors := findClause(t, query, "$or")
		require.Len(t, ors, 1)
		fields := ors[0]["$or"].([]bson.M)
		require.Len(t, fields, 2)
		pattern := fields[0]["title"].(primitive.Regex)
		assert.Equal(t, "i", pattern.Options)
		// Regex metacharacters in the user's input must be literal.
		assert.Contains(t, pattern.Pattern, `\(final\)`)
	})
}

func TestParseAudiencePermissiveFallback(t *testing.T) {
	s := &Service{log: zap.NewNop()}

	t.Run("missing input defaults to global", func(t *testing.T) {
		assert.True(t, s.parseAudience("").IsGlobal)
	})

	t.Run("malformed input defaults to global", func(t *testing.T) {
		audience := s.parseAudience("{not json")
		assert.True(t, audience.IsGlobal)
	})

	t.Run("valid input parses with normalized slices", func(t *testing.T) {
		audience := s.parseAudience(`{"isGlobal":false,"roles":["student"]}`)
		assert.False(t, audience.IsGlobal)
		assert.Equal(t, []string{"student"}, audience.Roles)
		assert.NotNil(t, audience.Departments)
		assert.NotNil(t, audience.Years)
		assert.NotNil(t, audience.Courses)
	})
}

func TestParseOptionalTime(t *testing.T) {
	t.Run("empty is nil", func(t *testing.T) {
		parsed, err := parseOptionalTime("")
		require.NoError(t, err)
		assert.Nil(t, parsed)
	})
	t.Run("rfc3339", func(t *testing.T) {
		parsed, err := parseOptionalTime("2025-06-01T10:30:00Z")
		require.NoError(t, err)
		require.NotNil(t, parsed)
		assert.Equal(t, 2025, parsed.Year())
	})
	t.Run("date only", func(t *testing.T) {
		parsed, err := parseOptionalTime("2025-06-01")
		require.NoError(t, err)
		require.NotNil(t, parsed)
	})
	t.Run("garbage errors", func(t *testing.T) {
		_, err := parseOptionalTime("tomorrow")
		assert.Error(t, err)
	})
}

type fakeStore struct {
	notices  map[primitive.ObjectID]*Notice
	inserted []*Notice
	deleted  []primitive.ObjectID
	updates  map[primitive.ObjectID]bson.M
}

func newFakeStore(notices ...*Notice) *fakeStore {
	s := &fakeStore{
		notices: make(map[primitive.ObjectID]*Notice),
		updates: make(map[primitive.ObjectID]bson.M),
	}
	for _, n := range notices {
		s.notices[n.ID] = n
	}
	return s
}

func (s *fakeStore) Insert(ctx context.Context, n *Notice) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.notices[n.ID] = n
	s.inserted = append(s.inserted, n)
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, id primitive.ObjectID) (*Notice, error) {
	n, ok := s.notices[id]
	if !ok {
		return nil, ErrNoticeNotFound
	}
	return n, nil
}

func (s *fakeStore) Find(ctx context.Context, filter bson.M, page, limit int64) ([]Notice, int64, error) {
	return nil, 0, nil
}

func (s *fakeStore) Update(ctx context.Context, id primitive.ObjectID, update bson.M) (*Notice, error) {
	n, ok := s.notices[id]
	if !ok {
		return nil, ErrNoticeNotFound
	}
	s.updates[id] = update
	return n, nil
}

func (s *fakeStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := s.notices[id]; !ok {
		return ErrNoticeNotFound
	}
	delete(s.notices, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) ToggleArchive(ctx context.Context, id primitive.ObjectID) (*Notice, error) {
	n, ok := s.notices[id]
	if !ok {
		return nil, ErrNoticeNotFound
	}
	n.IsArchived = !n.IsArchived
	return n, nil
}

func (s *fakeStore) TrackView(ctx context.Context, id, userID primitive.ObjectID) error { return nil }

func (s *fakeStore) AddComment(ctx context.Context, id primitive.ObjectID, comment Comment) (*Notice, error) {
	n, ok := s.notices[id]
	if !ok {
		return nil, ErrNoticeNotFound
	}
	n.Comments = append(n.Comments, comment)
	return n, nil
}

func (s *fakeStore) Acknowledge(ctx context.Context, id, userID primitive.ObjectID) error {
	if _, ok := s.notices[id]; !ok {
		return ErrNoticeNotFound
	}
	return nil
}

type fakeAuthors struct{}

func (fakeAuthors) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]user.User, error) {
	users := make([]user.User, len(ids))
	for i, id := range ids {
		users[i] = user.User{ID: id, Name: "Author", Email: "author@college.edu", Role: user.RoleFaculty}
	}
	return users, nil
}

func serviceWithStore(store Store) *Service {
	return &Service{
		repo:  store,
		users: fakeAuthors{},
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func roleViewer(role string) Viewer {
	return Viewer{ID: primitive.NewObjectID(), Role: role}
}

func storedNotice(author primitive.ObjectID) *Notice {
	return &Notice{
		ID:             primitive.NewObjectID(),
		Title:          "Lab Safety",
		Content:        "Goggles are mandatory.",
		Category:       CategoryGeneral,
		Priority:       PriorityMedium,
		AuthorID:       author,
		TargetAudience: GlobalAudience(),
		IsPublished:    true,
	}
}

func TestCreateRejectsStudents(t *testing.T) {
	store := newFakeStore()
	s := serviceWithStore(store)

	_, err := s.Create(context.Background(), roleViewer(user.RoleStudent), CreateInput{
		Title:   "Unauthorized",
		Content: "Should never land",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Empty(t, store.inserted)
}

func TestCreateAllowsFacultyAndAdmin(t *testing.T) {
	for _, role := range []string{user.RoleFaculty, user.RoleAdmin} {
		t.Run(role, func(t *testing.T) {
			store := newFakeStore()
			s := serviceWithStore(store)

			n, err := s.Create(context.Background(), roleViewer(role), CreateInput{
				Title:   "Seminar",
				Content: "Friday at noon.",
			})
			require.NoError(t, err)
			assert.True(t, n.IsPublished)
			assert.Len(t, store.inserted, 1)
		})
	}
}

func TestUpdateRequiresAuthorOrAdmin(t *testing.T) {
	authorA := roleViewer(user.RoleFaculty)
	n := storedNotice(authorA.ID)

	t.Run("another faculty is rejected", func(t *testing.T) {
		store := newFakeStore(n)
		s := serviceWithStore(store)

		_, err := s.Update(context.Background(), roleViewer(user.RoleFaculty), n.ID, UpdateInput{Title: "Hijacked"})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.Empty(t, store.updates)
	})

	t.Run("the author may update", func(t *testing.T) {
		store := newFakeStore(n)
		s := serviceWithStore(store)

		_, err := s.Update(context.Background(), authorA, n.ID, UpdateInput{Title: "Corrected"})
		require.NoError(t, err)
		assert.Contains(t, store.updates, n.ID)
	})

	t.Run("admin may update anyone's notice", func(t *testing.T) {
		store := newFakeStore(n)
		s := serviceWithStore(store)

		_, err := s.Update(context.Background(), roleViewer(user.RoleAdmin), n.ID, UpdateInput{Title: "Moderated"})
		require.NoError(t, err)
		assert.Contains(t, store.updates, n.ID)
	})
}

func TestDeleteRequiresAuthorOrAdmin(t *testing.T) {
	author := roleViewer(user.RoleFaculty)

	t.Run("another faculty is rejected", func(t *testing.T) {
		n := storedNotice(author.ID)
		store := newFakeStore(n)
		s := serviceWithStore(store)

		err := s.Delete(context.Background(), roleViewer(user.RoleFaculty), n.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.Empty(t, store.deleted)
	})

	t.Run("the author may delete", func(t *testing.T) {
		n := storedNotice(author.ID)
		store := newFakeStore(n)
		s := serviceWithStore(store)

		require.NoError(t, s.Delete(context.Background(), author, n.ID))
		assert.Equal(t, []primitive.ObjectID{n.ID}, store.deleted)
	})

	t.Run("admin may delete anyone's notice", func(t *testing.T) {
		n := storedNotice(author.ID)
		store := newFakeStore(n)
		s := serviceWithStore(store)

		require.NoError(t, s.Delete(context.Background(), roleViewer(user.RoleAdmin), n.ID))
		assert.Equal(t, []primitive.ObjectID{n.ID}, store.deleted)
	})
}

func TestArchiveIsAdminOnly(t *testing.T) {
	author := roleViewer(user.RoleFaculty)

	t.Run("faculty is rejected even for own notice", func(t *testing.T) {
		n := storedNotice(author.ID)
		s := serviceWithStore(newFakeStore(n))

		_, err := s.Archive(context.Background(), author, n.ID)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.False(t, n.IsArchived)
	})

	t.Run("admin toggles the flag", func(t *testing.T) {
		n := storedNotice(author.ID)
		s := serviceWithStore(newFakeStore(n))

		got, err := s.Archive(context.Background(), roleViewer(user.RoleAdmin), n.ID)
		require.NoError(t, err)
		assert.True(t, got.IsArchived)
	})
}

func TestUpdateIsPublishedIsAdminOnly(t *testing.T) {
	author := roleViewer(user.RoleFaculty)
	unpublish := false

	t.Run("faculty author cannot flip the flag", func(t *testing.T) {
		n := storedNotice(author.ID)
		store := newFakeStore(n)
		s := serviceWithStore(store)

		_, err := s.Update(context.Background(), author, n.ID, UpdateInput{IsPublished: &unpublish})
		require.NoError(t, err)
		set := store.updates[n.ID]["$set"].(bson.M)
		assert.NotContains(t, set, "isPublished")
	})

	t.Run("admin can", func(t *testing.T) {
		n := storedNotice(author.ID)
		store := newFakeStore(n)
		s := serviceWithStore(store)

		_, err := s.Update(context.Background(), roleViewer(user.RoleAdmin), n.ID, UpdateInput{IsPublished: &unpublish})
		require.NoError(t, err)
		set := store.updates[n.ID]["$set"].(bson.M)
		assert.Equal(t, false, set["isPublished"])
	})
}
