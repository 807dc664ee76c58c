package notification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"NoticeBoard/internal/notice"
	"NoticeBoard/internal/user"
)

type stubMailer struct {
	mu         sync.Mutex
	sent       []string
	inFlight   int
	maxFlight  int
	failFor    map[string]bool
	configured bool
}

func newStubMailer() *stubMailer {
	return &stubMailer{failFor: make(map[string]bool), configured: true}
}

func (m *stubMailer) Configured() bool { return m.configured }

func (m *stubMailer) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	m.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	m.mu.Lock()
	m.inFlight--
	if !m.failFor[to] {
		m.sent = append(m.sent, to)
	}
	m.mu.Unlock()

	if m.failFor[to] {
		return errors.New("smtp rejected")
	}
	return nil
}

type stubRecipients struct {
	users      []user.User
	author     *user.User
	lastFilter bson.M
	err        error
}

func (s *stubRecipients) FindRecipients(ctx context.Context, filter bson.M) ([]user.User, error) {
	s.lastFilter = filter
	return s.users, s.err
}

func (s *stubRecipients) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]user.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.author == nil {
		return nil, nil
	}
	return []user.User{*s.author}, nil
}

func makeUsers(n int) []user.User {
	users := make([]user.User, n)
	for i := range users {
		users[i] = user.User{
			ID:    primitive.NewObjectID(),
			Name:  "User",
			Email: primitive.NewObjectID().Hex() + "@college.edu",
		}
	}
	return users
}

func emptyHub() *Hub {
	return &Hub{clients: make(map[*client]struct{}), log: zap.NewNop()}
}

func publishedNotice() *notice.Notice {
	return &notice.Notice{
		ID:             primitive.NewObjectID(),
		AuthorID:       primitive.NewObjectID(),
		Title:          "Exam Schedule",
		Content:        "Final exams begin next week.",
		Category:       "exams",
		Priority:       "high",
		TargetAudience: notice.GlobalAudience(),
		IsPublished:    true,
	}
}

func TestSendEmailsBatches(t *testing.T) {
	mailer := newStubMailer()
	f := &Fanout{mailer: mailer, hub: emptyHub(), log: zap.NewNop()}

	recipients := makeUsers(25)
	f.sendEmails(recipients, publishedNotice())

	assert.Len(t, mailer.sent, 25)
	assert.LessOrEqual(t, mailer.maxFlight, emailBatchSize)
}

func TestSendEmailsFailureDoesNotAbortRemaining(t *testing.T) {
	mailer := newStubMailer()
	f := &Fanout{mailer: mailer, hub: emptyHub(), log: zap.NewNop()}

	recipients := makeUsers(12)
	mailer.failFor[recipients[0].Email] = true
	mailer.failFor[recipients[11].Email] = true

	f.sendEmails(recipients, publishedNotice())

	assert.Len(t, mailer.sent, 10)
}

func TestSendEmailsSkipsWhenUnconfigured(t *testing.T) {
	mailer := newStubMailer()
	mailer.configured = false
	f := &Fanout{mailer: mailer, hub: emptyHub(), log: zap.NewNop()}

	f.sendEmails(makeUsers(3), publishedNotice())

	assert.Empty(t, mailer.sent)
}

func TestNoticePublishedResolvesRecipientsFromAudience(t *testing.T) {
	recipients := &stubRecipients{}
	f := &Fanout{users: recipients, mailer: newStubMailer(), hub: emptyHub(), log: zap.NewNop()}

	n := publishedNotice()
	n.TargetAudience = notice.TargetAudience{Roles: []string{"student"}}
	f.NoticePublished(context.Background(), n)

	require.NotNil(t, recipients.lastFilter)
	assert.Equal(t, n.TargetAudience.RecipientQuery(), recipients.lastFilter)
}

func TestNoticePublishedSurvivesRecipientLookupFailure(t *testing.T) {
	recipients := &stubRecipients{err: errors.New("db down")}
	mailer := newStubMailer()
	f := &Fanout{users: recipients, mailer: mailer, hub: emptyHub(), log: zap.NewNop()}

	// Must not panic or send anything.
	f.NoticePublished(context.Background(), publishedNotice())
	assert.Empty(t, mailer.sent)
}

func TestNoticePublishedPopulatesAuthor(t *testing.T) {
	n := publishedNotice()
	recipients := &stubRecipients{
		author: &user.User{ID: n.AuthorID, Name: "Prof. Rao", Email: "rao@college.edu", Role: user.RoleFaculty},
	}
	f := &Fanout{users: recipients, mailer: newStubMailer(), hub: emptyHub(), log: zap.NewNop()}

	f.NoticePublished(context.Background(), n)

	require.NotNil(t, n.Author)
	assert.Equal(t, n.AuthorID.Hex(), n.Author.ID)
	assert.Equal(t, "Prof. Rao", n.Author.Name)
	assert.Equal(t, "rao@college.edu", n.Author.Email)
}

func TestNoticeEmailBodyTruncatesPreview(t *testing.T) {
	n := publishedNotice()
	long := make([]byte, 400)
	for i := range long {
		long[i] = 'a'
	}
	n.Content = string(long)

	body := noticeEmailBody("Asha", n)
	assert.Contains(t, body, "Asha")
	assert.Contains(t, body, n.Title)
	assert.Contains(t, body, "...")
	assert.NotContains(t, body, n.Content)
}

func TestNoticeEmailBodyTruncatesOnRunes(t *testing.T) {
	n := publishedNotice()
	n.Content = strings.Repeat("परीक्षा", 100)

	body := noticeEmailBody("Asha", n)
	assert.True(t, utf8.ValidString(body))
	assert.Contains(t, body, "...")
}
