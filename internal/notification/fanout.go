package notification

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"NoticeBoard/internal/config"
	"NoticeBoard/internal/notice"
	"NoticeBoard/internal/user"
)

// emailBatchSize bounds concurrent outbound mail connections: sends within
// a batch run concurrently, batches run one after another.
const emailBatchSize = 10

type Mailer interface {
	Configured() bool
	Send(to, subject, htmlBody string) error
}

type RecipientSource interface {
	FindRecipients(ctx context.Context, filter bson.M) ([]user.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]user.User, error)
}

// Fanout notifies the matched audience of a freshly published notice: a
// real-time event delivered synchronously and templated emails dispatched
// in the background. Neither path can fail the publish that triggered it.
type Fanout struct {
	users  RecipientSource
	mailer Mailer
	hub    *Hub
	log    *zap.Logger
}

func NewFanout(users *user.Repository, mailer *config.EmailService, hub *Hub, log *zap.Logger) *Fanout {
	return &Fanout{users: users, mailer: mailer, hub: hub, log: log}
}

func (f *Fanout) NoticePublished(ctx context.Context, n *notice.Notice) {
	f.populateAuthor(ctx, n)
	recipients, err := f.users.FindRecipients(ctx, n.TargetAudience.RecipientQuery())
	if err != nil {
		f.log.Error("Failed to resolve notice recipients", zap.String("notice", n.ID.Hex()), zap.Error(err))
		recipients = nil
	}

	ids := make(map[string]struct{}, len(recipients))
	for _, u := range recipients {
		ids[u.ID.Hex()] = struct{}{}
	}
	f.hub.Deliver("new-notice", map[string]interface{}{
		"notice":  n,
		"message": "A new notice has been posted",
	}, ids)

	if len(recipients) > 0 {
		go f.sendEmails(recipients, n)
	}
}

// populateAuthor resolves the author summary so the delivered event carries
// name and email, not just the raw id.
func (f *Fanout) populateAuthor(ctx context.Context, n *notice.Notice) {
	if n.Author != nil || n.AuthorID.IsZero() {
		return
	}
	authors, err := f.users.FindByIDs(ctx, []primitive.ObjectID{n.AuthorID})
	if err != nil {
		f.log.Warn("Failed to resolve notice author", zap.String("notice", n.ID.Hex()), zap.Error(err))
		return
	}
	if len(authors) == 0 {
		return
	}
	a := authors[0]
	n.Author = &notice.AuthorRef{
		ID:         a.ID.Hex(),
		Name:       a.Name,
		Email:      a.Email,
		Role:       a.Role,
		Department: a.Department,
	}
}

func (f *Fanout) sendEmails(recipients []user.User, n *notice.Notice) {
	if !f.mailer.Configured() {
		f.log.Info("Email service not configured, skipping email notifications")
		return
	}
	subject := "New Notice: " + n.Title
	failed := 0
	var mu sync.Mutex
	for start := 0; start < len(recipients); start += emailBatchSize {
		end := start + emailBatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		var wg sync.WaitGroup
		for _, u := range recipients[start:end] {
			wg.Add(1)
			go func(u user.User) {
				defer wg.Done()
				if err := f.mailer.Send(u.Email, subject, noticeEmailBody(u.Name, n)); err != nil {
					f.log.Error("Failed to send notice email", zap.String("to", u.Email), zap.Error(err))
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}(u)
		}
		wg.Wait()
	}
	f.log.Info("Notice emails dispatched",
		zap.String("notice", n.ID.Hex()),
		zap.Int("recipients", len(recipients)),
		zap.Int("failed", failed))
}

func noticeEmailBody(name string, n *notice.Notice) string {
	preview := n.Content
	// Truncate on runes so a multi-byte character is never split.
	if runes := []rune(preview); len(runes) > 200 {
		preview = string(runes[:200]) + "..."
	}
	return fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #2c3e50;">New Notice Posted</h2>
  <p>Hello %s,</p>
  <p>A new notice has been posted on the College Notice Board:</p>
  <div style="background-color: #f8f9fa; padding: 20px; border-radius: 5px; margin: 20px 0;">
    <h3 style="color: #007bff; margin-top: 0;">%s</h3>
    <p style="color: #666;">%s</p>
    <p style="color: #999; font-size: 12px;">Category: %s | Priority: %s</p>
  </div>
  <p>Please log in to the portal to view the full notice and details.</p>
  <p style="color: #999; font-size: 12px;">This is an automated notification.</p>
</div>`, name, n.Title, preview, n.Category, n.Priority)
}
