package notice

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	CategoryAcademics = "academics"
	CategoryEvents    = "events"
	CategoryExams     = "exams"
	CategoryCirculars = "circulars"
	CategoryPlacement = "placement"
	CategoryGeneral   = "general"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

func ValidCategory(c string) bool {
	switch c {
	case CategoryAcademics, CategoryEvents, CategoryExams, CategoryCirculars, CategoryPlacement, CategoryGeneral:
		return true
	}
	return false
}

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Attachment struct {
	Filename     string `bson:"filename" json:"filename"`
	OriginalName string `bson:"originalName" json:"originalName"`
	Path         string `bson:"path" json:"path"`
	FileType     string `bson:"fileType" json:"fileType"`
	Size         int64  `bson:"size" json:"size"`
}

type ViewEntry struct {
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	ViewedAt time.Time          `bson:"viewedAt" json:"viewedAt"`
}

type Comment struct {
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Acknowledgment struct {
	UserID         primitive.ObjectID `bson:"userId" json:"userId"`
	AcknowledgedAt time.Time          `bson:"acknowledgedAt" json:"acknowledgedAt"`
}

// AuthorRef is the populated author summary attached to API responses in
// place of the raw object id.
type AuthorRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

type Notice struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title          string             `bson:"title" json:"title"`
	Content        string             `bson:"content" json:"content"`
	Category       string             `bson:"category" json:"category"`
	Priority       string             `bson:"priority" json:"priority"`
	AuthorID       primitive.ObjectID `bson:"author" json:"-"`
	Author         *AuthorRef         `bson:"-" json:"author,omitempty"`
	TargetAudience TargetAudience     `bson:"targetAudience" json:"targetAudience"`
	Attachments    []Attachment       `bson:"attachments" json:"attachments"`
	ScheduledDate  *time.Time         `bson:"scheduledDate,omitempty" json:"scheduledDate,omitempty"`
	PublishedAt    time.Time          `bson:"publishedAt" json:"publishedAt"`
	ExpiresAt      *time.Time         `bson:"expiresAt,omitempty" json:"expiresAt,omitempty"`
	IsPublished    bool               `bson:"isPublished" json:"isPublished"`
	IsArchived     bool               `bson:"isArchived" json:"isArchived"`
	Views          int64              `bson:"views" json:"views"`
	ViewLog        []ViewEntry        `bson:"viewCount" json:"viewCount"`
	Comments       []Comment          `bson:"comments" json:"comments"`
	Acknowledgment []Acknowledgment   `bson:"acknowledgments" json:"acknowledgments"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updatedAt"`
}

type Pagination struct {
	Page  int64 `json:"page"`
	Limit int64 `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}
