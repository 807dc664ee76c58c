package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleAdmin   = "admin"
	RoleFaculty = "faculty"
	RoleStudent = "student"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Role         string             `bson:"role" json:"role"`
	Department   string             `bson:"department" json:"department"`
	Year         string             `bson:"year" json:"year"`
	Course       string             `bson:"course" json:"course"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

type Credential struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateRequest carries the admin-editable fields. Empty strings leave the
// stored value unchanged; IsActive is a pointer so false is expressible.
type UpdateRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Year       string `json:"year"`
	Course     string `json:"course"`
	IsActive   *bool  `json:"isActive"`
}

func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleFaculty || role == RoleStudent
}
