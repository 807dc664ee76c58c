package user

import (
	"context"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"NoticeBoard/internal/apperror"
)

type Service struct {
	repo *Repository
	log  *zap.Logger
}

func NewService(repo *Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Authenticate verifies credentials and issues a bearer token. Inactive
// accounts cannot log in.
func (s *Service) Authenticate(ctx context.Context, cred Credential) (string, error) {
	if cred.Email == "" || cred.Password == "" {
		return "", apperror.Validation("Email and password are required")
	}
	u, err := s.repo.FindByEmail(ctx, cred.Email)
	if err != nil {
		return "", apperror.Internal(err)
	}
	if u == nil || !CheckPasswordHash(cred.Password, u.PasswordHash) {
		return "", apperror.Forbidden("Invalid credentials")
	}
	if !u.IsActive {
		return "", apperror.Forbidden("Account is deactivated")
	}
	token, err := GenerateJWT(u, 24*time.Hour)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return token, nil
}

// SeedAdmin creates the initial admin account from the environment if no
// user with that email exists yet.
func (s *Service) SeedAdmin(ctx context.Context) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		s.log.Warn("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	name := os.Getenv("ADMIN_NAME")
	if name == "" {
		name = "Administrator"
	}
	admin, err := NewUser(name, email, password, RoleAdmin)
	if err != nil {
		return err
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return err
	}
	s.log.Info("Seeded admin account", zap.String("email", email))
	return nil
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return users, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u == nil {
		return nil, apperror.NotFound("User not found")
	}
	return u, nil
}

func (s *Service) Update(ctx context.Context, id primitive.ObjectID, req UpdateRequest) (*User, error) {
	if req.Role != "" && !ValidRole(req.Role) {
		return nil, apperror.Validation("Invalid role")
	}
	set := bson.M{}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Email != "" {
		set["email"] = req.Email
	}
	if req.Role != "" {
		set["role"] = req.Role
	}
	if req.Department != "" {
		set["department"] = req.Department
	}
	if req.Year != "" {
		set["year"] = req.Year
	}
	if req.Course != "" {
		set["course"] = req.Course
	}
	if req.IsActive != nil {
		set["isActive"] = *req.IsActive
	}
	if len(set) == 0 {
		return s.Get(ctx, id)
	}
	u, err := s.repo.Update(ctx, id, set)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u == nil {
		return nil, apperror.NotFound("User not found")
	}
	return u, nil
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperror.Internal(err)
	}
	return nil
}
