// Package store is the record API: users and tasks over HTTP, backed by
// Postgres. It is the system of record the panel talks to.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"taskpanel/internal/common"
	"taskpanel/internal/ids"
	"taskpanel/internal/models"
	"taskpanel/internal/repository"
	"taskpanel/internal/security"
)

type UserRepository interface {
	Create(ctx context.Context, rec repository.UserRecord) error
	GetByID(ctx context.Context, id string) (repository.UserRecord, error)
	FindByEmail(ctx context.Context, email string) (repository.UserRecord, error)
	List(ctx context.Context, q repository.UserQuery) ([]repository.UserRecord, error)
	Update(ctx context.Context, id string, patch models.UserPatch) (repository.UserRecord, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task models.Task) error
	GetByID(ctx context.Context, id string) (models.Task, error)
	List(ctx context.Context, userID string) ([]models.Task, error)
	Update(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrEmailTaken   = common.NewError(common.ErrConflict, "email already registered")
	ErrInvalidEmail = common.NewError(common.ErrValidation, "email is not valid")
	ErrEmptyPatch   = common.NewError(common.ErrValidation, "nothing to update")
	ErrPasswordOnly = common.NewError(common.ErrValidation, "password filter requires email")
)

func invalid(format string, args ...any) error {
	return common.NewError(common.ErrValidation, fmt.Sprintf(format, args...))
}

type Service struct {
	users UserRepository
	tasks TaskRepository
	log   zerolog.Logger
	// swapped in tests
	hash   func(string) ([]byte, error)
	verify func(password string, encoded []byte) (bool, error)
}

func NewService(users UserRepository, tasks TaskRepository, log zerolog.Logger) *Service {
	return &Service{
		users:  users,
		tasks:  tasks,
		log:    log,
		hash:   security.HashPassword,
		verify: security.VerifyPassword,
	}
}

// UserFilter mirrors the GET /users query string.
type UserFilter struct {
	Email    string
	Password string
	Role     models.UserRole
	Status   models.UserStatus
}

// ListUsers never returns password hashes. When a password is given only
// users whose hash matches it are returned; it must come with an email so at
// most one hash is checked.
func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	if f.Password != "" && strings.TrimSpace(f.Email) == "" {
		return nil, ErrPasswordOnly
	}
	records, err := s.users.List(ctx, repository.UserQuery{
		Email:  strings.ToLower(strings.TrimSpace(f.Email)),
		Role:   f.Role,
		Status: f.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	out := make([]models.User, 0, len(records))
	for _, rec := range records {
		if f.Password != "" {
			ok, err := s.verify(f.Password, []byte(rec.PasswordHash))
			if err != nil {
				s.log.Warn().Err(err).Str("user_id", rec.ID).Msg("stored password hash unreadable")
				continue
			}
			if !ok {
				continue
			}
		}
		out = append(out, rec.User.Public())
	}
	return out, nil
}

func (s *Service) GetUser(ctx context.Context, id string) (models.User, error) {
	rec, err := s.users.GetByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	return rec.User.Public(), nil
}

// CreateUser hashes the password and fills in registration defaults.
func (s *Service) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Name == "" {
		return models.User{}, invalid("name is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email == "" {
		return models.User{}, ErrInvalidEmail
	}
	if u.Password == "" {
		return models.User{}, invalid("password is required")
	}
	if u.Role == "" {
		u.Role = models.UserRoleUser
	}
	if !u.Role.Valid() {
		return models.User{}, invalid("unknown role %q", u.Role)
	}
	if u.Status == "" {
		u.Status = models.UserStatusActive
	}
	if !u.Status.Valid() {
		return models.User{}, invalid("unknown status %q", u.Status)
	}

	if _, err := s.users.FindByEmail(ctx, u.Email); err == nil {
		return models.User{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return models.User{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hash(u.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	u.ID = ids.New()
	if err := s.users.Create(ctx, repository.UserRecord{User: u, PasswordHash: string(hash)}); err != nil {
		if common.HTTPStatusFromError(err) == http.StatusConflict {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u.Public(), nil
}

func (s *Service) PatchUser(ctx context.Context, id string, patch models.UserPatch) (models.User, error) {
	if patch.Empty() {
		return models.User{}, ErrEmptyPatch
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return models.User{}, invalid("unknown role %q", *patch.Role)
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return models.User{}, invalid("unknown status %q", *patch.Status)
	}
	rec, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return models.User{}, err
	}
	return rec.User.Public(), nil
}

func (s *Service) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	list, err := s.tasks.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if list == nil {
		list = []models.Task{}
	}
	return list, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (models.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

// CreateTask requires an existing owner. New tasks start neither completed
// nor deleted.
func (s *Service) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.Title == "" || t.Description == "" {
		return models.Task{}, invalid("title and description are required")
	}
	if t.UserID == "" {
		return models.Task{}, invalid("userId is required")
	}
	if _, err := s.users.GetByID(ctx, t.UserID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Task{}, invalid("user %s does not exist", t.UserID)
		}
		return models.Task{}, fmt.Errorf("lookup owner: %w", err)
	}

	t.ID = ids.New()
	t.Completed = false
	t.Deleted = false
	if err := s.tasks.Create(ctx, t); err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (s *Service) PatchTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	if patch.Empty() {
		return models.Task{}, ErrEmptyPatch
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Task{}, invalid("title cannot be empty")
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return models.Task{}, invalid("description cannot be empty")
	}
	return s.tasks.Update(ctx, id, patch)
}

func (s *Service) DeleteTask(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}
