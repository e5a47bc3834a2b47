package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"taskpanel/internal/activity"
	"taskpanel/internal/apiclient"
	"taskpanel/internal/common"
	"taskpanel/internal/models"
	"taskpanel/internal/session"
)

var (
	ErrInvalidCredentials = common.NewError(common.ErrUnauthorized, "Invalid credentials.")
	ErrAccountInactive    = common.NewError(common.ErrForbidden, "Your account is inactive. Please contact support.")
	ErrDuplicateEmail     = common.NewError(common.ErrConflict, "A user with this email already exists.")
	ErrMissingFields      = common.NewError(common.ErrValidation, "Name, email and password are required.")
)

// UserDirectory is the part of the record API authentication needs.
type UserDirectory interface {
	ListUsers(ctx context.Context, filter apiclient.UserFilter) ([]models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
}

// Sessions is satisfied by *session.Manager.
type Sessions interface {
	SignIn(ctx context.Context, s *session.Session, user models.User) (string, error)
	SignOut(ctx context.Context, s *session.Session) error
}

type AuthService struct {
	users    UserDirectory
	sessions Sessions
	recorder activity.Recorder
	log      zerolog.Logger
}

func NewAuthService(users UserDirectory, sessions Sessions, recorder activity.Recorder, log zerolog.Logger) *AuthService {
	if recorder == nil {
		recorder = activity.Nop{}
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		recorder: recorder,
		log:      log,
	}
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token string
	User  models.User
}

// Login asks the record API for a user matching both email and password and
// signs s in on a single active match.
func (s *AuthService) Login(ctx context.Context, sess *session.Session, input LoginInput) (LoginResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	matches, err := s.users.ListUsers(ctx, apiclient.UserFilter{Email: email, Password: input.Password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	if len(matches) == 0 {
		return LoginResult{}, ErrInvalidCredentials
	}

	user := matches[0]
	if user.Status == models.UserStatusInactive {
		s.log.Info().Str("user_id", user.ID).Msg("inactive user refused")
		return LoginResult{}, ErrAccountInactive
	}
	if !user.Role.Valid() {
		return LoginResult{}, fmt.Errorf("user %s: %w", user.ID, common.NewError(common.ErrForbidden, "Your account has no usable role."))
	}

	token, err := s.sessions.SignIn(ctx, sess, user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign in: %w", err)
	}

	s.record(ctx, activity.EventLogin, user.ID, nil)
	return LoginResult{Token: token, User: user.Public()}, nil
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a plain user with no permissions. It does not sign in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" {
		return models.User{}, ErrMissingFields
	}

	existing, err := s.users.ListUsers(ctx, apiclient.UserFilter{Email: email})
	if err != nil {
		return models.User{}, fmt.Errorf("lookup email: %w", err)
	}
	if len(existing) > 0 {
		return models.User{}, ErrDuplicateEmail
	}

	created, err := s.users.CreateUser(ctx, models.User{
		Name:        name,
		Email:       email,
		Password:    input.Password,
		Role:        models.UserRoleUser,
		Status:      models.UserStatusActive,
		Permissions: &models.Permissions{},
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}

	s.record(ctx, activity.EventRegister, created.ID, map[string]string{"email": email})
	return created.Public(), nil
}

// Logout clears sess. It is a no-op for a session that never signed in.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) error {
	userID := sess.UserID()
	if err := s.sessions.SignOut(ctx, sess); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if userID != "" {
		s.record(ctx, activity.EventLogout, userID, nil)
	}
	return nil
}

func (s *AuthService) record(ctx context.Context, typ activity.EventType, userID string, payload any) {
	e, err := activity.NewEvent(typ, userID, userID, payload)
	if err != nil {
		s.log.Warn().Err(err).Msg("build activity event")
		return
	}
	_ = s.recorder.Record(ctx, e)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
