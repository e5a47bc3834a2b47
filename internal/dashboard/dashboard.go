// Package dashboard computes the per-role summary cards.
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"taskpanel/internal/access"
	"taskpanel/internal/apiclient"
	"taskpanel/internal/models"
)

type Card struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Value       int    `json:"value"`
}

// Summary is one of AdminSummary, ManagerSummary or UserSummary.
type Summary interface {
	Role() models.UserRole
	Cards() []Card
}

type AdminSummary struct {
	TotalUsers     int `json:"totalUsers"`
	TotalManagers  int `json:"totalManagers"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
}

func (AdminSummary) Role() models.UserRole { return models.UserRoleAdmin }

func (s AdminSummary) Cards() []Card {
	return []Card{
		card("totalUsers", s.TotalUsers),
		card("totalTasks", s.TotalTasks),
		card("totalManagers", s.TotalManagers),
		card("completedTasks", s.CompletedTasks),
	}
}

type ManagerSummary struct {
	TotalUsers     int `json:"totalUsers"`
	TotalActive    int `json:"totalActive"`
	TotalTasks     int `json:"totalTasks"`
	CompletedTasks int `json:"completedTasks"`
}

func (ManagerSummary) Role() models.UserRole { return models.UserRoleManager }

func (s ManagerSummary) Cards() []Card {
	return []Card{
		card("totalUsers", s.TotalUsers),
		card("totalTasks", s.TotalTasks),
		card("totalActive", s.TotalActive),
		card("completedTasks", s.CompletedTasks),
	}
}

// UserSummary counts only the viewer's own tasks. Deleted tasks are still
// counted as completed or incompleted.
type UserSummary struct {
	TotalUserTasks   int `json:"totalUserTasks"`
	CompletedTasks   int `json:"completedTasks"`
	IncompletedTasks int `json:"incompletedTasks"`
	DeletedTasks     int `json:"deletedTasks"`
}

func (UserSummary) Role() models.UserRole { return models.UserRoleUser }

func (s UserSummary) Cards() []Card {
	return []Card{
		card("completedTasks", s.CompletedTasks),
		card("incompletedTasks", s.IncompletedTasks),
		card("deletedTasks", s.DeletedTasks),
		card("totalUserTasks", s.TotalUserTasks),
	}
}

var cardText = map[string][2]string{
	"totalUsers":       {"Total Users", "Registered users"},
	"totalTasks":       {"Total Tasks", "All tasks"},
	"totalManagers":    {"Total Managers", "Project managers"},
	"totalActive":      {"Total Active", "Active users"},
	"completedTasks":   {"Completed Tasks", "Finished tasks"},
	"incompletedTasks": {"Incompleted Tasks", "Pending tasks"},
	"deletedTasks":     {"Deleted Tasks", "Removed tasks"},
	"totalUserTasks":   {"Total User Tasks", "User assigned tasks"},
}

func card(key string, value int) Card {
	text := cardText[key]
	return Card{Key: key, Title: text[0], Description: text[1], Value: value}
}

// Summarize is a pure function of its inputs.
func Summarize(viewer models.User, users []models.User, tasks []models.Task) (Summary, error) {
	switch viewer.Role {
	case models.UserRoleAdmin:
		s := AdminSummary{TotalUsers: len(users), TotalTasks: len(tasks)}
		for _, u := range users {
			if u.Role == models.UserRoleManager {
				s.TotalManagers++
			}
		}
		s.CompletedTasks = countCompleted(tasks)
		return s, nil

	case models.UserRoleManager:
		s := ManagerSummary{TotalUsers: len(users), TotalTasks: len(tasks)}
		for _, u := range users {
			if u.Status == models.UserStatusActive {
				s.TotalActive++
			}
		}
		s.CompletedTasks = countCompleted(tasks)
		return s, nil

	case models.UserRoleUser:
		var s UserSummary
		for _, t := range tasks {
			if t.UserID != viewer.ID {
				continue
			}
			s.TotalUserTasks++
			if t.Completed {
				s.CompletedTasks++
			} else {
				s.IncompletedTasks++
			}
			if t.Deleted {
				s.DeletedTasks++
			}
		}
		return s, nil

	default:
		return nil, fmt.Errorf("summarize: %w: %q", access.ErrUnknownRole, viewer.Role)
	}
}

func countCompleted(tasks []models.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

type API interface {
	ListUsers(ctx context.Context, filter apiclient.UserFilter) ([]models.User, error)
	ListTasks(ctx context.Context, filter apiclient.TaskFilter) ([]models.Task, error)
}

type Service struct {
	api API
}

func NewService(api API) *Service {
	return &Service{api: api}
}

// Build fetches all users and all tasks concurrently and summarizes them for
// viewer. Nothing is cached between calls.
func (s *Service) Build(ctx context.Context, viewer models.User) (Summary, error) {
	users, tasks, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(viewer, users, tasks)
}

// Overview is the admin summary regardless of who asks. The worker stores
// it as a periodic snapshot.
func (s *Service) Overview(ctx context.Context) (AdminSummary, error) {
	users, tasks, err := s.fetch(ctx)
	if err != nil {
		return AdminSummary{}, err
	}
	sum, err := Summarize(models.User{Role: models.UserRoleAdmin}, users, tasks)
	if err != nil {
		return AdminSummary{}, err
	}
	return sum.(AdminSummary), nil
}

func (s *Service) fetch(ctx context.Context) ([]models.User, []models.Task, error) {
	var (
		users []models.User
		tasks []models.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.api.ListUsers(gctx, apiclient.UserFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		tasks, err = s.api.ListTasks(gctx, apiclient.TaskFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("fetch dashboard data: %w", err)
	}
	return users, tasks, nil
}
