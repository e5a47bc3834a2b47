package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"taskpanel/internal/models"
)

// TaskFilter narrows GET /tasks. An empty UserID lists every task.
type TaskFilter struct {
	UserID string
}

func (f TaskFilter) values() url.Values {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	return q
}

func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.do(ctx, http.MethodGet, tasksPath, filter.values(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) GetTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := c.do(ctx, http.MethodGet, tasksPath+"/"+url.PathEscape(id), nil, nil, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, task models.Task) (models.Task, error) {
	var created models.Task
	err := c.do(ctx, http.MethodPost, tasksPath, nil, task, &created)
	return created, err
}

func (c *Client) PatchTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error) {
	var updated models.Task
	err := c.do(ctx, http.MethodPatch, tasksPath+"/"+url.PathEscape(id), nil, patch, &updated)
	return updated, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, tasksPath+"/"+url.PathEscape(id), nil, nil, nil)
}
