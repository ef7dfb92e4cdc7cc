package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentdevsl/taskdraft/internal/authoring"
)

// Task is a created task record.
type Task struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	Labels      []string
	Priority    string
	CreatedAt   int64 // unix ms
}

// CreateTaskRecord persists an accepted suggestion as a task and returns its id.
func (s *Store) CreateTaskRecord(ctx context.Context, projectID string, sug authoring.TaskSuggestion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	labels, err := json.Marshal(sug.Labels)
	if err != nil {
		return "", fmt.Errorf("failed to encode labels: %w", err)
	}

	id := uuid.New().String()
	query := `
	INSERT INTO tasks (id, project_id, title, description, labels, priority, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		id, projectID, sug.Title, sug.Description, string(labels), string(sug.Priority), time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}
	return id, nil
}

// GetTask retrieves a task by id. Returns nil when it does not exist.
func (s *Store) GetTask(ctx context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t := &Task{}
	var labels string
	query := `SELECT id, project_id, title, description, labels, priority, created_at FROM tasks WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &labels, &t.Priority, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	if err := json.Unmarshal([]byte(labels), &t.Labels); err != nil {
		t.Labels = nil
	}
	return t, nil
}

// ListTasks retrieves a project's tasks, newest first.
func (s *Store) ListTasks(ctx context.Context, projectID string) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
	SELECT id, project_id, title, description, labels, priority, created_at
	FROM tasks WHERE project_id = ? ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t := &Task{}
		var labels string
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &labels, &t.Priority, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		if err := json.Unmarshal([]byte(labels), &t.Labels); err != nil {
			t.Labels = nil
		}
		tasks = append(tasks, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}
