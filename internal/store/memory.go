package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentdevsl/taskdraft/internal/authoring"
)

// Memory is an in-memory drop-in for Store, used when no database is
// configured. Data does not survive a restart.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]*Project
	tasks    map[string][]*Task  // projectID → tasks
	history  map[string][]*HistoryEvent
	sessions map[string]*HistorySession
	nextEvID int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]*Project),
		tasks:    make(map[string][]*Task),
		history:  make(map[string][]*HistoryEvent),
		sessions: make(map[string]*HistorySession),
	}
}

// CreateProject inserts a new project and returns it with a generated id.
func (m *Memory) CreateProject(_ context.Context, name, description string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UnixMilli()
	p := &Project{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.projects[p.ID] = p
	return p, nil
}

// GetProject retrieves a project by id. Returns nil when it does not exist.
func (m *Memory) GetProject(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.projects[id], nil
}

// ListProjects retrieves all projects, newest first.
func (m *Memory) ListProjects(_ context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// ProjectExists reports whether a project id is known.
func (m *Memory) ProjectExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.projects[id]
	return ok, nil
}

// CreateTaskRecord persists an accepted suggestion as a task and returns its id.
func (m *Memory) CreateTaskRecord(_ context.Context, projectID string, sug authoring.TaskSuggestion) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &Task{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       sug.Title,
		Description: sug.Description,
		Labels:      append([]string(nil), sug.Labels...),
		Priority:    string(sug.Priority),
		CreatedAt:   time.Now().UnixMilli(),
	}
	m.tasks[projectID] = append([]*Task{t}, m.tasks[projectID]...)
	return t.ID, nil
}

// ListTasks retrieves a project's tasks, newest first.
func (m *Memory) ListTasks(_ context.Context, projectID string) ([]*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Task(nil), m.tasks[projectID]...), nil
}

// CreateHistorySession opens an in-memory history session.
func (m *Memory) CreateHistorySession(_ context.Context, projectID, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.sessions[id] = &HistorySession{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		StartedAt: time.Now().UnixMilli(),
	}
	return id, nil
}

// AppendHistory records one event in a history session.
func (m *Memory) AppendHistory(_ context.Context, historyID, eventType string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEvID++
	m.history[historyID] = append(m.history[historyID], &HistoryEvent{
		ID:        m.nextEvID,
		HistoryID: historyID,
		EventType: eventType,
		CreatedAt: time.Now().UnixMilli(),
	})
	return nil
}

// CloseHistorySession stamps a history session as closed.
func (m *Memory) CloseHistorySession(_ context.Context, historyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hs, ok := m.sessions[historyID]; ok && hs.ClosedAt == 0 {
		hs.ClosedAt = time.Now().UnixMilli()
	}
	return nil
}
