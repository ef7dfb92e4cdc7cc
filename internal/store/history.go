package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistorySession is a durable record of one authoring conversation.
type HistorySession struct {
	ID        string
	ProjectID string
	Title     string
	StartedAt int64 // unix ms
	ClosedAt  int64 // unix ms, 0 = still open
}

// HistoryEvent is one replayable event of a history session.
type HistoryEvent struct {
	ID        int64
	HistoryID string
	EventType string
	Payload   string // JSON
	CreatedAt int64  // unix ms
}

// CreateHistorySession opens a durable history session for a conversation.
func (s *Store) CreateHistorySession(ctx context.Context, projectID, title string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	query := `INSERT INTO history_sessions (id, project_id, title, started_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, id, projectID, title, time.Now().UnixMilli()); err != nil {
		return "", fmt.Errorf("failed to create history session: %w", err)
	}
	return id, nil
}

// AppendHistory records one event in a history session. The payload is stored
// as JSON.
func (s *Store) AppendHistory(ctx context.Context, historyID, eventType string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode history payload: %w", err)
	}

	query := `INSERT INTO history_events (history_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, historyID, eventType, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to append history event: %w", err)
	}
	return nil
}

// CloseHistorySession stamps a history session as closed.
func (s *Store) CloseHistorySession(ctx context.Context, historyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE history_sessions SET closed_at = ? WHERE id = ? AND closed_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UnixMilli(), historyID); err != nil {
		return fmt.Errorf("failed to close history session: %w", err)
	}
	return nil
}

// GetHistorySession retrieves a history session by id. Returns nil when it
// does not exist.
func (s *Store) GetHistorySession(ctx context.Context, id string) (*HistorySession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := &HistorySession{}
	var closedAt sql.NullInt64
	query := `SELECT id, project_id, title, started_at, closed_at FROM history_sessions WHERE id = ?`
	err := s.db.QueryRowContext(ctx, query, id).Scan(&h.ID, &h.ProjectID, &h.Title, &h.StartedAt, &closedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history session: %w", err)
	}
	if closedAt.Valid {
		h.ClosedAt = closedAt.Int64
	}
	return h, nil
}

// ListHistoryEvents retrieves a history session's events in append order.
func (s *Store) ListHistoryEvents(ctx context.Context, historyID string) ([]*HistoryEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, history_id, event_type, payload, created_at FROM history_events WHERE history_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, historyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history events: %w", err)
	}
	defer rows.Close()

	var events []*HistoryEvent
	for rows.Next() {
		ev := &HistoryEvent{}
		if err := rows.Scan(&ev.ID, &ev.HistoryID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history events: %w", err)
	}
	return events, nil
}
