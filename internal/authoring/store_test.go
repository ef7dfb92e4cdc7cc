package authoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdevsl/taskdraft/internal/llm"
)

func TestSessionStore_PutGetFinish(t *testing.T) {
	st := NewSessionStore()
	handle := llm.NewScriptedHandle()

	s := &Session{ID: "s1", ProjectID: "p1", Status: StatusActive}
	entry := st.Put(s, handle, "hist-1")
	require.NotNil(t, entry)
	assert.Equal(t, 1, st.Len())

	got, ok := st.Get("s1")
	require.True(t, ok)
	assert.Same(t, entry, got)

	_, ok = st.Get("missing")
	assert.False(t, ok)

	now := time.Now().UTC()
	final := &Session{ID: "s1", ProjectID: "p1", Status: StatusCompleted, CompletedAt: &now}
	st.Finish("s1", final)
	assert.Equal(t, 0, st.Len())

	_, ok = st.Get("s1")
	assert.False(t, ok, "finished session must leave the live set")

	snap, ok := st.Snapshot("s1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestSessionStore_SnapshotIsACopy(t *testing.T) {
	st := NewSessionStore()
	s := &Session{ID: "s1", Status: StatusActive, Messages: []Message{{ID: "m1", Content: "hi"}}}
	entry := st.Put(s, nil, "")

	snap, ok := st.Snapshot("s1")
	require.True(t, ok)
	snap.Messages[0].Content = "mutated"
	snap.Messages = append(snap.Messages, Message{ID: "m2"})

	entry.withData(func(ses *Session) {
		require.Len(t, ses.Messages, 1)
		assert.Equal(t, "hi", ses.Messages[0].Content)
	})
}

func TestSessionStore_FinishedRetention(t *testing.T) {
	st := NewSessionStore()
	st.retention = 3

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s%d", i)
		st.Put(&Session{ID: id, Status: StatusActive}, nil, "")
		st.Finish(id, &Session{ID: id, Status: StatusCancelled})
	}

	_, ok := st.Snapshot("s0")
	assert.False(t, ok, "oldest finished session should be evicted")
	_, ok = st.Snapshot("s1")
	assert.False(t, ok)
	for i := 2; i < 5; i++ {
		_, ok := st.Snapshot(fmt.Sprintf("s%d", i))
		assert.True(t, ok, "recent finished session s%d should be retained", i)
	}
}

func TestSessionStore_FinishIsIdempotentForRetention(t *testing.T) {
	st := NewSessionStore()
	st.retention = 2

	st.Put(&Session{ID: "s1"}, nil, "")
	st.Finish("s1", &Session{ID: "s1", Status: StatusCompleted})
	st.Finish("s1", &Session{ID: "s1", Status: StatusCompleted})
	st.Put(&Session{ID: "s2"}, nil, "")
	st.Finish("s2", &Session{ID: "s2", Status: StatusCancelled})

	_, ok := st.Snapshot("s1")
	assert.True(t, ok, "double finish must not consume two retention slots")
	_, ok = st.Snapshot("s2")
	assert.True(t, ok)
}
