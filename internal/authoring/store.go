package authoring

import (
	"sync"

	"github.com/agentdevsl/taskdraft/internal/llm"
)

// defaultFinishedRetention bounds how many completed/cancelled session
// snapshots are kept for post-hoc lookup.
const defaultFinishedRetention = 128

// sessionEntry is a live session plus its owned resources. opMu serializes
// controller operations per session, so overlapping calls on one session
// queue up instead of interleaving mid-turn; dataMu guards session fields
// with short critical sections so snapshots never wait on a model turn.
type sessionEntry struct {
	opMu   sync.Mutex
	dataMu sync.Mutex

	session   *Session
	handle    llm.Handle
	historyID string

	// suppressedToolCallID is set when a clarifying-question tool call was
	// swallowed by an exhausted budget; the next user text is delivered as
	// that call's tool result to keep the provider conversation valid.
	suppressedToolCallID string
}

func (e *sessionEntry) withData(fn func(s *Session)) {
	e.dataMu.Lock()
	defer e.dataMu.Unlock()
	fn(e.session)
}

// SessionStore holds live sessions behind explicit create/get/finish
// operations, plus a bounded FIFO of finished session snapshots so GetSession
// keeps answering shortly after a session ends.
type SessionStore struct {
	mu        sync.RWMutex
	live      map[string]*sessionEntry
	finished  map[string]*Session
	order     []string // eviction order for finished
	retention int
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		live:      make(map[string]*sessionEntry),
		finished:  make(map[string]*Session),
		retention: defaultFinishedRetention,
	}
}

// Put registers a new live session with its handle and optional durable
// history session id.
func (st *SessionStore) Put(s *Session, handle llm.Handle, historyID string) *sessionEntry {
	entry := &sessionEntry{session: s, handle: handle, historyID: historyID}
	st.mu.Lock()
	st.live[s.ID] = entry
	st.mu.Unlock()
	return entry
}

// Get returns the live entry for a session id.
func (st *SessionStore) Get(id string) (*sessionEntry, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	entry, ok := st.live[id]
	return entry, ok
}

// Finish moves a session out of the live set, retaining its final snapshot.
// The caller must already hold the entry's opMu and have released the handle.
func (st *SessionStore) Finish(id string, final *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.live, id)

	if _, ok := st.finished[id]; !ok {
		st.order = append(st.order, id)
	}
	st.finished[id] = final
	for len(st.order) > st.retention {
		evict := st.order[0]
		st.order = st.order[1:]
		delete(st.finished, evict)
	}
}

// Snapshot returns a point-in-time copy of the session, live or finished.
func (st *SessionStore) Snapshot(id string) (*Session, bool) {
	st.mu.RLock()
	entry, live := st.live[id]
	final, done := st.finished[id]
	st.mu.RUnlock()

	if live {
		entry.dataMu.Lock()
		defer entry.dataMu.Unlock()
		return entry.session.snapshot(), true
	}
	if done {
		return final.snapshot(), true
	}
	return nil, false
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.live)
}
