package mockservice

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thesyncim/vstream/internal/workflow"
)

// SessionInfo is the observable state of one execution session.
type SessionInfo struct {
	ID              string
	TaskID          string
	WorkflowID      string
	StatusPolls     int
	EventsSent      int
	StreamsOpened   int
	StreamToken     string // bearer token of the latest stream connection
	VisualStreaming bool
}

type state struct {
	mu        sync.Mutex
	workflows []workflow.Workflow
	sessions  map[string]*SessionInfo
	active    map[string]int
	conns     map[*websocket.Conn]struct{}
}

func newState(seed []workflow.Workflow) *state {
	return &state{
		workflows: append([]workflow.Workflow(nil), seed...),
		sessions:  make(map[string]*SessionInfo),
		active:    make(map[string]int),
		conns:     make(map[*websocket.Conn]struct{}),
	}
}

func (s *state) listWorkflows() []workflow.Workflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]workflow.Workflow, len(s.workflows))
	copy(out, s.workflows)
	return out
}

func (s *state) addWorkflow(name string) workflow.Workflow {
	wf := workflow.Workflow{ID: uuid.NewString(), Name: name}
	s.mu.Lock()
	s.workflows = append(s.workflows, wf)
	s.mu.Unlock()
	return wf
}

func (s *state) hasWorkflow(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, wf := range s.workflows {
		if wf.ID == id {
			return true
		}
	}
	return false
}

func (s *state) newSession(workflowID string, visual bool) SessionInfo {
	info := &SessionInfo{
		ID:              uuid.NewString(),
		TaskID:          uuid.NewString(),
		WorkflowID:      workflowID,
		VisualStreaming: visual,
	}
	s.mu.Lock()
	s.sessions[info.ID] = info
	s.mu.Unlock()
	return *info
}

func (s *state) session(id string) (SessionInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.sessions[id]
	if !ok {
		return SessionInfo{}, false
	}
	return *info, true
}

// poll counts a status poll and returns the updated session and whether
// a stream is currently attached.
func (s *state) poll(id string) (SessionInfo, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.sessions[id]
	if !ok {
		return SessionInfo{}, false, false
	}
	info.StatusPolls++
	return *info, s.active[id] > 0, true
}

func (s *state) attach(id, token string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.sessions[id]
	if !ok {
		return false
	}
	info.StreamsOpened++
	info.StreamToken = token
	s.active[id]++
	s.conns[conn] = struct{}{}
	return true
}

func (s *state) detach(id string, conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[id]--
	delete(s.conns, conn)
}

func (s *state) sent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.sessions[id]; ok {
		info.EventsSent++
	}
}

func (s *state) closeStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}
