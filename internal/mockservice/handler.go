package mockservice

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thesyncim/vstream/internal/workflow"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /workflows", s.auth(s.handleListWorkflows))
	mux.HandleFunc("POST /workflows", s.auth(s.handleCreateWorkflow))
	mux.HandleFunc("POST /workflows/{id}/execute/session", s.auth(s.handleExecute))
	mux.HandleFunc("GET /workflows/visual/{session}/status", s.auth(s.handleStatus))
	mux.HandleFunc("GET /workflows/visual/{session}/stream", s.handleStream)
	mux.HandleFunc("GET /page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(TestPage))
	})
	return mux
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != s.cfg.Token {
				http.Error(w, `{"detail":"invalid session token"}`, http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state.listWorkflows())
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def workflow.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "Invalid workflow definition", http.StatusBadRequest)
		return
	}
	if def.Name == "" || len(def.Steps) == 0 {
		http.Error(w, "Workflow requires a name and at least one step", http.StatusUnprocessableEntity)
		return
	}

	wf := s.state.addWorkflow(def.Name)
	s.log.Info("workflow created", "id", wf.ID, "name", wf.Name)
	writeJSON(w, http.StatusCreated, wf)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.state.hasWorkflow(id) {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}

	var req workflow.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid execution request", http.StatusBadRequest)
		return
	}

	sess := s.state.newSession(id, req.VisualStreaming)
	s.log.Info("execution started", "workflow_id", id, "session_id", sess.ID)
	writeJSON(w, http.StatusOK, workflow.ExecuteResponse{
		SessionID:              sess.ID,
		TaskID:                 sess.TaskID,
		Success:                true,
		VisualStreamingEnabled: req.VisualStreaming,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	info, streaming, ok := s.state.poll(r.PathValue("session"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	ready := info.VisualStreaming && info.StatusPolls >= s.cfg.ReadyAfter
	writeJSON(w, http.StatusOK, workflow.VisualStatus{
		StreamingReady:  ready,
		StreamingActive: streaming,
		BrowserReady:    ready,
		EventsProcessed: info.EventsSent,
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	if _, ok := s.state.session(id); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("stream upgrade failed", "session_id", id, "err", err)
		return
	}
	defer conn.Close()
	// The server's read timeout must not apply to the hijacked connection.
	_ = conn.NetConn().SetDeadline(time.Time{})

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !s.state.attach(id, token, conn) {
		return
	}
	defer s.state.detach(id, conn)

	// Drain client frames so close handshakes are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(max(s.cfg.EventInterval, time.Millisecond))
	defer ticker.Stop()

	for _, frame := range s.cfg.Script {
		select {
		case <-done:
			return
		case <-ticker.C:
		}
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
		s.state.sent(id)
	}

	if s.cfg.CloseAfterScript {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session complete")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return
	}
	<-done
}
