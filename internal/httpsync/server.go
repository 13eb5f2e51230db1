// Package httpsync carries the sync service contract over HTTP. Every
// response is a tagged success/data/error envelope, so a client can map
// it straight onto a Result without ever raising.
package httpsync

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"pairtask/engine/internal/collab"
	"pairtask/engine/internal/syncsvc"
)

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *syncsvc.Error  `json:"error,omitempty"`
}

// Server exposes a sync service backend as JSON endpoints.
type Server struct {
	svc        syncsvc.Service
	corsOrigin string
}

func NewServer(svc syncsvc.Service, corsOrigin string) *Server {
	return &Server{svc: svc, corsOrigin: corsOrigin}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskID}/session/start", s.handleStartSession).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/session/stop", s.handleStopSession).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/lock", s.handleToggleLock).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskID}/collaborators", s.handleCollaborators).Methods(http.MethodGet)
	r.HandleFunc("/api/operations", s.handleApplyOperation).Methods(http.MethodPost)
	r.HandleFunc("/api/cursor", s.handleUpdateCursor).Methods(http.MethodPost)
	return s.withCORS(r)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]any{"status": "ok"})
}

type userBody struct {
	UserID string `json:"userId"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, syncsvc.CodeInvalid, err.Error())
		return
	}
	if body.UserID == "" {
		writeError(w, http.StatusBadRequest, syncsvc.CodeInvalid, "userId is required")
		return
	}
	writeResult(w, s.svc.StartEditSession(r.Context(), mux.Vars(r)["taskID"], body.UserID))
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var body userBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, syncsvc.CodeInvalid, err.Error())
		return
	}
	writeResult(w, s.svc.StopEditSession(r.Context(), mux.Vars(r)["taskID"], body.UserID))
}

func (s *Server) handleApplyOperation(w http.ResponseWriter, r *http.Request) {
	var op collab.EditOperation
	if err := decodeBody(r, &op); err != nil {
		writeError(w, http.StatusBadRequest, syncsvc.CodeInvalid, err.Error())
		return
	}
	writeResult(w, s.svc.ApplyOperation(r.Context(), op))
}

func (s *Server) handleUpdateCursor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID   string `json:"taskId"`
		UserID   string `json:"userId"`
		Field    string `json:"field"`
		Position int    `json:"position"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, syncsvc.CodeInvalid, err.Error())
		return
	}
	writeResult(w, s.svc.UpdateCursor(r.Context(), body.TaskID, body.UserID, body.Field, body.Position))
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"userId"`
		Lock   bool   `json:"lock"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, syncsvc.CodeInvalid, err.Error())
		return
	}
	writeResult(w, s.svc.ToggleTaskLock(r.Context(), mux.Vars(r)["taskID"], body.UserID, body.Lock))
}

func (s *Server) handleCollaborators(w http.ResponseWriter, r *http.Request) {
	cursors := s.svc.GetCollaborators(r.Context(), mux.Vars(r)["taskID"])
	if cursors == nil {
		cursors = []collab.CollaboratorCursor{}
	}
	writeData(w, http.StatusOK, cursors)
}

func decodeBody(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeResult[T any](w http.ResponseWriter, result syncsvc.Result[T]) {
	if !result.Ok() {
		writeError(w, statusFor(result.Err.Code), result.Err.Code, result.Err.Message)
		return
	}
	writeData(w, http.StatusOK, result.Value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, syncsvc.CodeTransport, "encode response")
		return
	}
	writeJSON(w, status, envelope{OK: true, Data: payload})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{OK: false, Error: &syncsvc.Error{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func statusFor(code string) int {
	switch code {
	case syncsvc.CodeNoSession:
		return http.StatusNotFound
	case syncsvc.CodeLocked, syncsvc.CodeNotOwner:
		return http.StatusConflict
	case syncsvc.CodeInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
