package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scribe-audio/scribed/internal/domain"
)

// createTaskRequest is the POST /api/tasks body.
type createTaskRequest struct {
	SourceURL    string `json:"source_url"`
	SourceKind   string `json:"source_kind,omitempty"`
	Model        string `json:"model,omitempty"`
	Language     string `json:"language,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	Device       string `json:"device,omitempty"`
	ComputeType  string `json:"compute_type,omitempty"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	task, err := s.orch.CreateTask(r.Context(), domain.TaskInput{
		SourceURL:    req.SourceURL,
		SourceKind:   domain.SourceKind(req.SourceKind),
		Model:        req.Model,
		Language:     req.Language,
		OutputFormat: domain.OutputFormat(req.OutputFormat),
		Device:       req.Device,
		ComputeType:  req.ComputeType,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingSourceURL),
			errors.Is(err, domain.ErrBadOutputFormat),
			errors.Is(err, domain.ErrUnsupportedSource):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrQueueSaturated):
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create task")
		}
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.orch.GetTask(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	status := domain.TaskStatus(r.URL.Query().Get("status"))
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	tasks, err := s.orch.ListTasks(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.orch.CancelTask(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, "task not found")
		case errors.Is(err, domain.ErrTaskTerminal):
			writeError(w, http.StatusConflict, "task already finished")
		default:
			writeError(w, http.StatusInternalServerError, "failed to cancel task")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	artifact, url, err := s.orch.Artifact(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTaskNotFound):
			writeError(w, http.StatusNotFound, "task not found")
		case errors.Is(err, domain.ErrArtifactNotReady):
			writeError(w, http.StatusConflict, "artifact not ready")
		default:
			writeError(w, http.StatusInternalServerError, "failed to resolve artifact")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifact":     artifact,
		"download_url": url,
	})
}

// handleStreamTask serves the live progress feed as Server-Sent Events.
// The first frame is always the task's current snapshot; the stream
// closes after the terminal event.
func (s *Server) handleStreamTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := s.orch.Stream(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open stream")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		flusher.Flush()
	}
}
