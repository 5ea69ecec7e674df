package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/outclash/outclash-go/internal/lifecycle"
)

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorw("Failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, response{Error: message})
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleVisible(w http.ResponseWriter, _ *http.Request) {
	shown := s.cfg.Controller.ShowWindow()
	s.writeSuccess(w, map[string]bool{"shown": shown})
}

func (s *Server) handleScheme(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Query().Get("param")
	if param == "" {
		s.writeError(w, http.StatusBadRequest, "missing param")
		return
	}
	s.cfg.Controller.HandleDeepLink(param)
	s.writeJSON(w, http.StatusAccepted, response{Success: true})
}

type stageRequest struct {
	Stage string `json:"stage"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	stage, ok := lifecycle.ParseStage(req.Stage)
	if !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stage %q", req.Stage))
		return
	}
	s.cfg.Readiness.Transition(stage)
	if s.cfg.Emitter != nil {
		s.cfg.Emitter.StageChanged(stage.String())
	}
	s.logger.Debugw("UI stage changed", "stage", stage.String())
	s.writeSuccess(w, map[string]any{"stage": stage.String(), "ready": s.cfg.Readiness.IsReady()})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, map[string]any{
		"ready": s.cfg.Readiness.IsReady(),
		"stage": s.cfg.Readiness.Stage().String(),
	})
}

func (s *Server) handleUptime(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, map[string]int64{"uptime_ms": s.cfg.Controller.Uptime().Milliseconds()})
}

func (s *Server) handleRunningMode(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, map[string]string{"mode": s.cfg.Controller.RunningMode()})
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, map[string]string{"info": s.cfg.Controller.SystemInfo()})
}

func (s *Server) handleRestartCore(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Controller.RestartCore(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w, nil)
}

func (s *Server) handleRestartApp(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusAccepted, response{Success: true})
	go s.cfg.Controller.RestartApp()
}

type modeRequest struct {
	Mode string `json:"mode"`
}

var validModes = map[string]bool{"rule": true, "global": true, "direct": true}

func (s *Server) handleChangeMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if !validModes[req.Mode] {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", req.Mode))
		return
	}
	if err := s.cfg.Controller.ChangeMode(r.Context(), req.Mode); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeSuccess(w, map[string]string{"mode": req.Mode})
}

func (s *Server) handleImports(w http.ResponseWriter, r *http.Request) {
	records, err := s.cfg.Controller.Imports(parseLimit(r, 20, 500))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w, map[string]any{"imports": records, "total": len(records)})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, s.cfg.Controller.VersionInfo())
}

// handleSSEEvents streams bus events to the frontend.
func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if s.cfg.Emitter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "events are not available")
		return
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.logger.Warn("ResponseWriter does not support flushing, SSE may not work properly")
	}

	bus := s.cfg.Emitter.Bus()
	eventsCh := bus.Subscribe()
	defer bus.Unsubscribe(eventsCh)

	fmt.Fprintf(w, ": SSE connection established\nretry: 5000\n\n")
	if canFlush {
		flusher.Flush()
	}

	heartbeat := time.NewTicker(s.cfg.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := writeSSEEvent(w, flusher, canFlush, "ping", map[string]int64{"timestamp": time.Now().Unix()}); err != nil {
				return
			}
		case evt, ok := <-eventsCh:
			if !ok {
				return
			}
			payload := map[string]any{
				"payload":   evt.Payload,
				"timestamp": evt.Timestamp.Unix(),
			}
			if err := writeSSEEvent(w, flusher, canFlush, string(evt.Type), payload); err != nil {
				s.logger.Debugw("Failed to write SSE event", "error", err)
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, canFlush bool, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	if canFlush {
		flusher.Flush()
	}
	return nil
}
