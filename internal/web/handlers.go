package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/supportdesk/triage/internal/email"
	"github.com/supportdesk/triage/internal/history"
	"github.com/supportdesk/triage/internal/inbox"
	"github.com/supportdesk/triage/internal/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	maxBodyBytes        = 1 << 20
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	last := s.store.LastLoad()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"emails":       s.store.Len(),
		"rulesVersion": s.rulesVersion,
		"lastLoad":     last.LoadedAt,
		"sendEnabled":  s.outbox != nil,
	})
}

func (s *Server) handleListEmails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := inbox.Criteria{
		Search:    q.Get("search"),
		Priority:  q.Get("priority"),
		Sentiment: q.Get("sentiment"),
		Status:    q.Get("status"),
	}

	emails := s.store.Filter(criteria)
	writeJSON(w, http.StatusOK, map[string]any{
		"emails": emails,
		"count":  len(emails),
		"total":  s.store.Len(),
	})
}

func (s *Server) handleGetEmail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	var last *history.Reply
	if s.historyStore != nil {
		var err error
		last, err = s.historyStore.LastForEmail(id)
		if err != nil {
			s.log.Warn("Failed to read reply history", logger.String("id", id), logger.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"email":     e,
		"lastReply": last,
	})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	found, err := s.store.SetStatus(id, inbox.Status(req.Status))
	if errors.Is(err, inbox.ErrInvalidStatus) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}

	e, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, map[string]any{"email": e})
}

type sendRequest struct {
	Response string `json:"response"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	// Rate limiting - prevent abuse of email sending
	if !s.rateLimiter.Allow("send") {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please wait a moment before sending more replies.")
		return
	}

	if s.outbox == nil {
		writeError(w, http.StatusServiceUnavailable, "Email not configured. Run 'triage init' to configure a provider.")
		return
	}

	id := chi.URLParam(r, "id")

	var req sendRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.outbox.Send(r.Context(), id, req.Response)
	if errors.Is(err, email.ErrEmailNotFound) {
		writeError(w, http.StatusNotFound, "email not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !result.Success {
		msg := "Unknown error"
		if result.Error != nil {
			msg = result.Error.Error()
		}
		writeError(w, http.StatusBadGateway, msg)
		return
	}

	e, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"messageId": result.MessageID,
		"email":     e,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.Load(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":  err.Error(),
			"result": res,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.StatsNow())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.historyStore == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	replies, err := s.historyStore.GetRecent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	stats, err := s.historyStore.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if replies == nil {
		replies = []history.Reply{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"replies": replies,
		"stats":   stats,
	})
}

func (s *Server) handleDeleteFailed(w http.ResponseWriter, r *http.Request) {
	if s.historyStore == nil {
		writeError(w, http.StatusServiceUnavailable, "Database not available")
		return
	}

	deleted, err := s.historyStore.DeleteByStatus(history.StatusFailed)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": deleted,
		"message": fmt.Sprintf("Deleted %d failed records", deleted),
	})
}
