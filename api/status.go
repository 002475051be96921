package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/openclaw/audioqr/store"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type statusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Version         string `json:"version"`
	MaxPayloadBytes int    `json:"max_payload_bytes"`
	QRVersion       int    `json:"qr_version"`
	Level           string `json:"error_correction_level"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	opts := s.Encoder.Options()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:          "ok",
		Uptime:          time.Since(s.StartTime).Truncate(time.Second).String(),
		Version:         s.Version,
		MaxPayloadBytes: opts.MaxPayloadBytes,
		QRVersion:       opts.Version,
		Level:           string(opts.Level),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
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

	recs, err := s.Store.Recent(limit)
	if err != nil {
		s.Log.Error("load history", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}
