package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openclaw/audioqr/notify"
	"github.com/openclaw/audioqr/qrgen"
	"github.com/openclaw/audioqr/store"
)

// Server holds the dependencies for all HTTP handlers. Store and Webhook are
// optional.
type Server struct {
	Encoder   *qrgen.Encoder
	Store     *store.HistoryStore
	Webhook   *notify.WebhookSender
	Log       *slog.Logger
	Root      string
	MaxUpload int64
	Version   string
	StartTime time.Time
}

// NewRouter returns a chi router serving the API routes and, for every other
// path, the files under s.Root. /status, /history and /encode are reserved and
// shadow same-named files. Files answer GET and HEAD only; any other method
// gets 501.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(CrossOriginIsolation)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Log))

	r.Get("/status", s.handleStatus)
	r.Get("/history", s.handleHistory)
	r.Post("/encode", s.handleEncode)

	files := http.FileServer(http.Dir(s.Root))
	r.Get("/*", files.ServeHTTP)
	r.Head("/*", files.ServeHTTP)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotImplemented, "Unsupported method ("+r.Method+")")
	})

	return r
}

// --- helpers ----------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// --- middleware --------------------------------------------------------------

// CrossOriginIsolation sets the COEP and COOP headers on every response so
// browsers grant the page cross-origin isolation (SharedArrayBuffer, etc).
func CrossOriginIsolation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Embedder-Policy", "require-corp")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"remote", r.RemoteAddr,
				"duration", time.Since(start),
			)
		})
	}
}
