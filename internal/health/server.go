package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/studybot/studybot/internal/logger"
)

const (
	RootText   = "البوت يعمل بنجاح 🖤."
	HealthText = "OK"
)

// NewRouter builds the liveness routes. metricsHandler may be nil.
func NewRouter(metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", handleRoot).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet, http.MethodHead)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("HTTP request for unknown path", map[string]interface{}{
			"path":   r.URL.Path,
			"method": r.Method,
		})
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Not Found"))
	})
	return r
}

func handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(RootText))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(HealthText))
}

// Server keeps the process visible to hosting platforms that probe HTTP.
type Server struct {
	srv *http.Server
}

func NewServer(port string, metricsHandler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      NewRouter(metricsHandler),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves in the background. Listen errors are logged, not fatal.
func (s *Server) Start() {
	go func() {
		logger.Info("Liveness server starting", map[string]interface{}{
			"addr":      s.srv.Addr,
			"endpoints": []string{"/", "/health", "/metrics"},
		})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Liveness server error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
