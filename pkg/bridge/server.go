// Package bridge exposes a [devqa.Session] to the UI over HTTP and a
// WebSocket stream of badge events.
//
// Responses are JSON unless the request accepts application/cbor. Request
// bodies are decoded according to their Content-Type.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	devqa "github.com/devqa/devqa.go"
	"github.com/devqa/devqa.go/internal/codec"
	"github.com/devqa/devqa.go/pkg/logger"
)

type Config struct {
	// Gatherer serves /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// TokenSecret verifies ID tokens posted to /session. Nil accepts any
	// well-formed token without checking its signature.
	TokenSecret []byte
	// CheckOrigin guards the WebSocket upgrade. Nil allows same-origin
	// requests only.
	CheckOrigin func(r *http.Request) bool
	Logger      logger.Logger
}

type Server struct {
	sess     *devqa.Session
	router   *mux.Router
	upgrader websocket.Upgrader
	secret   []byte
	logger   logger.Logger
	json     codec.Codec
	cbor     codec.Codec
}

func New(sess *devqa.Session, cfg Config) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	s := &Server{
		sess:     sess,
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: cfg.CheckOrigin},
		secret:   cfg.TokenSecret,
		logger:   cfg.Logger,
		json:     codec.JSON(),
		cbor:     codec.CBOR(),
	}

	r := s.router
	r.Use(s.logRequests)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/session", s.handleSignIn).Methods(http.MethodPut)
	r.HandleFunc("/session", s.handleSignOut).Methods(http.MethodDelete)
	r.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)

	r.HandleFunc("/feed", s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc("/feed/load", s.handleFeedLoad).Methods(http.MethodPost)
	r.HandleFunc("/feed/more", s.handleFeedMore).Methods(http.MethodPost)
	r.HandleFunc("/feed/search", s.handleFeedSearch).Methods(http.MethodPut)
	r.HandleFunc("/feed/tag", s.handleFeedTag).Methods(http.MethodPut)

	r.HandleFunc("/questions", s.handlePostQuestion).Methods(http.MethodPost)
	r.HandleFunc("/questions/{id}/upvote", s.handleUpvoteQuestion).Methods(http.MethodPost)
	r.HandleFunc("/questions/{id}/answers", s.handleAnswers).Methods(http.MethodGet)
	r.HandleFunc("/questions/{id}/answers", s.handlePostAnswer).Methods(http.MethodPost)
	r.HandleFunc("/answers/{id}/upvote", s.handleUpvoteAnswer).Methods(http.MethodPost)

	r.HandleFunc("/level", s.handleLevel).Methods(http.MethodGet)
	r.HandleFunc("/notification", s.handleNotification).Methods(http.MethodGet)
	r.HandleFunc("/notification", s.handleDismiss).Methods(http.MethodDelete)
	r.HandleFunc("/ws/notifications", s.handleNotificationStream).Methods(http.MethodGet)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", "addr", ln.Addr().String())
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown bridge: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("bridge request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
