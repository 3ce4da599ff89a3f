// Package api exposes the tree store over HTTP. The server, middleware chain
// and response envelope follow one pattern: every handler translates a
// transport request into exactly one store operation and maps its outcome
// onto the status contract.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"bts-lite/treestore"
)

// Config holds the server configuration.
type Config struct {
	Host            string        `json:"host" yaml:"host"`
	Port            int           `json:"port" yaml:"port"`
	UnixSocket      string        `json:"unix_socket" yaml:"unix_socket"`
	EnableCORS      bool          `json:"enable_cors" yaml:"enable_cors"`
	EnableMetrics   bool          `json:"enable_metrics" yaml:"enable_metrics"`
	EnableAuth      bool          `json:"enable_auth" yaml:"enable_auth"`
	AuthToken       string        `json:"auth_token" yaml:"auth_token"`
	LogRequests     bool     `json:"log_requests" yaml:"log_requests"`
	RequestTimeout  Duration `json:"request_timeout" yaml:"request_timeout"`
	ReadTimeout     Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     Duration `json:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestSize  int64    `json:"max_request_size" yaml:"max_request_size"`
	RateLimitRPS    float64  `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst  int      `json:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            8080,
		EnableCORS:      true,
		EnableMetrics:   true,
		EnableAuth:      false,
		LogRequests:     true,
		RequestTimeout:  Duration(30 * time.Second),
		ReadTimeout:     Duration(30 * time.Second),
		WriteTimeout:    Duration(30 * time.Second),
		IdleTimeout:     Duration(60 * time.Second),
		ShutdownTimeout: Duration(30 * time.Second),
		MaxRequestSize:  1 << 20, // 1MB, payloads are tiny
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// APIServer serves the tree store.
type APIServer struct {
	store    *treestore.Store
	config   *Config
	server   *http.Server
	logger   *log.Logger
	metrics  *Metrics
	limiter  *rate.Limiter
	shutdown chan os.Signal
	quit     chan struct{}
	wg       sync.WaitGroup
}

// Metrics are the prometheus collectors for the API.
type Metrics struct {
	RequestsTotal     prometheus.Counter
	RequestDuration   prometheus.Histogram
	ActiveConnections prometheus.Gauge
	ErrorsTotal       prometheus.Counter
	TreeOperations    prometheus.CounterVec
	TreeNodes         prometheus.Gauge
	TreeDepth         prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics registers and returns the API collectors. Registration happens
// once per process; repeated servers share the same collectors.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			RequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "treestore_api_requests_total",
				Help: "Total HTTP requests served",
			}),
			RequestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name: "treestore_api_request_duration_seconds",
				Help: "HTTP request duration",
			}),
			ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "treestore_api_active_connections",
				Help: "Currently active connections",
			}),
			ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "treestore_api_errors_total",
				Help: "Total error responses",
			}),
			TreeOperations: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "treestore_operations_total",
					Help: "Tree operations by type and outcome",
				},
				[]string{"operation", "status"},
			),
			TreeNodes: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "treestore_nodes",
				Help: "Number of nodes in the tree",
			}),
			TreeDepth: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "treestore_depth",
				Help: "Depth of the tree",
			}),
		}
	})
	return metrics
}

// APIResponse is the standard response envelope. Responses with status 204
// carry no envelope at all.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewAPIServer creates a new API server around an existing store.
func NewAPIServer(store *treestore.Store, config *Config) *APIServer {
	if config == nil {
		config = DefaultConfig()
	}

	server := &APIServer{
		store:    store,
		config:   config,
		logger:   log.New(os.Stdout, "[API] ", log.LstdFlags),
		shutdown: make(chan os.Signal, 1),
		quit:     make(chan struct{}),
	}

	if config.EnableMetrics {
		server.metrics = NewMetrics()
	}
	if config.RateLimitRPS > 0 {
		server.limiter = rate.NewLimiter(rate.Limit(config.RateLimitRPS), config.RateLimitBurst)
	}
	return server
}

// Router builds the full route table. Exposed so tests can drive the server
// through httptest without binding a socket.
func (s *APIServer) Router() *mux.Router {
	router := mux.NewRouter()
	s.setupRoutes(router)
	return router
}

// Start runs the server until an interrupt or SIGTERM arrives, then shuts
// down gracefully.
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.Router(),
		ReadTimeout:  time.Duration(s.config.ReadTimeout),
		WriteTimeout: time.Duration(s.config.WriteTimeout),
		IdleTimeout:  time.Duration(s.config.IdleTimeout),
	}

	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if s.config.UnixSocket != "" {
			var ln net.Listener
			ln, err = net.Listen("unix", s.config.UnixSocket)
			if err == nil {
				s.logger.Printf("listening on unix://%s", s.config.UnixSocket)
				err = s.server.Serve(ln)
			}
		} else {
			s.logger.Printf("listening on %s", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server error: %v", err)
		}
	}()

	if s.metrics != nil {
		s.wg.Add(1)
		go s.metricsUpdater(ctx)
	}

	select {
	case <-s.shutdown:
	case <-ctx.Done():
	}
	return s.gracefulShutdown()
}

func (s *APIServer) gracefulShutdown() error {
	s.logger.Println("shutting down")

	signal.Stop(s.shutdown)
	close(s.quit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.config.ShutdownTimeout))
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Printf("shutdown error: %v", err)
		return err
	}

	s.wg.Wait()
	s.logger.Println("server stopped")
	return nil
}

// metricsUpdater keeps the tree gauges current. It must never receive from
// s.shutdown: Start is the sole receiver of the signal channel, and stops this
// goroutine through s.quit instead.
func (s *APIServer) metricsUpdater(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-ticker.C:
			stats := s.store.Stats()
			s.metrics.TreeNodes.Set(float64(stats.Nodes))
			s.metrics.TreeDepth.Set(float64(stats.Depth))
		}
	}
}

func (s *APIServer) setupRoutes(router *mux.Router) {
	router.Use(s.recoveryMiddleware)
	router.Use(s.requestIDMiddleware)
	router.Use(s.corsMiddleware)
	router.Use(s.authMiddleware)
	router.Use(s.rateLimitMiddleware)
	router.Use(s.metricsMiddleware)

	if s.config.LogRequests {
		router.Use(s.loggingMiddleware)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// Tree operations
	api.HandleFunc("/tree/root", s.handleCreateRoot).Methods("POST")
	api.HandleFunc("/tree/root", s.handleGetRoot).Methods("GET")
	api.HandleFunc("/nodes", s.handleListNodes).Methods("GET")
	api.HandleFunc("/nodes/{id}", s.handleGetNode).Methods("GET")
	api.HandleFunc("/nodes/{id}", s.handleUpdateNode).Methods("PUT")
	api.HandleFunc("/nodes/{id}", s.handleDeleteNode).Methods("DELETE")
	api.HandleFunc("/nodes/{id}/children", s.handleCreateChild).Methods("POST")
	api.HandleFunc("/nodes/{id}/parent", s.handleGetParent).Methods("GET")
	api.HandleFunc("/traverse", s.handleTraverse).Methods("GET")

	// Queries
	api.HandleFunc("/query", s.handleJQQuery).Methods("POST")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Subscriptions
	api.HandleFunc("/subscriptions", s.handleListSubscriptions).Methods("GET")
	api.HandleFunc("/subscriptions", s.handleCreateSubscription).Methods("POST")
	api.HandleFunc("/subscriptions/{id}", s.handleDeleteSubscription).Methods("DELETE")

	// Streaming
	api.HandleFunc("/stream/sse", s.handleStreamSSE).Methods("GET")
	api.HandleFunc("/stream/jsonl", s.handleStreamJSONL).Methods("GET")

	// Ops
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/docs", s.handleDocs).Methods("GET")

	if s.metrics != nil {
		router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendErrorResponse(w, r, "endpoint not found", http.StatusNotFound)
	})
}

// Middleware

func (s *APIServer) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Printf("PANIC: %v", err)
				if s.metrics != nil {
					s.metrics.ErrorsTotal.Inc()
				}
				s.sendErrorResponse(w, r, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const requestIDKey contextKey = "request_id"

func (s *APIServer) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", time.Now().UnixNano())
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *APIServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.EnableCORS {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.EnableAuth {
			// Health and metrics stay open for probes and scrapers.
			if r.URL.Path == "/api/v1/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				s.sendErrorResponse(w, r, "authorization required", http.StatusUnauthorized)
				return
			}
			if strings.TrimPrefix(auth, "Bearer ") != s.config.AuthToken {
				s.sendErrorResponse(w, r, "invalid token", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.sendErrorResponse(w, r, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.metrics != nil {
			start := time.Now()
			s.metrics.RequestsTotal.Inc()
			s.metrics.ActiveConnections.Inc()

			defer func() {
				s.metrics.ActiveConnections.Dec()
				s.metrics.RequestDuration.Observe(time.Since(start).Seconds())
			}()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWrapper{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)
		requestID := r.Context().Value(requestIDKey)
		s.logger.Printf(`{"method":"%s","path":"%s","status":%d,"duration":"%v","request_id":"%v","remote_addr":"%s"}`,
			r.Method, r.URL.Path, wrapper.status, duration, requestID, r.RemoteAddr)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	status int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWrapper) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Response helpers

func (s *APIServer) sendResponse(w http.ResponseWriter, r *http.Request, data interface{}) {
	s.sendResponseWithMessage(w, r, data, "", http.StatusOK)
}

func (s *APIServer) sendResponseWithMessage(w http.ResponseWriter, r *http.Request, data interface{}, message string, statusCode int) {
	if statusCode == http.StatusNoContent {
		w.WriteHeader(statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	requestID := r.Context().Value(requestIDKey)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   statusCode < 400,
		Data:      data,
		Message:   message,
		RequestID: fmt.Sprintf("%v", requestID),
		Timestamp: time.Now(),
	})
}

func (s *APIServer) sendErrorResponse(w http.ResponseWriter, r *http.Request, errMsg string, statusCode int) {
	if s.metrics != nil {
		s.metrics.ErrorsTotal.Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	requestID := r.Context().Value(requestIDKey)
	json.NewEncoder(w).Encode(APIResponse{
		Success:   false,
		Error:     errMsg,
		RequestID: fmt.Sprintf("%v", requestID),
		Timestamp: time.Now(),
	})
}

func (s *APIServer) parseJSONBody(r *http.Request, target interface{}) error {
	if r.ContentLength > s.config.MaxRequestSize {
		return fmt.Errorf("request body too large")
	}
	body := http.MaxBytesReader(nil, r.Body, s.config.MaxRequestSize)
	return json.NewDecoder(body).Decode(target)
}

func (s *APIServer) countOp(operation, status string) {
	if s.metrics != nil {
		s.metrics.TreeOperations.WithLabelValues(operation, status).Inc()
	}
}
