package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nmillrr/syllabug/internal/llm"
)

const version = "1.1.0"

// defaultAckTimeout is how long a parse request may run before the client
// gets a provisional 202 instead of the real result. Kept well under common
// client-side timeouts.
const defaultAckTimeout = 10 * time.Second

// assignmentParser is the extraction pipeline as the handlers see it.
type assignmentParser interface {
	ParseAssignments(ctx context.Context, text string) (llm.ExtractionResult, error)
}

// Config is the server's environment-derived configuration.
type Config struct {
	Port           string
	AllowedOrigins []string // "*" entry allows any origin
	MaxUploadBytes int64
	APIKey         string
	PrimaryModel   string
	FallbackModel  string
}

// Server holds the request handlers' dependencies. There is no cross-request
// state: every request runs its own independent pipeline.
type Server struct {
	parser     assignmentParser
	cfg        Config
	ackTimeout time.Duration
}

func newServer(parser assignmentParser, cfg Config) *Server {
	return &Server{
		parser:     parser,
		cfg:        cfg,
		ackTimeout: defaultAckTimeout,
	}
}

// ========== Middleware ==========

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

// ========== Helpers ==========

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	jsonResp(w, code, map[string]string{"error": msg})
}
