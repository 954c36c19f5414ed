package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/nmillrr/syllabug/internal/llm"
)

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()

	var parser assignmentParser
	if cfg.APIKey != "" {
		invoker := llm.NewInvoker(cfg.APIKey, cfg.PrimaryModel, cfg.FallbackModel)
		parser = llm.NewPipeline(invoker)
	} else {
		log.Printf("WARNING: OPENAI_API_KEY not set — /parse-assignments will return errors")
	}

	srv := newServer(parser, cfg)

	r := mux.NewRouter()
	r.HandleFunc("/health", srv.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/extract-text", srv.handleExtractText).Methods(http.MethodPost)
	r.HandleFunc("/parse-assignments", srv.handleParseAssignments).Methods(http.MethodPost)

	log.Printf("syllabug server v%s starting on http://localhost:%s", version, cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, srv.corsMiddleware(r)); err != nil {
		log.Fatal(err)
	}
}

func loadConfig() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	origins := []string{"*"}
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		origins = nil
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	maxUploadMB := int64(10)
	if raw := os.Getenv("MAX_UPLOAD_MB"); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil && n > 0 {
			maxUploadMB = n
		} else {
			log.Printf("Warning: ignoring invalid MAX_UPLOAD_MB=%q", raw)
		}
	}

	return Config{
		Port:           port,
		AllowedOrigins: origins,
		MaxUploadBytes: maxUploadMB << 20,
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		PrimaryModel:   os.Getenv("PRIMARY_MODEL"),
		FallbackModel:  os.Getenv("FALLBACK_MODEL"),
	}
}
