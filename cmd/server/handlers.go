package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nmillrr/syllabug/internal/extractor"
	"github.com/nmillrr/syllabug/internal/llm"
)

// ========== Health ==========

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version,
	})
}

// ========== Text Extraction ==========

// handleExtractText accepts a multipart upload in the "syllabus" field and
// returns the document's plain text.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		jsonErr(w, "Failed to parse upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("syllabus")
	if err != nil {
		jsonErr(w, "No file uploaded — expected a 'syllabus' form field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonErr(w, "Failed to read upload: "+err.Error(), http.StatusInternalServerError)
		return
	}

	mimeType := header.Header.Get("Content-Type")
	text, err := extractor.Extract(data, mimeType, header.Filename)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedFormat) {
			jsonErr(w, "Unsupported file type — upload a PDF or DOCX", http.StatusBadRequest)
			return
		}
		jsonErr(w, "Text extraction failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResp(w, http.StatusOK, map[string]string{
		"message":  "Text extracted successfully",
		"filename": header.Filename,
		"mimeType": mimeType,
		"text":     text,
	})
}

// ========== Assignment Parsing ==========

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	Message     string               `json:"message"`
	Assignments llm.ExtractionResult `json:"assignments"`
}

// processingResponse is the provisional 202 body sent when extraction
// outlives the ack timer.
type processingResponse struct {
	Message     string `json:"message"`
	Assignments struct {
		Processing bool                   `json:"processing"`
		Items      []llm.AssignmentRecord `json:"items"`
	} `json:"assignments"`
}

type pipelineOutcome struct {
	result llm.ExtractionResult
	err    error
}

// handleParseAssignments runs the extraction pipeline for one request and
// races it against the ack timer. The response is written from exactly one
// select branch, so a request can never be answered twice: if the timer wins,
// the client gets a provisional 202 and the eventual result is only logged.
func (s *Server) handleParseAssignments(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		jsonErr(w, "Request body must be JSON with a non-empty 'text' field", http.StatusBadRequest)
		return
	}

	if s.parser == nil {
		jsonResp(w, http.StatusInternalServerError, map[string]string{
			"error": "Assignment parsing is not configured",
			"hint":  "Set OPENAI_API_KEY in the environment or .env file",
		})
		return
	}

	reqID := uuid.NewString()
	log.Printf("parse %s: starting extraction (%d chars)", reqID, len(req.Text))

	// Detached from the request context: after an early 202 the HTTP request
	// ends, but the pipeline keeps running so its outcome can be logged. The
	// 45s model timeouts inside the pipeline still bound the work.
	outcome := make(chan pipelineOutcome, 1)
	go func() {
		result, err := s.parser.ParseAssignments(context.Background(), req.Text)
		outcome <- pipelineOutcome{result: result, err: err}
	}()

	timer := time.NewTimer(s.ackTimeout)
	defer timer.Stop()

	select {
	case out := <-outcome:
		if out.err != nil {
			log.Printf("parse %s: pipeline error: %v", reqID, out.err)
			jsonResp(w, http.StatusInternalServerError, map[string]string{
				"error": "Assignment parsing failed",
				"hint":  "Try again, or re-upload the syllabus",
			})
			return
		}
		log.Printf("parse %s: completed with %d assignments", reqID, len(out.result.Items))
		jsonResp(w, http.StatusOK, parseResponse{
			Message:     "Assignments parsed successfully",
			Assignments: withFallbackRecord(out.result),
		})

	case <-timer.C:
		log.Printf("parse %s: exceeded %s, sending early 202 acknowledgment", reqID, s.ackTimeout)
		resp := processingResponse{Message: "Extraction is taking longer than expected — processing continues"}
		resp.Assignments.Processing = true
		resp.Assignments.Items = []llm.AssignmentRecord{{
			Title:       "Processing syllabus...",
			Type:        llm.TypeInfo,
			Description: "The document is still being analyzed.",
		}}
		jsonResp(w, http.StatusAccepted, resp)

		// The one permitted response is spent; log the late outcome so it is
		// at least discoverable on the server side.
		go func() {
			out := <-outcome
			if out.err != nil {
				log.Printf("parse %s: completed after 202 with error: %v", reqID, out.err)
				return
			}
			log.Printf("parse %s: completed after 202 with %d assignments (result discarded)", reqID, len(out.result.Items))
		}()
	}
}

// withFallbackRecord substitutes a single informational record when the
// pipeline found nothing, so the client always has at least one row to show.
// A UX accommodation, not a data-integrity signal.
func withFallbackRecord(result llm.ExtractionResult) llm.ExtractionResult {
	if len(result.Items) > 0 {
		return result
	}
	return llm.ExtractionResult{Items: []llm.AssignmentRecord{{
		Title:       "No assignments found",
		Type:        llm.TypeInfo,
		Description: "No assignments could be identified in this document.",
	}}}
}
