package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/nmillrr/syllabug/internal/llm"
)

// stubParser stands in for the extraction pipeline.
type stubParser struct {
	result llm.ExtractionResult
	err    error
	delay  time.Duration
}

func (p *stubParser) ParseAssignments(ctx context.Context, text string) (llm.ExtractionResult, error) {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.result, p.err
}

func testServer(parser assignmentParser) *Server {
	return newServer(parser, Config{
		Port:           "0",
		AllowedOrigins: []string{"*"},
		MaxUploadBytes: 1 << 20,
	})
}

func postJSON(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/parse-assignments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.handleParseAssignments(w, req)
	return w
}

// ========== /health ==========

func TestHealth(t *testing.T) {
	srv := testServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want 'ok'", body["status"])
	}
	if body["version"] == "" {
		t.Error("version field should be set")
	}
}

// ========== /parse-assignments: input errors ==========

func TestParseAssignments_MissingText(t *testing.T) {
	srv := testServer(&stubParser{})
	for _, body := range []string{``, `{}`, `{"text": ""}`, `{"text": "   "}`, `not json`} {
		w := postJSON(t, srv, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestParseAssignments_ParserNotConfigured(t *testing.T) {
	srv := testServer(nil)
	w := postJSON(t, srv, `{"text": "Quiz 1 due Feb 10"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] == "" || body["hint"] == "" {
		t.Errorf("500 body should carry error and hint, got %v", body)
	}
}

// ========== /parse-assignments: completed path ==========

func TestParseAssignments_ReturnsItems(t *testing.T) {
	want := llm.AssignmentRecord{Title: "Quiz 2", Type: "quiz", DueDate: "2025-02-15", Description: "Covers chapters 4-6."}
	srv := testServer(&stubParser{result: llm.ExtractionResult{Items: []llm.AssignmentRecord{want}}})

	w := postJSON(t, srv, `{"text": "Quiz 2 due Feb 15, covers ch 4-6"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body parseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Assignments.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(body.Assignments.Items))
	}
	if body.Assignments.Items[0] != want {
		t.Errorf("item = %+v, want %+v", body.Assignments.Items[0], want)
	}
}

func TestParseAssignments_EmptyResultGetsInfoRecord(t *testing.T) {
	srv := testServer(&stubParser{result: llm.EmptyResult()})

	w := postJSON(t, srv, `{"text": "This syllabus mentions nothing gradable."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body parseResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(body.Assignments.Items) != 1 {
		t.Fatalf("expected 1 synthetic item, got %d", len(body.Assignments.Items))
	}
	got := body.Assignments.Items[0]
	if got.Type != llm.TypeInfo {
		t.Errorf("type = %q, want 'info'", got.Type)
	}
	if got.Title != "No assignments found" {
		t.Errorf("title = %q, want 'No assignments found'", got.Title)
	}
}

func TestParseAssignments_PipelineError(t *testing.T) {
	srv := testServer(&stubParser{err: context.DeadlineExceeded})
	w := postJSON(t, srv, `{"text": "Quiz 1"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

// ========== /parse-assignments: early acknowledgment ==========

func TestParseAssignments_SlowPipelineGets202(t *testing.T) {
	srv := testServer(&stubParser{
		result: llm.ExtractionResult{Items: []llm.AssignmentRecord{{Title: "Late", Type: "exam"}}},
		delay:  200 * time.Millisecond,
	})
	srv.ackTimeout = 50 * time.Millisecond

	w := postJSON(t, srv, `{"text": "long syllabus"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	var body processingResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !body.Assignments.Processing {
		t.Error("202 body should flag processing: true")
	}
	if len(body.Assignments.Items) != 1 {
		t.Fatalf("expected 1 placeholder item, got %d", len(body.Assignments.Items))
	}
	if body.Assignments.Items[0].Type != llm.TypeInfo {
		t.Errorf("placeholder type = %q, want 'info'", body.Assignments.Items[0].Type)
	}

	// The late-finishing pipeline must not touch the already-written
	// response. Give it time to complete, then check nothing was appended.
	written := w.Body.String()
	time.Sleep(300 * time.Millisecond)
	if w.Body.String() != written {
		t.Error("response body was written to after the 202")
	}
}

func TestParseAssignments_FastPipelineGets200(t *testing.T) {
	srv := testServer(&stubParser{result: llm.EmptyResult()})
	srv.ackTimeout = time.Second

	w := postJSON(t, srv, `{"text": "quick"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when pipeline beats the ack timer", w.Code)
	}
}

// ========== /extract-text ==========

func multipartUpload(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestExtractText_MissingFile(t *testing.T) {
	srv := testServer(nil)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("unrelated", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/extract-text", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.handleExtractText(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestExtractText_UnsupportedType(t *testing.T) {
	srv := testServer(nil)
	body, ctype := multipartUpload(t, "syllabus", "syllabus.txt", "text/plain", []byte("plain text syllabus"))

	req := httptest.NewRequest(http.MethodPost, "/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	srv.handleExtractText(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp["error"] == "" {
		t.Error("400 body should carry an error message")
	}
}

func TestExtractText_CorruptPDF(t *testing.T) {
	srv := testServer(nil)
	body, ctype := multipartUpload(t, "syllabus", "syllabus.pdf", "application/pdf", []byte("not a real pdf"))

	req := httptest.NewRequest(http.MethodPost, "/extract-text", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	srv.handleExtractText(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 for extraction failure", w.Code)
	}
}

// ========== CORS ==========

func TestCORS_PreflightAllowed(t *testing.T) {
	srv := testServer(nil)
	handler := srv.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight should not reach the inner handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/parse-assignments", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want '*'", got)
	}
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	srv := newServer(nil, Config{AllowedOrigins: []string{"https://app.example.com"}})
	handler := srv.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q, want no header for disallowed origin", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow-origin = %q, want the allowed origin echoed", got)
	}
}
