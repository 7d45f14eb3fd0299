package ocr

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"pdf_backend/logging"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap/zapcore"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewLoggerWithWriters(zapcore.ErrorLevel, nopSyncer{}, nopSyncer{}, true)
}

type nopSyncer struct{}

func (nopSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (nopSyncer) Sync() error                 { return nil }

// makePDF builds a small real PDF so result validation exercises actual
// parsing instead of magic bytes.
func makePDF(t *testing.T, text string) []byte {
	t.Helper()
	doc := fpdf.New("P", "pt", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 12)
	doc.Cell(0, 20, text)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		t.Fatalf("building test PDF: %v", err)
	}
	return buf.Bytes()
}

// backendStub simulates the OCR backend: it records the engine of each
// submission and answers per-engine, serving the searchable result under
// /result.pdf.
type backendStub struct {
	t          *testing.T
	engines    []string
	failFor    map[string]bool
	result     []byte
	urlsSeen   []string
	uploadSeen int

	server *httptest.Server
}

func newBackendStub(t *testing.T, failFor map[string]bool, result []byte) *backendStub {
	stub := &backendStub{t: t, failFor: failFor, result: result}
	stub.server = httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(stub.server.Close)
	return stub
}

func (s *backendStub) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/result.pdf" {
		w.Write(s.result)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		// URL-source submissions are form encoded.
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	engine := r.FormValue("OCREngine")
	s.engines = append(s.engines, engine)
	if submittedURL := r.FormValue("url"); submittedURL != "" {
		s.urlsSeen = append(s.urlsSeen, submittedURL)
	}
	if r.MultipartForm != nil && len(r.MultipartForm.File["file"]) > 0 {
		s.uploadSeen++
	}

	w.Header().Set("Content-Type", "application/json")
	if s.failFor[engine] {
		w.Write([]byte(`{"IsErroredOnProcessing":true,"ErrorMessage":["engine overloaded"]}`))
		return
	}
	w.Write([]byte(`{"IsErroredOnProcessing":false,"SearchablePDFURL":"` + s.server.URL + `/result.pdf"}`))
}

func newTestOrchestrator(t *testing.T, stub *backendStub, config OrchestratorConfig) *Orchestrator {
	t.Helper()
	client, err := NewBackendClient("test-api-key", stub.server.Client(), testLogger(t),
		DefaultBackendClientConfig(stub.server.URL+"/parse/image"))
	if err != nil {
		t.Fatalf("NewBackendClient failed: %v", err)
	}
	orch, err := NewOrchestrator(client, testLogger(t), config)
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	return orch
}

func TestMakeSearchable_FallbackEngine(t *testing.T) {
	searchable := makePDF(t, "searchable result")
	stub := newBackendStub(t, map[string]bool{"2": true}, searchable)
	orch := newTestOrchestrator(t, stub, DefaultOrchestratorConfig())

	input := makePDF(t, "plain input")
	result, err := orch.MakeSearchable(context.Background(), input, Request{DocumentID: "work1"})
	if err != nil {
		t.Fatalf("MakeSearchable failed: %v", err)
	}

	if !bytes.Equal(result, searchable) {
		t.Error("result does not match the backend's searchable PDF")
	}
	if len(stub.engines) != 2 {
		t.Fatalf("backend called %d times, want 2", len(stub.engines))
	}
	if stub.engines[0] != "2" || stub.engines[1] != "1" {
		t.Errorf("engine order = %v, want [2 1]", stub.engines)
	}
}

func TestMakeSearchable_PrimaryEngineSucceeds(t *testing.T) {
	searchable := makePDF(t, "searchable result")
	stub := newBackendStub(t, nil, searchable)
	orch := newTestOrchestrator(t, stub, DefaultOrchestratorConfig())

	_, err := orch.MakeSearchable(context.Background(), makePDF(t, "in"), Request{DocumentID: "work1"})
	if err != nil {
		t.Fatalf("MakeSearchable failed: %v", err)
	}
	if len(stub.engines) != 1 {
		t.Errorf("backend called %d times, want 1", len(stub.engines))
	}
	if stub.uploadSeen != 1 {
		t.Errorf("upload submissions = %d, want 1", stub.uploadSeen)
	}
}

func TestMakeSearchable_AllEnginesFail(t *testing.T) {
	stub := newBackendStub(t, map[string]bool{"2": true, "1": true}, nil)
	orch := newTestOrchestrator(t, stub, DefaultOrchestratorConfig())

	_, err := orch.MakeSearchable(context.Background(), makePDF(t, "in"), Request{DocumentID: "work1"})
	if !errors.Is(err, ErrOCRFailed) {
		t.Fatalf("error = %v, want ErrOCRFailed", err)
	}
	if len(stub.engines) != 2 {
		t.Errorf("backend called %d times, want 2", len(stub.engines))
	}
}

func TestMakeSearchable_UnusableResultFails(t *testing.T) {
	stub := newBackendStub(t, nil, []byte("<html>not a pdf</html>"))
	orch := newTestOrchestrator(t, stub, DefaultOrchestratorConfig())

	_, err := orch.MakeSearchable(context.Background(), makePDF(t, "in"), Request{DocumentID: "work1"})
	if !errors.Is(err, ErrOCRFailed) {
		t.Fatalf("error = %v, want ErrOCRFailed", err)
	}
	// Both engines consumed: an unusable download counts as a failed attempt.
	if len(stub.engines) != 2 {
		t.Errorf("backend called %d times, want 2", len(stub.engines))
	}
}

func TestMakeSearchable_URLSourceStagesAndCleans(t *testing.T) {
	searchable := makePDF(t, "searchable result")
	stub := newBackendStub(t, nil, searchable)

	publicDir := t.TempDir()
	config := DefaultOrchestratorConfig()
	config.Source = SourceURL
	config.PublicDir = publicDir
	config.PublicBaseURL = "https://repository.example.org/ocr_staging"
	orch := newTestOrchestrator(t, stub, config)

	_, err := orch.MakeSearchable(context.Background(), makePDF(t, "in"), Request{DocumentID: "work1"})
	if err != nil {
		t.Fatalf("MakeSearchable failed: %v", err)
	}

	if len(stub.urlsSeen) != 1 || stub.urlsSeen[0] != "https://repository.example.org/ocr_staging/work1.pdf" {
		t.Errorf("submitted URLs = %v, want the staged public URL", stub.urlsSeen)
	}
	if _, err := os.Stat(filepath.Join(publicDir, "work1.pdf")); !os.IsNotExist(err) {
		t.Error("staged public copy was not removed after OCR")
	}
}

func TestMakeSearchable_EngineOverride(t *testing.T) {
	searchable := makePDF(t, "searchable result")
	stub := newBackendStub(t, nil, searchable)
	orch := newTestOrchestrator(t, stub, DefaultOrchestratorConfig())

	_, err := orch.MakeSearchable(context.Background(), makePDF(t, "in"), Request{
		DocumentID: "work1",
		Engines:    []string{"3"},
	})
	if err != nil {
		t.Fatalf("MakeSearchable failed: %v", err)
	}
	if len(stub.engines) != 1 || stub.engines[0] != "3" {
		t.Errorf("engines = %v, want [3]", stub.engines)
	}
}

func TestMakeSearchable_InvalidLanguage(t *testing.T) {
	stub := newBackendStub(t, nil, nil)
	orch := newTestOrchestrator(t, stub, DefaultOrchestratorConfig())

	_, err := orch.MakeSearchable(context.Background(), makePDF(t, "in"), Request{
		DocumentID: "work1",
		Language:   "ENGLISH!",
	})
	if !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("error = %v, want ErrInvalidLanguage", err)
	}
	if len(stub.engines) != 0 {
		t.Error("backend should not be called for an invalid language")
	}
}
