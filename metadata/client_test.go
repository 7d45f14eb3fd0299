package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// indexHandler returns a handler serving a canned index response for any id.
func indexHandler(docsJSON string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"response":{"numFound":1,"docs":[%s]}}`, docsJSON)
	}
}

func TestClientLookup_MapsFields(t *testing.T) {
	server := httptest.NewServer(indexHandler(`{
		"id": "work1",
		"title_tesim": ["The Book of Hours"],
		"identifier_tesim": ["IE TCD MS 1"],
		"doi_tesim": ["10.1000/example"],
		"date_created_tesim": ["1450"],
		"creator_tesim": ["Scribe A", "Scribe B"],
		"contributor_tesim": ["Illuminator C"],
		"folder_number_tesim": ["MS1234"],
		"file_set_ids_ssim": ["fs1", "fs2"],
		"label_ssi": ""
	}`))
	defer server.Close()

	client, err := NewClient(server.Client(), testLogger(t), DefaultClientConfig(server.URL))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	doc, err := client.Lookup(context.Background(), "work1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if doc.ID != "work1" {
		t.Errorf("ID = %q, want %q", doc.ID, "work1")
	}
	if len(doc.Titles) != 1 || doc.Titles[0] != "The Book of Hours" {
		t.Errorf("Titles = %v", doc.Titles)
	}
	if len(doc.Creators) != 2 {
		t.Errorf("Creators = %v, want 2 entries", doc.Creators)
	}
	if doc.FolderNumbers[0] != "MS1234" {
		t.Errorf("FolderNumbers = %v", doc.FolderNumbers)
	}
	if len(doc.FileSetIDs) != 2 {
		t.Errorf("FileSetIDs = %v, want 2 entries", doc.FileSetIDs)
	}
}

func TestClientLookup_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":{"numFound":0,"docs":[]}}`)
	}))
	defer server.Close()

	client, _ := NewClient(server.Client(), testLogger(t), DefaultClientConfig(server.URL))

	_, err := client.Lookup(context.Background(), "missing1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup error = %v, want ErrNotFound", err)
	}
}

func TestClientLookup_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewClient(server.Client(), testLogger(t), DefaultClientConfig(server.URL))

	if _, err := client.Lookup(context.Background(), "work1"); err == nil {
		t.Error("Lookup should fail on server error")
	}
}

func TestClientLookup_RejectsInvalidID(t *testing.T) {
	client, _ := NewClient(&http.Client{}, testLogger(t), DefaultClientConfig("http://example.invalid"))

	if _, err := client.Lookup(context.Background(), "id with spaces"); !errors.Is(err, ErrInvalidDocumentID) {
		t.Errorf("Lookup error = %v, want ErrInvalidDocumentID", err)
	}
}

func TestNewClient_Validation(t *testing.T) {
	logger := testLogger(t)

	tests := []struct {
		name       string
		httpClient *http.Client
		baseURL    string
		wantErr    error
	}{
		{name: "nil http client", httpClient: nil, baseURL: "http://x", wantErr: ErrNilClient},
		{name: "empty base url", httpClient: &http.Client{}, baseURL: "", wantErr: ErrEmptyBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.httpClient, logger, DefaultClientConfig(tt.baseURL))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewClient error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := NewClient(&http.Client{}, nil, DefaultClientConfig("http://x")); !errors.Is(err, ErrNilLogger) {
		t.Errorf("NewClient with nil logger = %v, want ErrNilLogger", err)
	}
}
