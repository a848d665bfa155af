// analysis_server.go - Fake analysis service for tests
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// ReceivedUpload is one request seen by an AnalysisServer.
type ReceivedUpload struct {
	FieldName   string
	Filename    string
	ContentType string
	Body        []byte
}

// AnalysisServer mimics the remote analysis endpoint.
type AnalysisServer struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	body     string
	received []ReceivedUpload

	// Gate, when non-nil, blocks every response until it is closed or
	// receives a value.
	Gate chan struct{}
}

// NewAnalysisServer starts a server that answers every upload with status
// and body. It is closed when the test ends.
func NewAnalysisServer(t testing.TB, status int, body string) *AnalysisServer {
	t.Helper()

	s := &AnalysisServer{status: status, body: body}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.Release()
		s.Server.Close()
	})
	return s
}

// NewAnalysisServerJSON is NewAnalysisServer with a JSON-encoded body.
func NewAnalysisServerJSON(t testing.TB, status int, body any) *AnalysisServer {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal fake response: %v", err)
	}
	return NewAnalysisServer(t, status, string(data))
}

// Endpoint returns the upload URL.
func (s *AnalysisServer) Endpoint() string {
	return s.URL + "/upload"
}

// Hold makes subsequent responses wait until Release is called.
func (s *AnalysisServer) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gate = make(chan struct{})
}

// Release unblocks held responses.
func (s *AnalysisServer) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Gate != nil {
		close(s.Gate)
		s.Gate = nil
	}
}

// Respond changes the canned response.
func (s *AnalysisServer) Respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

// Received returns a copy of the uploads seen so far.
func (s *AnalysisServer) Received() []ReceivedUpload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReceivedUpload, len(s.received))
	copy(out, s.received)
	return out
}

func (s *AnalysisServer) handle(w http.ResponseWriter, r *http.Request) {
	var rec ReceivedUpload
	if err := r.ParseMultipartForm(32 << 20); err == nil && r.MultipartForm != nil {
		for field, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			rec.FieldName = field
			rec.Filename = headers[0].Filename
			rec.ContentType = headers[0].Header.Get("Content-Type")
			if f, err := headers[0].Open(); err == nil {
				rec.Body, _ = io.ReadAll(f)
				f.Close()
			}
		}
	}

	s.mu.Lock()
	s.received = append(s.received, rec)
	gate := s.Gate
	status, body := s.status, s.body
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}
