// Package upstreamtest provides a fake chat-completion endpoint for tests.
package upstreamtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// Response defines what the fake endpoint answers.
type Response struct {
	StatusCode int
	Body       string
	Delay      time.Duration
	Headers    map[string]string
}

// Request is a captured inbound call.
type Request struct {
	Method        string
	Path          string
	Authorization string
	ContentType   string
	Body          []byte
}

// Server is a fake upstream that records every request it receives.
type Server struct {
	server *httptest.Server

	mu       sync.Mutex
	response Response
	requests []Request
}

// NewServer starts a fake upstream answering 200 with an empty completion.
func NewServer() *Server {
	s := &Server{
		response: Response{
			StatusCode: http.StatusOK,
			Body:       `{"choices":[]}`,
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handler))
	return s
}

// URL returns the chat completions endpoint URL of the fake.
func (s *Server) URL() string {
	return s.server.URL + "/v1/chat/completions"
}

// Close shuts the fake down.
func (s *Server) Close() {
	s.server.Close()
}

// SetResponse replaces the canned response.
func (s *Server) SetResponse(r Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}
	s.response = r
}

// Requests returns a copy of the captured requests.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// RequestCount returns the number of requests received.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

// LastRequest returns the most recent request, or false if none arrived.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

func (s *Server) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          body,
	})
	resp := s.response
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
