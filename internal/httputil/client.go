// Package httputil holds the JSON response helpers shared by the HTTP
// handlers and a request-recording Doer for client tests.
package httputil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StubResponse is a canned reply returned by StubDoer.
type StubResponse struct {
	StatusCode int
	Body       string
	Err        error
}

// StubDoer records requests and replies with queued responses in order.
// Once the queue is drained it replies 200 with an empty body.
type StubDoer struct {
	mu        sync.Mutex
	requests  []*http.Request
	responses []StubResponse
}

// Reply queues a response.
func (s *StubDoer) Reply(status int, body string) *StubDoer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, StubResponse{StatusCode: status, Body: body})
	return s
}

// Fail queues a transport error.
func (s *StubDoer) Fail(err error) *StubDoer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, StubResponse{Err: err})
	return s
}

func (s *StubDoer) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	next := StubResponse{StatusCode: http.StatusOK}
	if len(s.responses) > 0 {
		next = s.responses[0]
		s.responses = s.responses[1:]
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &http.Response{
		StatusCode: next.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(next.Body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

// Requests returns the requests seen so far.
func (s *StubDoer) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*http.Request, len(s.requests))
	copy(out, s.requests)
	return out
}
