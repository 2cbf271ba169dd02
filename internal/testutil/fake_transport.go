package testutil

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

// Reply is one scripted HTTP exchange.
type Reply struct {
	Status int
	Body   string
	Err    error // when non-nil, the round trip fails with this error
}

// ScriptedTransport is an http.RoundTripper that replays a fixed sequence
// of replies. When the script runs out, the last reply repeats. Requests
// are recorded for assertions.
type ScriptedTransport struct {
	mu      sync.Mutex
	Replies []Reply
	next    int

	Requests []*http.Request
}

// Script returns a transport that replays the given replies in order.
func Script(replies ...Reply) *ScriptedTransport {
	return &ScriptedTransport{Replies: replies}
}

// RoundTrip implements http.RoundTripper.
func (t *ScriptedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.Requests = append(t.Requests, req)
	idx := t.next
	if idx >= len(t.Replies) {
		idx = len(t.Replies) - 1
	}
	t.next++
	t.mu.Unlock()

	if idx < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	r := t.Replies[idx]
	if r.Err != nil {
		return nil, r.Err
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader([]byte(r.Body))),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Calls returns how many round trips were made.
func (t *ScriptedTransport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Requests)
}
