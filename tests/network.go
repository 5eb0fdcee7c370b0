package tests

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
)

// ErrOffline is returned by the mock network while it's offline
var ErrOffline = errors.New("network unreachable")

// MockResponse is a canned network response
type MockResponse struct {
	StatusCode int
	Body       string
	Header     http.Header
}

// MockNetwork is a counting http.RoundTripper. Unknown URLs answer with a 404.
// Like a real origin, it answers 304 when If-None-Match matches the ETag and
// gzips the 200 bodies when the request accepts it.
type MockNetwork struct {
	mu        sync.Mutex
	offline   bool
	responses map[string]MockResponse
	failures  map[string]bool
	gates     map[string]chan struct{}
	calls     map[string]int
	total     int
}

// NewMockNetwork returns an online network without any registered response
func NewMockNetwork() *MockNetwork {
	return &MockNetwork{
		responses: map[string]MockResponse{},
		failures:  map[string]bool{},
		gates:     map[string]chan struct{}{},
		calls:     map[string]int{},
	}
}

func normalize(u string) string {
	if i := strings.Index(u, "#"); i >= 0 {
		return u[:i]
	}

	return u
}

// Serve registers the response of the URL, headers are given as key value pairs
func (m *MockNetwork) Serve(u string, status int, body string, headers ...string) {
	h := http.Header{}
	for i := 0; i+1 < len(headers); i += 2 {
		h.Add(headers[i], headers[i+1])
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[normalize(u)] = MockResponse{StatusCode: status, Body: body, Header: h}
	delete(m.failures, normalize(u))
}

// Fail makes every request to the URL fail at the transport level
func (m *MockNetwork) Fail(u string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[normalize(u)] = true
}

// SetOffline makes every request fail at the transport level
func (m *MockNetwork) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Gate blocks the requests to the URL until the returned channel is closed
func (m *MockNetwork) Gate(u string) chan struct{} {
	gate := make(chan struct{})
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gates[normalize(u)] = gate

	return gate
}

// Calls returns the number of requests sent to the URL
func (m *MockNetwork) Calls(u string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.calls[normalize(u)]
}

// TotalCalls returns the number of requests sent
func (m *MockNetwork) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.total
}

// Client returns an http client using the mock network
func (m *MockNetwork) Client() *http.Client {
	return &http.Client{Transport: m}
}

// RoundTrip implements http.RoundTripper
func (m *MockNetwork) RoundTrip(req *http.Request) (*http.Response, error) {
	u := normalize(req.URL.String())

	m.mu.Lock()
	m.calls[u]++
	m.total++
	gate := m.gates[u]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	m.mu.Lock()
	offline, failure := m.offline, m.failures[u]
	mocked, found := m.responses[u]
	m.mu.Unlock()

	if offline || failure {
		return nil, ErrOffline
	}
	if !found {
		mocked = MockResponse{StatusCode: http.StatusNotFound, Body: "Not found"}
	}

	header := mocked.Header.Clone()
	if header == nil {
		header = http.Header{}
	}

	status, body := mocked.StatusCode, mocked.Body
	if etag := header.Get("ETag"); etag != "" && req.Header.Get("If-None-Match") == etag {
		status, body = http.StatusNotModified, ""
	} else if status == http.StatusOK && strings.Contains(req.Header.Get("Accept-Encoding"), "gzip") {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		_, _ = gz.Write([]byte(body))
		_ = gz.Close()
		body = buf.String()
		header.Set("Content-Encoding", "gzip")
		header.Add("Vary", "Accept-Encoding")
	}

	return &http.Response{
		Status:        http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
