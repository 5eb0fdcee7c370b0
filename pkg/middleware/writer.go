package middleware

import (
	"net/http"
	"sync"
)

func newStatusWriter(rw http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: rw}
}

// statusWriter keeps the status code sent to the client
type statusWriter struct {
	http.ResponseWriter
	mutex      sync.Mutex
	statusCode int
}

// WriteHeader will write the response headers
func (w *statusWriter) WriteHeader(code int) {
	w.mutex.Lock()
	if w.statusCode == 0 {
		w.statusCode = code
	}
	w.mutex.Unlock()
	w.ResponseWriter.WriteHeader(code)
}

// Write will write the response body
func (w *statusWriter) Write(b []byte) (int, error) {
	w.mutex.Lock()
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	w.mutex.Unlock()

	return w.ResponseWriter.Write(b)
}

// StatusCode returns the sent status code, 0 when nothing was sent
func (w *statusWriter) StatusCode() int {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	return w.statusCode
}

// Flush sends the buffered data to the client if supported
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
