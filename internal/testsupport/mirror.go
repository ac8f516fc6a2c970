package testsupport

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// MirrorServer serves one file with byte-range support.
type MirrorServer struct {
	*httptest.Server

	content []byte

	mu        sync.Mutex
	corrupt   bool
	noRanges  bool
	status    int
	delay     time.Duration
	requests  atomic.Int64
	rangeReqs atomic.Int64
}

// NewMirrorServer starts a mirror serving content at every path.
func NewMirrorServer(t testing.TB, content []byte) *MirrorServer {
	t.Helper()

	m := &MirrorServer{content: content}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// FileURL returns a download URL for name on this mirror.
func (m *MirrorServer) FileURL(name string) string {
	return m.URL + "/files/" + name
}

// SetCorrupt serves content of the right length with one flipped byte.
func (m *MirrorServer) SetCorrupt(v bool) {
	m.mu.Lock()
	m.corrupt = v
	m.mu.Unlock()
}

// SetNoRanges ignores Range headers and always serves the full body.
func (m *MirrorServer) SetNoRanges(v bool) {
	m.mu.Lock()
	m.noRanges = v
	m.mu.Unlock()
}

// SetStatus forces every response to status; 0 restores normal service.
func (m *MirrorServer) SetStatus(code int) {
	m.mu.Lock()
	m.status = code
	m.mu.Unlock()
}

// SetDelay holds every response for d before writing.
func (m *MirrorServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// Requests reports the number of requests served.
func (m *MirrorServer) Requests() int64 { return m.requests.Load() }

// RangeRequests reports the number of requests carrying a Range header.
func (m *MirrorServer) RangeRequests() int64 { return m.rangeReqs.Load() }

func (m *MirrorServer) serve(w http.ResponseWriter, r *http.Request) {
	m.requests.Add(1)
	if r.Header.Get("Range") != "" {
		m.rangeReqs.Add(1)
	}
	m.mu.Lock()
	corrupt, noRanges, status, delay := m.corrupt, m.noRanges, m.status, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return
	}

	body := m.content
	if corrupt && len(body) > 0 {
		body = bytes.Clone(body)
		body[len(body)-1] ^= 0xFF
	}
	if noRanges {
		r.Header.Del("Range")
		w.Header().Set("Accept-Ranges", "none")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
		return
	}
	http.ServeContent(w, r, "file", time.Time{}, bytes.NewReader(body))
}

// DeadURL returns a URL on a port that refuses connections.
func DeadURL(t testing.TB) string {
	t.Helper()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/files/dead.zip"
	server.Close()
	return url
}
