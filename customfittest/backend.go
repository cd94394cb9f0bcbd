// Package customfittest provides a scriptable fake HTTP backend for
// exercising the client against the settings/user-configs/events/summaries
// endpoints without a real server: an http.Handler wrapped in
// httptest.NewServer.
package customfittest

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Backend is an http.Handler serving the four wire endpoints this SDK
// talks to: settings (HEAD/GET), user configs (POST), events (POST),
// summaries (POST). Each endpoint's response is scriptable via the
// corresponding Set* method, and every request it receives is recorded for
// assertions.
type Backend struct {
	mu sync.Mutex

	settingsBody         []byte
	settingsLastModified string
	settingsETag         string

	userConfigsBody []byte
	userConfigsETag string

	receivedEvents    [][]byte
	receivedSummaries [][]byte

	failNextN int
}

// SetSettings configures the body and validators returned by the settings
// HEAD/GET endpoints.
func (b *Backend) SetSettings(body []byte, lastModified, etag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settingsBody = body
	b.settingsLastModified = lastModified
	b.settingsETag = etag
}

// SetUserConfigs configures the ConfigMap JSON body and ETag returned by
// the user-configs endpoint.
func (b *Backend) SetUserConfigs(body []byte, etag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.userConfigsBody = body
	b.userConfigsETag = etag
}

// FailNext makes the next n requests (of any kind) return a 500, useful
// for exercising the retry/circuit-breaker layer.
func (b *Backend) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNextN = n
}

func (b *Backend) consumeFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNextN > 0 {
		b.failNextN--
		return true
	}
	return false
}

func (b *Backend) ReceivedEvents() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte{}, b.receivedEvents...)
}

func (b *Backend) ReceivedSummaries() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]byte{}, b.receivedSummaries...)
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.consumeFailure() {
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "cf-sdk-settings.json"):
		b.serveSettings(w, r)
	case strings.Contains(r.URL.Path, "/v1/users/configs"):
		b.serveUserConfigs(w, r)
	case strings.Contains(r.URL.Path, "/v1/cfe"):
		b.serveEvents(w, r)
	case strings.Contains(r.URL.Path, "/v1/summaries"):
		b.serveSummaries(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (b *Backend) serveSettings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	body, lastModified, etag := b.settingsBody, b.settingsLastModified, b.settingsETag
	b.mu.Unlock()

	if etag != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Last-Modified", lastModified)
	w.Header().Set("Etag", etag)
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (b *Backend) serveUserConfigs(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	body, etag := b.userConfigsBody, b.userConfigsETag
	b.mu.Unlock()

	if etag != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Etag", etag)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func (b *Backend) serveEvents(w http.ResponseWriter, r *http.Request) {
	data, _ := readBody(r)
	b.mu.Lock()
	b.receivedEvents = append(b.receivedEvents, data)
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (b *Backend) serveSummaries(w http.ResponseWriter, r *http.Request) {
	data, _ := readBody(r)
	b.mu.Lock()
	b.receivedSummaries = append(b.receivedSummaries, data)
	b.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

// MarshalConfigMap is a small convenience used by tests building
// SetUserConfigs/SetSettings payloads without importing encoding/json
// themselves.
func MarshalConfigMap(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
