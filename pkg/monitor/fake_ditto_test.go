package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeDitto is an in-memory stand-in for the twin service API.
type fakeDitto struct {
	mu       sync.Mutex
	things   map[string]json.RawMessage
	policies map[string]json.RawMessage
	writes   []int // status codes of PUTs, in order
	srv      *httptest.Server
}

func newFakeDitto(t *testing.T) *fakeDitto {
	t.Helper()
	f := &fakeDitto{things: map[string]json.RawMessage{}, policies: map[string]json.RawMessage{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /api/2/policies/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.create(w, r, f.policies, "policyId")
	})
	mux.HandleFunc("PUT /api/2/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.create(w, r, f.things, "thingId")
	})
	mux.HandleFunc("GET /api/2/things/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.things[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(body)
	})
	mux.HandleFunc("GET /api/2/things/{id}/features/{feature}/properties", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.things[r.PathValue("id")]
		f.mu.Unlock()
		var thing struct {
			Features map[string]struct {
				Properties json.RawMessage `json:"properties"`
			} `json:"features"`
		}
		if ok {
			_ = json.Unmarshal(body, &thing)
		}
		feat, ok := thing.Features[r.PathValue("feature")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(feat.Properties)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// create stores the body under its id, stamping the id field the way the
// service does.
func (f *fakeDitto) create(w http.ResponseWriter, r *http.Request, into map[string]json.RawMessage, idField string) {
	id := r.PathValue("id")
	var doc map[string]any
	raw, _ := io.ReadAll(r.Body)
	if err := json.Unmarshal(raw, &doc); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	doc[idField] = id
	body, _ := json.Marshal(doc)

	f.mu.Lock()
	defer f.mu.Unlock()
	code := http.StatusCreated
	if _, exists := into[id]; exists {
		code = http.StatusNoContent
		if r.Header.Get("If-None-Match") == "*" {
			code = http.StatusPreconditionFailed
		}
	}
	if code != http.StatusPreconditionFailed {
		into[id] = body
	}
	f.writes = append(f.writes, code)
	w.WriteHeader(code)
}

func (f *fakeDitto) putThing(id string, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.things[id] = json.RawMessage(body)
}

func (f *fakeDitto) writeCodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.writes...)
}
