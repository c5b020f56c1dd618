// Package pathstoretest provides an in-memory pathstore server for tests.
package pathstoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docstruct/internal/pathstore"
)

// Server is a fake pathstore. Listed keys are reported with '.' separators
// the way the real service normalizes paths.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	nodes map[string]json.RawMessage
	links []pathstore.LinkRequest
}

func NewServer() *Server {
	s := &Server{nodes: make(map[string]json.RawMessage)}
	r := chi.NewRouter()
	r.Put("/kv/*", s.put)
	r.Get("/kv/*", s.get)
	r.Delete("/kv/*", s.delete)
	r.Put("/links", s.putLink)
	s.Server = httptest.NewServer(r)
	return s
}

// Keys returns all stored keys, sorted.
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.nodes))
	for k := range s.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the raw value stored at key.
func (s *Server) Value(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nodes[key]
	return v, ok
}

// Links returns the links written so far.
func (s *Server) Links() []pathstore.LinkRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pathstore.LinkRequest(nil), s.links...)
}

func (s *Server) put(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.nodes[chi.URLParam(r, "*")] = req.Value
	s.mu.Unlock()
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if prefix, ok := strings.CutSuffix(key, "/*"); ok {
		s.list(w, r, prefix)
		return
	}
	s.mu.Lock()
	v, ok := s.nodes[key]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, pathstore.NodeResponse{Key: key, Value: v})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, prefix string) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var out []pathstore.ListChildrenResponse
	for _, k := range s.Keys() {
		if !strings.HasPrefix(k, prefix+"/") {
			continue
		}
		v, _ := s.Value(k)
		out = append(out, pathstore.ListChildrenResponse{Key: strings.ReplaceAll(k, "/", "."), Value: v})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeJSON(w, map[string]any{"nodes": out})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	children := r.URL.Query().Get("children") == "true"
	s.mu.Lock()
	defer s.mu.Unlock()
	_, found := s.nodes[key]
	delete(s.nodes, key)
	if children {
		for k := range s.nodes {
			if strings.HasPrefix(k, key+"/") {
				delete(s.nodes, k)
				found = true
			}
		}
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) putLink(w http.ResponseWriter, r *http.Request) {
	var req pathstore.LinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.links = append(s.links, req)
	s.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
