package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/docstore"
	"github.com/dgallion1/docstruct/internal/llm"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/sse"
	"github.com/dgallion1/docstruct/internal/stream"
)

const (
	testKey = "secret"

	actResponse = `{"metadata":{"title":"Data Act","jurisdiction":"EU","document_type":"regulation","source":"OJ"},` +
		`"hierarchy":[{"id":"art1","type":"article","number":"1","title":"Scope","text":"This Act applies.","level":1,` +
		`"references":[],"children":[]}]}`

	actText = "Article 1 Scope\nThis Act applies."
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:         testKey,
		WorkerCount:    1,
		MaxQueueSize:   10,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
	}

	hub := sse.NewHub(log)
	bus := sse.NewLocalBus()
	require.NoError(t, bus.StartForwarder(context.Background(), hub.Broadcast))

	stats := llm.NewLLMStats(time.Hour)
	client := llm.Timed(llm.NewReplay(32, actResponse), stats)
	m := metrics.New()

	p := pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Structurer: stream.New(client, stream.DefaultConfig(), log, m),
		Store:      docstore.NewMemoryStore(),
		Bus:        bus,
		Metrics:    m,
	}, log)
	p.Start(context.Background())
	t.Cleanup(p.Stop)

	return NewServer(cfg, Deps{
		Pipeline: p,
		Hub:      hub,
		Model:    client.Model(),
		Stats:    stats,
		Metrics:  m,
	}, log)
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get("Authorization") == "" && !strings.Contains(req.URL.RawQuery, "access_token") {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, s, req)
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// waitDone polls the job status endpoint until the job finishes.
func waitDone(t *testing.T, s *Server, jobID string) map[string]any {
	t.Helper()
	var snap map[string]any
	require.Eventually(t, func() bool {
		w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/parse/"+jobID, nil))
		if w.Code != http.StatusOK {
			return false
		}
		snap = decodeBody(t, w)
		return pipeline.JobStatus(snap["status"].(string)).Done()
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeBody(t, w)["status"])
}

func TestMetrics_Exposed(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docstruct_pipeline_queue_depth")
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", "", http.StatusUnauthorized},
		{"bearer", "Bearer " + testKey, "", http.StatusOK},
		{"query token", "", "?access_token=" + testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			s.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestParse_TextLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := postForm(t, s, "/api/parse", url.Values{"text": {actText}, "title": {"Data Act"}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decodeBody(t, w)
	jobID := body["job_id"].(string)
	assert.Equal(t, "/api/parse/"+jobID+"/events", body["events_url"])

	snap := waitDone(t, s, jobID)
	require.Equal(t, string(pipeline.StatusCompleted), snap["status"], snap)
	assert.NotNil(t, snap["document"])
	docID := snap["doc_id"].(string)
	require.NotEmpty(t, docID)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/parse/"+jobID+"?document=false", nil))
	assert.Nil(t, decodeBody(t, w)["document"])

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, w.Code)
	docs := decodeBody(t, w)["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, docID, docs[0].(map[string]any)["id"])

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Data Act")

	w = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/"+docID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/documents/"+docID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParse_EventsReplayAfterCompletion(t *testing.T) {
	s := newTestServer(t)

	w := postForm(t, s, "/api/parse", url.Values{"text": {actText}})
	require.Equal(t, http.StatusAccepted, w.Code)
	jobID := decodeBody(t, w)["job_id"].(string)
	waitDone(t, s, jobID)

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/parse/"+jobID+"/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	out := w.Body.String()
	assert.Contains(t, out, "id: 1\n")
	assert.Contains(t, out, "event: node\n")
	assert.Contains(t, out, "event: complete\n")

	// Resuming after the last event id only replays what follows it.
	req := httptest.NewRequest(http.MethodGet, "/api/parse/"+jobID+"/events?access_token="+testKey, nil)
	req.Header.Set("Last-Event-ID", "1")
	w = do(t, s, req)
	assert.NotContains(t, w.Body.String(), "id: 1\n")
	assert.Contains(t, w.Body.String(), "event: complete\n")
}

func TestParse_Upload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "../../act.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(actText))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("force", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(t, s, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	snap := waitDone(t, s, decodeBody(t, w)["job_id"].(string))
	assert.Equal(t, "act.txt", snap["filename"])
	assert.Equal(t, string(pipeline.StatusCompleted), snap["status"])
}

func TestParse_BadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		form url.Values
		want int
	}{
		{"nothing", url.Values{}, http.StatusBadRequest},
		{"blank text", url.Values{"text": {"   "}}, http.StatusBadRequest},
		{"ftp url", url.Values{"url": {"ftp://example.com/a.pdf"}}, http.StatusBadRequest},
		{"relative url", url.Values{"url": {"/a.pdf"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postForm(t, s, "/api/parse", tt.form)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, decodeBody(t, w)["error"])
		})
	}
}

func TestParse_UnsupportedUpload(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "image.png")
	require.NoError(t, err)
	fw.Write([]byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], ".png")
}

func TestBatchParse(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.exe"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		fw.Write([]byte(actText))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/parse/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := do(t, s, req)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	jobs := decodeBody(t, w)["jobs"].([]any)
	require.Len(t, jobs, 2)
	first := jobs[0].(map[string]any)
	assert.NotEmpty(t, first["job_id"])
	second := jobs[1].(map[string]any)
	assert.Contains(t, second["error"], "unsupported")
	waitDone(t, s, first["job_id"].(string))
}

func TestParseStatus_UnknownJob(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/parse/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/parse/nope/events", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListDocuments_BadLimit(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents?limit=-3", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMStats(t *testing.T) {
	s := newTestServer(t)

	w := postForm(t, s, "/api/parse", url.Values{"text": {actText}})
	require.Equal(t, http.StatusAccepted, w.Code)
	waitDone(t, s, decodeBody(t, w)["job_id"].(string))

	w = do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "replay", body["model"])
	assert.NotNil(t, body["stats"])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\docs\act.docx`, "act.docx"},
		{"", "unnamed"},
		{"a..b.txt", "a_b.txt"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}
