package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/pipeline"
)

// handleParse accepts one document as an uploaded file, a url form field or
// pasted text, queues it, and returns where to follow the job.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	job, code, err := s.jobFromRequest(r)
	if err != nil {
		jsonError(w, err.Error(), code)
		return
	}
	if err := s.pipeline.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, jobLinks(job))
}

func (s *Server) jobFromRequest(r *http.Request) (*pipeline.Job, int, error) {
	title := strings.TrimSpace(r.FormValue("title"))
	force := formBool(r.FormValue("force"))

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		job, err := s.fileJob(file, header, title)
		if err != nil {
			return nil, statusFor(err), err
		}
		job.Force = force
		return job, 0, nil
	}

	if raw := strings.TrimSpace(r.FormValue("url")); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, http.StatusBadRequest, fmt.Errorf("invalid url: %q", raw)
		}
		job := pipeline.NewJob(raw, title)
		job.SourceURL = raw
		job.Force = force
		return job, 0, nil
	}

	if text := r.FormValue("text"); strings.TrimSpace(text) != "" {
		if int64(len(text)) > s.cfg.MaxUploadBytes {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("text exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
		}
		job := pipeline.NewJob("pasted.txt", title)
		job.SetText(text)
		job.Force = force
		return job, 0, nil
	}

	return nil, http.StatusBadRequest, errors.New("one of file, url or text is required")
}

var errTooLarge = errors.New("file too large")

func statusFor(err error) int {
	if errors.Is(err, errTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (s *Server) fileJob(file multipart.File, header *multipart.FileHeader, title string) (*pipeline.Job, error) {
	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: max %d bytes", errTooLarge, s.cfg.MaxUploadBytes)
	}
	job := pipeline.NewJob(filename, title)
	job.SetFileData(data)
	return job, nil
}

// handleBatchParse queues every file of a multipart "files" field. Files that
// cannot be queued are reported per entry without failing the batch.
func (s *Server) handleBatchParse(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	force := formBool(r.FormValue("force"))

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": "failed to open file"})
			continue
		}
		job, err := s.fileJob(f, fh, "")
		f.Close()
		if err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		job.Force = force
		if err := s.pipeline.Submit(job); err != nil {
			results = append(results, map[string]any{"filename": filename, "error": err.Error()})
			continue
		}
		entry := jobLinks(job)
		entry["filename"] = filename
		results = append(results, entry)
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleParseStatus(w http.ResponseWriter, r *http.Request) {
	job := s.pipeline.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if v := r.URL.Query().Get("document"); v != "" && !formBool(v) {
		snap.Document = nil
	}
	writeJSON(w, http.StatusOK, snap)
}

func jobLinks(job *pipeline.Job) map[string]any {
	return map[string]any{
		"job_id":     job.ID,
		"status":     job.Snapshot().Status,
		"status_url": fmt.Sprintf("/api/parse/%s", job.ID),
		"events_url": fmt.Sprintf("/api/parse/%s/events", job.ID),
	}
}

func formBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
