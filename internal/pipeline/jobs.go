package pipeline

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/sse"
)

// JobStatus represents the state of a parse job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusStructuring JobStatus = "structuring"
	StatusStoring     JobStatus = "storing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial" // structured but not persisted
	StatusDupSkipped  JobStatus = "duplicate_skipped"
)

// Done reports whether the job has stopped running.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks the state of a single document parse.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	SourceURL string    `json:"source_url,omitempty"`
	Title     string    `json:"title"`
	Force     bool      `json:"force,omitempty"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	text     string
	result   *hierarchy.Document
	refs     hierarchy.RefStats
	events   []sse.Message
	seq      int64
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	Percent int      `json:"percent"`
	Message string   `json:"message,omitempty"`
	Nodes   int      `json:"nodes"`
	Chunk   int      `json:"chunk"`
	Errors  []string `json:"errors"`
}

// NewJob creates a queued job with a fresh id.
func NewJob(filename, title string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetProgress records the latest progress update.
func (j *Job) SetProgress(percent int, message string, chunk int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Percent = percent
	if message != "" {
		j.Progress.Message = message
	}
	j.Progress.Chunk = chunk
	j.UpdatedAt = time.Now()
}

// SetDocID records the stored document the job produced or matched.
func (j *Job) SetDocID(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.DocID = id
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the parsed text.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// input returns the job's source: pasted text, or file bytes.
func (j *Job) input() (text string, data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.text, j.fileData
}

// IncrNodes counts a node delivered to consumers.
func (j *Job) IncrNodes() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Nodes++
	j.UpdatedAt = time.Now()
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetText sets pasted text to structure instead of a file.
func (j *Job) SetText(text string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.text = text
}

// SetResult stores the structured document and its reference stats.
func (j *Job) SetResult(doc hierarchy.Document) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = &doc
	j.refs = hierarchy.ReferenceStats(doc.Hierarchy)
	j.UpdatedAt = time.Now()
}

// Result returns the structured document, or nil before completion.
func (j *Job) Result() *hierarchy.Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// release drops the input once the job no longer needs it.
func (j *Job) release() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
	j.text = ""
}

// AppendEvent adds an event to the job's log and returns it with its
// sequence number. data is encoded as JSON.
func (j *Job) AppendEvent(event string, data any) (sse.Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return sse.Message{}, err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seq++
	msg := sse.Message{Channel: j.ID, Seq: j.seq, Event: event, Data: raw}
	j.events = append(j.events, msg)
	j.UpdatedAt = time.Now()
	return msg, nil
}

// Events returns logged events with Seq greater than after.
func (j *Job) Events(after int64) []sse.Message {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]sse.Message, 0, len(j.events))
	for _, m := range j.events {
		if m.Seq > after {
			out = append(out, m)
		}
	}
	return out
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string              `json:"job_id"`
	DocID       string              `json:"doc_id,omitempty"`
	Status      JobStatus           `json:"status"`
	Phase       string              `json:"phase"`
	Filename    string              `json:"filename"`
	SourceURL   string              `json:"source_url,omitempty"`
	Title       string              `json:"title"`
	Progress    Progress            `json:"progress"`
	ContentHash string              `json:"content_hash,omitempty"`
	Events      int64               `json:"events"`
	References  *hierarchy.RefStats `json:"references,omitempty"`
	Document    *hierarchy.Document `json:"document,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	progress := j.Progress
	progress.Errors = errs

	snap := JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		SourceURL:   j.SourceURL,
		Title:       j.Title,
		Progress:    progress,
		ContentHash: j.ContentHash,
		Events:      j.seq,
		Document:    j.result,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.result != nil {
		refs := j.refs
		snap.References = &refs
	}
	return snap
}
