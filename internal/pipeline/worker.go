package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docstruct/internal/docstore"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/sse"
	"github.com/dgallion1/docstruct/internal/stream"
)

// Worker processes a single document job.
type Worker struct {
	structurer *stream.Orchestrator
	store      docstore.Store
	bus        sse.Bus
	fetcher    *parser.Fetcher
	metrics    *metrics.Metrics
	opts       parser.Options
	log        *slog.Logger
}

func NewWorker(deps Deps, opts parser.Options, log *slog.Logger) *Worker {
	return &Worker{
		structurer: deps.Structurer,
		store:      deps.Store,
		bus:        deps.Bus,
		fetcher:    deps.Fetcher,
		metrics:    deps.Metrics,
		opts:       opts,
		log:        log,
	}
}

// eventPayload is the data of one job event.
type eventPayload struct {
	stream.Update
	JobID     string `json:"job_id"`
	DocID     string `json:"doc_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// Process runs the full parse pipeline for a job. Every job ends with
// exactly one terminal event: complete or error.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	start := time.Now()
	status := w.run(ctx, job, log)
	job.release()
	w.metrics.JobFinished(string(status))
	log.Info("job finished", "status", status, "duration_ms", time.Since(start).Milliseconds())
}

func (w *Worker) run(ctx context.Context, job *Job, log *slog.Logger) JobStatus {
	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	tree, err := w.parse(ctx, job)
	if err != nil {
		return w.fail(ctx, job, log, "parsing", fmt.Errorf("parse: %w", err))
	}
	if job.Title != "" {
		tree.Title = job.Title
	}
	text := tree.Text()
	if strings.TrimSpace(text) == "" {
		return w.fail(ctx, job, log, "parsing", errors.New("no extractable content"))
	}
	hash := docstore.ContentHashHex([]byte(text))
	job.SetContentHash(hash)
	log.Info("document parsed", "title", tree.Title, "chars", len(text))

	// Phase 1.5: Dedup check
	if !job.Force {
		existing, ok, err := w.store.FindByHash(ctx, hash)
		switch {
		case err != nil:
			log.Warn("dedup check failed, proceeding", "error", err)
		case ok:
			return w.duplicate(ctx, job, log, existing)
		}
	}

	// Phase 2: Structure
	job.SetStatus(StatusStructuring, "structuring")
	var terminal stream.Update
	err = w.structurer.ProcessDocument(ctx, tree.Title, text, func(u stream.Update) {
		switch u.Kind {
		case stream.KindProgress:
			job.SetProgress(u.Percent, u.Message, u.Chunk)
		case stream.KindNode:
			job.IncrNodes()
		}
		if u.Terminal() {
			// Held back until the document is stored.
			terminal = u
			return
		}
		w.publish(ctx, job, log, eventPayload{Update: u})
	})
	if err != nil {
		return w.fail(ctx, job, log, "structuring", err)
	}
	if terminal.Document == nil {
		return w.fail(ctx, job, log, "structuring", errors.New("structuring ended without a document"))
	}
	doc := *terminal.Document
	job.SetResult(doc)

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	docID := uuid.NewString()
	status := StatusCompleted
	rec := docstore.NewRecord(docID, job.Filename, hash, doc, time.Now())
	if err := w.store.Save(context.WithoutCancel(ctx), rec); err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		status, docID = StatusPartial, ""
	} else {
		job.SetDocID(docID)
	}

	job.SetStatus(status, "done")
	w.publish(ctx, job, log, eventPayload{Update: terminal, DocID: docID})
	return status
}

func (w *Worker) parse(ctx context.Context, job *Job) (*doctree.DocTree, error) {
	if job.SourceURL != "" {
		return w.fetcher.Fetch(ctx, job.SourceURL)
	}
	text, data := job.input()
	if text != "" {
		name := job.Filename
		if name == "" {
			name = "pasted.txt"
		}
		return (&parser.TextParser{}).Parse(strings.NewReader(text), name)
	}
	return parser.ParseBytes(data, job.Filename, w.opts)
}

// duplicate ends a job whose text was already structured, replaying the
// stored document as the result.
func (w *Worker) duplicate(ctx context.Context, job *Job, log *slog.Logger, docID string) JobStatus {
	log.Info("duplicate document, skipping", "existing_doc_id", docID)
	job.SetDocID(docID)

	u := stream.Update{Kind: stream.KindComplete, Percent: 100}
	if rec, err := w.store.Get(ctx, docID); err != nil {
		log.Warn("load duplicate failed", "doc_id", docID, "error", err)
	} else {
		job.SetResult(rec.Document)
		u.Document = &rec.Document
	}

	job.SetProgress(100, "Already structured", 0)
	job.SetStatus(StatusDupSkipped, "dedup")
	w.publish(ctx, job, log, eventPayload{Update: u, DocID: docID, Duplicate: true})
	return StatusDupSkipped
}

func (w *Worker) fail(ctx context.Context, job *Job, log *slog.Logger, phase string, err error) JobStatus {
	log.Error("job failed", "phase", phase, "error", err)
	job.AddError(err.Error())
	job.SetStatus(StatusFailed, phase)
	w.publish(ctx, job, log, eventPayload{Update: stream.Update{Kind: stream.KindError, Message: err.Error()}})
	return StatusFailed
}

// publish logs the event on the job for replay and sends it to live
// subscribers. A cancelled job still delivers its terminal event.
func (w *Worker) publish(ctx context.Context, job *Job, log *slog.Logger, p eventPayload) {
	p.JobID = job.ID
	msg, err := job.AppendEvent(string(p.Kind), p)
	if err != nil {
		log.Error("encode event failed", "event", p.Kind, "error", err)
		return
	}
	if err := w.bus.Publish(context.WithoutCancel(ctx), msg); err != nil {
		log.Warn("publish event failed", "event", p.Kind, "seq", msg.Seq, "error", err)
	}
}
