// Package stream drives model streams for a document and turns their
// output into one ordered sequence of updates: metadata, nodes, progress,
// and a single terminal result.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/extract"
	"github.com/dgallion1/docstruct/internal/hierarchy"
	"github.com/dgallion1/docstruct/internal/llm"
	"github.com/dgallion1/docstruct/internal/metrics"
)

// Config controls how a document is sent to the model.
type Config struct {
	MaxTokens        int // above this estimate the document is chunked
	Chunking         chunker.Config
	Progress         Progress
	ChunkConcurrency int // chunk streams in flight; 1 is strictly sequential
	ResponseTokens   int // max_tokens for each model call
}

func DefaultConfig() Config {
	return Config{
		MaxTokens:        chunker.DefaultMaxTokens,
		Chunking:         chunker.DefaultConfig(),
		Progress:         DefaultProgress,
		ChunkConcurrency: 1,
		ResponseTokens:   llm.DefaultMaxTokens,
	}
}

// Orchestrator structures documents with a model client. It holds no
// per-document state and is safe for concurrent use.
type Orchestrator struct {
	client  llm.Client
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
}

func New(client llm.Client, cfg Config, log *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = chunker.DefaultMaxTokens
	}
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = 1
	}
	if cfg.ResponseTokens <= 0 {
		cfg.ResponseTokens = llm.DefaultMaxTokens
	}
	cfg.Progress = cfg.Progress.normalized()
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{client: client, cfg: cfg, log: log, metrics: m}
}

// Process structures rawText, calling emit for every update. The last call
// to emit carries the terminal update; the returned error is the one it
// carries, if any.
func (o *Orchestrator) Process(ctx context.Context, rawText string, emit func(Update)) error {
	return o.ProcessDocument(ctx, "", rawText, emit)
}

// ProcessDocument is Process with a document title for the prompt.
func (o *Orchestrator) ProcessDocument(ctx context.Context, title, rawText string, emit func(Update)) error {
	r := &run{
		o:       o,
		title:   title,
		emit:    emit,
		emitted: make(map[string]bool),
		percent: -1,
		log:     o.log.With("chars", len(rawText)),
	}

	if !chunker.ExceedsLimit(rawText, o.cfg.MaxTokens) {
		return r.single(ctx, rawText)
	}

	chunks, err := chunker.NewSplitter(o.cfg.Chunking).Split(rawText)
	if err != nil {
		o.metrics.StreamError("chunking")
		return r.fail(err)
	}
	r.log = r.log.With("chunks", len(chunks))
	r.log.Info("document split for model", "concurrency", o.cfg.ChunkConcurrency)

	if o.cfg.ChunkConcurrency > 1 && len(chunks) > 1 {
		return r.concurrent(ctx, chunks)
	}
	return r.sequential(ctx, chunks)
}

// Stream runs Process in a goroutine and delivers updates on the returned
// channel, which is closed after the terminal update. The caller must drain
// the channel or cancel ctx; otherwise the goroutine blocks on send.
func (o *Orchestrator) Stream(ctx context.Context, rawText string) <-chan Update {
	return o.StreamDocument(ctx, "", rawText)
}

// StreamDocument is Stream with a document title. The same draining rule
// applies: read until the channel closes or cancel ctx.
func (o *Orchestrator) StreamDocument(ctx context.Context, title, rawText string) <-chan Update {
	ch := make(chan Update, 64)
	go func() {
		defer close(ch)
		_ = o.ProcessDocument(ctx, title, rawText, func(u Update) {
			select {
			case ch <- u:
			case <-ctx.Done():
			}
		})
	}()
	return ch
}

// streamChunk feeds one model stream through a fresh extractor state.
// onFragment sees the events of every fragment and the buffer length.
func (o *Orchestrator) streamChunk(ctx context.Context, prompt string, onFragment func(evs []extract.Event, received int)) (extract.State, error) {
	req := llm.UserRequest(extract.SystemPrompt, prompt)
	req.MaxTokens = o.cfg.ResponseTokens

	var st extract.State
	err := o.client.StreamText(ctx, req, func(frag string) error {
		var evs []extract.Event
		st, evs = st.Process(frag)
		onFragment(evs, len(st.Text))
		return nil
	})
	return st, err
}

// run is the merge state of one ProcessDocument call. Only the goroutine
// running ProcessDocument touches it.
type run struct {
	o     *Orchestrator
	title string
	emit  func(Update)
	log   *slog.Logger

	metadata *hierarchy.Metadata
	nodes    []hierarchy.Node // merged over finished chunks
	emitted  map[string]bool  // node ids already sent to the consumer

	streams int // finished model streams
	failed  int // streams whose output could not be recovered at all

	percent int
	message string
}

func (r *run) single(ctx context.Context, rawText string) error {
	p := r.o.cfg.Progress
	r.progress(p.Min, "Sending document to model", 0)

	start := time.Now()
	fragments := 0
	var pending []hierarchy.Node
	st, err := r.o.streamChunk(ctx, extract.BuildDocumentPrompt(r.title, rawText), func(evs []extract.Event, _ int) {
		fragments++
		r.absorb(0, evs, &pending)
		r.progress(p.Fragments(fragments), "Receiving structure", 0)
	})
	r.o.metrics.ChunkDone(time.Since(start))
	if err != nil {
		return r.modelFailure(ctx, 0, err)
	}
	r.finishChunk(0, st, pending)
	return r.complete()
}

func (r *run) sequential(ctx context.Context, chunks []doctree.Chunk) error {
	p := r.o.cfg.Progress
	total := len(chunks)
	r.progress(p.Min, fmt.Sprintf("Split document into %d chunks", total), 0)

	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return r.modelFailure(ctx, i, err)
		}
		msg := fmt.Sprintf("Processing chunk %d of %d", i+1, total)
		r.progress(p.Chunks(i, total, 0, len(c.Content)), msg, i)

		start := time.Now()
		var pending []hierarchy.Node
		st, err := r.o.streamChunk(ctx, extract.BuildChunkPrompt(r.title, c), func(evs []extract.Event, received int) {
			r.absorb(i, evs, &pending)
			r.progress(p.Chunks(i, total, received, len(c.Content)), msg, i)
		})
		r.o.metrics.ChunkDone(time.Since(start))
		if err != nil {
			return r.modelFailure(ctx, i, err)
		}
		r.finishChunk(i, st, pending)
	}
	return r.complete()
}

type chunkResult struct {
	events [][]extract.Event
	state  extract.State
	err    error
}

// concurrent streams up to ChunkConcurrency chunks at once. Results are
// folded strictly in chunk order, so the merged output matches sequential
// processing.
func (r *run) concurrent(ctx context.Context, chunks []doctree.Chunk) error {
	p := r.o.cfg.Progress
	total := len(chunks)
	r.progress(p.Min, fmt.Sprintf("Split document into %d chunks", total), 0)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.o.cfg.ChunkConcurrency)

	results := make([]chunkResult, total)
	done := make([]chan struct{}, total)
	for i := range done {
		done[i] = make(chan struct{})
	}

	waited := make(chan error, 1)
	go func() {
		for i, c := range chunks {
			g.Go(func() error {
				defer close(done[i])
				start := time.Now()
				var res chunkResult
				res.state, res.err = r.o.streamChunk(gctx, extract.BuildChunkPrompt(r.title, c), func(evs []extract.Event, _ int) {
					if len(evs) > 0 {
						res.events = append(res.events, evs)
					}
				})
				r.o.metrics.ChunkDone(time.Since(start))
				results[i] = res
				return res.err
			})
		}
		waited <- g.Wait()
	}()

	for i := range chunks {
		<-done[i]
		res := results[i]
		if res.err != nil {
			cancel()
			<-waited
			idx, cause := i, res.err
			// A sibling's failure cancels this chunk too; report the original.
			for k := range results {
				if err := results[k].err; err != nil && !errors.Is(err, context.Canceled) {
					idx, cause = k, err
					break
				}
			}
			return r.modelFailure(ctx, idx, cause)
		}

		var pending []hierarchy.Node
		for _, evs := range res.events {
			r.absorb(i, evs, &pending)
		}
		r.finishChunk(i, res.state, pending)
		r.progress(p.Chunks(i+1, total, 0, 0), fmt.Sprintf("Merged chunk %d of %d", i+1, total), i)
	}
	<-waited
	return r.complete()
}

// absorb forwards extractor events. Metadata is forwarded only the first
// time any chunk provides it and each node id is forwarded once.
func (r *run) absorb(chunk int, evs []extract.Event, pending *[]hierarchy.Node) {
	for _, ev := range evs {
		switch ev.Type {
		case extract.EventMetadata:
			r.offerMetadata(chunk, *ev.Metadata)
		case extract.EventNode:
			r.offerNode(chunk, *ev.Node, pending)
		case extract.EventError:
			r.o.metrics.StreamError("extraction")
			r.log.Warn("extraction step failed", "chunk", chunk, "error", ev.Err)
		}
	}
}

func (r *run) offerMetadata(chunk int, md hierarchy.Metadata) {
	if r.metadata != nil {
		return
	}
	r.metadata = &md
	r.emit(Update{Kind: KindMetadata, Metadata: &md, Chunk: chunk})
}

func (r *run) offerNode(chunk int, n hierarchy.Node, pending *[]hierarchy.Node) {
	*pending = append(*pending, n)
	if n.ID != "" && r.emitted[n.ID] {
		return
	}
	r.emitted[n.ID] = true
	r.o.metrics.NodeEmitted()
	r.emit(Update{Kind: KindNode, Node: &n, Chunk: chunk})
}

// finishChunk repairs an incomplete stream and merges the chunk's nodes.
func (r *run) finishChunk(chunk int, st extract.State, pending []hierarchy.Node) {
	r.streams++
	if !st.Complete {
		rec := extract.Recover(st.Text)
		r.o.metrics.Recovered(string(rec.Strategy))
		r.log.Info("recovered incomplete stream",
			"chunk", chunk,
			"strategy", rec.Strategy,
			"buffer", rec.InputLength,
			"nodes", len(rec.Document.Hierarchy),
			"dropped", rec.Dropped,
		)

		if rec.Failed {
			r.failed++
		} else {
			if md := rec.Document.Metadata; md != hierarchy.UnknownMetadata() {
				r.offerMetadata(chunk, md)
			}
			seen := make(map[string]bool, len(st.Nodes))
			for _, n := range st.Nodes {
				seen[n.ID] = true
			}
			for _, n := range rec.Document.Hierarchy {
				if n.ID != "" && seen[n.ID] {
					continue
				}
				r.offerNode(chunk, n, &pending)
			}
		}
	}
	r.nodes = hierarchy.MergeNodes(r.nodes, pending...)
}

func (r *run) complete() error {
	md := hierarchy.UnknownMetadata()
	switch {
	case r.metadata != nil:
		md = *r.metadata
	case r.streams > 0 && r.failed == r.streams:
		md = hierarchy.FailedMetadata()
	}
	doc := hierarchy.NewDocument(md, r.nodes)

	r.log.Info("document structured",
		"title", md.Title,
		"top_level_nodes", len(doc.Hierarchy),
		"nodes", hierarchy.Count(doc.Hierarchy),
	)
	r.emit(Update{Kind: KindProgress, Percent: 100, Message: "Complete"})
	r.emit(Update{Kind: KindComplete, Percent: 100, Document: &doc})
	return nil
}

func (r *run) modelFailure(ctx context.Context, chunk int, err error) error {
	r.o.metrics.StreamError("model")
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return r.fail(&ModelStreamError{Chunk: chunk, Cause: err})
}

func (r *run) fail(err error) error {
	r.log.Error("document structuring failed", "error", err)
	r.emit(Update{Kind: KindError, Message: err.Error(), Err: err})
	return err
}

// progress sends a progress update when the percentage rises or the
// message changes. Percentages never go backwards.
func (r *run) progress(pct int, msg string, chunk int) {
	pct = max(pct, r.percent)
	if pct == r.percent && msg == r.message {
		return
	}
	r.percent, r.message = pct, msg
	r.emit(Update{Kind: KindProgress, Percent: pct, Message: msg, Chunk: chunk})
}
