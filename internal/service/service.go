// Package service assembles a running docstruct from configuration.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docstruct/internal/api"
	"github.com/dgallion1/docstruct/internal/chunker"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/docstore"
	"github.com/dgallion1/docstruct/internal/llm"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/pathstore"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/dgallion1/docstruct/internal/sse"
	"github.com/dgallion1/docstruct/internal/stream"
)

// statsWindow is how far back the LLM stats endpoint looks.
const statsWindow = time.Hour

// NewClient returns the model client selected by cfg.LLMProvider.
func NewClient(cfg config.Config, log *slog.Logger) (llm.Client, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel,
			llm.WithAnthropicBaseURL(cfg.AnthropicBaseURL),
			llm.WithAnthropicLogger(log)), nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIModel,
			MaxRetries: 3,
		}), nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// StreamConfig maps service settings onto the structuring stream.
func StreamConfig(cfg config.Config) stream.Config {
	sc := stream.DefaultConfig()
	sc.MaxTokens = cfg.MaxTokens
	sc.Chunking = chunker.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Separators:   chunker.DefaultSeparators,
	}
	sc.ChunkConcurrency = cfg.ChunkConcurrency
	sc.ResponseTokens = cfg.ResponseTokens
	return sc
}

// Service is the HTTP server with everything behind it.
type Service struct {
	Server   *api.Server
	Pipeline *pipeline.Orchestrator

	bus sse.Bus
	ps  *pathstore.Client
	log *slog.Logger
}

// New wires the service. Documents go to pathstore when PathstoreURL is set
// and to memory otherwise; events fan out through redis when RedisAddr is
// set so every replica's subscribers see them.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*Service, error) {
	client, err := NewClient(cfg, log)
	if err != nil {
		return nil, err
	}
	stats := llm.NewLLMStats(statsWindow)
	client = llm.Timed(client, stats)
	m := metrics.New()

	s := &Service{log: log}

	var store docstore.Store
	if cfg.PathstoreURL != "" {
		s.ps = pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		store = docstore.NewPathstoreStore(s.ps, log, cfg.MaxConcurrentStore)
	} else {
		log.Warn("PATHSTORE_URL not set, documents are kept in memory")
		store = docstore.NewMemoryStore()
	}

	if cfg.RedisAddr != "" {
		rb, err := sse.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			return nil, fmt.Errorf("redis bus: %w", err)
		}
		s.bus = rb
	} else {
		s.bus = sse.NewLocalBus()
	}

	hub := sse.NewHub(log)
	if err := s.bus.StartForwarder(ctx, hub.Broadcast); err != nil {
		s.bus.Close()
		return nil, fmt.Errorf("start event forwarder: %w", err)
	}

	s.Pipeline = pipeline.NewOrchestrator(cfg, pipeline.Deps{
		Structurer: stream.New(client, StreamConfig(cfg), log, m),
		Store:      store,
		Bus:        s.bus,
		Metrics:    m,
	}, log)

	s.Server = api.NewServer(cfg, api.Deps{
		Pipeline: s.Pipeline,
		Hub:      hub,
		Model:    client.Model(),
		Stats:    stats,
		Metrics:  m,
	}, log)
	return s, nil
}

// Close stops the pipeline and releases connections.
func (s *Service) Close() {
	s.Pipeline.Stop()
	if err := s.bus.Close(); err != nil {
		s.log.Warn("close event bus", "error", err)
	}
	if s.ps != nil {
		s.ps.Close()
	}
}
