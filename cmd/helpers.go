package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/ziadkadry99/hostkb/internal/chunker"
	"github.com/ziadkadry99/hostkb/internal/config"
	"github.com/ziadkadry99/hostkb/internal/db"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/embeddings"
	"github.com/ziadkadry99/hostkb/internal/gate"
	"github.com/ziadkadry99/hostkb/internal/indexer"
	"github.com/ziadkadry99/hostkb/internal/llm"
	"github.com/ziadkadry99/hostkb/internal/orchestrator"
	"github.com/ziadkadry99/hostkb/internal/properties"
	"github.com/ziadkadry99/hostkb/internal/retriever"
	"github.com/ziadkadry99/hostkb/internal/searchengine"
	"github.com/ziadkadry99/hostkb/internal/session"
	"github.com/ziadkadry99/hostkb/internal/tools"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `hostkb init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section. Logs go to
// stderr so stdout stays clean for --json output and MCP framing.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *db.DB
	docs      *documents.Store
	props     *properties.Store
	embedder  embeddings.Embedder
	engine    searchengine.Engine
	pipeline  *indexer.Pipeline
	retriever *retriever.Retriever
}

// openApp loads the config and opens the database, embedder, search engine,
// ingestion pipeline and retriever.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     database,
		docs:   documents.NewStore(database),
		props:  properties.NewStore(database),
	}

	if cfg.Tools.PropertiesFile != "" {
		if _, err := a.importProperties(ctx, cfg.Tools.PropertiesFile); err != nil {
			database.Close()
			return nil, err
		}
	}

	a.embedder = createEmbedderFromConfig(cfg)
	if a.engine, err = createEngineFromConfig(cfg, a.embedder); err != nil {
		database.Close()
		return nil, fmt.Errorf("creating search engine: %w", err)
	}

	a.pipeline = indexer.NewPipeline(
		a.docs,
		chunker.New(chunker.WithMaxTokens(cfg.Chunker.MaxTokens)),
		a.embedder,
		a.engine,
		indexer.Options{
			BatchSize:        cfg.Embedding.BatchSize,
			Concurrency:      cfg.Embedding.Concurrency,
			CaptureWarnRatio: cfg.Chunker.CaptureWarnRatio,
		},
		logger,
	)
	a.retriever = retriever.New(a.engine, a.embedder,
		retriever.WithBoost(cfg.Retrieval.BoostPerTerm, cfg.Retrieval.MaxBoost),
		retriever.WithLogger(logger),
	)
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) importProperties(ctx context.Context, path string) (int, error) {
	props, err := properties.LoadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := a.props.Import(ctx, props)
	if err != nil {
		return 0, fmt.Errorf("importing properties: %w", err)
	}
	a.logger.Debug("properties imported", "file", path, "count", n)
	return n, nil
}

// createEmbedderFromConfig builds the embedder lazily so commands that never
// embed (delete, version) do not require embedding credentials.
func createEmbedderFromConfig(cfg *config.Config) embeddings.Embedder {
	ec := cfg.Embedding
	return embeddings.NewHandle(func() (embeddings.Embedder, error) {
		e, err := embeddings.New(string(ec.Provider), ec.Model, ec.Dimensions, ec.BaseURL)
		if err != nil {
			return nil, err
		}
		return embeddings.RateLimited(e, ec.RequestsPerMinute), nil
	})
}

func createEngineFromConfig(cfg *config.Config, embedder embeddings.Embedder) (searchengine.Engine, error) {
	switch cfg.Search.Engine {
	case config.EngineElasticsearch:
		return searchengine.NewElasticEngine(searchengine.ElasticConfig{
			Addresses: cfg.Search.Addresses,
			Username:  cfg.Search.Username,
			Password:  cfg.Search.Password,
			Index:     cfg.Search.Index,
		})
	default:
		return searchengine.NewLocalEngine(embedder, cfg.LocalIndexDir())
	}
}

// createLLMProviderFromConfig creates a rate-limited LLM provider based on
// config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.LLM.Provider), cfg.LLM.Model, cfg.LLM.BaseURL)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.LLM.RequestsPerMinute), nil
}

// retrievalDefaults converts the retrieval section to request defaults.
func retrievalDefaults(cfg *config.Config) retriever.Options {
	r := cfg.Retrieval
	return retriever.Options{
		TopK:       r.TopK,
		MinScore:   r.MinScore,
		SearchType: searchengine.Mode(r.SearchType),
		Rerank:     r.Rerank,
		Scope:      documents.Scope(r.KBScope),
	}
}

// buildTools registers the built-in tools against the app's components.
func (a *app) buildTools() (*tools.Registry, error) {
	return tools.NewDefaultRegistry(tools.Deps{
		Searcher:         a.retriever,
		SearchDefaults:   retrievalDefaults(a.cfg),
		Properties:       a.props,
		WebSearchURL:     a.cfg.Tools.WebSearchURL,
		WebSearchKey:     a.cfg.WebSearchKey(),
		WebSearchTimeout: a.cfg.Tools.WebSearchTimeout,
	}, a.logger)
}

// assistant bundles the orchestrator with the state it shares with the
// transports.
type assistant struct {
	orch     *orchestrator.Orchestrator
	sessions *session.Store
	gate     *gate.Gate
}

func (a *app) buildAssistant(registry *tools.Registry) (*assistant, error) {
	if err := config.RequireCredentials(a.cfg); err != nil {
		return nil, err
	}
	provider, err := createLLMProviderFromConfig(a.cfg)
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}

	oc := a.cfg.Orchestrator
	sessions := session.NewStore(
		session.WithWindow(oc.HistoryWindow),
		session.WithTTL(oc.SessionTTL),
		session.WithLogger(a.logger),
	)
	g := gate.New(oc.MaxConcurrent)

	orch, err := orchestrator.New(orchestrator.Config{
		Provider:         provider,
		Model:            a.cfg.LLM.Model,
		Temperature:      a.cfg.LLM.Temperature,
		AgentModel:       a.cfg.LLM.AgentModel,
		AgentTemperature: a.cfg.LLM.AgentTemperature,
		Tools:            registry,
		Sessions:         sessions,
		Gate:             g,
		Prompts: orchestrator.Prompts{
			System:    a.cfg.Prompts.System,
			Agent:     a.cfg.Prompts.Agent,
			Synthesis: a.cfg.Prompts.Synthesis,
			Wrap:      a.cfg.Prompts.Wrap,
		},
		MaxIterations:   oc.MaxIterations,
		DelegateTimeout: oc.DelegateTimeout,
		FriendlyWrap:    oc.FriendlyWrap,
		Logger:          a.logger,
	})
	if err != nil {
		sessions.Close()
		return nil, err
	}
	return &assistant{orch: orch, sessions: sessions, gate: g}, nil
}

// tenantFlags are the --owner/--property/--scope flags shared by the
// commands that act for one host.
type tenantFlags struct {
	owner    string
	property string
	scope    string
}

func (f *tenantFlags) propertyID() (*int64, error) {
	if f.property == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(f.property, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid --property %q: must be a numeric id", f.property)
	}
	return &id, nil
}

func (f *tenantFlags) toolScope(defaultScope string) (tools.Scope, error) {
	pid, err := f.propertyID()
	if err != nil {
		return tools.Scope{}, err
	}
	scope := f.scope
	if scope == "" {
		scope = defaultScope
	}
	return tools.Scope{OwnerID: f.owner, PropertyID: pid, KBScope: documents.Scope(scope)}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
