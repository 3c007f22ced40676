package server

import (
	"context"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/vecstore/internal/api/consumer"
	"github.com/Zereker/vecstore/internal/api/http"
	"github.com/Zereker/vecstore/internal/store"
	"github.com/Zereker/vecstore/pkg/cache"
	"github.com/Zereker/vecstore/pkg/embed"
	"github.com/Zereker/vecstore/pkg/log"
	"github.com/Zereker/vecstore/pkg/mq"
	"github.com/Zereker/vecstore/pkg/vector"
)

// Server represents the vector store server
type Server struct {
	config   Config
	logger   *slog.Logger
	engine   vector.Engine
	store    *store.Store
	cache    *cache.SearchCache
	consumer *consumer.Consumer
}

// NewServer creates a new server with the given configuration
func NewServer(conf Config) (*Server, error) {
	server := &Server{
		config: conf,
	}

	if err := server.initDepend(); err != nil {
		return nil, errors.WithMessage(err, "init server dependency failed")
	}

	if err := server.initStore(); err != nil {
		return nil, errors.WithMessage(err, "init store failed")
	}

	if err := server.initConsumer(); err != nil {
		return nil, errors.WithMessage(err, "init consumer failed")
	}

	return server, nil
}

// initDepend initializes all dependencies
func (s *Server) initDepend() error {
	// Initialize log first
	if err := log.Init(s.config.Log); err != nil {
		return errors.WithMessage(err, "failed to init log")
	}

	// Create logger for this module
	s.logger = log.Logger("server")
	s.logger.Info("initializing dependencies")

	// Initialize the index engine
	s.logger.Info("initializing engine", "kind", s.config.Store.EngineKind())
	engine, err := s.newEngine()
	if err != nil {
		return errors.WithMessage(err, "failed to init engine")
	}
	s.engine = engine

	// Initialize Kafka message queue
	s.logger.Info("initializing message queue")
	if err := mq.Init(s.config.Kafka); err != nil {
		return errors.WithMessage(err, "failed to init message queue")
	}

	// Initialize search result cache
	s.logger.Info("initializing cache")
	c, err := cache.New(s.config.Cache)
	if err != nil {
		return errors.WithMessage(err, "failed to init cache")
	}
	s.cache = c

	return nil
}

func (s *Server) newEngine() (vector.Engine, error) {
	switch s.config.Store.EngineKind() {
	case store.EngineOpenSearch:
		return vector.NewOpenSearchEngine(s.config.OpenSearch)
	default:
		return vector.NewMemoryEngine(s.config.Store.PersistLocation)
	}
}

// initStore initializes the store facade over the engine
func (s *Server) initStore() error {
	s.logger.Info("initializing store")

	st, err := store.New(context.Background(), s.config.Store, s.engine)
	if err != nil {
		return err
	}

	if s.config.Embedding.Enabled {
		st.SetEmbedder(embed.NewOpenAI(s.config.Embedding))
	}
	st.SetCache(s.cache)

	s.store = st
	return nil
}

// initConsumer initializes the async ingestion consumer
func (s *Server) initConsumer() error {
	s.logger.Info("initializing consumer")

	c, err := consumer.NewConsumer(s.store, consumer.Config{
		Kafka: s.config.Kafka,
	})
	if err != nil {
		return errors.WithMessage(err, "failed to create consumer")
	}

	s.consumer = c
	return nil
}

// Start starts the HTTP server and the ingestion consumer
func (s *Server) Start() error {
	s.logger.Info("starting", "host", s.config.Server.Host, "port", s.config.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		s.logger.Info("received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	// Start consumer
	if s.consumer != nil {
		g.Go(func() error {
			return s.runConsumer(ctx)
		})
	}

	g.Go(func() error {
		return s.runHTTPServer(ctx)
	})

	return g.Wait()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	// Stop consumer
	if s.consumer != nil {
		if err := s.consumer.Stop(); err != nil {
			s.logger.Error("failed to stop consumer", "error", err)
		}
	}

	if err := mq.NewQueue().Close(); err != nil {
		s.logger.Error("failed to close producer", "error", err)
	}

	if err := s.cache.Close(); err != nil {
		s.logger.Error("failed to close cache", "error", err)
	}

	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.logger.Error("failed to close engine", "error", err)
		}
	}

	return nil
}

func (s *Server) runHTTPServer(ctx context.Context) error {
	serverCfg := http.DefaultServerConfig()
	serverCfg.Host = s.config.Server.Host
	serverCfg.Port = s.config.Server.Port

	producer := mq.NewQueue()
	var queue mq.MessageQueue
	if producer != nil {
		queue = producer
	}

	srv := http.NewServer(s.store, queue, producer.Topic(), serverCfg)

	// Shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return errors.WithMessage(err, "http server error")
	}
	return nil
}

func (s *Server) runConsumer(ctx context.Context) error {
	if err := s.consumer.Start(ctx); err != nil {
		return errors.WithMessage(err, "consumer start error")
	}

	// Wait for context cancellation
	<-ctx.Done()

	return s.consumer.Stop()
}
