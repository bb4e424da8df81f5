package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"

	"archivum/src/domain"
	"archivum/src/graph"
	"archivum/src/helper/env"
	"archivum/src/infra/kafka"
	"archivum/src/infra/neo4jgraph"
	"archivum/src/infra/postgres"
	"archivum/src/infra/redis"
	"archivum/src/server"
	"archivum/src/services/events"
	"archivum/src/services/persistence"
	"archivum/src/services/repository"
	"archivum/src/storage"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting archivum API server...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newRegistry,
			newGraphStore,
			newGraphStorage,
			newRedisClient,
			newKafkaClient,
			newChangePublisher,
			newPIDMinter,
			newRepository,
			newServer,
		),

		// Invocations
		fx.Invoke(registerStorageHooks),
		fx.Invoke(registerServerHooks),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	<-app.Done()
}

func newLogger() *slog.Logger {
	logLevel := env.GetString("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func newRegistry() *domain.Registry {
	return domain.NewRegistry()
}

// newGraphStore picks the backend from GRAPH_BACKEND: "postgres" (default)
// or "neo4j".
func newGraphStore() (graph.Store, error) {
	switch env.GetString("GRAPH_BACKEND", "postgres") {
	case "neo4j":
		return neo4jgraph.NewStore(context.Background(), neo4jgraph.Config{
			URI:      env.MustGetString("NEO4J_URI"),
			Username: env.MustGetString("NEO4J_USER"),
			Password: env.MustGetString("NEO4J_PASSWORD"),
			Database: env.GetString("NEO4J_DATABASE", "neo4j"),
		})
	default:
		pool, err := postgres.NewPostgresClient(
			env.MustGetString("DB_HOST"),
			env.GetString("DB_PORT", "5432"),
			env.MustGetString("DB_NAME"),
			env.MustGetString("DB_USER"),
			env.MustGetString("DB_PASSWORD"),
			env.GetInt("DB_MAX_POOL_CONNECTIONS", 25),
		)
		if err != nil {
			return nil, err
		}
		store := postgres.NewStore(pool)
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	}
}

func newGraphStorage(logger *slog.Logger, store graph.Store, registry *domain.Registry) *storage.GraphStorage {
	return storage.NewGraphStorage(logger, store, registry)
}

// newRedisClient returns nil when caching is disabled; the repository
// degrades to plain engine calls.
func newRedisClient() *redis.RedisClient {
	addrs := env.GetString("REDIS_ADDRS")
	if addrs == "" {
		return nil
	}
	return redis.NewRedisClient(
		addrs,
		env.GetInt("REDIS_POOL_SIZE", 50),
		time.Duration(env.GetInt("REDIS_TTL_SECONDS", 300))*time.Second,
	)
}

// newKafkaClient returns nil when eventing is disabled.
func newKafkaClient() (*kafka.KafkaClient, error) {
	brokers := env.GetString("KAFKA_BROKERS")
	if brokers == "" {
		return nil, nil
	}
	return kafka.NewKafkaClient(brokers, "archivum-api", env.GetInt("KAFKA_BATCH_SIZE", 100))
}

func newChangePublisher(logger *slog.Logger, kafkaClient *kafka.KafkaClient) *events.ChangePublisher {
	if kafkaClient == nil {
		return nil
	}
	return events.NewChangePublisher(logger, kafkaClient, env.GetString("KAFKA_CHANGES_TOPIC", "archivum.changes"))
}

func newPIDMinter() persistence.Minter {
	return persistence.NewUUIDMinter(env.GetString("PID_PREFIX"))
}

func newRepository(
	logger *slog.Logger,
	graphStorage *storage.GraphStorage,
	registry *domain.Registry,
	cache *redis.RedisClient,
	publisher *events.ChangePublisher,
	pids persistence.Minter,
) *repository.Repository {
	return repository.NewRepository(logger, graphStorage, registry, cache, publisher, pids)
}

func newServer(
	logger *slog.Logger,
	repo *repository.Repository,
	registry *domain.Registry,
) *server.Server {
	return server.NewServer(logger, env.GetInt("SERVER_PORT", 8888), repo, registry)
}

// registerStorageHooks seeds id counters on start and closes the store on
// stop.
func registerStorageHooks(lc fx.Lifecycle, graphStorage *storage.GraphStorage) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return graphStorage.Initialize(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return graphStorage.Close(ctx)
		},
	})
}

// registerServerHooks registers lifecycle hooks for the HTTP server
func registerServerHooks(lc fx.Lifecycle, srv *server.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server forced to shutdown: %v", err)
				return err
			}
			log.Println("Server exited gracefully")
			return nil
		},
	})
}
