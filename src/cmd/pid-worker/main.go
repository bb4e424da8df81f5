// The pid-worker assigns persistent identifiers asynchronously. It
// consumes the change topic and, for every newly added entity or relation,
// mints a PID and writes it back through the storage engine. Publication
// is thereby decoupled from the write path: a slow handle service never
// blocks an API request.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"archivum/src/domain"
	"archivum/src/domain/entities"
	"archivum/src/helper/env"
	"archivum/src/infra/kafka"
	"archivum/src/infra/postgres"
	"archivum/src/services/events"
	"archivum/src/services/persistence"
	"archivum/src/storage"
)

func main() {
	log.SetOutput(os.Stdout)

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(h)

	pool, err := postgres.NewPostgresClient(
		env.MustGetString("DB_HOST"),
		env.GetString("DB_PORT", "5432"),
		env.MustGetString("DB_NAME"),
		env.MustGetString("DB_USER"),
		env.MustGetString("DB_PASSWORD"),
		env.GetInt("DB_MAX_POOL_CONNECTIONS", 10),
	)
	if err != nil {
		log.Fatalf("Failed to connect to postgres: %v", err)
	}

	store := postgres.NewStore(pool)
	registry := domain.NewRegistry()
	graphStorage := storage.NewGraphStorage(logger, store, registry)

	kafkaClient, err := kafka.NewKafkaClient(
		env.MustGetString("KAFKA_BROKERS"),
		env.GetString("KAFKA_GROUP_ID", "archivum-pid-worker"),
		env.GetInt("KAFKA_BATCH_SIZE", 100),
	)
	if err != nil {
		log.Fatalf("Failed to create kafka client: %v", err)
	}
	defer kafkaClient.Close()

	worker := &pidWorker{
		logger:  logger,
		storage: graphStorage,
		minter:  persistence.NewUUIDMinter(env.GetString("PID_PREFIX")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs
		logger.Info("Shutting down pid worker")
		cancel()
	}()

	topic := env.GetString("KAFKA_CHANGES_TOPIC", "archivum.changes")
	logger.Info("PID worker started", "topic", topic)
	if err := kafkaClient.Consumer(ctx, worker.handleBatch, topic); err != nil {
		log.Fatalf("Consumer failed: %v", err)
	}
}

type pidWorker struct {
	logger  *slog.Logger
	storage *storage.GraphStorage
	minter  persistence.Minter
}

// handleBatch assigns a PID to every newly added element in the batch.
// Returning an error leaves the batch unmarked for redelivery, so only
// infrastructure failures propagate; bad payloads are dropped with a log.
func (w *pidWorker) handleBatch(messages []kafka.Message) error {
	ctx := context.Background()
	for _, msg := range messages {
		var change events.ChangeEvent
		if err := json.Unmarshal(msg.Value, &change); err != nil {
			w.logger.Error("Dropping undecodable change event", "key", msg.Key, "error", err)
			continue
		}
		if change.Action != events.ActionAdd {
			continue
		}
		if err := w.assignPID(ctx, change); err != nil {
			return err
		}
	}
	return nil
}

func (w *pidWorker) assignPID(ctx context.Context, change events.ChangeEvent) error {
	pid := w.minter.NewPID()

	var err error
	if entities.Kind(change.Kind) == entities.KindRelation {
		err = w.storage.SetRelationPID(ctx, change.ID, pid)
	} else {
		err = w.storage.SetEntityPID(ctx, entities.Kind(change.Kind), change.ID, pid)
	}

	switch {
	case err == nil:
		w.logger.Info("Assigned pid", "kind", change.Kind, "id", change.ID, "pid", pid)
		return nil
	case errors.Is(err, domain.ErrIllegalState):
		// Already published, probably a redelivered message.
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrIllegalArgument):
		w.logger.Warn("Skipping pid assignment", "kind", change.Kind, "id", change.ID, "error", err)
		return nil
	default:
		return err
	}
}
