// Package events publishes change notifications for stored entities.
// Downstream consumers (indexers, the PID worker) react to these instead
// of polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"archivum/src/infra/kafka"
)

// Action names what happened to an entity.
type Action string

const (
	ActionAdd Action = "ADD"
	ActionMod Action = "MOD"
	ActionDel Action = "DEL"
)

// ChangeEvent is the wire payload of one notification. Kind and ID locate
// the entity; consumers re-read the store for the current state.
type ChangeEvent struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
	ID     string `json:"id"`
}

type ChangePublisher struct {
	logger      *slog.Logger
	kafkaClient *kafka.KafkaClient
	topic       string
}

func NewChangePublisher(
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	topic string,
) *ChangePublisher {
	return &ChangePublisher{
		logger:      logger,
		kafkaClient: kafkaClient,
		topic:       topic,
	}
}

// Publish sends the events as one batch. Messages are keyed by entity id,
// so all changes of one entity stay ordered on one partition.
func (p *ChangePublisher) Publish(ctx context.Context, changes ...ChangeEvent) error {
	if len(changes) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(changes))
	for _, change := range changes {
		payload, err := json.Marshal(change)
		if err != nil {
			p.logger.Error("Failed to marshal change event",
				"error", err, "kind", change.Kind, "id", change.ID)
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   change.ID,
			Value: payload,
			Headers: map[string]string{
				"action":         string(change.Action),
				"entity_kind":    change.Kind,
				"source_service": "archivum",
				"schema_version": "v1",
			},
		})
	}

	if err := p.kafkaClient.Producer(messages, p.topic); err != nil {
		return fmt.Errorf("ChangePublisher.Publish - sending to topic %s: %w", p.topic, err)
	}

	p.logger.Debug("Published change events", "topic", p.topic, "count", len(messages))
	return nil
}
