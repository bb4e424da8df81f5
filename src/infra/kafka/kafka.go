package kafka

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

type KafkaClient struct {
	consumer  sarama.ConsumerGroup
	producer  sarama.SyncProducer
	brokers   []string
	batchSize int
}

type Message struct {
	Key      string
	Value    []byte
	Headers  map[string]string
	internal *sarama.ConsumerMessage
}

type Handler func(messages []Message) error

func NewKafkaClient(brokers string, groupID string, batchSize int) (*KafkaClient, error) {
	brokerList := strings.Split(brokers, ",")

	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0

	// Consumer config
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Group.Session.Timeout = 30 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 10 * time.Second
	config.Consumer.MaxProcessingTime = 60 * time.Second
	config.Consumer.MaxWaitTime = 100 * time.Millisecond
	config.ChannelBufferSize = batchSize * 2

	// Producer config
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 50 * time.Millisecond
	config.Producer.Flush.Messages = 50
	config.Producer.MaxMessageBytes = 1024 * 1024

	consumer, err := sarama.NewConsumerGroup(brokerList, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	return &KafkaClient{
		consumer:  consumer,
		producer:  producer,
		brokers:   brokerList,
		batchSize: batchSize,
	}, nil
}

// Consumer runs the batch consumer loop on the topic until the context is
// cancelled. Failed batches are not marked and will be redelivered.
func (k *KafkaClient) Consumer(ctx context.Context, handler Handler, topic string) error {
	consumerHandler := &consumerGroupHandler{
		handler:   handler,
		batchSize: k.batchSize,
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := k.consumer.Consume(ctx, []string{topic}, consumerHandler); err != nil {
				log.Printf("Error consuming from topic %s: %v", topic, err)
				time.Sleep(5 * time.Second)
				continue
			}
		}
	}
}

// Producer sends a batch of messages to the topic. Messages keyed by the
// same entity id land on the same partition, preserving per-entity order.
func (k *KafkaClient) Producer(messages []Message, topic string) error {
	if len(messages) == 0 {
		return nil
	}

	for i, msg := range messages {
		kafkaMsg := &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(msg.Key),
			Value: sarama.ByteEncoder(msg.Value),
		}
		for name, value := range msg.Headers {
			kafkaMsg.Headers = append(kafkaMsg.Headers, sarama.RecordHeader{
				Key:   []byte(name),
				Value: []byte(value),
			})
		}
		if _, _, err := k.producer.SendMessage(kafkaMsg); err != nil {
			return fmt.Errorf("message %d of %d failed on topic %s: %w", i+1, len(messages), topic, err)
		}
	}
	return nil
}

func (k *KafkaClient) Close() error {
	var errs []error

	if err := k.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}

	if err := k.producer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close producer: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing kafka client: %v", errs)
	}

	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	handler   Handler
	batchSize int
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	batchSize := h.batchSize
	batchTimeout := 2 * time.Second

	messages := make([]Message, 0, batchSize)
	timer := time.NewTimer(batchTimeout)
	defer timer.Stop()

	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				if len(messages) > 0 {
					h.processBatch(session, messages)
				}
				return nil
			}

			messages = append(messages, Message{
				Key:      string(message.Key),
				Value:    message.Value,
				Headers:  headerMap(message),
				internal: message,
			})

			if len(messages) >= batchSize {
				h.processBatch(session, messages)
				messages = messages[:0]
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			if len(messages) > 0 {
				h.processBatch(session, messages)
				messages = messages[:0]
			}
			timer.Reset(batchTimeout)

		case <-session.Context().Done():
			if len(messages) > 0 {
				h.processBatch(session, messages)
			}
			return nil
		}
	}
}

func (h *consumerGroupHandler) processBatch(session sarama.ConsumerGroupSession, messages []Message) {
	if len(messages) == 0 {
		return
	}

	if err := h.handler(messages); err != nil {
		log.Printf("Handler error for batch: %v", err)
		// Don't mark messages, they will be redelivered
		return
	}

	for _, msg := range messages {
		if msg.internal != nil {
			session.MarkMessage(msg.internal, "")
		}
	}
}

func headerMap(message *sarama.ConsumerMessage) map[string]string {
	if len(message.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(message.Headers))
	for _, h := range message.Headers {
		headers[string(h.Key)] = string(h.Value)
	}
	return headers
}
