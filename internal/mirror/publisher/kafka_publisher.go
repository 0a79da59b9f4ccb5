package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/inplay-mirror/pkg/contracts/events"
)

// RebuildKey é a chave de mensagem usada para payloads sem índice
const RebuildKey = "rebuild"

// KafkaPublisher encapsula o writer Kafka e o logger.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewKafkaPublisher cria um publisher para um tópico Kafka.
// Em ambientes local/dev garante a existência do tópico via controller.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, fmt.Errorf("kafka brokers not provided")
	}

	if env := os.Getenv("ENV"); env == "local" || env == "dev" {
		if err := ensureTopic(brokers[0], topic, log); err != nil {
			log.Warn("failed to ensure kafka topic", zap.String("topic", topic), zap.Error(err))
		}
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // mesma chave, mesma partição: ordem por índice
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
	}

	return &KafkaPublisher{writer: writer, log: log}, nil
}

// ensureTopic cria o tópico (1 partição, RF 1) pelo controller do cluster
func ensureTopic(broker, topic string, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return err
	}
	if err == nil {
		log.Info("kafka topic created", zap.String("topic", topic))
	}
	return nil
}

// MessageKey devolve a chave Kafka de um payload: o índice ou RebuildKey
func MessageKey(ld events.LiveData) string {
	if ld.Idx == nil {
		return RebuildKey
	}
	return strconv.Itoa(*ld.Idx)
}

// Publish serializa o payload e envia ao tópico configurado
func (p *KafkaPublisher) Publish(ctx context.Context, ld events.LiveData) error {
	value, err := json.Marshal(ld)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(MessageKey(ld)),
		Value: value,
		Time:  time.UnixMilli(ld.Ts),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish live data: %w", err)
	}

	p.log.Debug("published live data", zap.String("key", string(msg.Key)))
	return nil
}

// Close finaliza o writer e libera recursos associados.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
