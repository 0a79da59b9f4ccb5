package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewReader cria um reader em consumer group; um grupo novo começa do
// início do tópico para o histórico não perder o que já foi publicado.
func NewReader(brokers []string, topic string, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
	})
}
