package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/smartwear-tech/go-backend/internal/cfg"
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/segmentio/kafka-go"
)

// productChangeEvent — событие изменения каталога для downstream-потребителей
// (пересборка витрин, аналитика). Сериализуется в JSON.
type productChangeEvent struct {
	EventID        string `json:"event_id"`
	EventTimestamp int64  `json:"event_timestamp"`
	Operation      string `json:"operation"`
	ProductID      int64  `json:"product_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	ImageKey       string `json:"image_key"`
	ModelVersion   string `json:"model_version"`
}

type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) (*Producer, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    10,
		BatchTimeout: 500 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warnf("Kafka producer error: %s", err.Error())
			}
		},
	}

	return &Producer{
		writer: writer,
		logger: logger,
		cfg:    cfg,
	}, nil
}

// WriteMessage публикует событие изменения продукта. Ключ сообщения — ID
// продукта, события одного продукта попадают в одну партицию.
func (p *Producer) WriteMessage(ctx context.Context, req *usecase.WriteMessageReq) error {
	value, err := p.GetPayloadBytes(req)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(req.ProductID, 10)),
		Value: value,
	})
}

func (p *Producer) EnsureTopic(timeout time.Duration) error {
	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(p.cfg.Topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		err := conn.CreateTopics(kafka.TopicConfig{
			Topic:             p.cfg.Topic,
			NumPartitions:     p.cfg.Partitions,
			ReplicationFactor: p.cfg.ReplicationFactor,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), fmt.Errorf("failed to create topic %s: %w", p.cfg.Topic, err))
		}
		return nil
	case <-time.After(timeout):
		_ = conn.Close()
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("timeout: %v, topic: %s", timeout, p.cfg.Topic))
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func (p *Producer) GetPayloadBytes(req *usecase.WriteMessageReq) ([]byte, error) {
	event := productChangeEvent{
		EventID:        uuid.NewString(),
		EventTimestamp: time.Now().UnixNano(),
		Operation:      "upsert",
		ProductID:      req.ProductID,
		Name:           req.Name,
		Category:       req.CategoryName,
		ImageKey:       req.ImageKey,
		ModelVersion:   req.ModelVersion,
	}

	return json.Marshal(event)
}
