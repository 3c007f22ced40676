// Package consumer feeds documents published on the ingestion topic
// through the store's embedding pipeline.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Zereker/vecstore/internal/domain"
	"github.com/Zereker/vecstore/internal/store"
	"github.com/Zereker/vecstore/pkg/mq"
)

// Consumer 异步文档摄取消费者
type Consumer struct {
	logger    *slog.Logger
	store     *store.Store
	consumers []*mq.KafkaConsumer
}

// Config 消费者配置
type Config struct {
	Kafka mq.KafkaConfig
}

// NewConsumer 创建消费者
func NewConsumer(s *store.Store, cfg Config) (*Consumer, error) {
	c := &Consumer{
		logger: slog.Default().With("module", "consumer"),
		store:  s,
	}

	if !cfg.Kafka.Enabled {
		c.logger.Info("kafka disabled, consumer not started")
		return c, nil
	}

	for _, consumerCfg := range cfg.Kafka.Consumers {
		consumer, err := mq.NewKafkaConsumer(cfg.Kafka.Brokers, consumerCfg, c.handleMessage)
		if err != nil {
			return nil, err
		}
		c.consumers = append(c.consumers, consumer)
	}

	return c, nil
}

// handleMessage decodes one published document and runs it through the
// processing pipeline. Decode failures are logged and dropped so a
// malformed message cannot wedge the partition.
func (c *Consumer) handleMessage(ctx context.Context, topic string, message []byte) error {
	var doc domain.Document
	if err := json.Unmarshal(message, &doc); err != nil {
		c.logger.Error("dropping malformed document", "topic", topic, "error", err)
		return nil
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	if _, err := c.store.ProcessAll(ctx, []domain.Document{doc}); err != nil {
		c.logger.Error("document processing failed", "id", doc.ID, "error", err)
		return err
	}

	c.logger.Debug("document processed", "id", doc.ID, "topic", topic)
	return nil
}

// Start 启动所有消费者
func (c *Consumer) Start(ctx context.Context) error {
	if len(c.consumers) == 0 {
		c.logger.Info("no consumers configured, skipping start")
		return nil
	}

	c.logger.Info("starting consumers", "count", len(c.consumers))

	g, ctx := errgroup.WithContext(ctx)
	for _, consumer := range c.consumers {
		consumer := consumer
		g.Go(func() error {
			return consumer.Start(ctx)
		})
	}

	return g.Wait()
}

// Stop 停止所有消费者
func (c *Consumer) Stop() error {
	c.logger.Info("stopping consumers")

	for _, consumer := range c.consumers {
		if err := consumer.Stop(); err != nil {
			c.logger.Error("failed to stop consumer", "error", err)
		}
	}

	return nil
}
