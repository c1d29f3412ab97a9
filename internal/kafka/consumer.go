package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/turdhunter-api/internal/config"
	"github.com/turdhunter-api/internal/domain"
	"github.com/turdhunter-api/internal/metrics"
)

// ScoreCreator stores completed runs
type ScoreCreator interface {
	CreateScore(ctx context.Context, score domain.NewScore) (*domain.ScoreRecord, error)
}

// Consumer ingests completed runs from a Kafka topic
type Consumer struct {
	config        *config.KafkaConfig
	scores        ScoreCreator
	metrics       *metrics.Metrics
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, scores ScoreCreator, m *metrics.Metrics, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, err
	}

	return newConsumer(cfg, scores, m, logger, consumerGroup), nil
}

func newConsumer(cfg *config.KafkaConfig, scores ScoreCreator, m *metrics.Metrics, logger *slog.Logger, group sarama.ConsumerGroup) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:        cfg,
		scores:        scores,
		metrics:       m,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start begins consuming messages and blocks until the first session is set up.
// It returns early with the first Consume error or when ctx is done; the
// consume loop keeps retrying in the background until Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	ready := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }
	failed := make(chan error, 1)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			handler := &consumerGroupHandler{
				consumer: c,
				onSetup:  markReady,
			}

			if err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("error from consumer", "error", err)
				select {
				case failed <- err:
				default:
				}
			}

			// Check if context was cancelled
			if c.ctx.Err() != nil {
				return
			}

			select {
			case <-c.ctx.Done():
				return
			case <-time.After(c.config.RetryBackoff):
			}
		}
	}()

	select {
	case <-ready:
	case err := <-failed:
		return fmt.Errorf("joining consumer group: %w", err)
	case <-ctx.Done():
		return fmt.Errorf("waiting for consumer group session: %w", ctx.Err())
	}
	c.logger.Info("Kafka consumer ready")

	// Handle errors in separate goroutine
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// ingest stores a batch of decoded runs, logging and counting failures
func (c *Consumer) ingest(batch []domain.NewScore) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0
	for _, score := range batch {
		if _, err := c.scores.CreateScore(ctx, score); err != nil {
			failed++
			c.metrics.ObserveIngest("error")
			c.logger.Error("failed to store ingested score",
				"player_name", score.PlayerName,
				"difficulty", score.Difficulty,
				"error", err,
			)
			continue
		}
		c.metrics.ObserveIngest("ok")
	}

	c.logger.Debug("processed batch", "batch_size", len(batch), "failed", failed)
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
	onSetup  func()
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	if h.onSetup != nil {
		h.onSetup()
	}
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	cfg := h.consumer.config
	batch := make([]domain.NewScore, 0, cfg.BatchSize)
	batchTimer := time.NewTimer(cfg.BatchTimeout)
	defer batchTimer.Stop()

	processBatch := func() {
		h.consumer.ingest(batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-session.Context().Done():
			// Process remaining batch before exit
			processBatch()
			return nil

		case <-batchTimer.C:
			processBatch()
			batchTimer.Reset(cfg.BatchTimeout)

		case message, ok := <-claim.Messages():
			if !ok {
				processBatch()
				return nil
			}

			score, err := domain.DecodeScoreSubmission(message.Value)
			if err != nil {
				h.consumer.metrics.ObserveIngest("invalid")
				h.consumer.logger.Warn("invalid score message",
					"error", err,
					"offset", message.Offset,
					"partition", message.Partition,
				)
				session.MarkMessage(message, "")
				continue
			}

			batch = append(batch, score)
			session.MarkMessage(message, "")

			if len(batch) >= cfg.BatchSize {
				processBatch()
				batchTimer.Reset(cfg.BatchTimeout)
			}
		}
	}
}
