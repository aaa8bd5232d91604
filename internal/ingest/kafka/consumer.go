// Package kafka adapts a Kafka/Redpanda topic into foxglove channel
// broadcasts: each record's value is decoded as an Envelope naming the
// target channel, and handed to a BroadcastFunc (internal/server's
// Server.BroadcastMessage) for fan-out to subscribers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/adred-codev/fgws/internal/logging"
	"github.com/adred-codev/fgws/internal/metrics"
)

// Envelope is the minimal message shape this reference ingest adapter
// expects on every topic: enough to route to a channel and stamp a
// timestamp, with the rest passed through opaquely as the payload.
type Envelope struct {
	ChannelID      uint32 `json:"channelId"`
	TimestampNanos uint64 `json:"timestampNanos"`
	Payload        []byte `json:"payload"`
}

// BroadcastFunc fans a decoded message out to every subscriber of
// channelID. Matches (*server.Server).BroadcastMessage's signature.
type BroadcastFunc func(channelID uint32, timestampNanos uint64, payload []byte)

// Consumer wraps a franz-go client consuming one or more topics and
// routing each record through BroadcastFunc.
type Consumer struct {
	client    *kgo.Client
	logger    zerolog.Logger
	broadcast BroadcastFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Uint64
	dropped   atomic.Uint64
}

// Config configures a Consumer.
type Config struct {
	Brokers       []string
	Topics        []string
	ConsumerGroup string
	Logger        zerolog.Logger
	Broadcast     BroadcastFunc
}

// NewConsumer builds a Consumer without starting it; call Start to begin
// consuming.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka ingest: at least one broker is required")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka ingest: at least one topic is required")
	}
	if cfg.Broadcast == nil {
		return nil, fmt.Errorf("kafka ingest: broadcast function is required")
	}
	if cfg.ConsumerGroup == "" {
		cfg.ConsumerGroup = "fgws"
	}

	ctx, cancel := context.WithCancel(context.Background())

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.FetchMaxWait(500*time.Millisecond),
		kgo.FetchMinBytes(1),
		kgo.FetchMaxBytes(10*1024*1024),
		kgo.SessionTimeout(30*time.Second),
		kgo.RebalanceTimeout(60*time.Second),
		kgo.OnPartitionsAssigned(func(_ context.Context, _ *kgo.Client, assigned map[string][]int32) {
			cfg.Logger.Info().Interface("partitions", assigned).Msg("kafka partitions assigned")
		}),
		kgo.OnPartitionsRevoked(func(_ context.Context, _ *kgo.Client, revoked map[string][]int32) {
			cfg.Logger.Info().Interface("partitions", revoked).Msg("kafka partitions revoked")
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("kafka ingest: create client: %w", err)
	}

	return &Consumer{
		client:    client,
		logger:    cfg.Logger,
		broadcast: cfg.Broadcast,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins the consume loop in a background goroutine.
func (c *Consumer) Start() {
	c.logger.Info().Msg("starting kafka ingest consumer")
	metrics.KafkaIngestConnected.Set(1)
	c.wg.Add(1)
	go c.consumeLoop()
}

// Stop cancels the consume loop and waits for it to exit.
func (c *Consumer) Stop() {
	c.logger.Info().Msg("stopping kafka ingest consumer")
	c.cancel()
	c.wg.Wait()
	c.client.Close()
	metrics.KafkaIngestConnected.Set(0)
	c.logger.Info().
		Uint64("messages_processed", c.processed.Load()).
		Uint64("messages_dropped", c.dropped.Load()).
		Msg("kafka ingest consumer stopped")
}

func (c *Consumer) consumeLoop() {
	defer logging.RecoverPanic(c.logger, "consumeLoop", nil)
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			fetches := c.client.PollFetches(c.ctx)
			if c.ctx.Err() != nil {
				return
			}
			for _, err := range fetches.Errors() {
				c.logger.Error().Err(err.Err).Str("topic", err.Topic).Int32("partition", err.Partition).
					Msg("kafka fetch error")
			}
			fetches.EachRecord(c.processRecord)
		}
	}
}

func (c *Consumer) processRecord(record *kgo.Record) {
	var env Envelope
	if err := json.Unmarshal(record.Value, &env); err != nil {
		c.logger.Warn().Err(err).Str("topic", record.Topic).Msg("kafka ingest: malformed envelope, dropping")
		c.dropped.Add(1)
		metrics.KafkaMessagesDropped.Inc()
		return
	}
	if env.TimestampNanos == 0 {
		env.TimestampNanos = uint64(record.Timestamp.UnixNano())
	}

	c.broadcast(env.ChannelID, env.TimestampNanos, env.Payload)
	c.processed.Add(1)
	metrics.KafkaMessagesIngested.Inc()
}
