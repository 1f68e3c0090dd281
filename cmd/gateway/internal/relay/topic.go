package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/feed"
)

const (
	topicReadyAttempts = 5
	topicReadyInterval = 200 * time.Millisecond
)

var ErrTopicNotReady = errors.New("topic not ready")

// KafkaConn is the admin surface of a broker connection. *kafka.Conn satisfies it.
type KafkaConn interface {
	Controller() (kafka.Broker, error)
	CreateTopics(topics ...kafka.TopicConfig) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

type KafkaDialer interface {
	DialContext(ctx context.Context, network, address string) (KafkaConn, error)
}

// KafkaDialerFunc adapts a dial function to KafkaDialer.
type KafkaDialerFunc func(ctx context.Context, network, address string) (KafkaConn, error)

func (f KafkaDialerFunc) DialContext(ctx context.Context, network, address string) (KafkaConn, error) {
	return f(ctx, network, address)
}

// DialKafka wraps a *kafka.Dialer. The result is never a typed nil.
func DialKafka(d *kafka.Dialer) KafkaDialerFunc {
	return func(ctx context.Context, network, address string) (KafkaConn, error) {
		conn, err := d.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// TopicSpec describes the tick topic.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// TopicCreator makes sure the tick topic exists before the Kafka relay starts writing.
type TopicCreator struct {
	logger *zap.Logger
	dialer KafkaDialer
	clock  feed.Clock
}

func NewTopicCreator(logger *zap.Logger, dialer KafkaDialer, clock feed.Clock) *TopicCreator {
	return &TopicCreator{logger: logger, dialer: dialer, clock: clock}
}

// Ensure creates the topic on the cluster's controller if needed and waits until its partitions
// are visible. An existing topic is not an error.
func (tc *TopicCreator) Ensure(ctx context.Context, brokers []string, spec TopicSpec) error {
	conn, err := tc.dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	controllerConn, err := tc.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
	switch {
	case errors.Is(err, kafka.TopicAlreadyExists):
		tc.logger.Info("Topic already exists", zap.String("topic", spec.Name))
	case err != nil:
		return fmt.Errorf("create topic %s: %w", spec.Name, err)
	default:
		tc.logger.Info("Topic created", zap.String("topic", spec.Name),
			zap.Int("partitions", spec.Partitions), zap.Int("replication_factor", spec.ReplicationFactor))
	}

	return tc.waitForTopic(ctx, conn, spec.Name)
}

func (tc *TopicCreator) dialAny(ctx context.Context, brokers []string) (KafkaConn, error) {
	var errs []error
	for _, addr := range brokers {
		conn, err := tc.dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", addr, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	return nil, fmt.Errorf("dial kafka brokers: %w", errors.Join(errs...))
}

func (tc *TopicCreator) waitForTopic(ctx context.Context, conn KafkaConn, topic string) error {
	for i := 0; i < topicReadyAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		partitions, err := conn.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			tc.logger.Info("Topic is ready", zap.String("topic", topic), zap.Int("partitions", len(partitions)))
			return nil
		}
		tc.clock.Sleep(topicReadyInterval)
	}
	return fmt.Errorf("%w: %s after %d checks", ErrTopicNotReady, topic, topicReadyAttempts)
}
