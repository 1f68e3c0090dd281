package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/relay"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/testutils"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

func TestRedisWriter_Pipeline(t *testing.T) {
	mockRedis := testutils.NewMockRedisClient()
	w := relay.NewRedisWriter(mockRedis, time.Minute)

	err := w.WriteTick(context.Background(), models.PriceTick{Symbol: "BTCUSDT", Price: 42000.5, ObservedAtMs: 1000})
	require.NoError(t, err)

	pipeline := mockRedis.PipelineSpy
	pipeline.Mu.Lock()
	defer pipeline.Mu.Unlock()

	assert.Equal(t, 1, pipeline.ExecCount)
	assert.Equal(t, []string{"SET stock:BTCUSDT", "PUBLISH prices.BTCUSDT"}, pipeline.RecordedCmds)
}

func TestRedisWriter_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	ctx := context.Background()
	pubsub := rdb.Subscribe(ctx, "prices.000001.SH")
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	tick := models.PriceTick{Symbol: "000001.SH", Price: 3051.22, ObservedAtMs: 1700000000000}
	w := relay.NewRedisWriter(rdb, time.Hour)
	require.NoError(t, w.WriteTick(ctx, tick))

	want, _ := json.Marshal(tick)
	got, err := mr.Get("stock:000001.SH")
	require.NoError(t, err)
	assert.JSONEq(t, string(want), got)
	assert.True(t, mr.TTL("stock:000001.SH") > 0)

	select {
	case msg := <-pubsub.Channel():
		assert.JSONEq(t, string(want), msg.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no message on prices.000001.SH")
	}
}

func TestGetSnapshots_SkipsMissingAndBroken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	mr.Set("stock:BTCUSDT", `{"symbol":"BTCUSDT","price":42000.5,"ts_ms":1000}`)
	mr.Set("stock:ETHUSDT", `{broken`)

	ticks, err := relay.GetSnapshots(context.Background(), rdb, []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"})
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, models.PriceTick{Symbol: "BTCUSDT", Price: 42000.5, ObservedAtMs: 1000}, ticks[0])

	none, err := relay.GetSnapshots(context.Background(), rdb, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestKafkaTickWriter_KeyedBySymbol(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}
	w := relay.NewKafkaTickWriter(mockWriter)

	require.NoError(t, w.WriteTick(context.Background(), models.PriceTick{Symbol: "ETHUSDT", Price: 2500, ObservedAtMs: 7}))
	require.NoError(t, w.Close())

	messages := mockWriter.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "ETHUSDT", string(messages[0].Key))

	var tick models.PriceTick
	require.NoError(t, json.Unmarshal(messages[0].Value, &tick))
	assert.Equal(t, 2500.0, tick.Price)
	assert.True(t, mockWriter.Closed())
}

func TestRelay_RunDeliversAndCloses(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}
	r := relay.New("kafka", relay.NewKafkaTickWriter(mockWriter), 8, 2, zap.NewNop())

	r.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 1})
	r.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 2})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(mockWriter.Messages()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.True(t, mockWriter.Closed())
}

func TestRelay_WriteFailureKeepsRunning(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}
	mockWriter.SetErr(errors.New("broker down"))
	r := relay.New("kafka", relay.NewKafkaTickWriter(mockWriter), 8, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	r.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 1})
	time.Sleep(50 * time.Millisecond)

	mockWriter.SetErr(nil)

	r.Publish(models.PriceTick{Symbol: "BTCUSDT", Price: 2})
	assert.Eventually(t, func() bool {
		return len(mockWriter.Messages()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func tickTopic() relay.TopicSpec {
	return relay.TopicSpec{Name: "market_ticks", Partitions: 6, ReplicationFactor: 3}
}

func TestTopicCreator_Ensure(t *testing.T) {
	cluster := testutils.NewMockKafkaCluster()
	cluster.ReadyAfter = 1
	clock := &testutils.MockClock{}

	tc := relay.NewTopicCreator(zap.NewNop(), cluster, clock)
	require.NoError(t, tc.Ensure(context.Background(), []string{"broker:9092"}, tickTopic()))

	created := cluster.Created()
	require.Len(t, created, 1)
	assert.Equal(t, "market_ticks", created[0].Topic)
	assert.Equal(t, 6, created[0].NumPartitions)
	assert.Equal(t, 3, created[0].ReplicationFactor)
	assert.Equal(t, []string{"broker:9092", "controller:9093"}, cluster.Dialed())
	assert.Len(t, clock.Slept, 1)
}

func TestTopicCreator_ExistingTopicIsFine(t *testing.T) {
	cluster := testutils.NewMockKafkaCluster()
	cluster.CreateErr = kafka.TopicAlreadyExists

	tc := relay.NewTopicCreator(zap.NewNop(), cluster, &testutils.MockClock{})
	assert.NoError(t, tc.Ensure(context.Background(), []string{"broker:9092"}, tickTopic()))
}

func TestTopicCreator_FallsThroughBrokers(t *testing.T) {
	cluster := testutils.NewMockKafkaCluster()
	cluster.Unreachable["a:9092"] = true

	tc := relay.NewTopicCreator(zap.NewNop(), cluster, &testutils.MockClock{})
	require.NoError(t, tc.Ensure(context.Background(), []string{"a:9092", "b:9092"}, tickTopic()))
	assert.Equal(t, []string{"a:9092", "b:9092", "controller:9093"}, cluster.Dialed())
}

func TestTopicCreator_Errors(t *testing.T) {
	t.Run("no broker reachable", func(t *testing.T) {
		cluster := testutils.NewMockKafkaCluster()
		cluster.Unreachable["a:9092"] = true
		cluster.Unreachable["b:9092"] = true
		clock := &testutils.MockClock{}

		err := relay.NewTopicCreator(zap.NewNop(), cluster, clock).Ensure(context.Background(), []string{"a:9092", "b:9092"}, tickTopic())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a:9092")
		assert.Contains(t, err.Error(), "b:9092")
		assert.Empty(t, cluster.Created())
		assert.Empty(t, clock.Slept)
	})

	t.Run("no brokers configured", func(t *testing.T) {
		cluster := testutils.NewMockKafkaCluster()
		err := relay.NewTopicCreator(zap.NewNop(), cluster, &testutils.MockClock{}).Ensure(context.Background(), nil, tickTopic())
		assert.Error(t, err)
		assert.Empty(t, cluster.Dialed())
	})

	t.Run("create rejected", func(t *testing.T) {
		cluster := testutils.NewMockKafkaCluster()
		cluster.CreateErr = kafka.InvalidReplicationFactor

		err := relay.NewTopicCreator(zap.NewNop(), cluster, &testutils.MockClock{}).Ensure(context.Background(), []string{"a:9092"}, tickTopic())
		assert.ErrorIs(t, err, kafka.InvalidReplicationFactor)
	})

	t.Run("never ready", func(t *testing.T) {
		cluster := testutils.NewMockKafkaCluster()
		cluster.ReadyAfter = 100
		clock := &testutils.MockClock{}

		err := relay.NewTopicCreator(zap.NewNop(), cluster, clock).Ensure(context.Background(), []string{"a:9092"}, tickTopic())
		assert.ErrorIs(t, err, relay.ErrTopicNotReady)
		assert.Len(t, clock.Slept, 5)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		cluster := testutils.NewMockKafkaCluster()
		cluster.ReadyAfter = 100
		clock := &testutils.MockClock{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := relay.NewTopicCreator(zap.NewNop(), cluster, clock).Ensure(ctx, []string{"a:9092"}, tickTopic())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, clock.Slept)
	})
}
