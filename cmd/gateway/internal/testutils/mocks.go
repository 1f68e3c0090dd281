package testutils

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/feed"
	"github.com/shubham-shewale/showmarket/cmd/gateway/internal/relay"
	"github.com/shubham-shewale/showmarket/pkg/models"
)

// MockSink records every published tick
type MockSink struct {
	Mu    sync.Mutex
	ticks []models.PriceTick
}

func (m *MockSink) Publish(tick models.PriceTick) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ticks = append(m.ticks, tick)
}

func (m *MockSink) Ticks() []models.PriceTick {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	out := make([]models.PriceTick, len(m.ticks))
	copy(out, m.ticks)
	return out
}

// WaitFor polls until at least n ticks were published or timeout expires.
func (m *MockSink) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(m.Ticks()) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return len(m.Ticks()) >= n
}

type MockClock struct {
	Mu          sync.Mutex
	CurrentTime time.Time
	Slept       []time.Duration
}

func (m *MockClock) Now() time.Time {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.CurrentTime
}

func (m *MockClock) Sleep(d time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.CurrentTime = m.CurrentTime.Add(d)
	m.Slept = append(m.Slept, d)
}

type MockRand struct {
	ValInt   int
	ValFloat float64
}

func (m *MockRand) Intn(n int) int   { return m.ValInt }
func (m *MockRand) Float64() float64 { return m.ValFloat }

// MockQuoteFetcher answers from fixed maps. Symbols in Errs fail.
type MockQuoteFetcher struct {
	Mu     sync.Mutex
	Quotes map[string]models.PriceTick
	Errs   map[string]error
	Calls  map[string]int
}

func (m *MockQuoteFetcher) FetchQuote(ctx context.Context, symbol string) (models.PriceTick, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[symbol]++
	if err, ok := m.Errs[symbol]; ok {
		return models.PriceTick{}, err
	}
	tick, ok := m.Quotes[symbol]
	if !ok {
		return models.PriceTick{}, &feed.UpstreamError{Source: "mock", StatusCode: 404, Err: errors.New("not found")}
	}
	return tick, nil
}

// MockConn replays Frames, then either fails with io.EOF or, with BlockAtEnd, waits for Close.
type MockConn struct {
	Frames     [][]byte
	BlockAtEnd bool

	mu        sync.Mutex
	index     int
	deadlines int
	once      sync.Once
	closed    chan struct{}
}

func NewMockConn(blockAtEnd bool, frames ...string) *MockConn {
	c := &MockConn{BlockAtEnd: blockAtEnd, closed: make(chan struct{})}
	for _, f := range frames {
		c.Frames = append(c.Frames, []byte(f))
	}
	return c
}

func (c *MockConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	if c.index < len(c.Frames) {
		frame := c.Frames[c.index]
		c.index++
		c.mu.Unlock()
		return 1, frame, nil
	}
	c.mu.Unlock()

	if !c.BlockAtEnd {
		return 0, nil, io.EOF
	}
	<-c.closed
	return 0, nil, errors.New("use of closed connection")
}

// SetReadDeadline only counts calls; frames are never delayed.
func (c *MockConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines++
	return nil
}

func (c *MockConn) SetPingHandler(h func(appData string) error) {}

func (c *MockConn) WriteControl(messageType int, data []byte, deadline time.Time) error { return nil }

func (c *MockConn) Deadlines() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadlines
}

func (c *MockConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *MockConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// DialStep is the scripted outcome of one Dial call.
type DialStep struct {
	Conn *MockConn
	Err  error
}

// MockDialer plays Steps in order. Once they run out, Dial blocks until ctx is done.
type MockDialer struct {
	Mu    sync.Mutex
	Steps []DialStep
	Dials int
	URLs  []string
}

func (m *MockDialer) Dial(ctx context.Context, url string) (feed.Conn, error) {
	m.Mu.Lock()
	idx := m.Dials
	m.Dials++
	m.URLs = append(m.URLs, url)
	m.Mu.Unlock()

	if idx < len(m.Steps) {
		step := m.Steps[idx]
		if step.Err != nil {
			return nil, step.Err
		}
		return step.Conn, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (m *MockDialer) DialCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.Dials
}

// MockKafkaWriter collects messages written through the relay. Set Err to fail writes.
type MockKafkaWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockKafkaWriter) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockKafkaWriter) Messages() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.messages...)
}

func (m *MockKafkaWriter) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockKafkaCluster is an in-memory admin endpoint. Every dialed address reaches the same
// cluster; addresses in Unreachable fail. A new topic becomes visible after ReadyAfter reads.
type MockKafkaCluster struct {
	Controller  kafka.Broker
	Unreachable map[string]bool
	CreateErr   error
	ReadyAfter  int

	mu      sync.Mutex
	dialed  []string
	created []kafka.TopicConfig
	reads   int
}

func NewMockKafkaCluster() *MockKafkaCluster {
	return &MockKafkaCluster{
		Controller:  kafka.Broker{Host: "controller", Port: 9093, ID: 1},
		Unreachable: make(map[string]bool),
	}
}

func (c *MockKafkaCluster) DialContext(ctx context.Context, network, address string) (relay.KafkaConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dialed = append(c.dialed, address)
	if c.Unreachable[address] {
		return nil, errors.New("connection refused")
	}
	return &mockKafkaConn{cluster: c}, nil
}

func (c *MockKafkaCluster) Dialed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.dialed...)
}

func (c *MockKafkaCluster) Created() []kafka.TopicConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]kafka.TopicConfig(nil), c.created...)
}

type mockKafkaConn struct {
	cluster *MockKafkaCluster
}

func (k *mockKafkaConn) Controller() (kafka.Broker, error) { return k.cluster.Controller, nil }

func (k *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	c := k.cluster
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateErr != nil {
		return c.CreateErr
	}
	c.created = append(c.created, topics...)
	return nil
}

func (k *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	c := k.cluster
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++
	if c.reads <= c.ReadyAfter {
		return nil, kafka.UnknownTopicOrPartition
	}
	return []kafka.Partition{{Topic: topics[0], ID: 0}}, nil
}

func (k *mockKafkaConn) Close() error { return nil }

type MockPipeline struct {
	redis.Pipeliner // Embed interface to satisfy missing methods

	ExecCount    int
	RecordedCmds []string
	ExecErr      error
	Mu           sync.Mutex
}

func (m *MockPipeline) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "SET "+key)
	return redis.NewStatusCmd(ctx)
}

func (m *MockPipeline) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.RecordedCmds = append(m.RecordedCmds, "PUBLISH "+channel)
	return redis.NewIntCmd(ctx)
}

func (m *MockPipeline) Exec(ctx context.Context) ([]redis.Cmder, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.ExecCount++
	return nil, m.ExecErr
}

type MockRedisClient struct {
	PipelineSpy *MockPipeline
	Values      map[string]string
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{PipelineSpy: &MockPipeline{}, Values: make(map[string]string)}
}

func (m *MockRedisClient) Pipeline() redis.Pipeliner {
	return m.PipelineSpy
}

func (m *MockRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusCmd(ctx)
}

func (m *MockRedisClient) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := m.Values[k]; ok {
			vals[i] = v
		}
	}
	cmd := redis.NewSliceCmd(ctx)
	cmd.SetVal(vals)
	return cmd
}

func (m *MockRedisClient) Close() error { return nil }
