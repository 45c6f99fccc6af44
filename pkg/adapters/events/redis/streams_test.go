package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

var _ ports.EventBus = (*StreamsEventBus)(nil)
var _ Client = (*redis.Client)(nil)

// mockStreamClient keeps streams in memory with sequential "N-0" IDs.
type mockStreamClient struct {
	mu      sync.Mutex
	streams map[string][]redis.XMessage
	seq     int
	lastAdd *redis.XAddArgs
	addErr  error
	// readErrs are returned by XRead, one per call, before normal reads.
	readErrs []error
}

func newMockStreamClient() *mockStreamClient {
	return &mockStreamClient{streams: make(map[string][]redis.XMessage)}
}

func (m *mockStreamClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if m.addErr != nil {
		cmd.SetErr(m.addErr)
		return cmd
	}
	m.seq++
	id := fmt.Sprintf("%d-0", m.seq)
	values := make(map[string]interface{})
	for k, v := range a.Values.(map[string]interface{}) {
		values[k] = v
	}
	m.streams[a.Stream] = append(m.streams[a.Stream], redis.XMessage{ID: id, Values: values})
	m.lastAdd = a
	cmd.SetVal(id)
	return cmd
}

func (m *mockStreamClient) XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd {
	cmd := redis.NewXStreamSliceCmd(ctx, "xread")

	m.mu.Lock()
	if len(m.readErrs) > 0 {
		err := m.readErrs[0]
		m.readErrs = m.readErrs[1:]
		m.mu.Unlock()
		cmd.SetErr(err)
		return cmd
	}
	m.mu.Unlock()

	stream, after := a.Streams[0], seqOf(a.Streams[1])
	deadline := time.Now().Add(a.Block)
	for {
		m.mu.Lock()
		var msgs []redis.XMessage
		for _, msg := range m.streams[stream] {
			if seqOf(msg.ID) > after {
				msgs = append(msgs, msg)
			}
		}
		m.mu.Unlock()

		if len(msgs) > 0 {
			cmd.SetVal([]redis.XStream{{Stream: stream, Messages: msgs}})
			return cmd
		}
		if ctx.Err() != nil {
			cmd.SetErr(ctx.Err())
			return cmd
		}
		if time.Now().After(deadline) {
			cmd.SetErr(redis.Nil)
			return cmd
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *mockStreamClient) XRevRangeN(ctx context.Context, stream, _, _ string, count int64) *redis.XMessageSliceCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewXMessageSliceCmd(ctx, "xrevrange", stream)
	msgs := m.streams[stream]
	if len(msgs) == 0 {
		cmd.SetVal(nil)
		return cmd
	}
	cmd.SetVal([]redis.XMessage{msgs[len(msgs)-1]})
	return cmd
}

func seqOf(id string) int {
	n, _ := strconv.Atoi(strings.SplitN(id, "-", 2)[0])
	return n
}

func newTestBus(client Client) *StreamsEventBus {
	bus := NewStreamsEventBus(client, 1000, zap.NewNop())
	bus.block = 10 * time.Millisecond
	bus.retryWait = time.Millisecond
	return bus
}

type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) handle(_ context.Context, e domain.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) runIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.RunID)
	}
	return out
}

func TestPublishAddsTrimmedEntry(t *testing.T) {
	client := newMockStreamClient()
	bus := newTestBus(client)
	defer bus.Close()

	require.NoError(t, bus.Publish(context.Background(), domain.TopicRunEvents, domain.Event{
		ID:    "e1",
		Type:  domain.EventTypeRunStarted,
		RunID: "run-1",
	}))

	require.NotNil(t, client.lastAdd)
	assert.Equal(t, "aerodoc:events:run.events", client.lastAdd.Stream)
	assert.Equal(t, int64(1000), client.lastAdd.MaxLen)
	assert.True(t, client.lastAdd.Approx)

	entries := client.streams["aerodoc:events:run.events"]
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values["data"], `"run_id":"run-1"`)
}

func TestPublishError(t *testing.T) {
	client := newMockStreamClient()
	client.addErr = errors.New("OOM command not allowed")
	bus := newTestBus(client)
	defer bus.Close()

	err := bus.Publish(context.Background(), domain.TopicRunEvents, domain.Event{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add to stream")
}

func TestSubscribersEachReceiveNewEvents(t *testing.T) {
	client := newMockStreamClient()
	bus := newTestBus(client)
	defer bus.Close()
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{RunID: "before"}))

	a, b := &collector{}, &collector{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, a.handle))
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, b.handle))

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{RunID: id}))
	}

	want := []string{"r1", "r2", "r3"}
	assert.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, a.runIDs()) }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return assert.ObjectsAreEqual(want, b.runIDs()) }, time.Second, 5*time.Millisecond)
}

func TestSubscriberSkipsMalformedEntries(t *testing.T) {
	client := newMockStreamClient()
	bus := newTestBus(client)
	defer bus.Close()
	ctx := context.Background()

	c := &collector{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, c.handle))

	key := getStreamKey(domain.TopicRunEvents)
	client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]interface{}{"other": "x"}})
	client.XAdd(ctx, &redis.XAddArgs{Stream: key, Values: map[string]interface{}{"data": "{broken"}})
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{RunID: "good"}))

	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"good"}, c.runIDs())
	}, time.Second, 5*time.Millisecond)
}

func TestSubscriberRecoversFromReadErrors(t *testing.T) {
	client := newMockStreamClient()
	client.readErrs = []error{errors.New("connection reset"), errors.New("connection reset")}
	bus := newTestBus(client)
	defer bus.Close()
	ctx := context.Background()

	c := &collector{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, c.handle))
	require.NoError(t, bus.Publish(ctx, domain.TopicRunEvents, domain.Event{RunID: "r1"}))

	assert.Eventually(t, func() bool { return len(c.runIDs()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestSubscriptionStopsWithContext(t *testing.T) {
	client := newMockStreamClient()
	bus := newTestBus(client)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	require.NoError(t, bus.Subscribe(ctx, domain.TopicRunEvents, c.handle))
	cancel()
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), domain.TopicRunEvents, domain.Event{RunID: "late"}))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.runIDs())
}

func TestCloseStopsSubscribers(t *testing.T) {
	client := newMockStreamClient()
	bus := newTestBus(client)

	require.NoError(t, bus.Subscribe(context.Background(), domain.TopicRunEvents, (&collector{}).handle))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), domain.TopicRunEvents, domain.Event{}), ErrClosed)
	assert.ErrorIs(t, bus.Subscribe(context.Background(), domain.TopicRunEvents, (&collector{}).handle), ErrClosed)
}
