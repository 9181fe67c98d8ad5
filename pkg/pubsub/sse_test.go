package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publishN(t *testing.T, pub *SSEPublisher, topic string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		require.NoError(t, pub.Publish(topic, "event", map[string]int{"num": i}))
	}
}

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func assertQuiet(t *testing.T, sub Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events():
		t.Errorf("unexpected event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestReplay(t *testing.T) {
	tests := []struct {
		name      string
		config    TopicConfig
		published int
		want      []int // replayed versions
	}{
		{"buffer keeps the most recent", TopicConfig{BufferSize: 3, ReplayAll: true}, 5, []int{3, 4, 5}},
		{"last only", TopicConfig{BufferSize: 5}, 3, []int{3}},
		{"no buffer", TopicConfig{}, 3, nil},
		{"unconfigured topic", TopicConfig{}, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := NewSSEPublisher()
			defer pub.Close()
			pub.ConfigureTopic("test", tt.config)
			publishN(t, pub, "test", tt.published)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sub, err := pub.Subscribe(ctx, "test")
			require.NoError(t, err)
			defer sub.Close()

			for _, v := range tt.want {
				assert.Equal(t, v, receive(t, sub).Version)
			}
			assertQuiet(t, sub)
		})
	}
}

func TestPublish_VersionsPerTopic(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := pub.Subscribe(ctx, LayoutTopic("a"))
	require.NoError(t, err)
	b, err := pub.Subscribe(ctx, LayoutTopic("b"))
	require.NoError(t, err)

	require.NoError(t, pub.Publish(LayoutTopic("a"), "placed", nil))
	require.NoError(t, pub.Publish(LayoutTopic("a"), "relaxed", nil))
	require.NoError(t, pub.Publish(LayoutTopic("b"), "placed", nil))

	first, second := receive(t, a), receive(t, a)
	assert.Equal(t, "placed", first.Type)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "relaxed", second.Type)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, LayoutTopic("a"), second.Topic)

	ev := receive(t, b)
	assert.Equal(t, 1, ev.Version)
	assertQuiet(t, b)
}

func TestPublish_UnmarshalablePayload(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	assert.Error(t, pub.Publish("test", "event", make(chan int)))
}

func TestSubscriptionClose(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	sub, err := pub.Subscribe(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, "test", sub.Topic())
	assert.Equal(t, 1, pub.Subscribers("test"))

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, pub.Subscribers("test"))
}

func TestSubscribe_ContextCancelUnsubscribes(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := pub.Subscribe(ctx, "test")
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return pub.Subscribers("test") == 0 }, time.Second, 5*time.Millisecond)
}

func TestDropTopic(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	topic := LayoutTopic("abc")
	pub.ConfigureTopic(topic, TopicConfig{BufferSize: 1})
	require.NoError(t, pub.Publish(topic, "placed", map[string]int{"n": 1}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := pub.Subscribe(ctx, topic)
	require.NoError(t, err)
	receive(t, sub)
	assert.Equal(t, 1, pub.Subscribers(topic))

	pub.DropTopic(topic)

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "expected the subscription channel to be closed")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	assert.NoError(t, sub.Close())
	assert.Equal(t, 0, pub.Subscribers(topic))

	// The topic starts over: no stale replay and versions restart at 1.
	fresh, err := pub.Subscribe(ctx, topic)
	require.NoError(t, err)
	assertQuiet(t, fresh)
	require.NoError(t, pub.Publish(topic, "placed", nil))
	assert.Equal(t, 1, receive(t, fresh).Version)

	pub.DropTopic("never-used")
}

func TestClose(t *testing.T) {
	pub := NewSSEPublisher()

	sub, err := pub.Subscribe(context.Background(), TopicAnalysisStatus)
	require.NoError(t, err)
	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.NoError(t, sub.Close())

	assert.ErrorIs(t, pub.Publish(TopicAnalysisStatus, StateReady, AnalysisStatus{State: StateReady}), ErrClosed)
	_, err = pub.Subscribe(context.Background(), TopicAnalysisStatus)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	event := Event{Topic: TopicAnalysisStatus, Type: StateReady, Data: json.RawMessage(`{"state":"ready"}`), Version: 2}
	require.NoError(t, WriteSSE(&buf, event))

	want := "id: 2\n" +
		`data: {"topic":"analysis_status","type":"ready","data":{"state":"ready"},"version":2}` + "\n\n"
	assert.Equal(t, want, buf.String())
}
