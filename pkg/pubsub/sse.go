package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/securely/surfacemap/pkg/logging"
)

var log = logging.New("pubsub")

// subscriberQueue is the channel capacity of one subscription. Slow readers
// lose events rather than stalling the publishing layout engine.
const subscriberQueue = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to keep for late subscribers (0 = none)
	ReplayAll  bool // Replay the whole buffer instead of only its last event
}

// replay returns the part of buf a new subscriber should see.
func (c TopicConfig) replay(buf []Event) []Event {
	if len(buf) == 0 || c.ReplayAll {
		return buf
	}
	return buf[len(buf)-1:]
}

// topicState is everything the publisher tracks for one topic.
type topicState struct {
	config  TopicConfig
	version int
	buffer  []Event
	subs    map[*sseSubscription]struct{}
}

func (t *topicState) remember(ev Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.buffer = append(t.buffer, ev)
	if over := len(t.buffer) - t.config.BufferSize; over > 0 {
		t.buffer = append([]Event(nil), t.buffer[over:]...)
	}
}

// SSEPublisher implements Publisher for Server-Sent Event streams. Topics
// come into existence on first use.
type SSEPublisher struct {
	mu     sync.RWMutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher creates a new SSE-based publisher
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// topic returns the state of name, creating it. Callers hold p.mu.
func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscription and queues the topic's replay events
// on it. Cancelling ctx closes the subscription.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberQueue),
		publisher: p,
	}
	t := p.topic(name)
	t.subs[sub] = struct{}{}

	// Queue replay while still holding the lock so that no newer event can
	// overtake it.
	replayed := 0
	for _, ev := range t.config.replay(t.buffer) {
		select {
		case sub.events <- ev:
			replayed++
		default:
			log.Warn("could not replay event to new subscriber", "topic", name, "version", ev.Version)
		}
	}
	p.mu.Unlock()

	if replayed > 0 {
		log.Debug("replayed events to new subscriber", "topic", name, "count", replayed)
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish stamps the next topic version on an event and delivers it to
// every subscriber without blocking.
func (p *SSEPublisher) Publish(name string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	ev := Event{
		Topic:   name,
		Type:    eventType,
		Data:    payload,
		Version: t.version,
	}
	t.remember(ev)

	for sub := range t.subs {
		select {
		case sub.events <- ev:
		default:
			log.Warn("subscription channel full, dropping event", "topic", name, "type", eventType)
		}
	}
	return nil
}

// Close shuts down the publisher and closes every subscription channel.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	topics := p.topics
	p.topics = make(map[string]*topicState)
	p.mu.Unlock()

	for _, t := range topics {
		t.closeSubscribers()
	}
	return nil
}

// DropTopic forgets the buffer, version and configuration of a topic and
// closes its subscriptions. Used when the session behind a topic goes away.
func (p *SSEPublisher) DropTopic(name string) {
	p.mu.Lock()
	t, ok := p.topics[name]
	delete(p.topics, name)
	p.mu.Unlock()

	if ok {
		t.closeSubscribers()
	}
}

// closeSubscribers runs after the topic was detached from the publisher, so
// no Publish can reach these channels any more.
func (t *topicState) closeSubscribers() {
	for sub := range t.subs {
		sub.markClosed()
		close(sub.events)
	}
}

// Subscribers returns the number of live subscriptions to a topic.
func (p *SSEPublisher) Subscribers(name string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if t, ok := p.topics[name]; ok {
		return len(t.subs)
	}
	return 0
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[sub.topic]
	if !ok {
		return
	}
	delete(t.subs, sub)
}

type sseSubscription struct {
	topic     string
	events    chan Event
	publisher *SSEPublisher

	mu     sync.Mutex
	closed bool
}

func (s *sseSubscription) Topic() string {
	return s.topic
}

func (s *sseSubscription) Events() <-chan Event {
	return s.events
}

// Close detaches the subscription. The channel itself is left open; it is
// closed only by the publisher, which is its sole sender.
func (s *sseSubscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.publisher.unsubscribe(s)
	return nil
}

func (s *sseSubscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// WriteSSE writes one event as an SSE message. The id field carries the
// topic version so browsers report it back as Last-Event-ID.
//
//	id: 2
//	data: {"topic":...,"type":...,"data":...,"version":2}
func WriteSSE(w io.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, payload)
	return err
}
