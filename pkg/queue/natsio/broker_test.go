package natsio

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nsyszr/eventhub/pkg/dispatcher"
	"github.com/nsyszr/eventhub/pkg/model"
	"github.com/nsyszr/eventhub/pkg/notification"
	"github.com/nsyszr/eventhub/pkg/queue"
	"github.com/nsyszr/eventhub/pkg/service"
	"github.com/nsyszr/eventhub/pkg/storage/memory"
)

type fakePubAckFuture struct {
	okCh  chan *nats.PubAck
	errCh chan error
	msg   *nats.Msg
}

func newFakePubAckFuture(msg *nats.Msg) *fakePubAckFuture {
	return &fakePubAckFuture{
		okCh:  make(chan *nats.PubAck, 1),
		errCh: make(chan error, 1),
		msg:   msg,
	}
}

func (f *fakePubAckFuture) Ok() <-chan *nats.PubAck { return f.okCh }
func (f *fakePubAckFuture) Err() <-chan error       { return f.errCh }
func (f *fakePubAckFuture) Msg() *nats.Msg          { return f.msg }

type fakeJetStream struct {
	mu         sync.Mutex
	streams    map[string]*nats.StreamConfig
	infoErr    error
	publishErr error
	published  []*nats.Msg
	futures    []*fakePubAckFuture
	subErr     error
	subject    string
	group      string
	callback   nats.MsgHandler
}

func newFakeJetStream() *fakeJetStream {
	return &fakeJetStream{streams: make(map[string]*nats.StreamConfig)}
}

func (f *fakeJetStream) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.infoErr != nil {
		return nil, f.infoErr
	}
	cfg, ok := f.streams[stream]
	if !ok {
		return nil, nats.ErrStreamNotFound
	}
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.streams[cfg.Name] = cfg
	return &nats.StreamInfo{Config: *cfg}, nil
}

func (f *fakeJetStream) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return nil, f.publishErr
	}
	msg := &nats.Msg{Subject: subj, Data: data}
	future := newFakePubAckFuture(msg)
	f.published = append(f.published, msg)
	f.futures = append(f.futures, future)
	return future, nil
}

func (f *fakeJetStream) QueueSubscribe(subj, group string, cb nats.MsgHandler, _ ...nats.SubOpt) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subErr != nil {
		return nil, f.subErr
	}
	f.subject = subj
	f.group = group
	f.callback = cb
	return nil, nil
}

func testConfig() Config {
	return Config{
		Stream:        "EVENTHUB_EVENTS",
		Subject:       "eventhub.v1.events",
		ConsumerGroup: "eventhub-processor",
		AckTimeout:    50 * time.Millisecond,
	}
}

func TestNewBrokerCreatesMissingStream(t *testing.T) {
	js := newFakeJetStream()

	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)
	assert.True(t, b.IsDurable())

	cfg, ok := js.streams["EVENTHUB_EVENTS"]
	require.True(t, ok)
	assert.Equal(t, []string{"eventhub.v1.events"}, cfg.Subjects)
	assert.Equal(t, nats.FileStorage, cfg.Storage)
}

func TestNewBrokerKeepsExistingStream(t *testing.T) {
	js := newFakeJetStream()
	existing := &nats.StreamConfig{Name: "EVENTHUB_EVENTS", Subjects: []string{"eventhub.v1.>"}}
	js.streams["EVENTHUB_EVENTS"] = existing

	_, err := NewBroker(js, testConfig())
	require.NoError(t, err)
	assert.Same(t, existing, js.streams["EVENTHUB_EVENTS"])
}

func TestNewBrokerFailsOnLookupError(t *testing.T) {
	js := newFakeJetStream()
	js.infoErr = errors.New("connection closed")

	_, err := NewBroker(js, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
}

func TestBrokerPublish(t *testing.T) {
	js := newFakeJetStream()
	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)

	msg := &queue.EventMessage{EventID: 42, Title: "Deploy", Source: "ci", Type: "DEPLOYMENT"}
	require.NoError(t, b.Publish(context.Background(), msg))

	require.Len(t, js.published, 1)
	assert.Equal(t, "eventhub.v1.events", js.published[0].Subject)

	var got queue.EventMessage
	require.NoError(t, json.Unmarshal(js.published[0].Data, &got))
	assert.Equal(t, int64(42), got.EventID)
	assert.Equal(t, "Deploy", got.Title)

	js.futures[0].okCh <- &nats.PubAck{Stream: "EVENTHUB_EVENTS", Sequence: 1}
}

func TestBrokerPublishReturnsPublishError(t *testing.T) {
	js := newFakeJetStream()
	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)

	js.publishErr = nats.ErrConnectionClosed
	err = b.Publish(context.Background(), &queue.EventMessage{EventID: 7})
	require.Error(t, err)
	assert.True(t, queue.IsPublishError(err))
	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))
}

func TestBrokerSubscribeDeliversMessages(t *testing.T) {
	js := newFakeJetStream()
	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)

	var mu sync.Mutex
	var handled []int64
	err = b.Subscribe(context.Background(), func(_ context.Context, msg *queue.EventMessage) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, msg.EventID)
	})
	require.NoError(t, err)
	assert.Equal(t, "eventhub.v1.events", js.subject)
	assert.Equal(t, "eventhub-processor", js.group)
	require.NotNil(t, js.callback)

	data, _ := json.Marshal(&queue.EventMessage{EventID: 3})
	js.callback(&nats.Msg{Subject: "eventhub.v1.events", Data: data})
	js.callback(&nats.Msg{Subject: "eventhub.v1.events", Data: []byte("not json")})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{3}, handled)
}

func TestBrokerSubscribeError(t *testing.T) {
	js := newFakeJetStream()
	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)

	js.subErr = nats.ErrConnectionClosed
	err = b.Subscribe(context.Background(), func(context.Context, *queue.EventMessage) {})
	require.Error(t, err)
}

func TestBrokerReturnsMessagesAfterConsumerStopped(t *testing.T) {
	js := newFakeJetStream()
	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var handled int
	require.NoError(t, b.Subscribe(ctx, func(context.Context, *queue.EventMessage) {
		handled++
	}))

	data, _ := json.Marshal(&queue.EventMessage{EventID: 1})
	js.callback(&nats.Msg{Subject: "eventhub.v1.events", Data: data})
	assert.Equal(t, 1, handled)

	cancel()
	js.callback(&nats.Msg{Subject: "eventhub.v1.events", Data: data})
	assert.Equal(t, 1, handled)
}

func TestBrokerBacklogSurvivesShutdown(t *testing.T) {
	js := newFakeJetStream()
	b, err := NewBroker(js, testConfig())
	require.NoError(t, err)

	svc := service.NewEventService(memory.NewStore().Events(), b, notification.NewHub(notification.Config{}), nil)
	d := dispatcher.New(dispatcher.NewSimulatedProcessor(time.Millisecond, time.Millisecond), svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Consume(ctx, b))

	m, err := svc.CreateEvent(context.Background(), &service.CreateEventRequest{
		Title:  "Backlog",
		Source: "ci",
		Type:   "DEPLOYMENT",
	})
	require.NoError(t, err)
	require.Len(t, js.published, 1)

	// The server stops while the message is still waiting in the stream
	cancel()
	require.NoError(t, b.Drain(time.Second))
	js.callback(js.published[0])

	got, err := svc.GetEventByID(context.Background(), m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusPending, got.Status)
	assert.Nil(t, got.ProcessedAt)
}

func TestBrokerDrainWithoutSubscription(t *testing.T) {
	b, err := NewBroker(newFakeJetStream(), testConfig())
	require.NoError(t, err)
	assert.NoError(t, b.Drain(time.Second))
}
