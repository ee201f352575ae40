package natsio

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	nats "github.com/nats-io/nats.go"
	"github.com/nsyszr/eventhub/pkg/queue"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultAckWait           = 30 * time.Second
	defaultDuplicatesWindow  = 2 * time.Minute
	defaultPublishAckTimeout = 10 * time.Second
)

// JetStream is the part of nats.JetStreamContext the broker uses.
type JetStream interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	QueueSubscribe(subj, queue string, cb nats.MsgHandler, opts ...nats.SubOpt) (*nats.Subscription, error)
}

// Config names the JetStream resources used by the broker.
type Config struct {
	Stream        string
	Subject       string
	ConsumerGroup string
	AckTimeout    time.Duration
}

// Broker is the durable queue backed by NATS JetStream.
type Broker struct {
	js         JetStream
	stream     string
	subject    string
	group      string
	ackTimeout time.Duration

	mu  sync.Mutex
	sub *nats.Subscription
}

// NewBroker creates a broker and makes sure the events stream exists.
func NewBroker(js JetStream, cfg Config) (*Broker, error) {
	if js == nil {
		return nil, errors.New("broker: jetstream context is missing")
	}

	b := &Broker{
		js:         js,
		stream:     cfg.Stream,
		subject:    cfg.Subject,
		group:      cfg.ConsumerGroup,
		ackTimeout: cfg.AckTimeout,
	}
	if b.ackTimeout <= 0 {
		b.ackTimeout = defaultPublishAckTimeout
	}

	if err := b.ensureStream(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *Broker) ensureStream() error {
	_, err := b.js.StreamInfo(b.stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return errors.Wrap(err, "failed to look up stream")
	}

	log.WithFields(log.Fields{
		"stream":  b.stream,
		"subject": b.subject,
	}).Info("Creating JetStream stream")

	if _, err := b.js.AddStream(&nats.StreamConfig{
		Name:       b.stream,
		Subjects:   []string{b.subject},
		Storage:    nats.FileStorage,
		Duplicates: defaultDuplicatesWindow,
	}); err != nil {
		return errors.Wrap(err, "failed to create stream")
	}

	return nil
}

// Publish hands msg to JetStream without waiting for the acknowledgement.
// The event id is the message id, so the server drops duplicates.
func (b *Broker) Publish(_ context.Context, msg *queue.EventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return &queue.PublishError{EventID: msg.EventID, Err: err}
	}

	future, err := b.js.PublishAsync(b.subject, data, nats.MsgId(strconv.FormatInt(msg.EventID, 10)))
	if err != nil {
		return &queue.PublishError{EventID: msg.EventID, Err: err}
	}

	go b.awaitAck(msg.EventID, future)

	return nil
}

func (b *Broker) awaitAck(eventID int64, future nats.PubAckFuture) {
	logger := log.WithFields(log.Fields{
		"event_id": eventID,
		"subject":  b.subject,
	})

	select {
	case ack := <-future.Ok():
		logger.WithFields(log.Fields{
			"stream":    ack.Stream,
			"sequence":  ack.Sequence,
			"duplicate": ack.Duplicate,
		}).Debug("Event published")
	case err := <-future.Err():
		logger.Error("Failed to publish event: ", err)
	case <-time.After(b.ackTimeout):
		logger.Warn("Timed out waiting for publish acknowledgement")
	}
}

// Subscribe registers handler as a durable queue group consumer. Every
// decoded message is acknowledged after the handler returns. Messages
// arriving after ctx is done are handed back to the stream unprocessed.
func (b *Broker) Subscribe(ctx context.Context, handler queue.Handler) error {
	sub, err := b.js.QueueSubscribe(b.subject, b.group, func(m *nats.Msg) {
		b.handleMessage(ctx, handler, m)
	},
		nats.Durable(b.group),
		nats.ManualAck(),
		nats.AckWait(defaultAckWait),
	)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to events")
	}

	b.mu.Lock()
	b.sub = sub
	b.mu.Unlock()

	log.WithFields(log.Fields{
		"subject": b.subject,
		"group":   b.group,
	}).Info("Subscribed to events")

	return nil
}

func (b *Broker) handleMessage(ctx context.Context, handler queue.Handler, m *nats.Msg) {
	msg := &queue.EventMessage{}
	if err := json.Unmarshal(m.Data, msg); err != nil {
		log.WithField("subject", m.Subject).Error("Dropping undecodable event message: ", err)
		if err := m.Term(); err != nil {
			log.Warn("Failed to terminate event message: ", err)
		}
		return
	}

	if ctx.Err() != nil {
		log.WithField("event_id", msg.EventID).Debug("Returning event message, consumer is stopping")
		if err := m.Nak(); err != nil {
			log.WithField("event_id", msg.EventID).Warn("Failed to return event message: ", err)
		}
		return
	}

	handler(ctx, msg)

	if err := m.Ack(); err != nil {
		log.WithField("event_id", msg.EventID).Warn("Failed to acknowledge event message: ", err)
	}
}

// Drain stops the delivery of new messages and waits up to timeout for the
// handlers already running. Undelivered messages stay in the stream for the
// next consumer. The durable consumer itself is kept.
func (b *Broker) Drain(timeout time.Duration) error {
	b.mu.Lock()
	sub := b.sub
	b.sub = nil
	b.mu.Unlock()

	if sub == nil {
		return nil
	}
	if err := sub.Drain(); err != nil {
		return errors.Wrap(err, "failed to drain event subscription")
	}

	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return errors.New("timed out draining event subscription")
		}
		time.Sleep(50 * time.Millisecond)
	}

	return nil
}

func (b *Broker) IsDurable() bool {
	return true
}
