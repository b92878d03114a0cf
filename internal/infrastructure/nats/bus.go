package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"auction-service/internal/domain"
	"auction-service/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	streamName = "AUCTION_WORK"
	ackWait    = 30 * time.Second
	setupWait  = 10 * time.Second
)

// streamSubjects covers everything this system publishes or consumes,
// so commands survive a worker crash and a Nak'd message comes back.
var streamSubjects = []string{"bid.>", "auction.>", "job.>", "user.>", "notify.>"}

// Bus is the worker's connection to the message broker. Each subject
// gets a durable JetStream consumer shared by all worker instances, so
// delivery is load-balanced and at-least-once: a handler error Naks
// the message and the broker redelivers it after the ack wait.
type Bus struct {
	conn       *nats.Conn
	js         jetstream.JetStream
	queueGroup string
	consumers  []jetstream.ConsumeContext

	// ctx is the handler lifecycle context; Close cancels it so long
	// batch loops stop at their next boundary during shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	log    logger.Logger
}

func NewBus(url, queueGroup string, log logger.Logger) (*Bus, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(context.Background(), setupWait)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(setupCtx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: streamSubjects,
		Storage:  jetstream.FileStorage,
		MaxAge:   24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", streamName, err)
	}

	ctx, cancelHandlers := context.WithCancel(context.Background())
	return &Bus{
		conn:       conn,
		js:         js,
		queueGroup: queueGroup,
		ctx:        ctx,
		cancel:     cancelHandlers,
		log:        log,
	}, nil
}

// Publish waits for the stream's ack, so a nil return means the
// message is persisted, not just written to the socket.
func (b *Bus) Publish(ctx context.Context, subject string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", subject, err)
	}

	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (b *Bus) Subscribe(subject string, handler domain.MessageHandler) error {
	setupCtx, cancel := context.WithTimeout(context.Background(), setupWait)
	defer cancel()

	consumer, err := b.js.CreateOrUpdateConsumer(setupCtx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName(b.queueGroup, subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer for %s: %w", subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(b.ctx, msg.Data()); err != nil {
			b.log.Error("Message handling failed, requeueing", "subject", subject, "error", err)
			if nakErr := msg.Nak(); nakErr != nil {
				b.log.Error("Failed to nak message", "subject", subject, "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			b.log.Error("Failed to ack message", "subject", subject, "error", ackErr)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", subject, err)
	}

	b.consumers = append(b.consumers, cc)
	b.log.Info("Subscribed", "subject", subject, "durable", durableName(b.queueGroup, subject))
	return nil
}

// Close cancels in-flight handlers first; an import or bulk update
// then stops at its next batch boundary, Naks, and resumes from its
// checkpoint after redelivery to another instance.
func (b *Bus) Close() {
	b.cancel()
	for _, cc := range b.consumers {
		cc.Stop()
	}
	if err := b.conn.Drain(); err != nil {
		b.log.Error("Failed to drain NATS connection", "error", err)
	}
}

// Durable names cannot contain dots.
func durableName(queueGroup, subject string) string {
	return queueGroup + "-" + strings.ReplaceAll(subject, ".", "-")
}
