package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"classquest-service/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const exchangeName = "classquest.sessions"

// Broadcaster carries classroom events over a RabbitMQ topic exchange with
// one routing key per classroom. Subscription queues are exclusive and
// auto-delete: they exist only as long as the subscriber does.
type Broadcaster struct {
	conn *amqp.Connection
	log  *logrus.Entry

	mu    sync.Mutex
	pubCh *amqp.Channel
}

func NewBroadcaster(conn *amqp.Connection, log *logrus.Entry) (*Broadcaster, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Broadcaster{conn: conn, log: log, pubCh: ch}, nil
}

func (b *Broadcaster) Publish(ctx context.Context, classroomID string, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// amqp channels are not safe for concurrent publish.
	b.mu.Lock()
	defer b.mu.Unlock()
	err = b.pubCh.PublishWithContext(ctx, exchangeName, routingKey(classroomID), false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        data,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (b *Broadcaster) Subscribe(ctx context.Context, classroomID string) (<-chan domain.Event, func(), error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open subscribe channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}

	queue, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto delete
		true,  // exclusive
		false, // no wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, routingKey(classroomID), exchangeName, false, nil); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("bind queue: %w", err)
	}

	deliveries, err := ch.Consume(
		queue.Name,
		"",    // consumer tag
		true,  // auto ack
		true,  // exclusive
		false, // no local
		false, // no wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume queue: %w", err)
	}

	out := make(chan domain.Event, 16)
	go func() {
		defer close(out)
		for d := range deliveries {
			var ev domain.Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				b.log.WithError(err).Warn("dropping malformed classroom event")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = ch.Close() })
	}
	return out, cancel, nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "topic", false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	return nil
}

func routingKey(classroomID string) string {
	return "classroom." + classroomID + ".events"
}
