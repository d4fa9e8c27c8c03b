// Package monitor delivers operator notifications about new submissions.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/logging"
	"github.com/JonMunkholm/stationinbox/internal/metrics"
)

// LogMonitor writes notifications to the structured log.
type LogMonitor struct{}

func (LogMonitor) SendMessage(ctx context.Context, msg core.MonitorMessage) {
	logging.FromContext(ctx).Info("monitor message", "text", msg.Text, "attachment", msg.Attachment)
}

// Multi fans a message out to several monitors.
type Multi []core.Monitor

func (m Multi) SendMessage(ctx context.Context, msg core.MonitorMessage) {
	for _, mon := range m {
		mon.SendMessage(ctx, msg)
	}
}

// Publisher is the subset of *amqp.Channel the AMQP monitor needs.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type payload struct {
	Text       string    `json:"text"`
	Attachment string    `json:"attachment,omitempty"`
	SentAt     time.Time `json:"sentAt"`
}

// AMQPMonitor publishes notifications to a RabbitMQ exchange from a
// background worker. SendMessage never blocks: when the queue is full the
// message is dropped and counted.
type AMQPMonitor struct {
	pub        Publisher
	exchange   string
	routingKey string
	queue      chan core.MonitorMessage
	done       chan struct{}
	closeOnce  sync.Once
	closer     func() error
}

// DefaultQueueSize is the number of messages buffered for publishing.
const DefaultQueueSize = 64

// NewAMQPMonitor starts the publishing worker on pub.
func NewAMQPMonitor(pub Publisher, exchange, routingKey string, queueSize int) *AMQPMonitor {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	m := &AMQPMonitor{
		pub:        pub,
		exchange:   exchange,
		routingKey: routingKey,
		queue:      make(chan core.MonitorMessage, queueSize),
		done:       make(chan struct{}),
	}
	go m.run()
	return m
}

// DialAMQP connects to RabbitMQ, declares a durable direct exchange and
// starts a monitor publishing to it.
func DialAMQP(url, exchange, routingKey string) (*AMQPMonitor, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	m := NewAMQPMonitor(ch, exchange, routingKey, DefaultQueueSize)
	m.closer = func() error {
		chErr := ch.Close()
		if err := conn.Close(); err != nil {
			return err
		}
		return chErr
	}
	return m, nil
}

func (m *AMQPMonitor) SendMessage(ctx context.Context, msg core.MonitorMessage) {
	select {
	case m.queue <- msg:
	default:
		metrics.MonitorDroppedTotal.Inc()
		logging.FromContext(ctx).Warn("monitor queue full, message dropped", "text", msg.Text)
	}
}

func (m *AMQPMonitor) run() {
	defer close(m.done)
	for msg := range m.queue {
		if err := m.publish(msg); err != nil {
			slog.Error("publishing monitor message failed", "exchange", m.exchange, "error", err)
		}
	}
}

func (m *AMQPMonitor) publish(msg core.MonitorMessage) error {
	body, err := json.Marshal(payload{Text: msg.Text, Attachment: msg.Attachment, SentAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal monitor message: %w", err)
	}
	return m.pub.Publish(m.exchange, m.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
}

// Close stops accepting messages, publishes what is queued and closes the
// connection opened by DialAMQP. SendMessage must not be called afterwards.
func (m *AMQPMonitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.queue)
		<-m.done
		if m.closer != nil {
			err = m.closer()
		}
	})
	return err
}
