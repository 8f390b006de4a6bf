// Package rabbitmqtest содержит in-memory реализации Connection/Channel для тестов.
package rabbitmqtest

import (
	"context"
	"errors"
	"sync"

	"github.com/brunomacedo1203/taskcollab/pkg/rabbitmq/rabbitmq_common"

	amqp "github.com/rabbitmq/amqp091-go"
)

type ExchangeDeclare struct {
	Name    string
	Kind    string
	Durable bool
}

type QueueDeclare struct {
	Name    string
	Durable bool
	Args    amqp.Table
}

type Binding struct {
	Queue    string
	Key      string
	Exchange string
}

type Published struct {
	Exchange   string
	RoutingKey string
	Msg        amqp.Publishing
}

// Channel - фейковый канал. Все вызовы записываются.
type Channel struct {
	mu         sync.Mutex
	closed     bool
	notifies   []chan *amqp.Error
	deliveries chan amqp.Delivery

	Exchanges  []ExchangeDeclare
	Queues     []QueueDeclare
	Bindings   []Binding
	Prefetch   []int
	Consumers  []string
	Published  []Published
	PublishErr error
}

func NewChannel() *Channel {
	return &Channel{deliveries: make(chan amqp.Delivery, 64)}
}

func (c *Channel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Exchanges = append(c.Exchanges, ExchangeDeclare{Name: name, Kind: kind, Durable: durable})
	return nil
}

func (c *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queues = append(c.Queues, QueueDeclare{Name: name, Durable: durable, Args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *Channel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Bindings = append(c.Bindings, Binding{Queue: name, Key: key, Exchange: exchange})
	return nil
}

func (c *Channel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Prefetch = append(c.Prefetch, prefetchCount)
	return nil
}

func (c *Channel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	c.Consumers = append(c.Consumers, consumer)
	return c.deliveries, nil
}

func (c *Channel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	if c.PublishErr != nil {
		return c.PublishErr
	}
	c.Published = append(c.Published, Published{Exchange: exchange, RoutingKey: key, Msg: msg})
	return nil
}

func (c *Channel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notifies = append(c.notifies, receiver)
	return receiver
}

func (c *Channel) Close() error {
	return c.shutdown(nil)
}

// Break имитирует закрытие канала брокером.
func (c *Channel) Break(code int, reason string) {
	_ = c.shutdown(&amqp.Error{Code: code, Reason: reason})
}

// Deliver кладет сообщение в очередь потребителя.
func (c *Channel) Deliver(d amqp.Delivery) {
	c.deliveries <- d
}

func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) PublishedMessages() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.Published...)
}

func (c *Channel) shutdown(reason *amqp.Error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, n := range c.notifies {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	c.notifies = nil
	close(c.deliveries)
	return nil
}

// Connection - фейковое соединение.
type Connection struct {
	mu       sync.Mutex
	closed   bool
	notifies []chan *amqp.Error
	channels []*Channel

	ChannelErr error
}

func (c *Connection) Channel() (rabbitmq_common.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	if c.ChannelErr != nil {
		return nil, c.ChannelErr
	}
	ch := NewChannel()
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *Connection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notifies = append(c.notifies, receiver)
	return receiver
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) Close() error {
	return c.shutdown(nil)
}

// Break имитирует обрыв соединения: закрываются и соединение, и все его каналы.
func (c *Connection) Break(code int, reason string) {
	_ = c.shutdown(&amqp.Error{Code: code, Reason: reason})
}

// LastChannel возвращает последний открытый канал.
func (c *Connection) LastChannel() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.channels) == 0 {
		return nil
	}
	return c.channels[len(c.channels)-1]
}

func (c *Connection) shutdown(reason *amqp.Error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return amqp.ErrClosed
	}
	c.closed = true
	notifies := c.notifies
	c.notifies = nil
	channels := c.channels
	c.mu.Unlock()

	for _, ch := range channels {
		if reason != nil {
			ch.Break(reason.Code, reason.Reason)
		} else {
			_ = ch.Close()
		}
	}
	for _, n := range notifies {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	return nil
}

var ErrDialRefused = errors.New("dial tcp: connection refused")

// Dialer считает вызовы и умеет отказывать первые Failures раз.
// Если Gate не nil, Dial ждет его закрытия.
type Dialer struct {
	mu       sync.Mutex
	calls    int
	conns    []*Connection
	Failures int
	Gate     chan struct{}
}

func (d *Dialer) Dial(url string) (rabbitmq_common.Connection, error) {
	if d.Gate != nil {
		<-d.Gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.Failures < 0 || d.calls <= d.Failures {
		return nil, ErrDialRefused
	}
	conn := &Connection{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *Dialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *Dialer) Connections() []*Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Connection(nil), d.conns...)
}

func (d *Dialer) LastConnection() *Connection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Acknowledger считает ack/nack одной доставки.
type Acknowledger struct {
	mu       sync.Mutex
	Acks     int
	Nacks    int
	Rejects  int
	Requeued bool
	AckErr   error
}

func (a *Acknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Acks++
	return a.AckErr
}

func (a *Acknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Nacks++
	a.Requeued = a.Requeued || requeue
	return nil
}

func (a *Acknowledger) Reject(tag uint64, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Rejects++
	a.Requeued = a.Requeued || requeue
	return nil
}

// Counts возвращает (acks, nacks, requeued) под мьютексом.
func (a *Acknowledger) Counts() (int, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Acks, a.Nacks + a.Rejects, a.Requeued
}

// NewDelivery собирает доставку с фейковым Acknowledger.
func NewDelivery(ack *Acknowledger, tag uint64, routingKey string, body []byte) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  tag,
		RoutingKey:   routingKey,
		ContentType:  "application/json",
		Body:         body,
	}
}
