package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	"carpool/pkg/config"
	"carpool/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxRetries    = 10
	retryInterval = 3 * time.Second
)

// ExchangeBooking carries every committed booking transition; consumers
// bind by routing key (booking.request.*, booking.ride.*, booking.notification.*).
const ExchangeBooking = "booking_topic"

// Queues declared by SetupTopology
const (
	QueueBookingEvents        = "booking_events"
	QueueBookingNotifications = "booking_notifications"
)

// Connection wraps amqp.Connection with auto-reconnection and a dedicated
// publisher channel.
type Connection struct {
	logger      logger.Logger
	dsn         string
	conn        *amqp.Connection
	pubChannel  *amqp.Channel
	mu          sync.RWMutex
	isConnected bool
	notifyClose chan *amqp.Error
	done        chan bool
}

func NewConnection(cfg *config.Config, log logger.Logger) (*Connection, error) {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.User,
		cfg.RabbitMQ.Password,
		cfg.RabbitMQ.Host,
		cfg.RabbitMQ.Port,
	)
	c := &Connection{
		logger: log,
		dsn:    dsn,
		done:   make(chan bool),
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		if err = c.connect(); err != nil {
			log.Error("rabbitmq_connect_retry", fmt.Errorf("failed to connect to RabbitMQ (attempt %d/%d): %w", i+1, maxRetries, err))
			time.Sleep(retryInterval)
			continue
		}
		log.Info("rabbitmq_connect", "Initial RabbitMQ connection established")
		if setupErr := c.SetupTopology(); setupErr != nil {
			c.Close()
			return nil, fmt.Errorf("failed to setup RabbitMQ topology: %w", setupErr)
		}
		go c.reconnectLoop()
		return c, nil
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d retries: %w", maxRetries, err)
}

func (c *Connection) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	c.conn, err = amqp.Dial(c.dsn)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	c.pubChannel, err = c.conn.Channel()
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to open publisher channel: %w", err)
	}

	c.isConnected = true
	c.notifyClose = make(chan *amqp.Error, 1)
	c.conn.NotifyClose(c.notifyClose)
	return nil
}

func (c *Connection) reconnectLoop() {
	for {
		select {
		case <-c.done:
			c.logger.Info("rabbitmq_reconnect_loop", "Shutting down reconnection loop")
			return
		case err := <-c.notifyClose:
			if err == nil {
				return // graceful close
			}

			c.logger.Error("rabbitmq_disconnect", fmt.Errorf("RabbitMQ connection lost: %w", err))
			c.mu.Lock()
			c.isConnected = false
			c.mu.Unlock()

			backoff := time.Second
			for {
				time.Sleep(backoff)
				if err := c.connect(); err != nil {
					c.logger.Error("rabbitmq_reconnect_failed", err)
					backoff = time.Duration(float64(backoff) * 1.5)
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					continue
				}
				if setupErr := c.SetupTopology(); setupErr != nil {
					c.logger.Error("rabbitmq_reconnect_setup_failed", setupErr)
					continue
				}
				c.logger.Info("rabbitmq_reconnect_success", "RabbitMQ connection re-established")
				break
			}
		}
	}
}

// SetupTopology declares the booking exchange, queues and bindings. Safe to
// call repeatedly; declarations are idempotent.
func (c *Connection) SetupTopology() error {
	c.mu.RLock()
	if !c.isConnected {
		c.mu.RUnlock()
		return fmt.Errorf("rabbitmq not connected")
	}
	ch, err := c.conn.Channel()
	if err != nil {
		c.mu.RUnlock()
		return fmt.Errorf("failed to open setup channel: %w", err)
	}
	defer ch.Close()
	c.mu.RUnlock()

	if err := ch.ExchangeDeclare(ExchangeBooking, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeBooking, err)
	}

	for _, queue := range []string{QueueBookingEvents, QueueBookingNotifications} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	bindings := []struct {
		Queue      string
		RoutingKey string
	}{
		{QueueBookingEvents, "booking.request.*"},
		{QueueBookingEvents, "booking.ride.*"},
		{QueueBookingEvents, "booking.chat.*"},
		{QueueBookingNotifications, "booking.notification.*"},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.Queue, b.RoutingKey, ExchangeBooking, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", b.Queue, err)
		}
	}

	c.logger.Info("rabbitmq_setup", "Declared booking topology")
	return nil
}

// Publish sends a persistent message to an exchange. Goroutine-safe.
func (c *Connection) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.isConnected {
		return fmt.Errorf("rabbitmq not connected")
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
	return c.pubChannel.PublishWithContext(ctx, exchange, routingKey, false, false, msg)
}

// Consume starts a consumer on a queue. The handler runs once per delivery;
// the consumer survives channel loss and reconnects.
func (c *Connection) Consume(queueName string, handler func(amqp.Delivery)) error {
	log := c.logger.WithFields(logger.LogFields{"queue": queueName})
	log.Info("consumer_start", "Starting consumer goroutine")

	go func() {
		for {
			c.mu.RLock()
			if !c.isConnected {
				c.mu.RUnlock()
				time.Sleep(retryInterval)
				continue
			}

			ch, err := c.conn.Channel()
			if err != nil {
				c.mu.RUnlock()
				log.Error("consumer_channel_fail", err)
				time.Sleep(retryInterval)
				continue
			}
			c.mu.RUnlock()

			msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
			if err != nil {
				log.Error("consumer_consume_fail", err)
				ch.Close()
				time.Sleep(retryInterval)
				continue
			}

			notifyChanClose := ch.NotifyClose(make(chan *amqp.Error, 1))

		consumerLoop:
			for {
				select {
				case <-c.done:
					log.Info("consumer_shutdown", "Service shutting down, stopping consumer")
					ch.Close()
					return

				case err := <-notifyChanClose:
					log.Error("consumer_channel_closed", fmt.Errorf("consumer channel closed: %v", err))
					break consumerLoop

				case msg, ok := <-msgs:
					if !ok {
						break consumerLoop
					}
					// One slow delivery must not block the rest.
					go handler(msg)
				}
			}
		}
	}()
	return nil
}

// Close shuts down the connection and the reconnect loop.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isConnected {
		return
	}
	c.logger.Info("rabbitmq_close", "Closing RabbitMQ connection")
	c.isConnected = false
	close(c.done)

	if c.pubChannel != nil {
		c.pubChannel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
