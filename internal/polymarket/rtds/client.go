package rtds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polywhale/whalescan/internal/config"
	"github.com/polywhale/whalescan/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	initialBackoff   = 1 * time.Second
	maxBackoff       = 60 * time.Second
	backoffFactor    = 2.0
	jitterPercent    = 0.2
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second

	topicActivity = "activity"
	typeTrades    = "trades"
)

var errDataTimeout = errors.New("no feed data within timeout")

// subscribeRequest names the topic RTDS should push to this connection.
type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []subscription `json:"subscriptions"`
}

type subscription struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

// Client owns one logical connection to the Polymarket Real-Time Data
// Service. It reconnects forever with capped exponential backoff and
// treats data starvation on a healthy socket the same as a transport
// fault: the watchdog force-closes the connection when no message has
// arrived within the data timeout, even while pings keep succeeding.
type Client struct {
	url          string
	keepAlive    time.Duration
	watchdogPoll time.Duration
	dataTimeout  time.Duration
	events       chan<- TradeEvent
	log          *logrus.Logger

	backoff   time.Duration
	lastData  atomic.Int64 // unix nanos of the last inbound message
	messages  atomic.Uint64
	connected atomic.Bool
}

// NewClient creates a feed client that emits normalized trade events on
// the given channel.
func NewClient(cfg *config.Config, events chan<- TradeEvent, log *logrus.Logger) *Client {
	return &Client{
		url:          cfg.RTDSURL,
		keepAlive:    cfg.KeepAliveInterval,
		watchdogPoll: cfg.WatchdogInterval,
		dataTimeout:  cfg.DataTimeout,
		events:       events,
		log:          log,
		backoff:      initialBackoff,
	}
}

// Run connects and reconnects until the context is cancelled. The
// reconnect loop retries forever by design; the feed is expected to
// always eventually come back.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.runEpoch(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.log.WithError(err).WithField("backoff", c.backoff).Warn("Feed connection ended, reconnecting")
		metrics.FeedReconnects.Inc()

		if !c.waitBackoff(ctx) {
			return ctx.Err()
		}
	}
}

// runEpoch runs one connection epoch: dial, subscribe, then keep-alive,
// receive and watchdog duties until the first of them fails. The duties
// are grouped so one failure cancels the siblings and the transport is
// closed before the epoch returns; nothing from a dead epoch keeps
// running.
func (c *Client) runEpoch(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: status %d: %w", c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	defer conn.Close()

	if err := c.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	c.backoff = initialBackoff
	c.connected.Store(true)
	metrics.FeedConnected.Set(1)
	defer func() {
		c.connected.Store(false)
		metrics.FeedConnected.Set(0)
	}()
	c.touch()

	c.log.WithField("endpoint", c.url).Info("Feed connected, subscribed to activity/trades")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Unblocks the receive loop when any sibling fails.
		<-gctx.Done()
		conn.Close()
		return gctx.Err()
	})
	g.Go(func() error { return c.keepAliveLoop(gctx, conn) })
	g.Go(func() error { return c.receiveLoop(gctx, conn) })
	g.Go(func() error { return c.watchdogLoop(gctx) })

	return g.Wait()
}

func (c *Client) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		Action:        "subscribe",
		Subscriptions: []subscription{{Topic: topicActivity, Type: typeTrades}},
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(req)
}

// keepAliveLoop sends a ping at a fixed interval. Pings prove only that
// the socket is alive; they deliberately do not feed the staleness clock.
func (c *Client) keepAliveLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return fmt.Errorf("keep-alive ping: %w", err)
			}
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}

		c.touch()
		c.messages.Add(1)
		metrics.FeedMessagesReceived.Inc()

		c.handleMessage(message)
	}
}

// watchdogLoop wakes periodically and fails the epoch when the time since
// the last inbound message exceeds the data timeout.
func (c *Client) watchdogLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.watchdogPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			last := time.Unix(0, c.lastData.Load())
			if stale(last, time.Now(), c.dataTimeout) {
				metrics.FeedForcedCloses.Inc()
				c.log.WithField("elapsed", time.Since(last)).Warn("Data timeout, forcing reconnect")
				return errDataTimeout
			}
		}
	}
}

// stale reports whether the last data arrival is older than the timeout.
func stale(lastData, now time.Time, timeout time.Duration) bool {
	return now.Sub(lastData) > timeout
}

// handleMessage decodes an envelope and dispatches its trades. Malformed
// input is counted and dropped; it is never a connection error.
func (c *Client) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		metrics.RecordRejectedPayload(RejectNotJSON)
		c.log.WithError(err).Debug("Dropping non-JSON feed message")
		return
	}

	// Everything off-topic is ignored quietly, including the
	// subscription acknowledgment sent right after connecting.
	if env.Topic != topicActivity || env.Type != typeTrades {
		c.log.WithFields(logrus.Fields{
			"topic": env.Topic,
			"type":  env.Type,
		}).Debug("Ignoring non-trade message")
		return
	}
	if len(env.Payload) == 0 {
		return
	}

	events, rejects := ParseTradeEvents(env.Payload)
	for _, rej := range rejects {
		metrics.RecordRejectedPayload(rej.Reason)
		c.log.WithField("reason", rej.Error()).Debug("Dropping malformed trade payload")
	}

	for _, ev := range events {
		select {
		case c.events <- ev:
		default:
			metrics.FeedEventsDropped.Inc()
			c.log.WithField("tx_hash", ev.TransactionHash).Warn("Event channel full, dropping trade")
		}
	}
}

// waitBackoff sleeps for the current backoff (with jitter), interruptible
// by cancellation so shutdown never waits out a backoff window. Returns
// false when the context ended first.
func (c *Client) waitBackoff(ctx context.Context) bool {
	jitter := time.Duration(float64(c.backoff) * jitterPercent * (rand.Float64()*2 - 1))
	wait := c.backoff + jitter

	c.backoff = nextBackoff(c.backoff)

	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * backoffFactor)
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

func (c *Client) touch() {
	c.lastData.Store(time.Now().UnixNano())
}

// Stats is a snapshot of feed counters for periodic status logging.
type Stats struct {
	MessagesReceived uint64
	LastDataAt       time.Time
	Connected        bool
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		MessagesReceived: c.messages.Load(),
		LastDataAt:       time.Unix(0, c.lastData.Load()),
		Connected:        c.connected.Load(),
	}
}
