// Package realtime is a supplemental websocket ingestion path for
// leader activity: each decoded activity is handed to the caller's
// ActivityHandler (cmd/copybot sends it to direct execution, never the
// aggregator). It is not the source of truth for the resilience
// properties (retry/backoff) exercised by the fetcher — it exists to
// lower detection latency when the exchange exposes a push feed.
// Grounded on api/mempool_ws.go's MempoolWSClient (Quentinlac-poly):
// dial-with-backup, a read loop with fixed-delay reconnect, and a stop
// that closes the connection. No subscribe message is sent.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Benjamin-cup/Copy-trading-bot-polymarket/models"
)

const reconnectDelay = 2 * time.Second

// ActivityHandler is invoked for each decoded leader activity.
type ActivityHandler func(activity models.Activity)

// Client is a websocket-based supplemental ingestion feed.
type Client struct {
	url       string
	backupURL string
	onTrade   ActivityHandler
	logger    *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New constructs a Client against a primary and backup websocket URL.
func New(url, backupURL string, onTrade ActivityHandler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: url, backupURL: backupURL, onTrade: onTrade, logger: logger, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

// Start connects and begins the read loop in the background. It
// returns once the initial connection succeeds; subsequent
// disconnects are retried internally until Stop is called.
func (c *Client) Start(ctx context.Context) error {
	if c.running {
		return fmt.Errorf("realtime client already running")
	}
	if err := c.connect(); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	c.running = true
	go c.readLoop(ctx)
	c.logger.Info("realtime ingestion started", "url", c.url)
	return nil
}

// Stop closes the connection and waits (briefly) for the read loop to
// exit.
func (c *Client) Stop() {
	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.connMu.Unlock()

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		c.logger.Warn("realtime client shutdown timed out")
	}
}

func (c *Client) connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil && c.backupURL != "" {
		c.logger.Warn("primary realtime endpoint failed, trying backup", "error", err)
		conn, _, err = dialer.Dial(c.backupURL, nil)
	}
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.logger.Warn("realtime read error, reconnecting", "error", err)
			c.reconnect(ctx)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) reconnect(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.stopCh:
		return
	case <-time.After(reconnectDelay):
	}
	if err := c.connect(); err != nil {
		c.logger.Warn("realtime reconnect failed", "error", err)
	}
}

// wireActivity is the wire shape of a single push notification.
type wireActivity struct {
	ID          string  `json:"id"`
	LeaderID    string  `json:"leaderId"`
	ConditionID string  `json:"conditionId"`
	AssetID     string  `json:"assetId"`
	Side        string  `json:"side"`
	Size        float64 `json:"size"`
	USDCSize    float64 `json:"usdcSize"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
	TxHash      string  `json:"txHash"`
}

func (c *Client) handleMessage(data []byte) {
	var wire wireActivity
	if err := json.Unmarshal(data, &wire); err != nil {
		c.logger.Warn("failed to decode realtime message", "error", err)
		return
	}
	if wire.ID == "" {
		return
	}
	c.onTrade(models.Activity{
		ID:              wire.ID,
		LeaderID:        wire.LeaderID,
		ConditionID:     wire.ConditionID,
		AssetID:         wire.AssetID,
		Side:            models.Side(wire.Side),
		Size:            wire.Size,
		USDCSize:        wire.USDCSize,
		Price:           wire.Price,
		LeaderTimestamp: time.Unix(wire.Timestamp, 0),
		TxHash:          wire.TxHash,
		Marker:          models.UnseenMarker(),
	})
}
