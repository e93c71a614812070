package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"comic-price-lab/internal/domain"
)

// WSConfig configures live feed WebSocket behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSListingSource streams listing captures from a marketplace feed over
// WebSocket. It reconnects with exponential backoff and resubscribes after
// connection loss. Implements LiveListingSource; Subscribe may be called once.
type WSListingSource struct {
	endpoint string
	sources  []string
	config   WSConfig

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan *domain.RawListing
	done chan struct{}
	wg   sync.WaitGroup
}

// wireFrame is the envelope of every feed message.
type wireFrame struct {
	Type    string       `json:"type"`
	Listing *wireListing `json:"listing,omitempty"`
}

// wireListing is the feed and backfill API representation of a capture.
type wireListing struct {
	Source      string `json:"source"`
	ExternalID  string `json:"external_id"`
	Series      string `json:"series"`
	Issue       string `json:"issue"`
	Grade       string `json:"grade"`
	Variant     string `json:"variant"`
	SaleType    string `json:"sale_type"`
	PriceMinor  int64  `json:"price_minor"`
	Currency    string `json:"currency"`
	TimestampMs int64  `json:"timestamp_ms"`
	Status      string `json:"status"`
}

// toDomain converts a wire capture into the domain form.
// ListingID and IngestedAt are stamped by the Manager.
func (w *wireListing) toDomain() *domain.RawListing {
	return &domain.RawListing{
		SourceID:     w.Source,
		ExternalID:   w.ExternalID,
		SeriesTitle:  w.Series,
		IssueNumber:  w.Issue,
		GradeLabel:   w.Grade,
		VariantLabel: w.Variant,
		SaleType:     domain.SaleType(w.SaleType),
		PriceMinor:   w.PriceMinor,
		Currency:     w.Currency,
		TimestampMs:  w.TimestampMs,
		Status:       domain.SaleStatus(w.Status),
	}
}

// NewWSListingSource creates a live feed source and connects to the endpoint.
// sources lists the marketplace identifiers to subscribe to.
func NewWSListingSource(ctx context.Context, endpoint string, sources []string, config *WSConfig) (*WSListingSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	s := &WSListingSource{
		endpoint: endpoint,
		sources:  sources,
		config:   cfg,
		out:      make(chan *domain.RawListing, 100),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	if err := s.sendSubscribe(); err != nil {
		s.conn.Close()
		return nil, err
	}

	return s, nil
}

// connect establishes the WebSocket connection.
func (s *WSListingSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// sendSubscribe sends the subscription frame for the configured sources.
func (s *WSListingSource) sendSubscribe() error {
	req := map[string]interface{}{
		"op":      "subscribe",
		"sources": s.sources,
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return s.conn.WriteJSON(req)
}

// Subscribe starts the reader and ping loops and returns the capture channel.
// The channel is closed when the context is cancelled or the source is closed.
func (s *WSListingSource) Subscribe(ctx context.Context) (<-chan *domain.RawListing, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("source closed")
	}

	s.wg.Add(1)
	go s.readLoop(ctx)

	s.wg.Add(1)
	go s.pingLoop()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	return s.out, nil
}

// readLoop reads feed frames until shutdown, reconnecting on connection errors.
func (s *WSListingSource) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.out)

	reconnectDelay := s.config.ReconnectDelay

	for {
		select {
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			log.Printf("[ws-feed] Read error: %v, reconnecting in %v", err, reconnectDelay)
			if !s.reconnect(ctx, reconnectDelay) {
				return
			}

			// Increase delay for next reconnect (exponential backoff)
			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}
			continue
		}

		// Successful read resets backoff
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(ctx, message)
	}
}

// reconnect waits out the delay, redials and resubscribes.
// Returns false when shutdown was requested while waiting.
func (s *WSListingSource) reconnect(ctx context.Context, delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	case <-time.After(delay):
	}

	if err := s.connect(ctx); err != nil {
		// Old connection stays in place; the next read fails fast and the
		// loop retries with a longer delay.
		log.Printf("[ws-feed] Reconnect failed: %v", err)
		return true
	}

	if err := s.sendSubscribe(); err != nil {
		log.Printf("[ws-feed] Resubscribe failed: %v", err)
		return true
	}

	log.Printf("[ws-feed] Reconnected to %s", s.endpoint)
	return true
}

// handleMessage decodes a feed frame and forwards listing captures.
func (s *WSListingSource) handleMessage(ctx context.Context, message []byte) {
	var frame wireFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Printf("[ws-feed] Malformed frame: %v", err)
		return
	}

	// Heartbeats and subscription acks carry no listing
	if frame.Type != "listing" || frame.Listing == nil {
		return
	}

	w := frame.Listing
	if w.Source == "" || w.ExternalID == "" {
		log.Printf("[ws-feed] SKIP: capture without source/external_id")
		return
	}

	select {
	case s.out <- w.toDomain():
	case <-ctx.Done():
	case <-s.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *WSListingSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			if conn != nil {
				conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
					log.Printf("[ws-feed] Ping failed: %v", err)
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Close shuts the source down and closes the underlying connection.
func (s *WSListingSource) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}
