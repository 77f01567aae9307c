package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/numduel/go/internal/apperr"
	"github.com/mcdev12/numduel/go/internal/auth"
	"github.com/rs/zerolog/log"
)

var errNotConnected = errors.New("push channel not connected")

// WebSocketConfig holds configuration for the WebSocket push channel
type WebSocketConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	InboxSize        int
}

// DefaultWebSocketConfig returns default WebSocket configuration
func DefaultWebSocketConfig(rawURL string) WebSocketConfig {
	return WebSocketConfig{
		URL:              rawURL,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		InboxSize:        256,
	}
}

// WebSocketChannel is a Channel over a single client WebSocket. The bearer
// token is presented in the handshake.
type WebSocketChannel struct {
	config WebSocketConfig
	tokens auth.TokenSource
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *wsConnection
}

// wsConnection is one dialed socket and its pumps.
type wsConnection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	config WebSocketConfig
	inbox  *inbox
	done   chan struct{}
	once   sync.Once
}

// NewWebSocketChannel creates a channel that dials config.URL on Connect.
func NewWebSocketChannel(config WebSocketConfig, tokens auth.TokenSource) *WebSocketChannel {
	return &WebSocketChannel{
		config: config,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
	}
}

// Connect dials the socket, replacing any live connection.
func (c *WebSocketChannel) Connect(ctx context.Context) (<-chan Message, error) {
	const op = "connectPush"

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindUnauthenticated, Op: op, Err: err}
	}

	target, err := websocketURL(c.config.URL)
	if err != nil {
		return nil, apperr.Transport(op, err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, apperr.Unauthenticated(op)
		}
		return nil, apperr.Transport(op, err)
	}

	conn := &wsConnection{
		ID:          uuid.New().String(),
		Conn:        ws,
		Send:        make(chan []byte, 64),
		ConnectedAt: time.Now(),
		config:      c.config,
		inbox:       newInbox(c.config.InboxSize),
		done:        make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.conn
	c.conn = conn
	c.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	go conn.writePump()
	go conn.readPump()

	log.Info().
		Str("connection_id", conn.ID).
		Str("url", target).
		Msg("WebSocket connection established")

	return conn.inbox.ch, nil
}

// Emit sends one control frame on the live connection.
func (c *WebSocketChannel) Emit(ctx context.Context, event string, payload any) error {
	const op = "emit"

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return apperr.Transport(op, errNotConnected)
	}

	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	// Send still has room after the pumps exit; a dead connection must fail.
	select {
	case <-conn.done:
		return apperr.Transport(op, errNotConnected)
	default:
	}
	select {
	case conn.Send <- frame:
		return nil
	case <-conn.done:
		return apperr.Transport(op, errNotConnected)
	case <-ctx.Done():
		return apperr.Transport(op, ctx.Err())
	}
}

// Disconnect closes the live connection, if any.
func (c *WebSocketChannel) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	deadline := time.Now().Add(c.config.WriteTimeout)
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.Conn.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log.Debug().Err(err).Str("connection_id", conn.ID).Msg("failed to send close frame")
	}
	conn.close()
	return nil
}

func (conn *wsConnection) close() {
	conn.once.Do(func() {
		close(conn.done)
		conn.Conn.Close()
		conn.inbox.close()
		log.Info().Str("connection_id", conn.ID).Msg("WebSocket connection closed")
	})
}

// writePump handles sending frames and keepalive pings
func (conn *wsConnection) writePump() {
	ticker := time.NewTicker(conn.config.PingInterval)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case <-conn.done:
			return

		case frame := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(conn.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(conn.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump decodes inbound frames into the inbox until the socket fails
func (conn *wsConnection) readPump() {
	defer conn.close()

	conn.Conn.SetReadLimit(conn.config.MaxMessageSize)
	conn.Conn.SetReadDeadline(time.Now().Add(conn.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(conn.config.ReadTimeout))
		return nil
	})

	for {
		_, frame, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", conn.ID).
					Msg("unexpected WebSocket close error")
			}
			return
		}
		conn.Conn.SetReadDeadline(time.Now().Add(conn.config.ReadTimeout))

		var msg Message
		if err := json.Unmarshal(frame, &msg); err != nil {
			log.Warn().
				Err(err).
				Str("connection_id", conn.ID).
				Msg("dropping undecodable frame")
			continue
		}
		if !conn.inbox.push(msg) {
			return
		}
	}
}

// websocketURL maps http(s) base URLs onto ws(s).
func websocketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse socket url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported socket url scheme %q", u.Scheme)
	}
	return u.String(), nil
}
