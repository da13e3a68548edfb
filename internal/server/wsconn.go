package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Tyrowin/gochat-hub/internal/session"
)

// wsConn adapts a gorilla connection to session.Conn. Each text frame is one
// item; binary frames are ignored.
type wsConn struct {
	conn           *websocket.Conn
	remote         string
	writeTimeout   time.Duration
	pongTimeout    time.Duration
	maxMessageSize int64
	log            logrus.FieldLogger
}

func newWSConn(conn *websocket.Conn, remote string, cfg Config, log logrus.FieldLogger) *wsConn {
	c := &wsConn{
		conn:           conn,
		remote:         remote,
		writeTimeout:   cfg.WriteTimeout,
		pongTimeout:    cfg.PongTimeout,
		maxMessageSize: cfg.MaxMessageSize,
		log:            log.WithField("remote", remote),
	}

	conn.SetReadLimit(cfg.MaxMessageSize)
	c.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c
}

func (c *wsConn) extendReadDeadline() {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout)); err != nil {
		c.log.WithError(err).Debug("Error setting read deadline")
	}
}

// ReadText blocks for the next text frame. Cancelling ctx expires the read
// deadline, which leaves the connection unusable for further reads.
func (c *wsConn) ReadText(ctx context.Context) (string, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", c.classifyReadError(err)
		}
		c.extendReadDeadline()
		if typ != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

func (c *wsConn) classifyReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.WithField("limit", c.maxMessageSize).Info("Message exceeded maximum size")
		return fmt.Errorf("read: %w", err)
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) ||
		errors.Is(err, io.EOF) ||
		isExpectedCloseError(err) {
		c.log.WithError(err).Debug("Client disconnected")
		return fmt.Errorf("%w: %v", session.ErrStreamEnded, err)
	}

	return fmt.Errorf("read: %w", err)
}

// WriteText sends msg as one text frame.
func (c *wsConn) WriteText(msg string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// Close sends a normal close frame when possible and closes the socket.
func (c *wsConn) Close() error {
	deadline := time.Now().Add(c.writeTimeout)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil && !isExpectedCloseError(err) {
		c.log.WithError(err).Debug("Error writing close message")
	}
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		return err
	}
	return nil
}

func (c *wsConn) RemoteAddr() string { return c.remote }

// keepAlive pings the peer every period until ctx ends or a ping fails.
// WriteControl may run concurrently with WriteText.
func (c *wsConn) keepAlive(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				if !isExpectedCloseError(err) {
					c.log.WithError(err).Debug("Error writing ping")
				}
				return
			}
		}
	}
}

// isExpectedCloseError reports errors that routinely occur while a
// connection is being torn down.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset by peer")
}
