package chat

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"gymbro/internal/pkg/errs"
	"gymbro/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed to wait for a Pong message from the server.
	pongWait = 60 * time.Second

	// frequency at which the client sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the server.
	maxFrameSize = 64 << 10

	// size of the outbound frame queue.
	sendQueueSize = 256

	// handshakeTimeout bounds the WebSocket opening handshake.
	handshakeTimeout = 10 * time.Second
)

// conn is one established socket. A conn is never reused: after it closes the
// transport dials a new one.
type conn struct {
	// underlying WebSocket connection object.
	ws *websocket.Conn

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// closed when the connection is torn down.
	done      chan struct{}
	closeOnce sync.Once

	// structured logger with connection context.
	logger zerolog.Logger
}

// dial opens a socket to socketURL authenticated with token. The token travels both as
// a bearer header and as the token query parameter.
func dial(ctx context.Context, dialer *websocket.Dialer, socketURL, token string) (*conn, error) {
	target, err := url.Parse(socketURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSocketUnavailable, err)
	}
	q := target.Query()
	q.Set("token", token)
	target.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, res, err := dialer.DialContext(ctx, target.String(), header)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		customErr := errs.Wrap(errs.ErrSocketUnavailable, err)
		if res != nil {
			customErr.Status = res.StatusCode
		}
		return nil, customErr
	}

	return &conn{
		ws:     ws,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: logx.Component("chat_conn"),
	}, nil
}

// run starts the write pump and runs the read pump until the connection fails or is
// closed. Every inbound text frame is passed to onFrame on the calling goroutine.
func (c *conn) run(onFrame func([]byte)) error {
	go c.writePump()
	defer c.close()

	return c.readPump(onFrame)
}

// readPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong) and returns the error that ended the connection.
func (c *conn) readPump(onFrame func([]byte)) error {
	c.ws.SetReadLimit(maxFrameSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return err
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, frame, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return nil
			default:
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Socket closed unexpectedly")
			}
			return err
		}

		if messageType != websocket.TextMessage {
			continue
		}
		onFrame(frame)
	}
}

// writePump writes queued frames to the WebSocket connection and sends periodic pings.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.writeFrame(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// writeFrame writes one frame with a deadline. It returns false if the write pump
// should terminate.
func (c *conn) writeFrame(messageType int, data []byte) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.ws.WriteMessage(messageType, data); err != nil {
		select {
		case <-c.done:
		default:
			c.logger.Error().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		}
		return false
	}

	return true
}

// enqueue queues frame for writing. It fails when the connection is closed or the
// queue is full; a frame that was accepted is never reported as failed.
func (c *conn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errs.NewError(errs.ErrSocketUnavailable)
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Socket send queue full, rejecting frame")
		return errs.NewError(errs.ErrSendQueueFull)
	}
}

// close tears the connection down. It is safe to call more than once.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)

		// give the write pump a moment to send the close frame before the socket goes away
		time.AfterFunc(100*time.Millisecond, func() {
			if err := c.ws.Close(); err != nil {
				c.logger.Debug().Err(err).Msg("Socket close error")
			}
		})
	})
}

// closed reports whether close has been called.
func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
