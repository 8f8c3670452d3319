package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pyloft/console/pkg/types"
)

// streamChannel is a LogChannel backed by a persistent websocket.
type streamChannel struct {
	conn    *websocket.Conn
	onFrame FrameHandler
	onClose CloseHandler

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
}

// OpenStream dials the app's log stream endpoint. The caller must Start the
// returned channel to begin receiving frames.
func (c *Client) OpenStream(ctx context.Context, appID string) (LogChannel, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.streamURL(appID), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &streamChannel{
		conn:   conn,
		stopCh: make(chan struct{}),
	}, nil
}

func (s *streamChannel) Mode() types.ChannelMode {
	return types.ModeStreaming
}

func (s *streamChannel) OnFrame(h FrameHandler) {
	s.onFrame = h
}

func (s *streamChannel) OnClose(h CloseHandler) {
	s.onClose = h
}

// Start launches the read loop. Frames arrive on the handler in socket
// order; the loop ends on the first read error.
func (s *streamChannel) Start() {
	go s.readLoop()
}

func (s *streamChannel) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.finish(err)
			return
		}
		select {
		case <-s.stopCh:
			return
		default:
		}
		if s.onFrame != nil {
			s.onFrame(data)
		}
	}
}

// finish reports the terminal condition unless Close was called first.
func (s *streamChannel) finish(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.conn.Close()
	if s.onClose == nil {
		return
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		s.onClose(ce.Code, nil)
		return
	}
	s.onClose(0, err)
}

// Close releases the socket. The close handler is not invoked.
func (s *streamChannel) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stopCh)
	s.mu.Unlock()

	// Best effort: tell the server we are going away before dropping.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteMessage(websocket.CloseMessage, msg)
	_ = s.conn.Close()
}
