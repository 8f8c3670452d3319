package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pyloft/console/pkg/metrics"
	"github.com/pyloft/console/pkg/types"
)

// Authentication-class websocket close codes. Both degrade the channel to
// polling instead of ending the session.
const (
	CloseCodeAuthExpired  = 4001
	CloseCodeAuthRejected = 4004
)

// AuthClose reports whether a close code is authentication-class.
func AuthClose(code int) bool {
	return code == CloseCodeAuthExpired || code == CloseCodeAuthRejected
}

// NormalClose reports whether a close code ends the session cleanly.
func NormalClose(code int) bool {
	return code == websocket.CloseNormalClosure || code == websocket.CloseGoingAway
}

// Frame is the typed envelope delivered on a log channel. Streaming servers
// send connected/log/text/error frames; the polling channel synthesizes
// batch frames carrying a full tail snapshot.
type Frame struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
	Message   string          `json:"message,omitempty"`
	Logs      []types.LogLine `json:"logs,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Frame type values.
const (
	FrameConnected = "connected"
	FrameLog       = "log"
	FrameText      = "text"
	FrameError     = "error"
	FrameBatch     = "batch"
)

// FrameHandler receives one raw frame. Parsing (and dropping of malformed
// frames) is the consumer's concern.
type FrameHandler func(data []byte)

// CloseHandler is invoked exactly once when the channel ends on its own.
// code carries the websocket close code when one applies; err is non-nil for
// transport faults. It is not invoked after an explicit Close.
type CloseHandler func(code int, err error)

// LogChannel is the uniform subscription surface over a streaming socket or
// a polling timer. Handlers must be registered before Start.
type LogChannel interface {
	Mode() types.ChannelMode
	OnFrame(FrameHandler)
	OnClose(CloseHandler)
	Start()
	Close()
}

// OpenLogChannel opens the best available log channel for an app: streaming
// first, falling back to polling when the socket cannot be established. The
// returned channel is not started.
func (c *Client) OpenLogChannel(ctx context.Context, appID string, tail int, pollInterval time.Duration) LogChannel {
	ch, err := c.OpenStream(ctx, appID)
	if err != nil {
		c.logger.Warn().Err(err).Str("app_id", appID).Msg("log stream unavailable, falling back to polling")
		metrics.StreamFallbacksTotal.Inc()
		return c.OpenPoller(appID, tail, pollInterval)
	}
	return ch
}
