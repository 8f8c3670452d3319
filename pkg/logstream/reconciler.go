package logstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pyloft/console/pkg/config"
	"github.com/pyloft/console/pkg/events"
	"github.com/pyloft/console/pkg/log"
	"github.com/pyloft/console/pkg/metrics"
	"github.com/pyloft/console/pkg/transport"
	"github.com/pyloft/console/pkg/types"
)

// Reconciler produces a consistent, bounded, time-ordered log view for one
// app, independent of whether the transport streams or polls. It owns its
// channel and buffer exclusively.
type Reconciler struct {
	client *transport.Client
	cfg    *config.Config
	broker *events.Broker
	now    func() time.Time
	onLine func(types.LogLine)

	mu       sync.Mutex
	appID    string
	channel  transport.LogChannel
	mode     types.ChannelMode
	lines    []types.LogLine
	lastErr  string
	degraded bool
	gen      uint64
}

// Option customises reconciler construction.
type Option func(*Reconciler)

// WithBroker publishes mode changes and channel errors to an event broker.
func WithBroker(b *events.Broker) Option {
	return func(r *Reconciler) { r.broker = b }
}

// WithClock overrides the receive-time source. Tests use this to make
// timestamps deterministic.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLineObserver registers a callback invoked for every line entering the
// buffer, in buffer order. Batch replacements replay the full snapshot. The
// callback runs under the reconciler's lock and must not call back into it.
func WithLineObserver(f func(types.LogLine)) Option {
	return func(r *Reconciler) { r.onLine = f }
}

// New builds a detached reconciler.
func New(client *transport.Client, cfg *config.Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		client: client,
		cfg:    cfg,
		now:    time.Now,
		mode:   types.ModeIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach opens a log channel for the app. Attaching is idempotent: any
// previous channel is detached first, and callbacks from it are discarded.
func (r *Reconciler) Attach(ctx context.Context, appID string) {
	r.mu.Lock()
	r.detachLocked()
	r.appID = appID
	r.lines = nil
	r.lastErr = ""
	r.degraded = false
	r.gen++
	gen := r.gen
	r.mu.Unlock()

	ch := r.client.OpenLogChannel(ctx, appID, r.cfg.LogBufferCap, r.cfg.LogPollInterval)
	r.adopt(gen, ch)
}

// Detach releases the channel and returns the mode to idle. The buffer is
// preserved for re-display.
func (r *Reconciler) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachLocked()
}

// detachLocked bumps the generation so in-flight callbacks become stale.
func (r *Reconciler) detachLocked() {
	if r.channel != nil {
		r.channel.Close()
		r.channel = nil
	}
	r.gen++
	r.setModeLocked(types.ModeIdle)
}

// Refresh forces a one-shot tail fetch regardless of mode. The result is
// appended to the buffer with duplicates elided.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	appID := r.appID
	gen := r.gen
	r.mu.Unlock()
	if appID == "" {
		return nil
	}

	resp, err := r.client.Logs(ctx, appID, r.cfg.LogBufferCap)
	if err != nil {
		r.mu.Lock()
		if gen == r.gen {
			r.lastErr = err.Error()
		}
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return nil
	}
	seen := make(map[string]struct{}, len(r.lines))
	for _, line := range r.lines {
		seen[lineKey(line)] = struct{}{}
	}
	for _, line := range resp.Logs {
		if _, dup := seen[lineKey(line)]; dup {
			continue
		}
		r.appendLocked(line)
	}
	if resp.Error != "" {
		r.lastErr = resp.Error
	}
	return nil
}

// Lines returns a copy of the buffered log view.
func (r *Reconciler) Lines() []types.LogLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.LogLine, len(r.lines))
	copy(out, r.lines)
	return out
}

// Mode reports the active channel mode.
func (r *Reconciler) Mode() types.ChannelMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// LastError reports the most recent channel error, or "".
func (r *Reconciler) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// adopt wires a channel's callbacks, guarded by the generation captured at
// attach time, and starts it.
func (r *Reconciler) adopt(gen uint64, ch transport.LogChannel) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		ch.Close()
		return
	}
	r.channel = ch
	mode := ch.Mode()
	if mode == types.ModePolling {
		r.degraded = true
	}
	r.setModeLocked(mode)
	r.mu.Unlock()

	ch.OnFrame(func(data []byte) { r.handleFrame(gen, data) })
	ch.OnClose(func(code int, err error) { r.handleClose(gen, code, err) })
	ch.Start()
}

func (r *Reconciler) handleFrame(gen uint64, data []byte) {
	var frame transport.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		// Malformed frames are never fatal.
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return
	}

	switch frame.Type {
	case transport.FrameConnected:
		r.lastErr = ""
	case transport.FrameLog, transport.FrameText:
		ts := frame.Timestamp
		if ts.IsZero() {
			ts = r.now()
		}
		r.appendLocked(types.LogLine{Timestamp: ts, Message: frame.Message})
		metrics.LogLinesTotal.WithLabelValues(string(r.mode)).Inc()
	case transport.FrameError:
		// The transport may still reconnect; record without tearing down.
		r.lastErr = frame.Message
		r.publishLocked(events.EventLogError, frame.Message)
	case transport.FrameBatch:
		// Poll snapshot: the server owns tail order, replace wholesale.
		r.lines = r.lines[:0]
		for _, line := range frame.Logs {
			r.appendLocked(line)
		}
		metrics.LogLinesTotal.WithLabelValues(string(r.mode)).Add(float64(len(frame.Logs)))
		if frame.Error != "" {
			r.lastErr = frame.Error
		}
	}
}

// handleClose decides between degradation and session end. A transport
// fault or an authentication-class close code swaps in a poller so the user
// keeps seeing progress; a normal close ends the session as idle, and any
// other close code ends it in the error mode with the close recorded.
func (r *Reconciler) handleClose(gen uint64, code int, err error) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}

	degrade := err != nil || transport.AuthClose(code)
	if !degrade || r.degraded {
		r.channel = nil
		if code != 0 && !transport.NormalClose(code) {
			r.lastErr = fmt.Sprintf("log stream closed (code %d)", code)
			r.publishLocked(events.EventLogError, r.lastErr)
			r.setModeLocked(types.ModeError)
		} else {
			r.setModeLocked(types.ModeIdle)
		}
		r.mu.Unlock()
		return
	}

	if err != nil {
		r.lastErr = err.Error()
	}
	r.degraded = true
	appID := r.appID
	r.channel = nil
	r.mu.Unlock()

	lg := log.WithAppID(appID)
	lg.Warn().
		Int("close_code", code).
		Err(err).
		Msg("log stream lost, degrading to polling")
	metrics.StreamFallbacksTotal.Inc()

	poller := r.client.OpenPoller(appID, r.cfg.LogBufferCap, r.cfg.LogPollInterval)
	r.adopt(gen, poller)
}

// appendLocked appends one line, evicting from the front when the window is
// full. The slice re-heads in place, so eviction is O(1) amortized.
func (r *Reconciler) appendLocked(line types.LogLine) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.cfg.LogBufferCap {
		r.lines = r.lines[1:]
	}
	if r.onLine != nil {
		r.onLine(line)
	}
}

func (r *Reconciler) setModeLocked(mode types.ChannelMode) {
	if r.mode == mode {
		return
	}
	r.mode = mode
	r.publishLocked(events.EventLogMode, string(mode))
}

func (r *Reconciler) publishLocked(t events.EventType, msg string) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(&events.Event{
		Type:    t,
		AppID:   r.appID,
		Message: msg,
	})
}

func lineKey(line types.LogLine) string {
	return line.Timestamp.UTC().Format(time.RFC3339Nano) + "\x00" + line.Message
}
