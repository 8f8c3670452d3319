package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pyloft/console/pkg/types"
)

// pollChannel is a LogChannel backed by a periodic tail fetch. The server is
// authoritative for tail order, so each fetch is delivered as one batch
// frame carrying the full snapshot.
type pollChannel struct {
	client   *Client
	appID    string
	tail     int
	interval time.Duration

	onFrame FrameHandler
	onClose CloseHandler

	mu     sync.Mutex
	closed bool
	stopCh chan struct{}
}

// OpenPoller builds a polling log channel. The caller must Start it.
func (c *Client) OpenPoller(appID string, tail int, interval time.Duration) LogChannel {
	if tail <= 0 || tail > maxTailLines {
		tail = maxTailLines
	}
	return &pollChannel{
		client:   c,
		appID:    appID,
		tail:     tail,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (p *pollChannel) Mode() types.ChannelMode {
	return types.ModePolling
}

func (p *pollChannel) OnFrame(h FrameHandler) {
	p.onFrame = h
}

func (p *pollChannel) OnClose(h CloseHandler) {
	p.onClose = h
}

// Start fetches once immediately, then on every interval tick. Fetch
// failures are delivered as error frames; the poller never gives up on its
// own.
func (p *pollChannel) Start() {
	go p.run()
}

func (p *pollChannel) run() {
	p.fetch()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.fetch()
		case <-p.stopCh:
			return
		}
	}
}

func (p *pollChannel) fetch() {
	resp, err := p.client.Logs(context.Background(), p.appID, p.tail)

	frame := Frame{Type: FrameBatch}
	if err != nil {
		frame = Frame{Type: FrameError, Message: err.Error()}
	} else {
		frame.Logs = resp.Logs
		frame.Error = resp.Error
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	select {
	case <-p.stopCh:
		return
	default:
	}
	if p.onFrame != nil {
		p.onFrame(data)
	}
}

// Close stops the poll loop. The close handler is not invoked.
func (p *pollChannel) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.stopCh)
}
