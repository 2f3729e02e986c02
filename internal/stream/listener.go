// Package stream listens to a visual session's rrweb WebSocket for a
// bounded wall-clock duration.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thesyncim/vstream/pkg/rrweb"
)

// DefaultPollTimeout is how long one receive attempt waits for a message.
const DefaultPollTimeout = time.Second

// StopReason describes why a listen loop ended.
type StopReason string

const (
	StopDeadline  StopReason = "deadline"
	StopClosed    StopReason = "closed"
	StopCancelled StopReason = "cancelled"
	StopError     StopReason = "error"
)

// Config configures a Listener.
type Config struct {
	URL         string
	PollTimeout time.Duration
	// Token, when set, is sent as a bearer token on the upgrade request.
	Token       string
	DialTimeout time.Duration
	Logger      *slog.Logger
	// OnConnect is called after the socket is established.
	OnConnect func()
	// OnDisconnect is called when the listen loop ends after a connection.
	OnDisconnect func()
}

// Listener receives rrweb frames from one stream and records them into a
// collector.
type Listener struct {
	cfg       Config
	collector *rrweb.Collector
	log       *slog.Logger

	connected atomic.Bool
	timeouts  atomic.Int64

	mu     sync.Mutex
	reason StopReason
}

// NewListener creates a Listener recording into c.
func NewListener(cfg Config, c *rrweb.Collector) *Listener {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Listener{cfg: cfg, collector: c, log: log}
}

// Connected reports whether the socket was ever established.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Collector returns the collector receiving events.
func (l *Listener) Collector() *rrweb.Collector {
	return l.collector
}

// Timeouts returns how many receive attempts expired without a message.
func (l *Listener) Timeouts() int64 {
	return l.timeouts.Load()
}

// StopReason reports why the last Run ended.
func (l *Listener) StopReason() StopReason {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}

func (l *Listener) setReason(r StopReason) {
	l.mu.Lock()
	l.reason = r
	l.mu.Unlock()
}

type frame struct {
	data []byte
	err  error
}

// Run connects and records messages until duration elapses, the stream
// closes, a receive error occurs or ctx is cancelled. Only a failed dial is
// returned as an error; the other endings are normal stops.
func (l *Listener) Run(ctx context.Context, duration time.Duration) error {
	header := http.Header{}
	if l.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+l.cfg.Token)
	}

	l.log.Info("connecting to stream", "url", l.cfg.URL)
	dialCtx, cancel := context.WithTimeout(ctx, l.cfg.DialTimeout)
	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, l.cfg.URL, header)
	cancel()
	if err != nil {
		l.setReason(StopError)
		if resp != nil {
			return fmt.Errorf("connect to %s: %w (status %d)", l.cfg.URL, err, resp.StatusCode)
		}
		return fmt.Errorf("connect to %s: %w", l.cfg.URL, err)
	}
	defer conn.Close()

	l.connected.Store(true)
	l.log.Info("connected to rrweb stream", "url", l.cfg.URL)
	if l.cfg.OnConnect != nil {
		l.cfg.OnConnect()
	}
	if l.cfg.OnDisconnect != nil {
		defer l.cfg.OnDisconnect()
	}

	frames := make(chan frame)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			_, data, err := conn.ReadMessage()
			select {
			case frames <- frame{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	reason := l.poll(ctx, duration, frames)
	l.setReason(reason)

	// Closing the socket unblocks the reader.
	if reason != StopClosed {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}
	conn.Close()
drain:
	for {
		select {
		case <-frames:
		case <-readerDone:
			break drain
		}
	}

	l.log.Info("stopped listening", "reason", reason, "events", l.collector.Total())
	return nil
}

func (l *Listener) poll(ctx context.Context, duration time.Duration, frames <-chan frame) StopReason {
	deadline := time.NewTimer(duration)
	defer deadline.Stop()

	attempt := time.NewTimer(l.cfg.PollTimeout)
	defer attempt.Stop()

	for {
		select {
		case <-ctx.Done():
			return StopCancelled
		case <-deadline.C:
			return StopDeadline
		case <-attempt.C:
			// No message within this attempt; keep waiting.
			l.timeouts.Add(1)
			attempt.Reset(l.cfg.PollTimeout)
		case f := <-frames:
			if f.err != nil {
				var closeErr *websocket.CloseError
				if errors.As(f.err, &closeErr) {
					l.log.Info("stream connection closed", "code", closeErr.Code, "text", closeErr.Text)
					return StopClosed
				}
				l.log.Error("error receiving message", "err", f.err)
				return StopError
			}
			if err := l.collector.AddFrame(f.data); err == nil {
				l.log.Debug("received rrweb event", "bytes", len(f.data))
			}
			attempt.Reset(l.cfg.PollTimeout)
		}
	}
}

// Handle is a listener running in the background.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs l in a background goroutine.
func (l *Listener) Start(ctx context.Context, duration time.Duration) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.err = l.Run(ctx, duration)
	}()
	return h
}

// Done is closed when the listener has stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Stop cancels the listener if still running and waits for it to finish.
// It returns the listener's connect error, if any.
func (h *Handle) Stop() error {
	h.cancel()
	<-h.done
	return h.err
}

// Wait blocks until the listener stops on its own.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}
