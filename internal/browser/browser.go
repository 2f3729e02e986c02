// Package browser drives a headless Chrome that records rrweb events while it
// navigates, delivering each event in the same envelope the streaming
// endpoint uses.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/ysmood/gson"
)

// bindingName is the window function the recorder calls for every event.
const bindingName = "__vstreamEmit"

// EventFunc receives one JSON frame of the form {"event": {...}}.
// It may be called from rod's event goroutine.
type EventFunc func(frame []byte)

// Config configures Chrome launch and recorder injection.
type Config struct {
	Headless bool          // Run in headless mode (default: true)
	Timeout  time.Duration // Default operation timeout (default: 30s)

	// RRWebURL is fetched once and injected into every document.
	RRWebURL string
	// Script, when set, is used instead of fetching RRWebURL. It must
	// define window.rrweb.record.
	Script string

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults for recording runs.
func DefaultConfig() Config {
	return Config{
		Headless: true,
		Timeout:  30 * time.Second,
	}
}

// VisualBrowser is a recording Chrome instance bound to one session.
type VisualBrowser struct {
	cfg       Config
	sessionID string
	emit      EventFunc
	log       *slog.Logger

	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	mu        sync.Mutex
	injected  bool
	recording bool
	unbind    func() error
}

// New creates a VisualBrowser. An empty sessionID gets a random one.
func New(cfg Config, sessionID string, emit EventFunc) *VisualBrowser {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &VisualBrowser{
		cfg:       cfg,
		sessionID: sessionID,
		emit:      emit,
		log:       log.With("session_id", sessionID),
	}
}

// SessionID returns the session the browser records for.
func (b *VisualBrowser) SessionID() string {
	return b.sessionID
}

// Page returns the recording page, or nil before Launch.
func (b *VisualBrowser) Page() *rod.Page {
	return b.page
}

// Launch starts Chrome and opens a blank page.
// The browser is configured with:
//   - No sandbox (for container compatibility)
//   - No GPU
//   - A fixed window size so recorded coordinates are stable
func (b *VisualBrowser) Launch(ctx context.Context) error {
	l := launcher.New().
		Context(ctx).
		Headless(b.cfg.Headless).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("window-size", "1280,720")

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch Chrome: %w", err)
	}
	b.launcher = l

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to Chrome: %w", err)
	}
	b.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}
	b.page = page
	b.log.Info("browser launched", "headless", b.cfg.Headless)
	return nil
}

// InjectRecorder loads the rrweb bundle into the current document and every
// document created after it. CSP is bypassed so restrictive sites still
// accept the script.
func (b *VisualBrowser) InjectRecorder(ctx context.Context) error {
	if b.page == nil {
		return errors.New("no page open, call Launch first")
	}

	bundle := b.cfg.Script
	if bundle == "" {
		var err error
		bundle, err = fetchBundle(ctx, b.cfg.RRWebURL, b.cfg.Timeout)
		if err != nil {
			return err
		}
	}

	page := b.page.Timeout(b.cfg.Timeout)
	defer page.CancelTimeout()

	if err := (proto.PageSetBypassCSP{Enabled: true}).Call(page); err != nil {
		return fmt.Errorf("bypass CSP: %w", err)
	}

	// The binding listens for as long as the page lives, so it must not
	// inherit the per-operation timeout.
	unbind, err := b.page.Expose(bindingName, func(arg gson.JSON) (interface{}, error) {
		b.deliver([]byte(arg.Str()))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("expose event binding: %w", err)
	}

	script := recorderScript(bundle)
	if _, err := page.EvalOnNewDocument(script); err != nil {
		_ = unbind()
		return fmt.Errorf("register recorder: %w", err)
	}
	if _, err := page.Eval(`(src) => { (0, eval)(src); return true; }`, script); err != nil {
		_ = unbind()
		return fmt.Errorf("inject recorder: %w", err)
	}

	ok, err := b.evalBool(page, `() => typeof window.rrweb !== 'undefined' && typeof window.rrweb.record === 'function'`)
	if err != nil {
		_ = unbind()
		return fmt.Errorf("verify recorder: %w", err)
	}
	if !ok {
		_ = unbind()
		return errors.New("rrweb recorder not available after injection")
	}

	b.mu.Lock()
	b.injected = true
	b.unbind = unbind
	b.mu.Unlock()
	b.log.Info("rrweb recorder injected")
	return nil
}

// StartRecording starts rrweb on the current document and arranges for it
// to start on every later document. Recording emits a FullSnapshot
// immediately.
func (b *VisualBrowser) StartRecording() error {
	b.mu.Lock()
	injected := b.injected
	b.mu.Unlock()
	if !injected {
		return errors.New("recorder not injected, call InjectRecorder first")
	}

	page := b.page.Timeout(b.cfg.Timeout)
	defer page.CancelTimeout()

	if _, err := page.EvalOnNewDocument(autoStartScript); err != nil {
		return fmt.Errorf("register auto-start: %w", err)
	}
	ok, err := b.evalBool(page, `() => window.__vstreamStart()`)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	if !ok {
		return errors.New("rrweb recording did not start")
	}

	b.mu.Lock()
	b.recording = true
	b.mu.Unlock()
	b.log.Info("recording started")
	return nil
}

// Navigate loads url and waits for the load event. The recorder re-injects
// itself in the new document; a navigation marker is emitted first so
// consumers can tell the snapshots apart.
func (b *VisualBrowser) Navigate(url string) error {
	if b.page == nil {
		return errors.New("no page open, call Launch first")
	}

	page := b.page.Timeout(b.cfg.Timeout)
	defer page.CancelTimeout()

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	b.mu.Lock()
	recording := b.recording
	b.mu.Unlock()
	if recording {
		b.deliver(navigationMarker(url))
	}

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for load of %s: %w", url, err)
	}
	b.log.Info("navigated", "url", url)
	return nil
}

// Scroll scrolls the window to vertical offset y.
func (b *VisualBrowser) Scroll(y int) error {
	if b.page == nil {
		return errors.New("no page open")
	}
	_, err := b.page.Timeout(b.cfg.Timeout).Eval(`(y) => window.scrollTo(0, y)`, y)
	if err != nil {
		return fmt.Errorf("scroll to %d: %w", y, err)
	}
	return nil
}

// MouseMove moves the pointer to (x, y).
func (b *VisualBrowser) MouseMove(x, y float64) error {
	if b.page == nil {
		return errors.New("no page open")
	}
	if err := b.page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
		return fmt.Errorf("mouse move to (%.0f, %.0f): %w", x, y, err)
	}
	return nil
}

// Click moves to (x, y) and clicks the left button.
func (b *VisualBrowser) Click(x, y float64) error {
	if err := b.MouseMove(x, y); err != nil {
		return err
	}
	if err := b.page.Mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click at (%.0f, %.0f): %w", x, y, err)
	}
	return nil
}

// Close stops recording and releases Chrome.
// Always call this (via defer) to prevent orphaned Chrome processes.
func (b *VisualBrowser) Close() error {
	var errs []error

	b.mu.Lock()
	unbind := b.unbind
	b.unbind = nil
	b.mu.Unlock()
	if unbind != nil && b.page != nil {
		if err := unbind(); err != nil {
			b.log.Debug("unbind failed", "err", err)
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	b.page = nil
	return errors.Join(errs...)
}

func (b *VisualBrowser) deliver(frame []byte) {
	if b.emit == nil || len(frame) == 0 {
		return
	}
	b.emit(frame)
}

func (b *VisualBrowser) evalBool(page *rod.Page, js string) (bool, error) {
	res, err := page.Eval(js)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

func fetchBundle(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if url == "" {
		return "", errors.New("no rrweb bundle configured")
	}
	resp, err := resty.New().SetTimeout(timeout).R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch rrweb bundle: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch rrweb bundle: %s returned %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}

// navigationMarker builds the frame emitted when the page navigates.
func navigationMarker(url string) []byte {
	frame, _ := json.Marshal(map[string]any{
		"event": map[string]any{
			"type":      6,
			"timestamp": time.Now().UnixMilli(),
			"data": map[string]any{
				"tag":     "navigation-detected",
				"payload": map[string]any{"href": url},
			},
		},
	})
	return frame
}
