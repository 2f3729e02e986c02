package rrweb

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/thesyncim/vstream/pkg/rrweb/internal"
)

// progressEvery controls how often the collector logs a progress line.
const progressEvery = 10

// ongoingThreshold is the event count above which events are considered to
// have kept flowing after a navigation.
const ongoingThreshold = 10

// Record is one received message and the time it was recorded.
type Record struct {
	At      time.Time
	Message Message
}

// Observer is notified of every recorded message and handling error.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveEvent(ev Event)
	ObserveError(err error)
}

// Summary is a point-in-time view of a Collector.
type Summary struct {
	TotalEvents      int            `json:"total_events"`
	FullSnapshots    int            `json:"fullsnapshot_count"`
	NavigationEvents int            `json:"navigation_events"`
	EventTypes       map[string]int `json:"event_types"`

	// Duration spans first to last recorded event; zero with fewer than two.
	Duration   time.Duration `json:"-"`
	FirstEvent time.Time     `json:"-"`
	LastEvent  time.Time     `json:"-"`

	// EventsPerSecond is measured from the first event to the time of the summary.
	EventsPerSecond float64 `json:"events_per_second"`
	// RecentEventsPerSecond and RecentBytesPerSecond cover the rate window
	// only; both are zero until the window holds two events.
	RecentEventsPerSecond float64  `json:"recent_events_per_second"`
	RecentBytesPerSecond  float64  `json:"recent_bytes_per_second"`
	Errors                []string `json:"errors,omitempty"`

	HasFullSnapshot       bool `json:"has_fullsnapshot"`
	HasEvents             bool `json:"has_events"`
	HasNavigation         bool `json:"has_navigation_events"`
	EventsAfterNavigation bool `json:"events_after_navigation"`
}

// MarshalJSON writes Duration in seconds and leaves out unset timestamps.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	out := struct {
		plain
		DurationSeconds float64    `json:"duration_seconds"`
		FirstEvent      *time.Time `json:"first_event,omitempty"`
		LastEvent       *time.Time `json:"last_event,omitempty"`
	}{plain: plain(s), DurationSeconds: s.Duration.Seconds()}
	if !s.FirstEvent.IsZero() {
		out.FirstEvent = &s.FirstEvent
	}
	if !s.LastEvent.IsZero() {
		out.LastEvent = &s.LastEvent
	}
	return json.Marshal(out)
}

// Labels returns the event-type labels in ascending order, with
// UnknownLabel last.
func (s Summary) Labels() []string {
	labels := make([]string, 0, len(s.EventTypes))
	for l := range s.EventTypes {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i] == UnknownLabel || labels[j] == UnknownLabel {
			return labels[j] == UnknownLabel && labels[i] != UnknownLabel
		}
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) < len(labels[j])
		}
		return labels[i] < labels[j]
	})
	return labels
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithClock sets the time source used to stamp records.
func WithClock(c internal.Clock) CollectorOption {
	return func(col *Collector) { col.clock = c }
}

// WithLogger sets the logger used for per-event log lines.
func WithLogger(l *slog.Logger) CollectorOption {
	return func(col *Collector) { col.log = l }
}

// WithRetention keeps at most n of the most recent records. Counts and
// timings still cover every message. Zero keeps everything.
func WithRetention(n int) CollectorOption {
	return func(col *Collector) { col.retain = max(n, 0) }
}

// WithRateWindow sets the sliding window for recent rates.
func WithRateWindow(d time.Duration) CollectorOption {
	return func(col *Collector) { col.rate = newRateWindow(d) }
}

// WithObserver adds an observer notified of every event.
func WithObserver(o Observer) CollectorOption {
	return func(col *Collector) { col.observers = append(col.observers, o) }
}

// Collector accumulates rrweb messages for the lifetime of one run.
// It is safe for concurrent use.
type Collector struct {
	clock     internal.Clock
	log       *slog.Logger
	observers []Observer
	retain    int

	mu            sync.Mutex
	records       []Record
	total         int
	first, last   time.Time
	rate          *rateWindow
	fullSnapshots int
	navigation    int
	types         map[string]int
	errors        []string
}

// NewCollector creates an empty Collector.
func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{
		clock: internal.SystemClock{},
		log:   slog.Default(),
		types: make(map[string]int),
		rate:  newRateWindow(DefaultRateWindow),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add records a decoded message.
func (c *Collector) Add(msg Message) {
	ev := msg.Event

	// Stamp under the lock so records, last and rate samples stay in
	// arrival order across concurrent writers.
	c.mu.Lock()
	now := c.clock.Now()
	c.records = append(c.records, Record{At: now, Message: msg})
	if c.retain > 0 && len(c.records) >= 2*c.retain {
		c.records = append([]Record(nil), c.records[len(c.records)-c.retain:]...)
	}
	c.total++
	total := c.total
	if c.first.IsZero() {
		c.first = now
	}
	c.last = now
	c.rate.update(int64(len(msg.Raw)), now)
	c.types[ev.Label()]++

	fullSnapshots := c.fullSnapshots
	if ev.IsFullSnapshot() {
		c.fullSnapshots++
		fullSnapshots = c.fullSnapshots
	}
	navigation := c.navigation
	isNav := ev.IsNavigationMarker()
	if isNav {
		c.navigation++
		navigation = c.navigation
	}
	c.mu.Unlock()

	if ev.IsFullSnapshot() {
		c.log.Info("FullSnapshot received", "count", fullSnapshots)
	}
	if isNav {
		c.log.Info("navigation event received", "count", navigation, "tag", ev.Data.Tag, "mode", ev.Data.Mode)
	}
	if total%progressEvery == 0 {
		c.log.Info("events received", "total", total, "fullsnapshots", fullSnapshots)
	}

	for _, o := range c.observers {
		o.ObserveEvent(ev)
	}
}

// AddFrame decodes a raw JSON frame and records it. A frame that does not
// decode is counted as a handling error and returned.
func (c *Collector) AddFrame(frame []byte) error {
	msg, err := Decode(frame)
	if err != nil {
		c.AddError(err)
		return err
	}
	c.Add(msg)
	return nil
}

// AddError records a handling error without aborting collection.
func (c *Collector) AddError(err error) {
	c.mu.Lock()
	c.errors = append(c.errors, err.Error())
	c.mu.Unlock()

	c.log.Error("error handling event", "err", err)
	for _, o := range c.observers {
		o.ObserveError(err)
	}
}

// Total returns the number of recorded messages.
func (c *Collector) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// FullSnapshots returns the number of FullSnapshot events seen.
func (c *Collector) FullSnapshots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fullSnapshots
}

// Records returns a copy of the retained messages in arrival order.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.records)
	if c.retain > 0 && n > c.retain {
		n = c.retain
	}
	out := make([]Record, n)
	copy(out, c.records[len(c.records)-n:])
	return out
}

// Summary aggregates everything collected so far.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()

	s := Summary{
		TotalEvents:      c.total,
		FullSnapshots:    c.fullSnapshots,
		NavigationEvents: c.navigation,
		EventTypes:       make(map[string]int, len(c.types)),
		Errors:           append([]string(nil), c.errors...),
	}
	for k, v := range c.types {
		s.EventTypes[k] = v
	}

	if n := c.total; n > 0 {
		s.FirstEvent = c.first
		s.LastEvent = c.last
		if n > 1 {
			s.Duration = s.LastEvent.Sub(s.FirstEvent)
		}
		if elapsed := now.Sub(s.FirstEvent); elapsed > 0 {
			s.EventsPerSecond = float64(n) / elapsed.Seconds()
		}
	}

	if perSec, bytesPerSec, ok := c.rate.rate(now); ok {
		s.RecentEventsPerSecond = perSec
		s.RecentBytesPerSecond = bytesPerSec
	}

	s.HasFullSnapshot = s.FullSnapshots > 0
	s.HasEvents = s.TotalEvents > 0
	s.HasNavigation = s.NavigationEvents > 0
	s.EventsAfterNavigation = s.TotalEvents > ongoingThreshold
	return s
}
