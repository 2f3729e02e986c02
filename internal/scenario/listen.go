package scenario

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/thesyncim/vstream/internal/logging"
	"github.com/thesyncim/vstream/internal/stream"
	"github.com/thesyncim/vstream/pkg/rrweb"
)

// Report names of the stream-only scenarios.
const (
	ListenName = "listen"
	SoakName   = "soak"
)

// ListenConfig configures attaching to an existing session stream.
type ListenConfig struct {
	URL         string
	Token       string
	Duration    time.Duration
	PollTimeout time.Duration
	// Retention bounds the records kept in memory; zero keeps all.
	Retention int

	Observers    []rrweb.Observer
	OnConnect    func()
	OnDisconnect func()
}

func (c ListenConfig) listener(ctx context.Context) (*stream.Listener, *rrweb.Collector) {
	log := logging.FromContext(ctx)
	opts := []rrweb.CollectorOption{rrweb.WithLogger(log), rrweb.WithRetention(c.Retention)}
	for _, o := range c.Observers {
		opts = append(opts, rrweb.WithObserver(o))
	}
	collector := rrweb.NewCollector(opts...)
	return stream.NewListener(stream.Config{
		URL:          c.URL,
		Token:        c.Token,
		PollTimeout:  c.PollTimeout,
		Logger:       log,
		OnConnect:    c.OnConnect,
		OnDisconnect: c.OnDisconnect,
	}, collector), collector
}

// RunListen listens to a session stream for cfg.Duration and reports what
// arrived.
func RunListen(ctx context.Context, cfg ListenConfig) (Report, error) {
	ctx = logging.NewContext(ctx, logging.FromContext(ctx).With("scenario", ListenName))
	start := time.Now()
	report := Report{Name: ListenName, Details: map[string]string{"url": cfg.URL}}

	listener, collector := cfg.listener(ctx)
	err := listener.Run(ctx, cfg.Duration)
	summary := collector.Summary()
	report.Summary = &summary
	report.Duration = time.Since(start)
	report.Details["stop_reason"] = string(listener.StopReason())
	report.Details["receive_timeouts"] = fmt.Sprint(listener.Timeouts())
	if err != nil {
		report.fail(err)
		return report, err
	}

	report.check("websocket_connected", listener.Connected())
	report.check("events_received", summary.HasEvents)
	report.inform("has_fullsnapshot", summary.HasFullSnapshot)
	report.inform("navigation_detected", summary.HasNavigation)
	return report, nil
}

// SoakConfig configures a long-running listen with resource tracking.
type SoakConfig struct {
	ListenConfig
	StatusInterval time.Duration
	MaxHeapMB      float64
	// Status, when set, receives a snapshot every StatusInterval.
	Status func(SoakStatus)
}

// DefaultSoakConfig returns the standard soak settings for url.
func DefaultSoakConfig(url string) SoakConfig {
	return SoakConfig{
		ListenConfig: ListenConfig{
			URL:         url,
			Duration:    24 * time.Hour,
			PollTimeout: stream.DefaultPollTimeout,
			Retention:   1000,
		},
		StatusInterval: 5 * time.Minute,
		MaxHeapMB:      100,
	}
}

// SoakStatus is a periodic snapshot of a soak run.
type SoakStatus struct {
	Elapsed       time.Duration
	Events        int
	FullSnapshots int
	Errors        int
	RecentRate    float64 // events per second over the collector's rate window
	HeapAllocMB   float64
	NumGC         uint32
}

// RunSoak listens for cfg.Duration while sampling memory, and fails if the
// stream produced nothing, saw handling errors or the heap outgrew
// cfg.MaxHeapMB.
func RunSoak(ctx context.Context, cfg SoakConfig) (Report, error) {
	log := logging.FromContext(ctx).With("scenario", SoakName)
	ctx = logging.NewContext(ctx, log)
	start := time.Now()
	report := Report{Name: SoakName, Details: map[string]string{"url": cfg.URL}}

	listener, collector := cfg.listener(ctx)
	handle := listener.Start(ctx, cfg.Duration)

	interval := cfg.StatusInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var peakHeapMB float64
	var numGC uint32
	sample := func() SoakStatus {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		heapMB := float64(ms.HeapAlloc) / (1024 * 1024)
		peakHeapMB = max(peakHeapMB, heapMB)
		numGC = ms.NumGC
		s := collector.Summary()
		return SoakStatus{
			Elapsed:       time.Since(start),
			Events:        s.TotalEvents,
			FullSnapshots: s.FullSnapshots,
			Errors:        len(s.Errors),
			RecentRate:    s.RecentEventsPerSecond,
			HeapAllocMB:   heapMB,
			NumGC:         ms.NumGC,
		}
	}

	log.Info("starting soak test", "duration", cfg.Duration, "status_interval", interval)
	sample()

loop:
	for {
		select {
		case <-handle.Done():
			break loop
		case <-ticker.C:
			st := sample()
			if cfg.MaxHeapMB > 0 && st.HeapAllocMB > cfg.MaxHeapMB {
				log.Error("memory limit exceeded", "heap_mb", st.HeapAllocMB, "limit_mb", cfg.MaxHeapMB)
			}
			if cfg.Status != nil {
				cfg.Status(st)
			}
		}
	}

	err := handle.Wait()
	final := sample()
	summary := collector.Summary()
	report.Summary = &summary
	report.Duration = time.Since(start)
	report.Details["stop_reason"] = string(listener.StopReason())
	report.Details["receive_timeouts"] = fmt.Sprint(listener.Timeouts())
	report.Details["peak_heap_mb"] = fmt.Sprintf("%.2f", peakHeapMB)
	report.Details["total_gc_cycles"] = fmt.Sprint(numGC)
	if cfg.Status != nil {
		cfg.Status(final)
	}
	if err != nil {
		report.fail(err)
		return report, err
	}

	reason := listener.StopReason()
	report.check("websocket_connected", listener.Connected())
	report.check("events_received", summary.HasEvents)
	report.check("no_processing_errors", len(summary.Errors) == 0)
	report.check("peak_memory_under_limit", cfg.MaxHeapMB <= 0 || peakHeapMB < cfg.MaxHeapMB)
	report.inform("stream_held_until_end", reason == stream.StopDeadline || reason == stream.StopCancelled)
	return report, nil
}
