package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/thesyncim/vstream/internal/browser"
	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/logging"
	"github.com/thesyncim/vstream/pkg/rrweb"
)

// Report names of the browser scenarios.
const (
	NavigationName = "rrweb-navigation"
	SitesName      = "iframe-streaming"
)

// Recorder is a browser that records rrweb events. *browser.VisualBrowser
// implements it.
type Recorder interface {
	Launch(ctx context.Context) error
	InjectRecorder(ctx context.Context) error
	StartRecording() error
	Navigate(url string) error
	Scroll(y int) error
	MouseMove(x, y float64) error
	Click(x, y float64) error
	Close() error
}

// RecorderFactory creates a Recorder for a session, delivering events to emit.
type RecorderFactory func(sessionID string, emit browser.EventFunc) Recorder

// BrowserFactory returns a RecorderFactory backed by Chrome.
func BrowserFactory(cfg browser.Config) RecorderFactory {
	return func(sessionID string, emit browser.EventFunc) Recorder {
		return browser.New(cfg, sessionID, emit)
	}
}

// NavigationConfig holds the waits of a recording run.
type NavigationConfig struct {
	URL              string
	InitialWait      time.Duration // after recording starts
	NavigationWait   time.Duration // after navigating
	InteractionPause time.Duration // between interactions
	FinalWait        time.Duration // before collecting results

	Observers []rrweb.Observer
}

// DefaultNavigationConfig returns the standard waits for url.
func DefaultNavigationConfig(url string) NavigationConfig {
	return NavigationConfig{
		URL:              url,
		InitialWait:      2 * time.Second,
		NavigationWait:   5 * time.Second,
		InteractionPause: time.Second,
		FinalWait:        3 * time.Second,
	}
}

// record runs one recording session against cfg.URL and returns what was
// collected. Interaction failures are logged and do not fail the run.
func record(ctx context.Context, log *slog.Logger, factory RecorderFactory, sessionID string, cfg NavigationConfig, click bool) (rrweb.Summary, error) {
	opts := []rrweb.CollectorOption{rrweb.WithLogger(log)}
	for _, o := range cfg.Observers {
		opts = append(opts, rrweb.WithObserver(o))
	}
	collector := rrweb.NewCollector(opts...)

	rec := factory(sessionID, func(frame []byte) {
		_ = collector.AddFrame(frame)
	})
	defer func() {
		log.Info("cleaning up browser")
		if err := rec.Close(); err != nil {
			log.Error("cleanup error", "err", err)
		}
	}()

	log.Info("creating browser instance")
	if err := rec.Launch(ctx); err != nil {
		return collector.Summary(), err
	}

	log.Info("injecting rrweb recording")
	if err := rec.InjectRecorder(ctx); err != nil {
		return collector.Summary(), fmt.Errorf("rrweb injection failed: %w", err)
	}

	log.Info("starting recording")
	if err := rec.StartRecording(); err != nil {
		return collector.Summary(), err
	}
	if err := sleep(ctx, cfg.InitialWait); err != nil {
		return collector.Summary(), err
	}
	log.Info("initial events", "total", collector.Total(), "fullsnapshots", collector.FullSnapshots())

	log.Info("navigating", "url", cfg.URL)
	if err := rec.Navigate(cfg.URL); err != nil {
		return collector.Summary(), err
	}
	if err := sleep(ctx, cfg.NavigationWait); err != nil {
		return collector.Summary(), err
	}

	log.Info("performing test interactions")
	interactions := []struct {
		name string
		do   func() error
	}{
		{"scroll to 200", func() error { return rec.Scroll(200) }},
		{"mouse move to 100,100", func() error { return rec.MouseMove(100, 100) }},
		{"scroll to 400", func() error { return rec.Scroll(400) }},
	}
	if click {
		interactions = append(interactions, struct {
			name string
			do   func() error
		}{"click at 200,200", func() error { return rec.Click(200, 200) }})
	}
	for _, it := range interactions {
		if err := it.do(); err != nil {
			log.Warn("interaction failed (expected for some sites)", "interaction", it.name, "err", err)
		}
		if err := sleep(ctx, cfg.InteractionPause); err != nil {
			return collector.Summary(), err
		}
	}

	log.Info("final wait for events")
	if err := sleep(ctx, cfg.FinalWait); err != nil {
		return collector.Summary(), err
	}
	return collector.Summary(), nil
}

// RunNavigation records a session across a navigation and checks that the
// recorder produced an initial FullSnapshot and kept emitting events.
func RunNavigation(ctx context.Context, factory RecorderFactory, cfg NavigationConfig) (Report, error) {
	log := logging.FromContext(ctx).With("scenario", NavigationName)
	start := time.Now()
	report := Report{Name: NavigationName, Details: map[string]string{"url": cfg.URL}}

	summary, err := record(ctx, log, factory, "test-navigation", cfg, false)
	report.Summary = &summary
	report.Duration = time.Since(start)
	if err != nil {
		report.fail(err)
		return report, err
	}

	report.check("has_initial_fullsnapshot", summary.HasFullSnapshot)
	report.check("events_received", summary.HasEvents)
	report.inform("navigation_detected", summary.HasNavigation)
	report.inform("events_after_navigation", summary.EventsAfterNavigation)

	log.Info("navigation test results",
		"total_events", summary.TotalEvents,
		"fullsnapshots", summary.FullSnapshots,
		"navigation_events", summary.NavigationEvents,
		"passed", report.Passed())
	return report, nil
}

// SiteResult is the outcome of recording one site.
type SiteResult struct {
	Name     string        `json:"test_name"`
	URL      string        `json:"url"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"-"`
	Summary  rrweb.Summary `json:"summary"`
}

// MarshalJSON writes the test duration in seconds.
func (r SiteResult) MarshalJSON() ([]byte, error) {
	type plain SiteResult
	return json.Marshal(struct {
		plain
		DurationSeconds float64 `json:"test_duration"`
	}{plain(r), r.Duration.Seconds()})
}

// RunSites records every site in turn and passes only when all of them
// completed, produced events and FullSnapshots, and had no handling errors.
func RunSites(ctx context.Context, factory RecorderFactory, sites []config.Site, base NavigationConfig) (Report, error) {
	log := logging.FromContext(ctx).With("scenario", SitesName)
	start := time.Now()
	report := Report{Name: SitesName}

	if len(sites) == 0 {
		err := errors.New("no sites configured")
		report.fail(err)
		return report, err
	}

	for _, site := range sites {
		if ctx.Err() != nil {
			report.fail(ctx.Err())
			report.Duration = time.Since(start)
			return report, ctx.Err()
		}

		name := site.Name
		if name == "" {
			name = site.URL
		}
		siteLog := log.With("site", name)
		siteLog.Info("starting test", "url", site.URL)

		cfg := base
		cfg.URL = site.URL
		siteStart := time.Now()
		summary, err := record(ctx, siteLog, factory, fmt.Sprintf("frontend-test-%d", time.Now().Unix()), cfg, true)

		res := SiteResult{
			Name:     name,
			URL:      site.URL,
			Success:  err == nil,
			Duration: time.Since(siteStart),
			Summary:  summary,
		}
		if err != nil {
			res.Error = err.Error()
			siteLog.Error("test failed", "err", err)
		} else {
			siteLog.Info("test results",
				"total_events", summary.TotalEvents,
				"fullsnapshots", summary.FullSnapshots,
				"events_per_second", fmt.Sprintf("%.1f", summary.EventsPerSecond),
				"errors", len(summary.Errors))
		}
		report.Sites = append(report.Sites, res)
	}

	allSucceeded, allEvents, allSnapshots, noErrors := true, true, true, true
	var totalEvents, totalSnapshots int
	var rateSum float64
	succeeded := 0
	for _, s := range report.Sites {
		if !s.Success {
			allSucceeded = false
			continue
		}
		succeeded++
		totalEvents += s.Summary.TotalEvents
		totalSnapshots += s.Summary.FullSnapshots
		rateSum += s.Summary.EventsPerSecond
		allEvents = allEvents && s.Summary.HasEvents
		allSnapshots = allSnapshots && s.Summary.HasFullSnapshot
		noErrors = noErrors && len(s.Summary.Errors) == 0
	}

	report.Details = map[string]string{
		"successful_tests":      fmt.Sprintf("%d/%d", succeeded, len(report.Sites)),
		"total_events":          fmt.Sprint(totalEvents),
		"total_fullsnapshots":   fmt.Sprint(totalSnapshots),
		"avg_events_per_second": "0.0",
	}
	if succeeded > 0 {
		report.Details["avg_events_per_second"] = fmt.Sprintf("%.1f", rateSum/float64(succeeded))
	}

	report.check("all_sites_succeeded", allSucceeded)
	report.check("all_sites_captured_events", allEvents)
	report.check("all_sites_captured_fullsnapshots", allSnapshots)
	report.check("no_processing_errors", noErrors)
	report.Duration = time.Since(start)
	return report, nil
}
