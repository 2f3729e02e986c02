//go:build e2e

package e2e

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thesyncim/vstream/internal/browser"
	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/mockservice"
	"github.com/thesyncim/vstream/internal/scenario"
	"github.com/thesyncim/vstream/pkg/rrweb"
)

func startMock(t *testing.T) *mockservice.Server {
	t.Helper()
	srv, err := mockservice.NewServer(mockservice.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("server shutdown error: %v", err)
		}
	})
	t.Logf("Server started on %s", addr)
	return srv
}

func browserConfig() browser.Config {
	cfg := browser.DefaultConfig()
	cfg.RRWebURL = config.DefaultRRWebURL
	if u := os.Getenv("VSTREAM_E2E_RRWEB_URL"); u != "" {
		cfg.RRWebURL = u
	}
	return cfg
}

// TestChrome_RecordsTestPage verifies the recording pipeline:
// 1. Browser launches headless and the recorder injects
// 2. Recording starts with an initial FullSnapshot
// 3. Navigation emits a marker and a new FullSnapshot
// 4. Scrolling produces incremental snapshots
func TestChrome_RecordsTestPage(t *testing.T) {
	srv := startMock(t)
	ctx := context.Background()

	collector := rrweb.NewCollector()
	var mu sync.Mutex
	var bad []string
	b := browser.New(browserConfig(), "", func(frame []byte) {
		if err := collector.AddFrame(frame); err != nil {
			mu.Lock()
			bad = append(bad, string(frame))
			mu.Unlock()
		}
	})
	defer func() {
		if err := b.Close(); err != nil {
			t.Errorf("browser close error: %v", err)
		}
	}()

	if err := b.Launch(ctx); err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}
	if err := b.InjectRecorder(ctx); err != nil {
		t.Fatalf("failed to inject recorder: %v", err)
	}
	if err := b.StartRecording(); err != nil {
		t.Fatalf("failed to start recording: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	if collector.FullSnapshots() < 1 {
		t.Fatalf("no FullSnapshot after starting recording, got %d events", collector.Total())
	}

	url := srv.BaseURL() + "/page"
	if err := b.Navigate(url); err != nil {
		t.Fatalf("failed to navigate: %v", err)
	}
	time.Sleep(time.Second)

	title, err := b.Page().Eval(`() => document.title`)
	if err != nil {
		t.Fatalf("failed to read title: %v", err)
	}
	if !strings.Contains(title.Value.Str(), "vstream") {
		t.Errorf("unexpected page title: got %q", title.Value.Str())
	}

	before := collector.Total()
	for _, y := range []int{200, 400, 800} {
		if err := b.Scroll(y); err != nil {
			t.Errorf("scroll to %d: %v", y, err)
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err := b.Click(120, 120); err != nil {
		t.Errorf("click: %v", err)
	}
	time.Sleep(time.Second)

	s := collector.Summary()
	t.Logf("events=%d fullsnapshots=%d navigation=%d types=%v", s.TotalEvents, s.FullSnapshots, s.NavigationEvents, s.EventTypes)

	if s.FullSnapshots < 2 {
		t.Errorf("expected a FullSnapshot before and after navigation, got %d", s.FullSnapshots)
	}
	if s.NavigationEvents < 1 {
		t.Error("expected a navigation marker")
	}
	if collector.Total() <= before {
		t.Error("interactions produced no events")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(bad) > 0 {
		t.Errorf("%d frames failed to decode, first: %s", len(bad), bad[0])
	}
}

// TestNavigationScenario_TestPage runs the navigation scenario end to end
// against the local test page.
func TestNavigationScenario_TestPage(t *testing.T) {
	srv := startMock(t)

	cfg := scenario.DefaultNavigationConfig(srv.BaseURL() + "/page")
	cfg.InitialWait = time.Second
	cfg.NavigationWait = 2 * time.Second
	cfg.InteractionPause = 300 * time.Millisecond
	cfg.FinalWait = time.Second

	r, err := scenario.RunNavigation(context.Background(), scenario.BrowserFactory(browserConfig()), cfg)
	if err != nil {
		t.Fatalf("navigation scenario failed: %v", err)
	}
	for _, c := range r.Criteria {
		t.Logf("%s: pass=%t informational=%t", c.Name, c.Pass, c.Informational)
	}
	if !r.Passed() {
		t.Error("navigation scenario did not pass")
	}
}
