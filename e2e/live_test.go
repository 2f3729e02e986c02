//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/scenario"
	"github.com/thesyncim/vstream/internal/workflow"
)

// TestLiveService_ManualExecution runs the manual execution scenario against
// a real workflow service. It is skipped unless VSTREAM_E2E_BASE_URL is set.
func TestLiveService_ManualExecution(t *testing.T) {
	base := os.Getenv("VSTREAM_E2E_BASE_URL")
	if base == "" {
		t.Skip("VSTREAM_E2E_BASE_URL not set")
	}
	token := os.Getenv("VSTREAM_E2E_TOKEN")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := workflow.New(workflow.ClientConfig{BaseURL: base, SessionToken: token, Timeout: 30 * time.Second})
	cfg := scenario.DefaultManualConfig()
	cfg.StreamBase = config.DeriveStreamBase(base)
	cfg.SessionToken = token

	r, err := scenario.RunManual(ctx, client, cfg)
	if err != nil {
		t.Fatalf("manual execution failed: %v", err)
	}
	for _, c := range r.Criteria {
		t.Logf("%s: %t", c.Name, c.Pass)
	}
	if r.Summary != nil {
		t.Logf("events=%d fullsnapshots=%d", r.Summary.TotalEvents, r.Summary.FullSnapshots)
	}
	if !r.Passed() {
		t.Error("manual execution did not pass against the live service")
	}
}
