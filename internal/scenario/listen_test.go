package scenario

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/mockservice"
	"github.com/thesyncim/vstream/internal/workflow"
)

func openStream(t *testing.T, srv *mockservice.Server) string {
	t.Helper()
	client := workflow.New(workflow.ClientConfig{BaseURL: srv.BaseURL()})
	exec, err := client.ExecuteSession(context.Background(), "wf-1", workflow.ExecuteRequest{VisualStreaming: true})
	require.NoError(t, err)
	return workflow.StreamURL(config.DeriveStreamBase(srv.BaseURL()), exec.SessionID)
}

func TestRunListen(t *testing.T) {
	mcfg := mockservice.DefaultConfig()
	mcfg.EventInterval = time.Millisecond
	mcfg.CloseAfterScript = true
	srv := startService(t, mcfg)

	report, err := RunListen(context.Background(), ListenConfig{
		URL:         openStream(t, srv),
		Duration:    5 * time.Second,
		PollTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, report.Passed(), "criteria: %+v", report.Criteria)
	assert.Equal(t, "closed", report.Details["stop_reason"])
	assert.Equal(t, len(mcfg.Script), report.Summary.TotalEvents)
}

func TestRunListen_DialFailure(t *testing.T) {
	srv := startService(t, mockservice.DefaultConfig())

	report, err := RunListen(context.Background(), ListenConfig{
		URL:      workflow.StreamURL(config.DeriveStreamBase(srv.BaseURL()), "no-such-session"),
		Duration: time.Second,
	})
	assert.Error(t, err)
	assert.False(t, report.Passed())
}

func TestRunSoak(t *testing.T) {
	mcfg := mockservice.DefaultConfig()
	mcfg.EventInterval = time.Millisecond
	srv := startService(t, mcfg)

	var mu sync.Mutex
	var statuses []SoakStatus

	cfg := DefaultSoakConfig(openStream(t, srv))
	cfg.Duration = 300 * time.Millisecond
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.StatusInterval = 50 * time.Millisecond
	cfg.MaxHeapMB = 0
	cfg.Status = func(s SoakStatus) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}

	report, err := RunSoak(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, report.Passed(), "criteria: %+v", report.Criteria)
	assert.Equal(t, "deadline", report.Details["stop_reason"])
	assert.NotEmpty(t, report.Details["peak_heap_mb"])

	held, _ := report.Criterion("stream_held_until_end")
	assert.True(t, held.Pass)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(statuses), 2, "periodic lines plus the final one")
	last := statuses[len(statuses)-1]
	assert.Equal(t, len(mcfg.Script), last.Events)
	assert.Positive(t, last.HeapAllocMB)
}

func TestRunSoak_MemoryLimit(t *testing.T) {
	mcfg := mockservice.DefaultConfig()
	mcfg.EventInterval = time.Millisecond
	mcfg.CloseAfterScript = true
	srv := startService(t, mcfg)

	cfg := DefaultSoakConfig(openStream(t, srv))
	cfg.Duration = 2 * time.Second
	cfg.PollTimeout = 20 * time.Millisecond
	cfg.MaxHeapMB = 0.0001

	report, err := RunSoak(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, report.Passed())

	mem, _ := report.Criterion("peak_memory_under_limit")
	assert.False(t, mem.Pass)
	held, _ := report.Criterion("stream_held_until_end")
	assert.False(t, held.Pass, "the stream closed before the deadline")
}
