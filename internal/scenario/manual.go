package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/thesyncim/vstream/internal/logging"
	"github.com/thesyncim/vstream/internal/stream"
	"github.com/thesyncim/vstream/internal/workflow"
	"github.com/thesyncim/vstream/pkg/rrweb"
)

// ManualName is the report name of the manual execution scenario.
const ManualName = "manual-execution"

// ManualConfig configures the manual execution scenario.
type ManualConfig struct {
	Definition    workflow.Definition
	StreamBase    string // ws(s) base URL of the service
	SessionToken  string
	VisualQuality string
	EventsBuffer  int

	ListenDuration time.Duration
	PollTimeout    time.Duration
	ConnectGrace   time.Duration // wait after starting the listener before polling status
	ReadyAttempts  int
	ReadyInterval  time.Duration
	Settle         time.Duration // wait for the workflow to finish before collecting

	Observers []rrweb.Observer
	// OnConnect and OnDisconnect follow the listener's connection.
	OnConnect    func()
	OnDisconnect func()
}

// DefaultManualConfig returns the standard timings of the scenario.
func DefaultManualConfig() ManualConfig {
	return ManualConfig{
		Definition:     workflow.DefaultDefinition(),
		VisualQuality:  "standard",
		EventsBuffer:   1000,
		ListenDuration: 15 * time.Second,
		PollTimeout:    stream.DefaultPollTimeout,
		ConnectGrace:   2 * time.Second,
		ReadyAttempts:  10,
		ReadyInterval:  2 * time.Second,
		Settle:         10 * time.Second,
	}
}

// RunManual executes a workflow with visual streaming, listens to its rrweb
// stream while polling readiness, and checks the outcome.
//
// The returned error is non-nil when the run had to be aborted; the report
// is still populated with whatever was observed.
func RunManual(ctx context.Context, client *workflow.Client, cfg ManualConfig) (Report, error) {
	log := logging.FromContext(ctx).With("scenario", ManualName)
	start := time.Now()
	report := Report{Name: ManualName, Details: map[string]string{}}

	abort := func(err error) (Report, error) {
		report.fail(err)
		report.Duration = time.Since(start)
		return report, err
	}

	log.Info("step 1: resolving test workflow")
	wf, err := client.ResolveWorkflow(ctx, cfg.Definition)
	if err != nil {
		return abort(err)
	}
	report.Details["workflow_id"] = wf.ID

	log.Info("step 2: starting manual execution with visual streaming", "workflow_id", wf.ID)
	exec, err := client.ExecuteSession(ctx, wf.ID, workflow.ExecuteRequest{
		SessionToken:       cfg.SessionToken,
		VisualStreaming:    true,
		VisualQuality:      cfg.VisualQuality,
		VisualEventsBuffer: cfg.EventsBuffer,
		Inputs:             map[string]any{},
	})
	if err != nil {
		return abort(err)
	}
	if exec.SessionID == "" {
		return abort(workflow.ErrNoSessionID)
	}
	report.Details["session_id"] = exec.SessionID
	report.Details["task_id"] = exec.TaskID
	log.Info("manual execution started",
		"session_id", exec.SessionID,
		"task_id", exec.TaskID,
		"success", exec.Success,
		"visual_streaming_enabled", exec.VisualStreamingEnabled)

	log.Info("step 3: starting rrweb event monitoring")
	opts := []rrweb.CollectorOption{rrweb.WithLogger(log)}
	for _, o := range cfg.Observers {
		opts = append(opts, rrweb.WithObserver(o))
	}
	collector := rrweb.NewCollector(opts...)
	listener := stream.NewListener(stream.Config{
		URL:          workflow.StreamURL(cfg.StreamBase, exec.SessionID),
		Token:        cfg.SessionToken,
		PollTimeout:  cfg.PollTimeout,
		Logger:       log,
		OnConnect:    cfg.OnConnect,
		OnDisconnect: cfg.OnDisconnect,
	}, collector)
	handle := listener.Start(ctx, cfg.ListenDuration)
	stopListener := func() {
		if err := handle.Stop(); err != nil {
			log.Error("failed to connect to WebSocket", "err", err)
		}
	}

	if err := sleep(ctx, cfg.ConnectGrace); err != nil {
		stopListener()
		return abort(err)
	}

	log.Info("step 4: monitoring session status")
	ready, err := client.WaitReady(ctx, exec.SessionID, cfg.ReadyAttempts, cfg.ReadyInterval)
	if err != nil {
		stopListener()
		return abort(err)
	}

	log.Info("step 5: waiting for workflow completion and event collection", "settle", cfg.Settle)
	if err := sleep(ctx, cfg.Settle); err != nil {
		stopListener()
		return abort(err)
	}

	log.Info("step 6: collecting results")
	stopListener()
	summary := collector.Summary()
	report.Summary = &summary
	report.Details["stop_reason"] = string(listener.StopReason())

	log.Info("step 7: final status check")
	if _, err := client.WaitReady(ctx, exec.SessionID, 1, 0); err != nil {
		log.Warn("final status check failed", "err", err)
	}

	report.check("session_created", exec.SessionID != "")
	report.check("execution_started", exec.Success)
	report.check("visual_streaming_enabled", exec.VisualStreamingEnabled)
	report.check("websocket_connected", listener.Connected())
	report.check("events_received", summary.TotalEvents > 0)
	report.check("session_ready", ready)
	report.Duration = time.Since(start)

	log.Info("manual execution finished",
		"passed", report.Passed(),
		"events", summary.TotalEvents,
		"event_types", fmt.Sprint(summary.EventTypes))
	return report, nil
}
