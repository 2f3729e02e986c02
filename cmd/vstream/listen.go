package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/vstream/internal/metrics"
	"github.com/thesyncim/vstream/internal/scenario"
	"github.com/thesyncim/vstream/internal/workflow"
	"github.com/thesyncim/vstream/pkg/rrweb"
)

func (a *app) listenCmd() *cobra.Command {
	var serveMetrics bool
	cmd := &cobra.Command{
		Use:   "listen SESSION_ID",
		Short: "Attach to an existing session stream for a bounded duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := scenario.ListenConfig{
				URL:         workflow.StreamURL(a.cfg.StreamBase(), args[0]),
				Token:       a.cfg.SessionToken,
				Duration:    a.cfg.Listen.Duration,
				PollTimeout: a.cfg.Listen.PollTimeout,
			}
			if serveMetrics {
				m := metrics.New()
				stop := serveDiagnostics(ctx, a.cfg.MetricsAddr, m, a.log)
				defer stop()
				wireMetrics(&cfg, m)
			}
			r, err := scenario.RunListen(ctx, cfg)
			return a.finish(cmd, r, err)
		},
	}
	cmd.Flags().Duration("duration", 0, "how long to listen (default from listen.duration)")
	a.bind("listen.duration", cmd.Flags().Lookup("duration"))
	cmd.Flags().BoolVar(&serveMetrics, "metrics", false, "serve Prometheus metrics and pprof on metrics_addr")
	return cmd
}

func (a *app) soakCmd() *cobra.Command {
	def := scenario.DefaultSoakConfig("")
	var (
		duration       time.Duration
		statusInterval time.Duration
		maxHeapMB      float64
	)
	cmd := &cobra.Command{
		Use:   "soak SESSION_ID",
		Short: "Listen to a session stream for a long duration while tracking memory",
		Long: `Listen to a session stream for a long period, printing a status line
at every interval and serving Prometheus metrics and pprof on metrics_addr
for live profiling.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg := scenario.DefaultSoakConfig(workflow.StreamURL(a.cfg.StreamBase(), args[0]))
			cfg.Token = a.cfg.SessionToken
			cfg.Duration = duration
			cfg.PollTimeout = a.cfg.Listen.PollTimeout
			cfg.StatusInterval = statusInterval
			cfg.MaxHeapMB = maxHeapMB
			cfg.Status = func(s scenario.SoakStatus) {
				fmt.Fprintf(out, "[%s] Events: %d, Rate: %.1f/s, FullSnapshots: %d, Errors: %d, HeapAlloc: %.2f MB, NumGC: %d\n",
					formatDuration(s.Elapsed), s.Events, s.RecentRate, s.FullSnapshots, s.Errors, s.HeapAllocMB, s.NumGC)
			}

			m := metrics.New()
			wireMetrics(&cfg.ListenConfig, m)

			if !a.jsonOut {
				fmt.Fprintf(out, "vstream Soak Test Runner\n")
				fmt.Fprintf(out, "========================\n")
				fmt.Fprintf(out, "Duration: %v\n", duration)
				fmt.Fprintf(out, "Stream:   %s\n", cfg.URL)
				fmt.Fprintf(out, "Metrics:  http://%s/metrics\n", a.cfg.MetricsAddr)
				fmt.Fprintf(out, "Pprof:    http://%s/debug/pprof/\n\n", a.cfg.MetricsAddr)
			} else {
				cfg.Status = nil
			}
			stop := serveDiagnostics(ctx, a.cfg.MetricsAddr, m, a.log)
			defer stop()

			r, err := scenario.RunSoak(ctx, cfg)
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			return a.finish(cmd, r, err)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", def.Duration, "test duration (e.g., 1h, 24h)")
	cmd.Flags().DurationVar(&statusInterval, "status-interval", def.StatusInterval, "interval between status lines")
	cmd.Flags().Float64Var(&maxHeapMB, "max-heap-mb", def.MaxHeapMB, "fail when the heap exceeds this many MB (0 disables)")
	return cmd
}

// wireMetrics feeds a listen run's events and connection state into m.
func wireMetrics(cfg *scenario.ListenConfig, m *metrics.StreamMetrics) {
	cfg.Observers = append(cfg.Observers, rrweb.Observer(m))
	cfg.OnConnect = func() { m.SetConnected(true) }
	cfg.OnDisconnect = func() { m.SetConnected(false) }
}

// serveDiagnostics serves /metrics and pprof on addr until the returned
// stop function is called. A listen failure is logged and not fatal.
func serveDiagnostics(ctx context.Context, addr string, m *metrics.StreamMetrics, log *slog.Logger) (stop func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Warn("diagnostics server failed", "addr", addr, "err", err)
		return func() {}
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("diagnostics server failed", "err", err)
		}
	}()
	log.Info("serving metrics and pprof", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func formatDuration(d time.Duration) string {
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
