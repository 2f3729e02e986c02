package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/mockservice"
)

func (a *app) mockServerCmd() *cobra.Command {
	cfg := mockservice.DefaultConfig()
	cfg.Addr = ":8000"

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run the scripted mock workflow service for local runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Logger = a.log
			srv, err := mockservice.NewServer(cfg)
			if err != nil {
				return err
			}
			if _, err := srv.Start(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mock service listening on %s\n", srv.BaseURL())
			fmt.Fprintf(out, "Stream base:  %s\n", config.DeriveStreamBase(srv.BaseURL()))
			fmt.Fprintf(out, "Test page:    %s/page\n", srv.BaseURL())
			fmt.Fprintf(out, "Press Ctrl+C to stop\n")

			<-cmd.Context().Done()
			fmt.Fprintf(out, "\nShutting down...\n")

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	f.StringVar(&cfg.Token, "require-token", "", "bearer token required on REST endpoints")
	f.IntVar(&cfg.ReadyAfter, "ready-after", cfg.ReadyAfter, "status polls before a session reports ready")
	f.DurationVar(&cfg.EventInterval, "event-interval", cfg.EventInterval, "delay between scripted events")
	f.BoolVar(&cfg.CloseAfterScript, "close-after-script", false, "close streams after the scripted events")
	return cmd
}
