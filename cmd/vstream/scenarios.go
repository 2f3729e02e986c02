package main

import (
	"github.com/spf13/cobra"

	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/scenario"
	"github.com/thesyncim/vstream/internal/workflow"
)

func (a *app) manualCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Execute a workflow with visual streaming and verify its rrweb stream",
		Long: `Resolve a workflow (creating one when none exists), start a session
execution with visual streaming, listen to the session's rrweb stream while
polling readiness, and check that events arrived.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			def := workflow.DefaultDefinition()
			if a.cfg.WorkflowFile != "" {
				var err error
				if def, err = workflow.LoadDefinition(a.cfg.WorkflowFile); err != nil {
					return err
				}
			}

			cfg := scenario.DefaultManualConfig()
			cfg.Definition = def
			cfg.StreamBase = a.cfg.StreamBase()
			cfg.SessionToken = a.cfg.SessionToken
			cfg.VisualQuality = a.cfg.VisualQuality
			cfg.EventsBuffer = a.cfg.EventsBuffer
			cfg.ListenDuration = a.cfg.Listen.Duration
			cfg.PollTimeout = a.cfg.Listen.PollTimeout
			cfg.ConnectGrace = a.cfg.Timing.ConnectGrace
			cfg.ReadyAttempts = a.cfg.Ready.Attempts
			cfg.ReadyInterval = a.cfg.Ready.Interval
			cfg.Settle = a.cfg.Timing.Settle

			r, err := scenario.RunManual(cmd.Context(), a.client(), cfg)
			return a.finish(cmd, r, err)
		},
	}
	cmd.Flags().String("workflow-file", "", "YAML workflow definition used when a workflow must be created")
	a.bind("workflow_file", cmd.Flags().Lookup("workflow-file"))
	return cmd
}

func (a *app) navigationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "navigation [URL]",
		Short: "Record an rrweb session across a page navigation in headless Chrome",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.Browser.NavigationURL
			if len(args) == 1 {
				url = args[0]
			}
			r, err := scenario.RunNavigation(cmd.Context(),
				scenario.BrowserFactory(a.browserConfig()),
				scenario.DefaultNavigationConfig(url))
			return a.finish(cmd, r, err)
		},
	}
}

func (a *app) sitesCmd() *cobra.Command {
	var urls []string
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Record rrweb sessions on each configured site and compare them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sites := a.cfg.Sites
			if len(urls) > 0 {
				sites = make([]config.Site, 0, len(urls))
				for _, u := range urls {
					sites = append(sites, config.Site{URL: u})
				}
			}
			r, err := scenario.RunSites(cmd.Context(),
				scenario.BrowserFactory(a.browserConfig()),
				sites,
				scenario.DefaultNavigationConfig(""))
			return a.finish(cmd, r, err)
		},
	}
	cmd.Flags().StringArrayVar(&urls, "site", nil, "site URL to test, repeatable (overrides the configured sites)")
	return cmd
}
