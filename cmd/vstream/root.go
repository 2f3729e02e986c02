package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/thesyncim/vstream/internal/browser"
	"github.com/thesyncim/vstream/internal/config"
	"github.com/thesyncim/vstream/internal/logging"
	"github.com/thesyncim/vstream/internal/report"
	"github.com/thesyncim/vstream/internal/scenario"
	"github.com/thesyncim/vstream/internal/workflow"
)

// errFailed signals a completed run whose checks did not pass. The report
// has already been printed, so only the exit code is left to set.
var errFailed = errors.New("checks failed")

// app holds state shared by all subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	jsonOut bool

	cfg config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "vstream",
		Short: "End-to-end harness for visual workflow streaming",
		Long: `Exercise a workflow service's visual streaming: execute workflows with
rrweb streaming enabled, listen to session streams and record rrweb
sessions in a headless browser.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./vstream.yaml or $HOME/.config/vstream/vstream.yaml)")
	pf.String("base-url", "", "workflow service base URL (default http://localhost:8000)")
	pf.String("ws-url", "", "WebSocket base URL (derived from --base-url when empty)")
	pf.String("token", "", "session token sent as a bearer token")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&a.jsonOut, "json", false, "Output results as JSON")
	a.bind("base_url", pf.Lookup("base-url"))
	a.bind("ws_url", pf.Lookup("ws-url"))
	a.bind("session_token", pf.Lookup("token"))
	a.bind("log_level", pf.Lookup("log-level"))

	root.AddCommand(
		a.manualCmd(),
		a.navigationCmd(),
		a.sitesCmd(),
		a.listenCmd(),
		a.soakCmd(),
		a.statusCmd(),
		a.mockServerCmd(),
	)
	return root
}

// setup loads configuration and installs the logger in the command context.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, log))
	return nil
}

// bind makes a flag override the config key when it is set.
func (a *app) bind(key string, f *pflag.Flag) {
	if err := a.v.BindPFlag(key, f); err != nil {
		panic(err)
	}
}

func (a *app) client() *workflow.Client {
	return workflow.New(workflow.ClientConfig{
		BaseURL:      a.cfg.BaseURL,
		SessionToken: a.cfg.SessionToken,
		Timeout:      a.cfg.RequestTimeout,
		Logger:       a.log,
	})
}

func (a *app) browserConfig() browser.Config {
	return browser.Config{
		Headless: a.cfg.Browser.Headless,
		Timeout:  a.cfg.Browser.Timeout,
		RRWebURL: a.cfg.Browser.RRWebURL,
		Logger:   a.log,
	}
}

// finish prints r and maps the outcome to the command's error.
func (a *app) finish(cmd *cobra.Command, r scenario.Report, runErr error) error {
	if err := report.Write(cmd.OutOrStdout(), r, a.jsonOut); err != nil {
		return err
	}
	if runErr != nil {
		a.log.Error("test failed with error", "scenario", r.Name, "err", runErr)
		return errFailed
	}
	if !r.Passed() {
		return errFailed
	}
	return nil
}
