// Command vstream drives end-to-end checks of visual workflow streaming:
// it executes workflows with rrweb streaming enabled, listens to session
// streams and records rrweb sessions in a headless browser.
//
// Usage:
//
//	vstream manual --base-url http://localhost:8000 --token $TOKEN
//	vstream navigation https://x.com
//	vstream sites --site https://example.com --site https://x.com
//	vstream listen SESSION_ID --duration 30s
//	vstream soak SESSION_ID --duration 24h
//	vstream status SESSION_ID
//	vstream mock-server --addr :8000
//
// The soak command exposes Prometheus metrics and pprof on metrics_addr:
//
//	curl http://localhost:9464/debug/pprof/heap > heap.pprof
//	go tool pprof heap.pprof
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}
