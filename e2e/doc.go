//go:build e2e

// Package e2e provides end-to-end tests for the vstream harness.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and network access to fetch the rrweb bundle, and are intended for CI
// pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - Rod for browser automation (Chrome DevTools Protocol)
//   - the mock service for the REST contract, the stream and a test page
//   - VisualBrowser from internal/browser for recording
//
// Setting VSTREAM_E2E_BASE_URL (and optionally VSTREAM_E2E_TOKEN) also runs
// the manual execution scenario against a live service.
//
// Test isolation:
// Each test starts its own server on a random port and launches
// its own browser instance. Tests can run in parallel.
package e2e
