//go:build e2e

package e2e

import (
	"os"
	"os/exec"
	"runtime"
	"testing"
)

func TestMain(m *testing.M) {
	code := m.Run()

	// Safety net for panics or os.Exit during tests, where the deferred
	// VisualBrowser.Close didn't run. VSTREAM_E2E_KEEP_CHROME=1 skips it
	// when debugging with a visible browser.
	if os.Getenv("VSTREAM_E2E_KEEP_CHROME") == "" {
		cleanupOrphanedBrowsers()
	}

	os.Exit(code)
}

// cleanupOrphanedBrowsers kills Chrome processes started for remote
// debugging, which is how Rod launches them. This is best-effort cleanup.
func cleanupOrphanedBrowsers() {
	switch runtime.GOOS {
	case "darwin", "linux":
		// pkill returns non-zero if no processes matched, ignore error
		_ = exec.Command("pkill", "-f", "(chromium|chrome).*--remote-debugging-port").Run()
	case "windows":
		_ = exec.Command("taskkill", "/F", "/IM", "chrome.exe").Run()
		_ = exec.Command("taskkill", "/F", "/IM", "chromium.exe").Run()
	}
}
