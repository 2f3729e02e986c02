package mockservice

import (
	"encoding/json"
	"time"
)

// Frame builds one stream frame wrapping an rrweb event.
func Frame(eventType int, data map[string]any) []byte {
	ev := map[string]any{
		"type":      eventType,
		"timestamp": time.Now().UnixMilli(),
	}
	if data != nil {
		ev["data"] = data
	}
	b, _ := json.Marshal(map[string]any{"event": ev})
	return b
}

// DefaultScript is a short recorded session: page meta, an initial
// FullSnapshot, a few incremental snapshots, a navigation marker and the
// FullSnapshot taken after re-injection on the new page.
func DefaultScript() [][]byte {
	return [][]byte{
		Frame(4, map[string]any{"href": "https://example.com/", "width": 1280, "height": 720}),
		Frame(2, map[string]any{"node": map[string]any{"type": 0, "childNodes": []any{}}, "initialOffset": map[string]any{"top": 0, "left": 0}}),
		Frame(3, map[string]any{"source": 1, "positions": []any{map[string]any{"x": 100, "y": 100, "id": 1, "timeOffset": 0}}}),
		Frame(3, map[string]any{"source": 3, "id": 1, "x": 0, "y": 200}),
		Frame(6, map[string]any{"tag": "navigation-detected", "payload": map[string]any{"url": "https://x.com/"}}),
		Frame(4, map[string]any{"href": "https://x.com/", "width": 1280, "height": 720}),
		Frame(2, map[string]any{"node": map[string]any{"type": 0, "childNodes": []any{}}, "initialOffset": map[string]any{"top": 0, "left": 0}}),
		Frame(3, map[string]any{"source": 3, "id": 1, "x": 0, "y": 400}),
	}
}
