package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/vstream/pkg/rrweb"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestNew_AssignsSessionID(t *testing.T) {
	b := New(Config{}, "", nil)
	assert.NotEmpty(t, b.SessionID())
	assert.Nil(t, b.Page())

	b = New(Config{}, "test-x-navigation", nil)
	assert.Equal(t, "test-x-navigation", b.SessionID())
}

func TestOperationsRequireLaunch(t *testing.T) {
	b := New(DefaultConfig(), "s", nil)

	assert.Error(t, b.InjectRecorder(context.Background()))
	assert.Error(t, b.StartRecording())
	assert.Error(t, b.Navigate("https://example.com"))
	assert.Error(t, b.Scroll(200))
	assert.Error(t, b.MouseMove(100, 100))
	assert.NoError(t, b.Close(), "closing an unlaunched browser is a no-op")
}

func TestNavigationMarkerDecodes(t *testing.T) {
	msg, err := rrweb.Decode(navigationMarker("https://x.com"))
	require.NoError(t, err)
	assert.True(t, msg.Event.IsNavigationMarker())
	assert.Equal(t, rrweb.TagNavigationDetected, msg.Event.Data.Tag)
	typ, ok := msg.Event.TypeOf()
	require.True(t, ok)
	assert.Equal(t, rrweb.EventPlugin, typ, "a single plugin event marks the navigation")

	var env struct {
		Event struct {
			Data struct {
				Payload struct {
					Href string `json:"href"`
				} `json:"payload"`
			} `json:"data"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal(navigationMarker("https://x.com"), &env))
	assert.Equal(t, "https://x.com", env.Event.Data.Payload.Href)
}

func TestRecorderScriptEmbedsBundle(t *testing.T) {
	script := recorderScript("window.rrweb = {record: function(){ return function(){}; }}; // 100%")
	assert.Contains(t, script, "100%", "bundle must be embedded verbatim")
	assert.Contains(t, script, bindingName)
	assert.True(t, strings.HasPrefix(script, "(function () {"))
}

func TestFetchBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rrweb.min.js" {
			w.Write([]byte("var rrweb = {};"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	src, err := fetchBundle(context.Background(), srv.URL+"/rrweb.min.js", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "var rrweb = {};", src)

	_, err = fetchBundle(context.Background(), srv.URL+"/missing.js", time.Second)
	assert.Error(t, err)

	_, err = fetchBundle(context.Background(), "", time.Second)
	assert.Error(t, err)
}

func TestDeliverSkipsNilCallback(t *testing.T) {
	var got [][]byte
	b := New(Config{}, "s", func(frame []byte) { got = append(got, frame) })
	b.deliver(nil)
	b.deliver([]byte(`{"event":{"type":2}}`))
	require.Len(t, got, 1)

	New(Config{}, "s", nil).deliver([]byte(`{}`))
}
