package rrweb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FullSnapshot(t *testing.T) {
	msg, err := Decode([]byte(`{"event":{"type":2,"timestamp":1700000000000,"data":{"node":{}}}}`))
	require.NoError(t, err)

	typ, ok := msg.Event.TypeOf()
	require.True(t, ok)
	assert.Equal(t, EventFullSnapshot, typ)
	assert.Equal(t, int64(1700000000000), msg.Event.Timestamp)
	assert.True(t, msg.Event.IsFullSnapshot())
	assert.False(t, msg.Event.IsNavigationMarker())
	assert.Equal(t, "2", msg.Event.Label())
	assert.NotEmpty(t, msg.Raw)
	assert.NotEmpty(t, msg.Event.Raw)
}

func TestDecode_MissingEventIsUnknown(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"heartbeat"}`))
	require.NoError(t, err)

	_, ok := msg.Event.TypeOf()
	assert.False(t, ok)
	assert.Equal(t, UnknownLabel, msg.Event.Label())
}

func TestDecode_NonNumericTypeIsUnknown(t *testing.T) {
	msg, err := Decode([]byte(`{"event":{"type":"snapshot"}}`))
	require.NoError(t, err)
	assert.Equal(t, UnknownLabel, msg.Event.Label())
}

func TestDecode_NonIntegralTypeIsUnknown(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"fractional", `{"event":{"type":2.9}}`},
		{"above int32", `{"event":{"type":4294967298}}`},
		{"below int32", `{"event":{"type":-4294967298}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			_, ok := msg.Event.TypeOf()
			assert.False(t, ok)
			assert.False(t, msg.Event.IsFullSnapshot())
			assert.Equal(t, UnknownLabel, msg.Event.Label())
		})
	}

	msg, err := Decode([]byte(`{"event":{"type":2.0}}`))
	require.NoError(t, err)
	assert.True(t, msg.Event.IsFullSnapshot(), "an integral float is a valid type")
}

func TestDecode_InvalidJSON(t *testing.T) {
	_, err := Decode([]byte(`{"event":`))
	assert.Error(t, err)
}

func TestDecode_NonObjectDataIgnored(t *testing.T) {
	msg, err := Decode([]byte(`{"event":{"type":3,"data":[1,2,3]}}`))
	require.NoError(t, err)
	assert.Equal(t, "3", msg.Event.Label())
	assert.Empty(t, msg.Event.Data.Tag)
}

func TestIsNavigationMarker(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{"plugin type", `{"event":{"type":6}}`, true},
		{"navigation-detected tag", `{"event":{"type":5,"data":{"tag":"navigation-detected"}}}`, true},
		{"browser-only-navigation tag", `{"event":{"type":5,"data":{"tag":"browser-only-navigation"}}}`, true},
		{"browser-only-tracking mode", `{"event":{"type":3,"data":{"mode":"browser-only-tracking"}}}`, true},
		{"other custom tag", `{"event":{"type":5,"data":{"tag":"click"}}}`, false},
		{"incremental", `{"event":{"type":3,"data":{"source":1}}}`, false},
		{"no type no data", `{"event":{}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Event.IsNavigationMarker())
		})
	}
}

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "FullSnapshot", EventFullSnapshot.String())
	assert.Equal(t, "Plugin", EventPlugin.String())
	assert.Equal(t, "Unknown", EventType(42).String())
}
