// Package rrweb decodes and aggregates rrweb session-recording events as they
// arrive from a visual streaming endpoint or a recording browser.
package rrweb

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// EventType is the numeric rrweb event type.
type EventType int

const (
	// EventDomContentLoaded marks DOMContentLoaded in the recorded page.
	EventDomContentLoaded EventType = iota
	// EventLoad marks the window load event.
	EventLoad
	// EventFullSnapshot captures the complete DOM at a point in time.
	EventFullSnapshot
	// EventIncrementalSnapshot carries a DOM mutation or user interaction.
	EventIncrementalSnapshot
	// EventMeta carries page href and viewport size.
	EventMeta
	// EventCustom is an application-defined event added via rrweb.record.addCustomEvent.
	EventCustom
	// EventPlugin is emitted by recorder plugins. The streaming service uses it
	// as its navigation marker.
	EventPlugin
)

// String returns the rrweb name of the event type.
func (t EventType) String() string {
	switch t {
	case EventDomContentLoaded:
		return "DomContentLoaded"
	case EventLoad:
		return "Load"
	case EventFullSnapshot:
		return "FullSnapshot"
	case EventIncrementalSnapshot:
		return "IncrementalSnapshot"
	case EventMeta:
		return "Meta"
	case EventCustom:
		return "Custom"
	case EventPlugin:
		return "Plugin"
	default:
		return "Unknown"
	}
}

// Navigation marker values carried in event data.
const (
	TagNavigationDetected    = "navigation-detected"
	TagBrowserOnlyNavigation = "browser-only-navigation"
	ModeBrowserOnlyTracking  = "browser-only-tracking"
)

// UnknownLabel is the histogram key for events without a numeric type.
const UnknownLabel = "unknown"

// EventData holds the subset of event data the harness inspects.
// The complete payload stays available through Event.Raw.
type EventData struct {
	Tag  string `json:"tag,omitempty"`
	Mode string `json:"mode,omitempty"`
}

// Event is a single rrweb event.
type Event struct {
	// Type is nil when the frame carried no numeric type.
	Type      *EventType `json:"type,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
	Data      EventData  `json:"data"`

	// Raw is the undecoded event object.
	Raw json.RawMessage `json:"-"`
}

// Message is one JSON frame as delivered by the streaming endpoint:
// an envelope with an "event" object.
type Message struct {
	Event Event `json:"event"`

	// Raw is the complete undecoded frame.
	Raw json.RawMessage `json:"-"`
}

// Decode parses a JSON text frame into a Message.
// A frame without an "event" key decodes to a Message with an empty Event.
func Decode(frame []byte) (Message, error) {
	var envelope struct {
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}

	msg := Message{Raw: append(json.RawMessage(nil), frame...)}
	if len(envelope.Event) == 0 || string(envelope.Event) == "null" {
		return msg, nil
	}

	ev, err := decodeEvent(envelope.Event)
	if err != nil {
		return Message{}, err
	}
	msg.Event = ev
	return msg, nil
}

func decodeEvent(raw json.RawMessage) (Event, error) {
	var wire struct {
		Type      json.RawMessage `json:"type"`
		Timestamp float64         `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev := Event{
		Timestamp: int64(wire.Timestamp),
		Raw:       append(json.RawMessage(nil), raw...),
	}

	// Non-numeric, fractional and out-of-range types are treated as missing
	// rather than failing the frame.
	var n float64
	if len(wire.Type) > 0 && json.Unmarshal(wire.Type, &n) == nil &&
		n == math.Trunc(n) && n >= math.MinInt32 && n <= math.MaxInt32 {
		t := EventType(n)
		ev.Type = &t
	}

	// data may be any JSON value; only objects carry markers.
	if len(wire.Data) > 0 && wire.Data[0] == '{' {
		_ = json.Unmarshal(wire.Data, &ev.Data)
	}
	return ev, nil
}

// TypeOf returns the event type and whether one was present.
func (e Event) TypeOf() (EventType, bool) {
	if e.Type == nil {
		return 0, false
	}
	return *e.Type, true
}

// IsFullSnapshot reports whether e is a FullSnapshot.
func (e Event) IsFullSnapshot() bool {
	t, ok := e.TypeOf()
	return ok && t == EventFullSnapshot
}

// IsNavigationMarker reports whether e marks a page navigation.
func (e Event) IsNavigationMarker() bool {
	if t, ok := e.TypeOf(); ok && t == EventPlugin {
		return true
	}
	switch e.Data.Tag {
	case TagNavigationDetected, TagBrowserOnlyNavigation:
		return true
	}
	return e.Data.Mode == ModeBrowserOnlyTracking
}

// Label returns the histogram key for e: the decimal type, or UnknownLabel.
func (e Event) Label() string {
	t, ok := e.TypeOf()
	if !ok {
		return UnknownLabel
	}
	return strconv.Itoa(int(t))
}
