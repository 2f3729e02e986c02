package workflow

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Workflow is a workflow descriptor as listed by the service.
type Workflow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Step is one recorded workflow step.
type Step struct {
	Type        string  `json:"type" yaml:"type"`
	URL         string  `json:"url,omitempty" yaml:"url"`
	Description string  `json:"description,omitempty" yaml:"description"`
	Timestamp   *int64  `json:"timestamp" yaml:"timestamp"`
	TabID       *int    `json:"tabId" yaml:"tab_id"`
	Output      *string `json:"output" yaml:"output"`
}

// Definition is the body of a workflow creation request.
type Definition struct {
	Name             string            `json:"name" yaml:"name"`
	Version          string            `json:"version" yaml:"version"`
	Description      string            `json:"description" yaml:"description"`
	WorkflowAnalysis string            `json:"workflow_analysis" yaml:"workflow_analysis"`
	Steps            []Step            `json:"steps" yaml:"steps"`
	InputSchema      []json.RawMessage `json:"input_schema" yaml:"-"`
}

// DefaultDefinition is a single navigation to example.com, enough to make
// the service record rrweb events.
func DefaultDefinition() Definition {
	return Definition{
		Name:             "E2E Visual Streaming Test",
		Version:          "1.0",
		Description:      "End-to-end test workflow for visual streaming with rrweb events",
		WorkflowAnalysis: "This workflow tests visual streaming by navigating to a page and performing interactions.",
		Steps: []Step{{
			Type:        "navigation",
			URL:         "https://example.com",
			Description: "Navigate to example.com to generate rrweb events",
		}},
		InputSchema: []json.RawMessage{},
	}
}

// LoadDefinition reads a workflow definition from a YAML file.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read workflow definition: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse workflow definition %s: %w", path, err)
	}
	if def.Name == "" {
		return Definition{}, fmt.Errorf("workflow definition %s: name is required", path)
	}
	if len(def.Steps) == 0 {
		return Definition{}, fmt.Errorf("workflow definition %s: at least one step is required", path)
	}
	if def.Version == "" {
		def.Version = "1.0"
	}
	def.InputSchema = []json.RawMessage{}
	return def, nil
}

// ExecuteRequest starts a session execution with visual streaming.
type ExecuteRequest struct {
	SessionToken       string         `json:"session_token"`
	VisualStreaming    bool           `json:"visual_streaming"`
	VisualQuality      string         `json:"visual_quality"`
	VisualEventsBuffer int            `json:"visual_events_buffer"`
	Inputs             map[string]any `json:"inputs"`
}

// ExecuteResponse is returned by the session execution endpoint.
type ExecuteResponse struct {
	SessionID              string `json:"session_id"`
	TaskID                 string `json:"task_id"`
	Success                bool   `json:"success"`
	VisualStreamingEnabled bool   `json:"visual_streaming_enabled"`
}

// VisualStatus is the visual streaming state of a session.
type VisualStatus struct {
	StreamingReady  bool `json:"streaming_ready"`
	StreamingActive bool `json:"streaming_active"`
	BrowserReady    bool `json:"browser_ready"`
	EventsProcessed int  `json:"events_processed"`
}

// Ready reports whether the session can be streamed.
func (s VisualStatus) Ready() bool {
	return s.StreamingReady && s.BrowserReady
}
