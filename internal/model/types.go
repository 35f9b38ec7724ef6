package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version string       `json:"version"`
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorBody   `json:"error"`
	Meta    EnvelopeMeta `json:"meta"`
}

// ErrorBody is the failure record. Action and Inputs name the step that failed
// and the literal inputs it was given; Committed lists node-side effects that
// already happened before the failure.
type ErrorBody struct {
	Code      int               `json:"code"`
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Action    string            `json:"action,omitempty"`
	Inputs    map[string]string `json:"inputs,omitempty"`
	Committed map[string]any    `json:"committed,omitempty"`
}

type EnvelopeMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Command   string    `json:"command"`
	Network   string    `json:"network,omitempty"`
	DryRun    bool      `json:"dry_run"`
}
