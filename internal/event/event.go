package event

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type identifies a run lifecycle event.
type Type string

const (
	RunStarted    Type = "run.started"
	TestStarted   Type = "test.started"
	TestLog       Type = "test.log"
	TestCompleted Type = "test.completed"
	RunCompleted  Type = "run.completed"
)

// RunStartedData is published once before any test case is dispatched.
type RunStartedData struct {
	RunID       string `json:"run_id"`
	AgentID     string `json:"agent_id"`
	ResourceKey string `json:"resource_key"`
	Total       int    `json:"total"`
}

// TestStartedData is published when a worker picks up a test case.
type TestStartedData struct {
	RunID  string `json:"run_id"`
	TestID string `json:"test_id"`
	Index  int    `json:"index"`
}

// TestLogData carries one captured output line of a running test case.
type TestLogData struct {
	RunID  string `json:"run_id"`
	TestID string `json:"test_id"`
	Seq    int    `json:"seq"`
	Stream string `json:"stream"`
	Text   string `json:"text"`
}

// TestCompletedData is published when a test case finishes, whatever the
// outcome.
type TestCompletedData struct {
	RunID      string `json:"run_id"`
	TestID     string `json:"test_id"`
	Index      int    `json:"index"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// RunCompletedData is published once after the last result is aggregated.
type RunCompletedData struct {
	RunID   string `json:"run_id"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Errored int    `json:"errored"`
}

// Message is the serialized transport form of an event.
type Message struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the payload of a Message into a typed event value.
func Decode[T any](msg *Message) (T, error) {
	var data T
	err := json.Unmarshal(msg.Data, &data)
	return data, err
}

// NewID generates a sortable event id.
func NewID() string {
	return ulid.Make().String()
}

// typeOf maps event payloads to their Type tags.
func typeOf(data any) Type {
	switch data.(type) {
	case RunStartedData, *RunStartedData:
		return RunStarted
	case TestStartedData, *TestStartedData:
		return TestStarted
	case TestLogData, *TestLogData:
		return TestLog
	case TestCompletedData, *TestCompletedData:
		return TestCompleted
	case RunCompletedData, *RunCompletedData:
		return RunCompleted
	}
	return ""
}
