package worker

import "encoding/json"

// Task is one unit of work forwarded by the orchestrator to a worker process
// over its stdin, one JSON object per line.
type Task struct {
	ID      string          `json:"id"`
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Result is the worker's report for one task, written to its stdout, one JSON
// object per line. The orchestrator acks or nacks the originating broker
// message strictly based on Success.
type Result struct {
	TaskID  string `json:"task_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
