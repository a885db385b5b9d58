package model

import "time"

// ToolResult is the structured outcome of one tool invocation. Execution
// failures are reported here, never as a raised error, so a tool-calling
// loop can inspect and react without special-casing exceptions.
type ToolResult struct {
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// ToolLogEntry is one record of the bounded execution log. Immutable after
// write.
type ToolLogEntry struct {
	Tool       string    `json:"tool"`
	Args       any       `json:"args,omitempty"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CalledAt   time.Time `json:"calledAt"`
}

// ToolStats holds running usage statistics for one tool
type ToolStats struct {
	Tool            string `json:"tool"`
	Calls           int64  `json:"calls"`
	Successes       int64  `json:"successes"`
	TotalDurationMs int64  `json:"totalDurationMs"`
}

// SuccessRate returns the ratio of successful calls, or 0 when unused
func (s ToolStats) SuccessRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Calls)
}
