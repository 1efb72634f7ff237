// Package research drives a remote multi-step reasoning session to
// completion, dispatching the tool calls it requests through a local
// registry.
package research

import "context"

type Status string

const (
	StatusQueued             Status = "queued"
	StatusRunning            Status = "running"
	StatusRequiresToolOutput Status = "requires_tool_output"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ToolCall is a request from the session to execute a named local action.
// Arguments are opaque structured data agreed between the model and the tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolOutput answers one ToolCall, matched by the call id.
type ToolOutput struct {
	CallID string
	Output string
}

// Session is the local view of the remote reasoning job. It is only mutated
// through the provider's poll and submit operations.
type Session struct {
	ID            string
	Status        Status
	PendingCalls  []ToolCall
	FailureReason string
}

// Provider is the remote end of a reasoning session. Start covers creation
// and initial submission in one step, the rest advance or observe the job.
type Provider interface {
	Start(ctx context.Context, query string) (Session, error)
	Poll(ctx context.Context, sessionID string) (Session, error)
	SubmitToolOutputs(ctx context.Context, sessionID string, outputs []ToolOutput) (Session, error)
	FinalMessage(ctx context.Context, sessionID string) (string, error)
	Ping(ctx context.Context) error
}
