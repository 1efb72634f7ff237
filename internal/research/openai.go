package research

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/modfin/henry/slicez"
	"github.com/modfin/quill/internal/tools"
)

const defaultBaseURL = "https://api.openai.com/v1"

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string // defaults to the public api
	Model        string // defaults to gpt-4o-mini
	Instructions string
}

// OpenAI implements Provider on top of the assistants rest api. One session
// is one thread plus one run, the session id carries both.
type OpenAI struct {
	cfg    OpenAIConfig
	client *http.Client
	specs  []tools.Tool

	mu          sync.Mutex
	assistantID string
}

func NewOpenAI(cfg OpenAIConfig, specs []tools.Tool) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Instructions == "" {
		cfg.Instructions = "You are a personal research assistant. You help users research topics using the tools available to you."
	}
	return &OpenAI{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		specs:  specs,
	}
}

// Ping verifies the api key against the models endpoint.
func (o *OpenAI) Ping(ctx context.Context) error {
	return o.do(ctx, http.MethodGet, "/models", nil, nil)
}

func (o *OpenAI) Start(ctx context.Context, query string) (Session, error) {
	assistantID, err := o.assistant(ctx)
	if err != nil {
		return Session{}, err
	}

	var thread struct {
		ID string `json:"id"`
	}
	err = o.do(ctx, http.MethodPost, "/threads", map[string]any{}, &thread)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create thread: %w", err)
	}

	err = o.do(ctx, http.MethodPost, "/threads/"+thread.ID+"/messages", map[string]any{
		"role":    "user",
		"content": query,
	}, nil)
	if err != nil {
		return Session{}, fmt.Errorf("failed to post message: %w", err)
	}

	var run runPayload
	err = o.do(ctx, http.MethodPost, "/threads/"+thread.ID+"/runs", map[string]any{
		"assistant_id": assistantID,
	}, &run)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create run: %w", err)
	}

	return o.session(thread.ID, run), nil
}

func (o *OpenAI) Poll(ctx context.Context, sessionID string) (Session, error) {
	threadID, runID, err := splitSessionID(sessionID)
	if err != nil {
		return Session{}, err
	}

	var run runPayload
	err = o.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &run)
	if err != nil {
		return Session{}, fmt.Errorf("failed to poll run: %w", err)
	}
	return o.session(threadID, run), nil
}

func (o *OpenAI) SubmitToolOutputs(ctx context.Context, sessionID string, outputs []ToolOutput) (Session, error) {
	threadID, runID, err := splitSessionID(sessionID)
	if err != nil {
		return Session{}, err
	}

	payload := map[string]any{
		"tool_outputs": slicez.Map(outputs, func(out ToolOutput) map[string]any {
			return map[string]any{
				"tool_call_id": out.CallID,
				"output":       out.Output,
			}
		}),
	}

	var run runPayload
	err = o.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs/"+runID+"/submit_tool_outputs", payload, &run)
	if err != nil {
		return Session{}, fmt.Errorf("failed to submit tool outputs: %w", err)
	}
	return o.session(threadID, run), nil
}

func (o *OpenAI) FinalMessage(ctx context.Context, sessionID string) (string, error) {
	threadID, _, err := splitSessionID(sessionID)
	if err != nil {
		return "", err
	}

	var payload struct {
		Data []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text struct {
					Value string `json:"value"`
				} `json:"text"`
			} `json:"content"`
		} `json:"data"`
	}
	err = o.do(ctx, http.MethodGet, "/threads/"+threadID+"/messages?order=desc&limit=1", nil, &payload)
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}

	if len(payload.Data) == 0 || payload.Data[0].Role != "assistant" {
		return "", nil
	}
	var parts []string
	for _, content := range payload.Data[0].Content {
		if content.Type == "text" && content.Text.Value != "" {
			parts = append(parts, content.Text.Value)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// assistant creates the assistant on first use, with the registry's tool
// schemas attached, and caches its id for the lifetime of the provider.
func (o *OpenAI) assistant(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.assistantID != "" {
		return o.assistantID, nil
	}

	payload := map[string]any{
		"name":         "quill research assistant",
		"model":        o.cfg.Model,
		"instructions": o.cfg.Instructions,
		"tools": slicez.Map(o.specs, func(t tools.Tool) map[string]any {
			return map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			}
		}),
	}

	var assistant struct {
		ID string `json:"id"`
	}
	err := o.do(ctx, http.MethodPost, "/assistants", payload, &assistant)
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}

	o.assistantID = assistant.ID
	return o.assistantID, nil
}

type runPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	RequiredAction *struct {
		Type              string `json:"type"`
		SubmitToolOutputs struct {
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"submit_tool_outputs"`
	} `json:"required_action"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

// session maps a run onto the driver's state machine. Anything the mapping
// does not recognize counts as running, the driver's poll budget bounds it.
func (o *OpenAI) session(threadID string, run runPayload) Session {
	sess := Session{ID: threadID + "/" + run.ID}

	switch run.Status {
	case "queued":
		sess.Status = StatusQueued
	case "in_progress":
		sess.Status = StatusRunning
	case "completed":
		sess.Status = StatusCompleted
	case "failed", "cancelled", "expired", "incomplete":
		sess.Status = StatusFailed
		sess.FailureReason = run.Status
		if run.LastError != nil {
			sess.FailureReason = fmt.Sprintf("%s: %s (%s)", run.Status, run.LastError.Message, run.LastError.Code)
		}
	case "requires_action":
		if run.RequiredAction == nil || run.RequiredAction.Type != "submit_tool_outputs" {
			sess.Status = StatusFailed
			sess.FailureReason = "unsupported required action"
			if run.RequiredAction != nil {
				sess.FailureReason = fmt.Sprintf("unsupported required action %q", run.RequiredAction.Type)
			}
			return sess
		}
		sess.Status = StatusRequiresToolOutput
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			args := map[string]any{}
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				// Leave the arguments empty, the tool reports what is
				// missing and the session gets to correct itself.
				args = map[string]any{}
			}
			sess.PendingCalls = append(sess.PendingCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: args,
			})
		}
	default:
		sess.Status = StatusRunning
	}

	return sess
}

func splitSessionID(sessionID string) (threadID string, runID string, err error) {
	threadID, runID, found := strings.Cut(sessionID, "/")
	if !found || threadID == "" || runID == "" {
		return "", "", fmt.Errorf("bad session id %q", sessionID)
	}
	return threadID, runID, nil
}

func (o *OpenAI) do(ctx context.Context, method string, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, o.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
