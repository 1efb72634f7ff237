// Package tools holds the local tool registry the research session dispatches
// into, and the handlers quill ships with.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/modfin/henry/mapz"
	"github.com/modfin/henry/slicez"
)

var ErrUnknownTool = errors.New("unknown tool")

// Handler executes one tool call. Recoverable failures (network, parsing)
// come back as errors and are surfaced to the remote session as text, so a
// handler should never panic on bad arguments.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema for the arguments
	Handler     Handler
}

// Registry maps tool names to handlers. Dispatch is strictly by name, the
// provider chooses which tool to call.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

func (r *Registry) Register(tool Tool) error {
	if strings.TrimSpace(tool.Name) == "" {
		return errors.New("tool name is empty")
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool '%s' has no handler", tool.Name)
	}
	if _, ok := r.tools[tool.Name]; ok {
		return fmt.Errorf("tool '%s' is already registered", tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrUnknownTool, name)
	}
	return tool.Handler(ctx, args)
}

// Specs returns the registered tools sorted by name, for handing their
// schemas to a session provider.
func (r *Registry) Specs() []Tool {
	names := mapz.Keys(r.tools)
	sort.Strings(names)
	return slicez.Map(names, func(name string) Tool {
		return r.tools[name]
	})
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument '%s'", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument '%s' should be a string, got %T", key, v)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("argument '%s' is empty", key)
	}
	return s, nil
}
