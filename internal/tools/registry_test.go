package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/modfin/henry/slicez"
)

func noopTool(name string) Tool {
	return Tool{
		Name:        name,
		Description: "does nothing",
		Handler: func(context.Context, map[string]any) (string, error) {
			return name, nil
		},
	}
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Tool{
		Name:        "greet",
		Description: "greets",
		Handler: func(_ context.Context, args map[string]any) (string, error) {
			name, err := stringArg(args, "name")
			if err != nil {
				return "", err
			}
			return "hello " + name, nil
		},
	})
	if err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	// Invoking twice with the same arguments gives two independent results.
	for range 2 {
		out, err := r.Invoke(context.Background(), "greet", map[string]any{"name": "ada"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "hello ada" {
			t.Errorf("got %q", out)
		}
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Invoke(context.Background(), "does_not_exist", nil)
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(Tool{Name: "  ", Handler: noopTool("x").Handler}); err == nil {
		t.Error("a blank name should be rejected")
	}
	if err := r.Register(Tool{Name: "no_handler"}); err == nil {
		t.Error("a nil handler should be rejected")
	}

	if err := r.Register(noopTool("dup")); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := r.Register(noopTool("dup")); err == nil {
		t.Error("a duplicate name should be rejected")
	}
}

func TestRegistrySpecsSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(noopTool(name)); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	names := slicez.Map(r.Specs(), func(tool Tool) string { return tool.Name })

	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("got %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("specs not sorted, got %v", names)
		}
	}
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"ok": "value", "number": 3.0, "blank": "  "}

	if v, err := stringArg(args, "ok"); err != nil || v != "value" {
		t.Errorf("got %q, %v", v, err)
	}
	if _, err := stringArg(args, "missing"); err == nil {
		t.Error("a missing key should error")
	}
	if _, err := stringArg(args, "number"); err == nil {
		t.Error("a non-string value should error")
	}
	if _, err := stringArg(args, "blank"); err == nil {
		t.Error("a blank value should error")
	}
}
