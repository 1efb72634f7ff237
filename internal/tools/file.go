package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSaver persists text handed over by the session. Everything lands as
// utf-8 text directly under dir, path components in the filename are dropped.
type FileSaver struct {
	dir string
}

func NewFileSaver(dir string) *FileSaver {
	return &FileSaver{dir: dir}
}

func (f *FileSaver) Tool() Tool {
	return Tool{
		Name:        "save_file",
		Description: "Save text content to a local file and return the path it was saved to.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filename": map[string]any{
					"type":        "string",
					"description": "The name of the file to save to.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The text content to save.",
				},
			},
			"required": []string{"filename", "content"},
		},
		Handler: f.handle,
	}
}

func (f *FileSaver) handle(_ context.Context, args map[string]any) (string, error) {
	filename, err := stringArg(args, "filename")
	if err != nil {
		return "", err
	}
	content, err := stringArg(args, "content")
	if err != nil {
		return "", err
	}

	name := filepath.Base(filepath.Clean(filename))
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("bad filename %q", filename)
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", f.dir, err)
	}

	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return fmt.Sprintf("saved to %s", path), nil
}
