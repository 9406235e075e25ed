package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// FileProvider reads secrets from a flat JSON object of string values.
// Meant for local development.
type FileProvider struct {
	path string
	data map[string]string
}

// NewFileProvider loads path once.
func NewFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, errors.New("file path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secrets file: %w", err)
	}
	p := &FileProvider{path: path, data: make(map[string]string)}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("parse secrets file %s: %w", path, err)
	}
	return p, nil
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(_ context.Context, key string) (string, error) {
	val, ok := p.data[key]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, key, p.path)
	}
	return val, nil
}
