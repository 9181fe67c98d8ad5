package breach

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/securely/surfacemap/pkg/model"
)

// Fixtures maps an identity to its breach records.
type Fixtures map[string][]model.BreachRecord

// FileSource answers lookups from a JSON or YAML fixture file. The file is
// read on every lookup so edits show up without a restart.
type FileSource struct {
	path string
}

// NewFileSource returns a source reading path. The format follows the
// extension: .yaml and .yml are YAML, anything else is JSON.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "file" }

// Path returns the fixture file path.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Lookup(ctx context.Context, email string) ([]model.BreachRecord, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fixtures, err := LoadFixtures(s.path)
	if err != nil {
		return nil, err
	}
	records := fixtures[email]
	if records == nil {
		records = []model.BreachRecord{}
	}
	return records, nil
}

// LoadFixtures reads a fixture file. Identity keys are matched
// case-insensitively.
func LoadFixtures(path string) (Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	var raw Fixtures
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse fixtures %s: %v", model.ErrInvalidInput, path, err)
	}

	out := make(Fixtures, len(raw))
	for email, records := range raw {
		key := strings.ToLower(strings.TrimSpace(email))
		out[key] = append(out[key], records...)
	}
	return out, nil
}

// StaticSource answers lookups from memory.
type StaticSource struct {
	fixtures Fixtures
}

// NewStaticSource returns a source over fixtures.
func NewStaticSource(fixtures Fixtures) *StaticSource {
	out := make(Fixtures, len(fixtures))
	for email, records := range fixtures {
		key := strings.ToLower(strings.TrimSpace(email))
		out[key] = append(out[key], records...)
	}
	return &StaticSource{fixtures: out}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Lookup(ctx context.Context, email string) ([]model.BreachRecord, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := append([]model.BreachRecord{}, s.fixtures[email]...)
	return records, nil
}
