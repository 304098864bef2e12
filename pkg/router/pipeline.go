package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Pipeline is a named, curated group of operations used only by the
// scoring step. Static; loaded once and read-only afterwards.
type Pipeline struct {
	Name        string
	Description string
	Operations  []string
}

// LoadPipelines reads a pipeline definition file. The format is a JSON
// object mapping pipeline name to {"desc": ..., "tools": [...]}.
func LoadPipelines(path string) ([]Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipelines file: %w", err)
	}
	pipelines, err := ParsePipelines(data)
	if err != nil {
		return nil, fmt.Errorf("parsing pipelines file %s: %w", path, err)
	}
	return pipelines, nil
}

// ParsePipelines decodes the pipeline object preserving file order, so
// that operation selection is deterministic across runs.
func ParsePipelines(data []byte) ([]Pipeline, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected top-level object, got %v", tok)
	}

	var pipelines []Pipeline
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected pipeline name, got %v", keyTok)
		}

		var body struct {
			Desc  string   `json:"desc"`
			Tools []string `json:"tools"`
		}
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", name, err)
		}

		pipelines = append(pipelines, Pipeline{
			Name:        name,
			Description: body.Desc,
			Operations:  body.Tools,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pipelines, nil
}
