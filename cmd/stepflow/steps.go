package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dukex/stepflow/pkg/models"
	"gopkg.in/yaml.v3"
)

// stepsDocument is the on-disk form: either a bare list of steps or an
// object with a steps key.
type stepsDocument struct {
	Steps []models.Step `json:"steps"`
}

// readSteps loads steps from path, or from stdin when path is "-". YAML is a
// superset of JSON, so both go through the YAML decoder and are re-encoded
// to JSON so each config decodes into its action's type.
func readSteps(path string, stdin io.Reader) ([]models.Step, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read steps: %w", err)
	}

	return parseSteps(data)
}

func parseSteps(data []byte) ([]models.Step, error) {
	var document any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}

	if document == nil {
		return []models.Step{}, nil
	}

	if _, ok := document.([]any); ok {
		document = map[string]any{"steps": document}
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse steps: %w", err)
	}

	var parsed stepsDocument
	if err := json.Unmarshal(encoded, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode steps: %w", err)
	}

	if parsed.Steps == nil {
		parsed.Steps = []models.Step{}
	}

	return parsed.Steps, nil
}
