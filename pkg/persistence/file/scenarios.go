package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

func (fp *Persistence) scenariosPath() string {
	return filepath.Join(fp.root, "scenarios.json")
}

// ListScenarios returns the scenario catalog sorted by name.
func (fp *Persistence) ListScenarios(_ context.Context) ([]models.ScenarioOption, error) {
	return readScenarios(fp.scenariosPath())
}

// SaveScenario adds a scenario or renames an existing one.
func (fp *Persistence) SaveScenario(_ context.Context, scenario models.ScenarioOption) error {
	if scenario.ID == "" || scenario.Name == "" {
		return fmt.Errorf("%w: id and name are required", persistence.ErrInvalidScenario)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	scenarios, err := readScenarios(fp.scenariosPath())
	if err != nil {
		return err
	}

	replaced := false

	for i := range scenarios {
		if scenarios[i].ID == scenario.ID {
			scenarios[i] = scenario
			replaced = true

			break
		}
	}

	if !replaced {
		scenarios = append(scenarios, scenario)
	}

	data, err := json.MarshalIndent(scenarios, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode scenarios: %w", err)
	}

	return writeFile(fp.scenariosPath(), data)
}

func readScenarios(path string) ([]models.ScenarioOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []models.ScenarioOption{}, nil
		}

		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}

	var scenarios []models.ScenarioOption
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("failed to decode scenarios: %w", err)
	}

	sort.SliceStable(scenarios, func(i, j int) bool {
		return scenarios[i].Name < scenarios[j].Name
	})

	return scenarios, nil
}
