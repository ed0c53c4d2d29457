package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

func (fp *Persistence) stepsPath(workflowID string) (string, error) {
	if workflowID == "" || strings.ContainsAny(workflowID, `/\`) || strings.Contains(workflowID, "..") {
		return "", fmt.Errorf("%w: %q", persistence.ErrInvalidWorkflowID, workflowID)
	}

	return filepath.Join(fp.root, "workflows", workflowID+".json"), nil
}

// GetSteps reads the saved step list of a workflow.
func (fp *Persistence) GetSteps(_ context.Context, workflowID string) (*models.WorkflowSteps, error) {
	path, err := fp.stepsPath(workflowID)
	if err != nil {
		return nil, err
	}

	return readSteps(path, workflowID)
}

// SaveSteps writes the step list unless a newer revision is on disk.
func (fp *Persistence) SaveSteps(_ context.Context, record *models.WorkflowSteps) error {
	path, err := fp.stepsPath(record.WorkflowID)
	if err != nil {
		return err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	stored, err := readSteps(path, record.WorkflowID)
	if err != nil && !persistence.IsWorkflowNotFound(err) {
		return err
	}

	if stored != nil && stored.Revision > record.Revision {
		return persistence.NewStaleRevisionError("SaveSteps", record.WorkflowID, record.Revision, stored.Revision)
	}

	toSave := *record
	if toSave.UpdatedAt.IsZero() {
		toSave.UpdatedAt = time.Now().UTC()
	}

	if toSave.Steps == nil {
		toSave.Steps = []models.Step{}
	}

	data, err := json.MarshalIndent(toSave, "", "  ")
	if err != nil {
		return persistence.NewWorkflowError("SaveSteps", record.WorkflowID, err)
	}

	return writeFile(path, data)
}

// DeleteSteps removes the saved step list. Deleting a missing list is not an error.
func (fp *Persistence) DeleteSteps(_ context.Context, workflowID string) error {
	path, err := fp.stepsPath(workflowID)
	if err != nil {
		return err
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return persistence.NewWorkflowError("DeleteSteps", workflowID, err)
	}

	return nil
}

func readSteps(path, workflowID string) (*models.WorkflowSteps, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewWorkflowError("GetSteps", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetSteps", workflowID, err)
	}

	var record models.WorkflowSteps
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewWorkflowError("GetSteps", workflowID, err)
	}

	return &record, nil
}

// writeFile replaces path atomically through a temporary file in the same directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
