// Package redis provides Redis persistence for step lists and scenarios.
//
// Keys:
//
//	<prefix>steps:<workflow id>  => JSON encoded models.WorkflowSteps
//	<prefix>scenarios            => HASH of scenario id to name
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "stepflow:"

	maxSaveAttempts = 5
)

// Persistence implements persistence.Persistence on a Redis client.
type Persistence struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewPersistence connects to the Redis server at databaseURL (redis:// or rediss://).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	options, err := redis.ParseURL(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewPersistenceWithClient(client, logger, DefaultPrefix), nil
}

// NewPersistenceWithClient wraps an existing client. prefix namespaces every key.
func NewPersistenceWithClient(client *redis.Client, logger *slog.Logger, prefix string) *Persistence {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Persistence{
		client: client,
		logger: logger,
		prefix: prefix,
	}
}

func (p *Persistence) keySteps(workflowID string) string {
	return p.prefix + "steps:" + workflowID
}

func (p *Persistence) keyScenarios() string {
	return p.prefix + "scenarios"
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	return p.client.Close()
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

// GetSteps returns the saved step list of a workflow.
func (p *Persistence) GetSteps(ctx context.Context, workflowID string) (*models.WorkflowSteps, error) {
	data, err := p.client.Get(ctx, p.keySteps(workflowID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewWorkflowError("GetSteps", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetSteps", workflowID, err)
	}

	var record models.WorkflowSteps
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, persistence.NewWorkflowError("GetSteps", workflowID, fmt.Errorf("failed to decode steps: %w", err))
	}

	return &record, nil
}

// SaveSteps stores the step list under an optimistic WATCH on its key so a
// concurrent newer save is never overwritten.
func (p *Persistence) SaveSteps(ctx context.Context, record *models.WorkflowSteps) error {
	if record.WorkflowID == "" {
		return persistence.ErrInvalidWorkflowID
	}

	toSave := *record
	if toSave.UpdatedAt.IsZero() {
		toSave.UpdatedAt = time.Now().UTC()
	}

	if toSave.Steps == nil {
		toSave.Steps = []models.Step{}
	}

	data, err := json.Marshal(toSave)
	if err != nil {
		return persistence.NewWorkflowError("SaveSteps", record.WorkflowID, fmt.Errorf("failed to encode steps: %w", err))
	}

	key := p.keySteps(record.WorkflowID)

	save := func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if err == nil {
			var current models.WorkflowSteps
			if err := json.Unmarshal(stored, &current); err != nil {
				return fmt.Errorf("failed to decode stored steps: %w", err)
			}

			if current.Revision > record.Revision {
				return persistence.NewStaleRevisionError("SaveSteps", record.WorkflowID, record.Revision, current.Revision)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)

			return nil
		})

		return err
	}

	for range maxSaveAttempts {
		err = p.client.Watch(ctx, save, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}

		p.logger.DebugContext(ctx, "Concurrent step list write, retrying", "workflow_id", record.WorkflowID)
	}

	return persistence.NewWorkflowError("SaveSteps", record.WorkflowID, err)
}

// DeleteSteps removes the saved step list of a workflow.
func (p *Persistence) DeleteSteps(ctx context.Context, workflowID string) error {
	if err := p.client.Del(ctx, p.keySteps(workflowID)).Err(); err != nil {
		return persistence.NewWorkflowError("DeleteSteps", workflowID, err)
	}

	return nil
}

// ListScenarios returns the scenario catalog sorted by name.
func (p *Persistence) ListScenarios(ctx context.Context) ([]models.ScenarioOption, error) {
	entries, err := p.client.HGetAll(ctx, p.keyScenarios()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}

	scenarios := make([]models.ScenarioOption, 0, len(entries))
	for id, name := range entries {
		scenarios = append(scenarios, models.ScenarioOption{ID: id, Name: name})
	}

	sort.Slice(scenarios, func(i, j int) bool {
		if scenarios[i].Name != scenarios[j].Name {
			return scenarios[i].Name < scenarios[j].Name
		}

		return scenarios[i].ID < scenarios[j].ID
	})

	return scenarios, nil
}

// SaveScenario adds a scenario or renames an existing one.
func (p *Persistence) SaveScenario(ctx context.Context, scenario models.ScenarioOption) error {
	if scenario.ID == "" || scenario.Name == "" {
		return fmt.Errorf("%w: id and name are required", persistence.ErrInvalidScenario)
	}

	if err := p.client.HSet(ctx, p.keyScenarios(), scenario.ID, scenario.Name).Err(); err != nil {
		return fmt.Errorf("failed to save scenario %s: %w", scenario.ID, err)
	}

	return nil
}
