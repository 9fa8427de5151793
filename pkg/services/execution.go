package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/flowdeck/flowdeck/pkg/engine"
	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

type Execution struct {
	logger   *slog.Logger
	engine   *engine.Engine
	validate *validator.Validate
}

// NewExecution creates the execution application service.
func NewExecution(logger *slog.Logger, eng *engine.Engine) *Execution {
	return &Execution{
		logger:   logger.With("module", "execution_service"),
		engine:   eng,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// ExecuteRequest carries the per-run options a client may set.
type ExecuteRequest struct {
	Input      map[string]any `json:"input,omitempty"`
	TimeoutMs  int            `json:"timeout_ms,omitempty"  validate:"min=0"`
	MaxRetries int            `json:"max_retries,omitempty" validate:"min=0"`
	DryRun     bool           `json:"dry_run,omitempty"`
}

// ExecuteResponse returns the id the run can be tracked by.
type ExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
}

// Execute starts a workflow run and returns immediately.
func (s *Execution) Execute(ctx context.Context, workflowID string, req ExecuteRequest) (*ExecuteResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "execute_workflow", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	opts := engine.Options{
		Timeout:    time.Duration(req.TimeoutMs) * time.Millisecond,
		MaxRetries: req.MaxRetries,
		DryRun:     req.DryRun,
	}

	executionID, err := s.engine.ExecuteWorkflow(ctx, workflowID, req.Input, opts)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "execution started",
		"workflow_id", workflowID, "execution_id", executionID, "dry_run", req.DryRun)

	return &ExecuteResponse{ExecutionID: executionID}, nil
}

// Stop requests cooperative cancellation of a live run.
func (s *Execution) Stop(ctx context.Context, executionID string) error {
	return s.engine.StopExecution(executionID)
}

// Pause suspends a running execution at its next node boundary.
func (s *Execution) Pause(ctx context.Context, executionID, reason string) error {
	if err := s.engine.PauseExecution(executionID, reason); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "execution paused", "execution_id", executionID, "reason", reason)

	return nil
}

// Resume releases a paused execution back into its walk.
func (s *Execution) Resume(ctx context.Context, executionID string) error {
	if err := s.engine.ResumeExecution(executionID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "execution resumed", "execution_id", executionID)

	return nil
}

// Status returns the current or historical state of an execution.
func (s *Execution) Status(ctx context.Context, executionID string) (*models.ExecutionContext, error) {
	return s.engine.GetExecutionStatus(ctx, executionID)
}

// HistoryRequest filters the execution history of a workflow.
type HistoryRequest struct {
	Status *models.ExecutionStatus `json:"status,omitempty"`
	From   *time.Time              `json:"from,omitempty"`
	To     *time.Time              `json:"to,omitempty"`
	Limit  int                     `json:"limit,omitempty" validate:"min=0,max=500"`
}

// History lists past executions of a workflow, newest first.
func (s *Execution) History(ctx context.Context, workflowID string, req HistoryRequest) ([]*models.ExecutionContext, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "execution_history", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	filters := persistence.ExecutionFilters{
		Status: req.Status,
		From:   req.From,
		To:     req.To,
		Limit:  req.Limit,
	}

	return s.engine.GetExecutionHistory(ctx, workflowID, filters)
}
