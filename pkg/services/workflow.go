package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
	"github.com/flowdeck/flowdeck/pkg/workflow"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

type Workflow struct {
	logger   *slog.Logger
	store    *workflow.Store
	validate *validator.Validate
}

// NewWorkflow creates the workflow application service.
func NewWorkflow(logger *slog.Logger, store *workflow.Store) *Workflow {
	return &Workflow{
		logger:   logger.With("module", "workflow_service"),
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer through the store.
func (s *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if s.store == nil {
		return "workflow store not initialized", false
	}

	if _, err := s.store.List(ctx); err != nil {
		return "persistence layer is unhealthy: " + err.Error(), false
	}

	return "persistence layer is healthy", true
}

// CreateWorkflowRequest carries the fields a client may set on creation.
type CreateWorkflowRequest struct {
	Name        string                    `json:"name"        validate:"required,min=3,max=100"`
	Description string                    `json:"description" validate:"max=500"`
	Nodes       []*models.WorkflowNode    `json:"nodes"`
	Connections []*models.Connection      `json:"connections"`
	Variables   []models.WorkflowVariable `json:"variables"`
	Triggers    []models.WorkflowTrigger  `json:"triggers"`
	Settings    models.WorkflowSettings   `json:"settings"`
	Tags        []string                  `json:"tags"`
}

// CreateWorkflowResponse pairs the stored workflow with its validation result.
type CreateWorkflowResponse struct {
	Workflow   *models.Workflow         `json:"workflow"`
	Validation *models.ValidationResult `json:"validation"`
}

func (s *Workflow) Create(ctx context.Context, req CreateWorkflowRequest) (*CreateWorkflowResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "create_workflow", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	wf := &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Status:      models.WorkflowStatusDraft,
		Nodes:       req.Nodes,
		Connections: req.Connections,
		Variables:   req.Variables,
		Triggers:    req.Triggers,
		Settings:    req.Settings,
		Tags:        req.Tags,
	}

	result, err := s.store.Create(ctx, wf)
	if err != nil {
		return nil, &ServiceError{Op: "create_workflow", Err: err}
	}

	return &CreateWorkflowResponse{Workflow: wf, Validation: result}, nil
}

// UpdateWorkflowRequest carries a partial update; nil fields are untouched.
type UpdateWorkflowRequest struct {
	Name        *string                   `json:"name,omitempty"        validate:"omitempty,min=3,max=100"`
	Description *string                   `json:"description,omitempty" validate:"omitempty,max=500"`
	Status      *models.WorkflowStatus    `json:"status,omitempty"      validate:"omitempty,oneof=draft active paused archived error"`
	Variables   []models.WorkflowVariable `json:"variables,omitempty"`
	Triggers    []models.WorkflowTrigger  `json:"triggers,omitempty"`
	Settings    *models.WorkflowSettings  `json:"settings,omitempty"`
	Tags        []string                  `json:"tags,omitempty"`
}

func (s *Workflow) Update(ctx context.Context, id string, req UpdateWorkflowRequest) (*CreateWorkflowResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ServiceError{Op: "update_workflow", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	wf, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		wf.Name = *req.Name
	}

	if req.Description != nil {
		wf.Description = *req.Description
	}

	if req.Status != nil {
		wf.Status = *req.Status
	}

	if req.Variables != nil {
		wf.Variables = req.Variables
	}

	if req.Triggers != nil {
		wf.Triggers = req.Triggers
	}

	if req.Settings != nil {
		wf.Settings = *req.Settings
	}

	if req.Tags != nil {
		wf.Tags = req.Tags
	}

	result, err := s.store.Update(ctx, wf)
	if err != nil {
		return nil, &ServiceError{Op: "update_workflow", Err: err}
	}

	return &CreateWorkflowResponse{Workflow: wf, Validation: result}, nil
}

func (s *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return s.store.Get(ctx, id)
}

func (s *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.store.List(ctx)
}

func (s *Workflow) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Validate runs structural validation without persisting anything.
func (s *Workflow) Validate(ctx context.Context, id string) (*models.ValidationResult, error) {
	wf, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return s.store.Validator().ValidateWorkflow(wf), nil
}

func (s *Workflow) AddNode(ctx context.Context, workflowID string, node *models.WorkflowNode) (*models.Workflow, error) {
	return s.store.AddNode(ctx, workflowID, node)
}

func (s *Workflow) UpdateNode(ctx context.Context, workflowID string, node *models.WorkflowNode) (*models.Workflow, error) {
	return s.store.UpdateNode(ctx, workflowID, node)
}

func (s *Workflow) DeleteNode(ctx context.Context, workflowID, nodeID string) (*models.Workflow, error) {
	return s.store.DeleteNode(ctx, workflowID, nodeID)
}

func (s *Workflow) AddConnection(ctx context.Context, workflowID string, conn *models.Connection) (*models.Workflow, error) {
	return s.store.AddConnection(ctx, workflowID, conn)
}

func (s *Workflow) DeleteConnection(ctx context.Context, workflowID, connectionID string) (*models.Workflow, error) {
	return s.store.DeleteConnection(ctx, workflowID, connectionID)
}

// Export serializes a workflow for transfer between installations.
func (s *Workflow) Export(ctx context.Context, id string) ([]byte, error) {
	wf, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow.Export(wf)
}

// Import stores an exported workflow under freshly generated ids.
func (s *Workflow) Import(ctx context.Context, data []byte) (*CreateWorkflowResponse, error) {
	wf, err := workflow.Import(data)
	if err != nil {
		return nil, &ServiceError{Op: "import_workflow", Err: fmt.Errorf("%w: %w", ErrInvalidRequest, err)}
	}

	result, err := s.store.Create(ctx, wf)
	if err != nil {
		return nil, &ServiceError{Op: "import_workflow", Err: err}
	}

	return &CreateWorkflowResponse{Workflow: wf, Validation: result}, nil
}

// Instantiate clones a template workflow into a new draft.
func (s *Workflow) Instantiate(ctx context.Context, templateID, name string) (*CreateWorkflowResponse, error) {
	template, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	clone, err := workflow.Instantiate(template, name)
	if err != nil {
		return nil, &ServiceError{Op: "instantiate_workflow", Err: err}
	}

	result, err := s.store.Create(ctx, clone)
	if err != nil {
		return nil, &ServiceError{Op: "instantiate_workflow", Err: err}
	}

	return &CreateWorkflowResponse{Workflow: clone, Validation: result}, nil
}
