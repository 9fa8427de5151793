package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/pkg/models"
	"github.com/flowdeck/flowdeck/pkg/persistence"
)

var (
	// ErrInvalidConnection rejects a connection that fails structural checks.
	ErrInvalidConnection = errors.New("invalid connection")

	// ErrCycleDetected rejects a connection that would close a cycle.
	ErrCycleDetected = errors.New("connection would create a cycle")
)

// Store is the mutation layer over persisted workflows. Every write
// revalidates the graph, so a stored workflow is always structurally sound.
type Store struct {
	logger    *slog.Logger
	persist   persistence.Persistence
	validator *Validator
}

func NewStore(logger *slog.Logger, persist persistence.Persistence) *Store {
	return &Store{
		logger:    logger.With("module", "workflow_store"),
		persist:   persist,
		validator: NewValidator(),
	}
}

func (s *Store) Validator() *Validator {
	return s.validator
}

// Create persists a new workflow. Missing ids are generated; the status
// defaults to draft. Validation errors are returned inside the result, not as
// an error: drafts may be saved incomplete.
func (s *Store) Create(ctx context.Context, wf *models.Workflow) (*models.ValidationResult, error) {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	if wf.Status == "" {
		wf.Status = models.WorkflowStatusDraft
	}

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now

	result := s.validator.ValidateWorkflow(wf)

	if wf.Status != models.WorkflowStatusDraft && !result.IsValid {
		return result, fmt.Errorf("cannot create %s workflow with validation errors: %v",
			wf.Status, result.ErrorMessages())
	}

	if err := s.persist.SaveWorkflow(ctx, wf); err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "workflow created", "workflow_id", wf.ID, "name", wf.Name)

	return result, nil
}

// Update replaces a stored workflow. Activating a workflow with validation
// errors is refused.
func (s *Store) Update(ctx context.Context, wf *models.Workflow) (*models.ValidationResult, error) {
	existing, err := s.persist.WorkflowByID(ctx, wf.ID)
	if err != nil {
		return nil, err
	}

	wf.CreatedAt = existing.CreatedAt
	wf.UpdatedAt = time.Now().UTC()

	result := s.validator.ValidateWorkflow(wf)

	if wf.Status == models.WorkflowStatusActive && !result.IsValid {
		return result, fmt.Errorf("cannot activate workflow %s with validation errors: %v",
			wf.ID, result.ErrorMessages())
	}

	if err := s.persist.SaveWorkflow(ctx, wf); err != nil {
		return result, err
	}

	return result, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persist.WorkflowByID(ctx, id)
}

func (s *Store) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persist.Workflows(ctx)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.persist.DeleteWorkflow(ctx, id); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "workflow deleted", "workflow_id", id)

	return nil
}

// AddNode appends a node to the workflow graph.
func (s *Store) AddNode(ctx context.Context, workflowID string, node *models.WorkflowNode) (*models.Workflow, error) {
	wf, err := s.persist.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}

	if wf.NodeByID(node.ID) != nil {
		return nil, fmt.Errorf("workflow %s already has node %q", workflowID, node.ID)
	}

	wf.Nodes = append(wf.Nodes, node)

	return wf, s.save(ctx, wf)
}

// UpdateNode replaces a node in place, keeping its position in declaration order.
func (s *Store) UpdateNode(ctx context.Context, workflowID string, node *models.WorkflowNode) (*models.Workflow, error) {
	wf, err := s.persist.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	replaced := false

	for i, existing := range wf.Nodes {
		if existing.ID == node.ID {
			wf.Nodes[i] = node
			replaced = true

			break
		}
	}

	if !replaced {
		return nil, fmt.Errorf("workflow %s has no node %q", workflowID, node.ID)
	}

	return wf, s.save(ctx, wf)
}

// DeleteNode removes a node and cascades to every connection touching it.
func (s *Store) DeleteNode(ctx context.Context, workflowID, nodeID string) (*models.Workflow, error) {
	wf, err := s.persist.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.NodeByID(nodeID) == nil {
		return nil, fmt.Errorf("workflow %s has no node %q", workflowID, nodeID)
	}

	nodes := wf.Nodes[:0]

	for _, node := range wf.Nodes {
		if node.ID != nodeID {
			nodes = append(nodes, node)
		}
	}

	wf.Nodes = nodes

	conns := wf.Connections[:0]

	for _, conn := range wf.Connections {
		if conn.SourceNodeID != nodeID && conn.TargetNodeID != nodeID {
			conns = append(conns, conn)
		}
	}

	wf.Connections = conns

	return wf, s.save(ctx, wf)
}

// AddConnection wires two nodes together. The connection is rejected when an
// endpoint or port is missing, when the port types clash, or when the new edge
// would close a cycle.
func (s *Store) AddConnection(ctx context.Context, workflowID string, conn *models.Connection) (*models.Workflow, error) {
	wf, err := s.persist.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	if errs := ValidateConnection(wf, conn); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConnection, errs[0].Message)
	}

	if WouldCreateCycle(wf, conn.SourceNodeID, conn.TargetNodeID) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrCycleDetected,
			conn.SourceNodeID, conn.TargetNodeID)
	}

	wf.Connections = append(wf.Connections, conn)

	return wf, s.save(ctx, wf)
}

func (s *Store) DeleteConnection(ctx context.Context, workflowID, connectionID string) (*models.Workflow, error) {
	wf, err := s.persist.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	found := false
	conns := wf.Connections[:0]

	for _, conn := range wf.Connections {
		if conn.ID == connectionID {
			found = true

			continue
		}

		conns = append(conns, conn)
	}

	if !found {
		return nil, fmt.Errorf("workflow %s has no connection %q", workflowID, connectionID)
	}

	wf.Connections = conns

	return wf, s.save(ctx, wf)
}

func (s *Store) save(ctx context.Context, wf *models.Workflow) error {
	wf.UpdatedAt = time.Now().UTC()

	return s.persist.SaveWorkflow(ctx, wf)
}
