package conditional

import (
	"errors"
	"sort"

	"github.com/flowdeck/flowdeck/pkg/models"
)

// ErrNoBranchMatched is returned when no guard holds and no default branch exists.
var ErrNoBranchMatched = errors.New("no branch condition matched and no default branch is configured")

// ExtractBranchPaths collects one BranchPath per outgoing connection of a
// condition node. Each path carries the reachable node/connection subgraph up
// to, and including, the next condition node. Priority and default flags come
// from connection metadata ("priority" number, "default" bool).
func ExtractBranchPaths(workflow *models.Workflow, conditionNodeID string) []models.BranchPath {
	outgoing := workflow.ConnectionsFrom(conditionNodeID)
	paths := make([]models.BranchPath, 0, len(outgoing))

	for _, conn := range outgoing {
		path := models.BranchPath{
			ConnectionID: conn.ID,
			Condition:    conn.Condition,
			Priority:     metadataInt(conn.Metadata, "priority"),
			IsDefault:    metadataBool(conn.Metadata, "default"),
		}

		collectSubgraph(workflow, conn, &path)
		paths = append(paths, path)
	}

	return paths
}

// SelectBranch picks exactly one branch: paths are ordered by descending
// priority, the first one whose guard holds wins; when none holds the branch
// flagged as default is taken; otherwise ErrNoBranchMatched.
//
// This exclusive selection is the engine's single branch policy for condition
// nodes. Unconditional fan-out only happens after non-condition nodes.
func (e *Evaluator) SelectBranch(paths []models.BranchPath, vars map[string]any) (*models.BranchPath, error) {
	ordered := make([]models.BranchPath, len(paths))
	copy(ordered, paths)

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	for i := range ordered {
		if ordered[i].Condition == "" && !ordered[i].IsDefault {
			// An unguarded non-default branch matches unconditionally.
			return &ordered[i], nil
		}

		if ordered[i].Condition != "" && e.EvaluateGuard(ordered[i].Condition, vars) {
			return &ordered[i], nil
		}
	}

	for i := range ordered {
		if ordered[i].IsDefault {
			return &ordered[i], nil
		}
	}

	return nil, ErrNoBranchMatched
}

// collectSubgraph walks forward from a connection, gathering nodes and
// connections until it hits the next condition node or runs out of graph.
func collectSubgraph(workflow *models.Workflow, start *models.Connection, path *models.BranchPath) {
	visited := make(map[string]bool)
	frontier := []*models.Connection{start}

	for len(frontier) > 0 {
		conn := frontier[0]
		frontier = frontier[1:]

		if visited[conn.ID] {
			continue
		}

		visited[conn.ID] = true
		path.Connections = append(path.Connections, conn.ID)

		target := workflow.NodeByID(conn.TargetNodeID)
		if target == nil || visited["node:"+target.ID] {
			continue
		}

		visited["node:"+target.ID] = true
		path.NodeIDs = append(path.NodeIDs, target.ID)

		// The next condition node terminates this branch's subgraph.
		if target.Type == models.NodeTypeCondition {
			continue
		}

		frontier = append(frontier, workflow.ConnectionsFrom(target.ID)...)
	}
}

func metadataInt(metadata map[string]any, key string) int {
	if metadata == nil {
		return 0
	}

	switch v := metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func metadataBool(metadata map[string]any, key string) bool {
	if metadata == nil {
		return false
	}

	b, _ := metadata[key].(bool)

	return b
}
